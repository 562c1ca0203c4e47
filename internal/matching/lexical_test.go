package matching

import (
	"context"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/localhands/matchd/internal/model"
)

func TestLexicalScoreCandidates(t *testing.T) {
	scorer := NewLexicalScorer(Weights{})

	candidates := []model.Listing{
		{
			Title:  "Senior React Developer",
			Skills: []string{"react", "typescript", "node"},
		},
		{
			Title:  "Plumber available weekends",
			Skills: []string{"plumbing"},
		},
	}

	results, err := scorer.ScoreCandidates(context.Background(), "react developer remote $80", nil, candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	// react and developer hit the text (0.2 each), react hits a skill (0.3).
	if math.Abs(results[0].Score-0.7) > 1e-9 {
		t.Fatalf("expected score 0.7, got %v", results[0].Score)
	}

	if len(results[0].Reasons) != 2 {
		t.Fatalf("expected 2 reasons, got %v", results[0].Reasons)
	}

	if !strings.Contains(results[0].Reasons[0], "Matches: react, developer") {
		t.Fatalf("unexpected token reason: %s", results[0].Reasons[0])
	}

	if results[0].Reasons[1] != "Skills: react" {
		t.Fatalf("unexpected skill reason: %s", results[0].Reasons[1])
	}
}

func TestLexicalScoreIsClamped(t *testing.T) {
	scorer := NewLexicalScorer(Weights{})

	candidates := []model.Listing{
		{
			Title:       "go rust python java kotlin swift",
			Description: "go rust python java kotlin swift",
			Skills:      []string{"go", "rust", "python", "java", "kotlin", "swift"},
		},
	}

	results, err := scorer.ScoreCandidates(context.Background(), "go rust python java kotlin swift", nil, candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	if results[0].Score != 1.0 {
		t.Fatalf("expected clamped score 1.0, got %v", results[0].Score)
	}
}

func TestLexicalSortsAndCaps(t *testing.T) {
	scorer := NewLexicalScorer(Weights{TopK: 3})

	base := time.Now()
	candidates := make([]model.Listing, 0, 6)
	// Alternate weak and strong matches so sorting has work to do.
	for i := 0; i < 6; i++ {
		l := model.Listing{Title: "gardening help", CreatedAt: base.Add(-time.Duration(i) * time.Hour)}
		if i%2 == 0 {
			l.Skills = []string{"gardening"}
		}
		candidates = append(candidates, l)
	}

	results, err := scorer.ScoreCandidates(context.Background(), "gardening", nil, candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected top 3 results, got %d", len(results))
	}

	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("results not sorted by score: %v then %v", results[i-1].Score, results[i].Score)
		}
	}

	// The three skill-tagged listings outscore the rest.
	for _, r := range results {
		if len(r.Listing.Skills) == 0 {
			t.Fatalf("expected skill-tagged listings to win, got %+v", r.Listing)
		}
	}
}

func TestLexicalFiltersBelowThreshold(t *testing.T) {
	scorer := NewLexicalScorer(Weights{MinScore: 0.5})

	candidates := []model.Listing{
		{Title: "React Developer"}, // two token hits, 0.4
	}

	results, err := scorer.ScoreCandidates(context.Background(), "react developer", nil, candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 0 {
		t.Fatalf("expected no results above 0.5, got %d", len(results))
	}
}

func TestTokenize(t *testing.T) {
	cases := []struct {
		query string
		want  []string
	}{
		{"react developer remote $80", []string{"react", "developer", "remote"}},
		{"Go, go, GO!", []string{}},
		{"  aws   AWS terraform ", []string{"aws", "terraform"}},
		{"c++ dev needed", []string{"dev", "needed"}},
		{"", []string{}},
	}

	for _, tc := range cases {
		got := Tokenize(tc.query)
		if len(got) == 0 && len(tc.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("Tokenize(%q) = %v, want %v", tc.query, got, tc.want)
		}
	}
}
