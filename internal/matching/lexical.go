package matching

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/localhands/matchd/internal/model"
)

// minTokenLen excludes short function words from the query. This length cut
// is a deliberate simplification, not a stop-word list.
const minTokenLen = 3

// LexicalScorer is the deterministic keyword/skill overlap ranking. It is
// always available and never returns an error, which makes it the landing
// point when the model-backed ranker fails.
type LexicalScorer struct {
	weights Weights
}

// NewLexicalScorer creates a scorer with the given weights. Zero-valued
// weights are replaced by the reference defaults.
func NewLexicalScorer(w Weights) *LexicalScorer {
	defaults := DefaultWeights()
	if w.TokenWeight == 0 {
		w.TokenWeight = defaults.TokenWeight
	}
	if w.SkillWeight == 0 {
		w.SkillWeight = defaults.SkillWeight
	}
	if w.MinScore == 0 {
		w.MinScore = defaults.MinScore
	}
	if w.TopK == 0 {
		w.TopK = defaults.TopK
	}

	return &LexicalScorer{weights: w}
}

// ScoreCandidates ranks the candidates by token and skill overlap with the
// query. Output is filtered to scores above the threshold, sorted score
// descending with stable ties (input arrives newest first from the store),
// and truncated to the top K.
func (s *LexicalScorer) ScoreCandidates(_ context.Context, query string, _ *model.Profile, candidates []model.Listing) ([]MatchResult, error) {
	tokens := Tokenize(query)

	results := make([]MatchResult, 0, len(candidates))
	for _, listing := range candidates {
		score, reasons := s.scoreListing(tokens, &listing)
		if score <= s.weights.MinScore {
			continue
		}
		results = append(results, MatchResult{Listing: listing, Score: score, Reasons: reasons})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > s.weights.TopK {
		results = results[:s.weights.TopK]
	}

	return results, nil
}

func (s *LexicalScorer) scoreListing(tokens []string, l *model.Listing) (float64, []string) {
	haystack := strings.ToLower(l.Title + " " + l.Description + " " + strings.Join(l.Skills, " "))

	var (
		score   float64
		matched []string
	)
	for _, token := range tokens {
		if strings.Contains(haystack, token) {
			score += s.weights.TokenWeight
			matched = append(matched, token)
		}
	}

	var skillHits []string
	for _, skill := range l.Skills {
		for _, token := range tokens {
			if strings.EqualFold(skill, token) {
				score += s.weights.SkillWeight
				skillHits = append(skillHits, strings.ToLower(skill))
				break
			}
		}
	}

	if score > 1.0 {
		score = 1.0
	}

	var reasons []string
	if len(matched) > 0 {
		reasons = append(reasons, fmt.Sprintf("Matches: %s", strings.Join(matched, ", ")))
	}
	if len(skillHits) > 0 {
		reasons = append(reasons, fmt.Sprintf("Skills: %s", strings.Join(skillHits, ", ")))
	}

	return score, reasons
}

// Tokenize splits a query into distinct lowercase words longer than two
// runes, preserving first-seen order.
func Tokenize(query string) []string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(words))
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len([]rune(w)) < minTokenLen {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		tokens = append(tokens, w)
	}

	return tokens
}
