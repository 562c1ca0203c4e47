package model

import (
	"reflect"
	"testing"
	"time"
)

func intp(v int) *int { return &v }

func TestSavedQueryMatches(t *testing.T) {
	cases := []struct {
		name    string
		query   SavedQuery
		listing Listing
		want    bool
	}{
		{
			name:    "kind mismatch",
			query:   SavedQuery{Kind: KindSeekingWork},
			listing: Listing{Kind: KindSeekingHelp},
			want:    false,
		},
		{
			name:    "remote-only skill overlap",
			query:   SavedQuery{Kind: KindSeekingWork, Skills: []string{"aws", "terraform"}, RemoteOnly: true},
			listing: Listing{Kind: KindSeekingWork, Skills: []string{"AWS", "linux"}, Remote: true},
			want:    true,
		},
		{
			name:    "remote-only rejects on-site",
			query:   SavedQuery{Kind: KindSeekingWork, RemoteOnly: true},
			listing: Listing{Kind: KindSeekingWork, Remote: false},
			want:    false,
		},
		{
			name:    "location substring is case-insensitive",
			query:   SavedQuery{Kind: KindSeekingHelp, Location: "berlin"},
			listing: Listing{Kind: KindSeekingHelp, Location: "Berlin, Kreuzberg"},
			want:    true,
		},
		{
			name:    "location mismatch",
			query:   SavedQuery{Kind: KindSeekingHelp, Location: "hamburg"},
			listing: Listing{Kind: KindSeekingHelp, Location: "Berlin"},
			want:    false,
		},
		{
			name:    "no skill overlap",
			query:   SavedQuery{Kind: KindSeekingWork, Skills: []string{"react"}},
			listing: Listing{Kind: KindSeekingWork, Skills: []string{"plumbing"}},
			want:    false,
		},
		{
			name:    "rate ranges overlap",
			query:   SavedQuery{Kind: KindSeekingWork, RateMin: intp(70), RateMax: intp(100)},
			listing: Listing{Kind: KindSeekingWork, RateMin: intp(80), RateMax: intp(120)},
			want:    true,
		},
		{
			name:    "listing max below query min",
			query:   SavedQuery{Kind: KindSeekingWork, RateMin: intp(90)},
			listing: Listing{Kind: KindSeekingWork, RateMax: intp(80)},
			want:    false,
		},
		{
			name:    "missing rates never exclude",
			query:   SavedQuery{Kind: KindSeekingWork, RateMin: intp(50), RateMax: intp(100)},
			listing: Listing{Kind: KindSeekingWork},
			want:    true,
		},
		{
			name:    "empty query matches same kind",
			query:   SavedQuery{Kind: KindSeekingHelp},
			listing: Listing{Kind: KindSeekingHelp},
			want:    true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.query.Matches(&tc.listing)
			if got != tc.want {
				t.Fatalf("Matches() = %v, want %v", got, tc.want)
			}

			// The predicate is pure: a second evaluation must agree.
			if again := tc.query.Matches(&tc.listing); again != got {
				t.Fatalf("Matches() is not deterministic: %v then %v", got, again)
			}
		})
	}
}

func TestSavedQueryMatchesRateBands(t *testing.T) {
	// Overlap means neither band ends before the other starts.
	q := SavedQuery{Kind: KindSeekingWork, RateMin: intp(70), RateMax: intp(100)}
	l := Listing{Kind: KindSeekingWork, RateMin: intp(101), RateMax: intp(120)}
	if q.Matches(&l) {
		t.Fatalf("expected listing starting above the query max to be excluded")
	}

	l = Listing{Kind: KindSeekingWork, RateMin: intp(90), RateMax: intp(95)}
	if !q.Matches(&l) {
		t.Fatalf("expected a listing band inside the query band to match")
	}
}

func TestListingEligible(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name    string
		listing Listing
		want    bool
	}{
		{"active without expiry", Listing{Active: true}, true},
		{"active expiring later", Listing{Active: true, ExpiresAt: &future}, true},
		{"active but expired", Listing{Active: true, ExpiresAt: &past}, false},
		{"inactive", Listing{Active: false, ExpiresAt: &future}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.listing.Eligible(now); got != tc.want {
				t.Fatalf("Eligible() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNormalizeSkills(t *testing.T) {
	got := NormalizeSkills([]string{" React ", "react", "", "TypeScript", "node", "NODE"})
	want := []string{"react", "typescript", "node"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeSkills() = %v, want %v", got, want)
	}
}
