// Package matching ranks listings against a free-text query. The Scorer
// interface is the interchangeable ranking capability: the lexical scorer is
// the deterministic baseline and the model-backed ranker in internal/ai
// wraps it as a fallback.
package matching

import (
	"context"

	"github.com/localhands/matchd/internal/model"
)

// MatchResult is one ranked listing. Results are ephemeral: recomputed per
// request, never persisted.
type MatchResult struct {
	Listing model.Listing
	// Score is in [0.0, 1.0].
	Score float64
	// Reasons are short human-readable explanations for the score.
	Reasons []string
}

// Scorer scores a candidate set against a query and returns the ordered
// match list: score descending, ties by listing creation time descending,
// capped and thresholded by the implementation.
type Scorer interface {
	ScoreCandidates(ctx context.Context, query string, searcher *model.Profile, candidates []model.Listing) ([]MatchResult, error)
}

// Weights holds the scoring constants. The reference values are tuning
// numbers with no documented derivation, so they are configuration rather
// than hardcoded constants.
type Weights struct {
	// TokenWeight is added per distinct query token found in the listing text.
	TokenWeight float64
	// SkillWeight is added per listing skill tag equal to a query token.
	SkillWeight float64
	// MinScore drops results at or below this threshold.
	MinScore float64
	// TopK caps the number of returned results.
	TopK int
}

// DefaultWeights returns the reference lexical scoring constants.
func DefaultWeights() Weights {
	return Weights{
		TokenWeight: 0.2,
		SkillWeight: 0.3,
		MinScore:    0.1,
		TopK:        10,
	}
}
