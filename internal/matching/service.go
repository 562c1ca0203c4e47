package matching

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/localhands/matchd/internal/model"
	"github.com/localhands/matchd/internal/store"
)

// Filters narrows a live search the same way a saved query would: the ad hoc
// path and the sweep path share the SavedQuery predicate.
type Filters struct {
	RemoteOnly bool
	Location   string
	Skills     []string
	RateMin    *int
	RateMax    *int
}

type listingSource interface {
	EligibleListings(ctx context.Context, kind model.ListingKind, excludeOwner uuid.UUID, limit int) ([]model.Listing, error)
	Profile(ctx context.Context, id uuid.UUID) (*model.Profile, error)
}

// Service answers live search requests: snapshot the eligible listings,
// filter, and rank. Callers observe only store failures and validation
// errors; ranking-model degradation is absorbed below this layer.
type Service struct {
	store    listingSource
	scorer   Scorer
	fallback *LexicalScorer
	logger   *zap.Logger
}

// NewService wires a search service. scorer may be nil, in which case the
// lexical fallback ranks everything.
func NewService(st listingSource, scorer Scorer, fallback *LexicalScorer, logger *zap.Logger) *Service {
	if fallback == nil {
		fallback = NewLexicalScorer(DefaultWeights())
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{store: st, scorer: scorer, fallback: fallback, logger: logger}
}

// Search runs one interactive query for callerID against eligible listings
// of the given kind.
func (s *Service) Search(ctx context.Context, query string, kind model.ListingKind, callerID uuid.UUID, filters Filters) ([]MatchResult, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid listing kind: %q", kind)
	}

	listings, err := s.store.EligibleListings(ctx, kind, callerID, 0)
	if err != nil {
		return nil, fmt.Errorf("fetch eligible listings: %w", err)
	}

	listings = applyFilters(kind, filters, listings)

	searcher, err := s.store.Profile(ctx, callerID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		// The profile only enriches the scoring context; rank without it.
		s.logger.Debug("searcher profile lookup failed", zap.Error(err))
	}

	scorer := s.scorer
	if scorer == nil {
		scorer = s.fallback
	}

	results, err := scorer.ScoreCandidates(ctx, query, searcher, listings)
	if err != nil {
		// Scorers absorb their own failures; this is a second safety net so
		// the caller never sees a ranking failure.
		s.logger.Warn("scorer failed, degrading to lexical ranking", zap.Error(err))
		return s.fallback.ScoreCandidates(ctx, query, searcher, listings)
	}

	return results, nil
}

func applyFilters(kind model.ListingKind, f Filters, listings []model.Listing) []model.Listing {
	predicate := model.SavedQuery{
		Kind:       kind,
		Skills:     model.NormalizeSkills(f.Skills),
		RateMin:    f.RateMin,
		RateMax:    f.RateMax,
		RemoteOnly: f.RemoteOnly,
		Location:   f.Location,
	}

	kept := listings[:0]
	for _, l := range listings {
		if predicate.Matches(&l) {
			kept = append(kept, l)
		}
	}

	return kept
}
