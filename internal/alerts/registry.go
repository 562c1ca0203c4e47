// Package alerts holds the standing-query half of the core: the saved query
// registry and the periodic sweep that turns fresh matches into notification
// records.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/localhands/matchd/internal/matching"
	"github.com/localhands/matchd/internal/model"
	"github.com/localhands/matchd/internal/store"
)

type registryStore interface {
	CreateSavedQuery(ctx context.Context, q model.SavedQuery) (uuid.UUID, error)
	SavedQueryForOwner(ctx context.Context, id, owner uuid.UUID) (*model.SavedQuery, error)
	SavedQueriesByOwner(ctx context.Context, owner uuid.UUID) ([]model.SavedQuery, error)
	DeactivateSavedQuery(ctx context.Context, id, owner uuid.UUID) error
	EligibleListings(ctx context.Context, kind model.ListingKind, excludeOwner uuid.UUID, limit int) ([]model.Listing, error)
	Profile(ctx context.Context, id uuid.UUID) (*model.Profile, error)
}

// Registry is the owner-scoped CRUD surface over saved queries, plus the
// ad hoc "run this saved search now" operation.
type Registry struct {
	store  registryStore
	scorer matching.Scorer
	logger *zap.Logger
}

// NewRegistry wires a registry. The scorer ranks ad hoc runs and may be the
// lexical scorer or the model-backed ranker.
func NewRegistry(st registryStore, scorer matching.Scorer, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{store: st, scorer: scorer, logger: logger}
}

// Save validates and persists a new standing query for its owner.
func (r *Registry) Save(ctx context.Context, q model.SavedQuery) (*model.SavedQuery, error) {
	if q.OwnerID == uuid.Nil {
		return nil, errors.New("owner is required")
	}
	if strings.TrimSpace(q.Name) == "" {
		return nil, errors.New("saved query name is required")
	}
	if !q.Kind.Valid() {
		return nil, fmt.Errorf("invalid listing kind: %q", q.Kind)
	}
	if q.RateMin != nil && q.RateMax != nil && *q.RateMin > *q.RateMax {
		return nil, errors.New("rate minimum exceeds rate maximum")
	}

	q.Skills = model.NormalizeSkills(q.Skills)

	id, err := r.store.CreateSavedQuery(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("save query: %w", err)
	}
	q.ID = id
	q.Active = true

	r.logger.Info("saved query created",
		zap.String("saved_query_id", id.String()),
		zap.String("name", q.Name),
	)

	return &q, nil
}

// List returns the owner's saved queries.
func (r *Registry) List(ctx context.Context, owner uuid.UUID) ([]model.SavedQuery, error) {
	return r.store.SavedQueriesByOwner(ctx, owner)
}

// Deactivate stops a saved query from being swept. The row is kept.
func (r *Registry) Deactivate(ctx context.Context, id, owner uuid.UUID) error {
	return r.store.DeactivateSavedQuery(ctx, id, owner)
}

// Run evaluates a saved query right now and ranks the matching listings.
// It filters with the same predicate the sweep uses, so interactive and
// background evaluation always agree.
func (r *Registry) Run(ctx context.Context, id, owner uuid.UUID) ([]matching.MatchResult, error) {
	q, err := r.store.SavedQueryForOwner(ctx, id, owner)
	if err != nil {
		return nil, fmt.Errorf("load saved query: %w", err)
	}

	listings, err := r.store.EligibleListings(ctx, q.Kind, q.OwnerID, 0)
	if err != nil {
		return nil, fmt.Errorf("fetch eligible listings: %w", err)
	}

	matched := listings[:0]
	for _, l := range listings {
		if q.Matches(&l) {
			matched = append(matched, l)
		}
	}

	searcher, err := r.store.Profile(ctx, owner)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		r.logger.Debug("owner profile lookup failed", zap.Error(err))
	}

	return r.scorer.ScoreCandidates(ctx, queryText(q), searcher, matched)
}

// queryText is what the ranking layer scores against: the free text when
// present, otherwise the skill filter joined into a pseudo-query.
func queryText(q *model.SavedQuery) string {
	if strings.TrimSpace(q.Query) != "" {
		return q.Query
	}
	return strings.Join(q.Skills, " ")
}
