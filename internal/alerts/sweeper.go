package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/localhands/matchd/internal/model"
)

type sweepStore interface {
	ActiveSavedQueries(ctx context.Context) ([]model.SavedQuery, error)
	EligibleListings(ctx context.Context, kind model.ListingKind, excludeOwner uuid.UUID, limit int) ([]model.Listing, error)
	CreateMatchNotification(ctx context.Context, n model.Notification) (bool, error)
	AdvanceCursor(ctx context.Context, id uuid.UUID, to time.Time) error
	ExpiringListings(ctx context.Context, within time.Duration) ([]model.Listing, error)
	CreateExpiryNotification(ctx context.Context, n model.Notification) (bool, error)
}

// Summary reports one sweep run for operator visibility.
type Summary struct {
	Queries  int      `json:"queries"`
	Matches  int      `json:"matches"`
	Created  int      `json:"created"`
	Expiring int      `json:"expiring"`
	Errors   []string `json:"errors,omitempty"`
}

// Sweeper re-runs every active saved query against the current eligible
// listings and records a notification per newly surfaced match. It owns no
// clock: each Sweep call is one externally triggered run.
type Sweeper struct {
	store        sweepStore
	logger       *zap.Logger
	expiryWindow time.Duration
	now          func() time.Time
}

// NewSweeper wires a sweeper. expiryWindow <= 0 disables listing-expiring
// notifications.
func NewSweeper(st sweepStore, expiryWindow time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Sweeper{store: st, logger: logger, expiryWindow: expiryWindow, now: time.Now}
}

// Sweep runs one pass over all active saved queries. A failure on one query
// is recorded in the summary and does not abort the rest; only a failure to
// load the query list fails the sweep as a whole. Deduplication rests on the
// store's unique constraint, so overlapping sweep runs are safe.
func (s *Sweeper) Sweep(ctx context.Context) (*Summary, error) {
	queries, err := s.store.ActiveSavedQueries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active saved queries: %w", err)
	}

	summary := &Summary{Queries: len(queries)}
	for i := range queries {
		s.sweepQuery(ctx, &queries[i], summary)
	}

	if s.expiryWindow > 0 {
		s.sweepExpiring(ctx, summary)
	}

	s.logger.Info("sweep completed",
		zap.Int("queries", summary.Queries),
		zap.Int("matches", summary.Matches),
		zap.Int("created", summary.Created),
		zap.Int("expiring", summary.Expiring),
		zap.Int("errors", len(summary.Errors)),
	)

	return summary, nil
}

func (s *Sweeper) sweepQuery(ctx context.Context, q *model.SavedQuery, summary *Summary) {
	// The full eligible set, not cursor-bounded: listings can surface
	// without being newly created, e.g. after a renew.
	listings, err := s.store.EligibleListings(ctx, q.Kind, q.OwnerID, 0)
	if err != nil {
		s.recordError(summary, fmt.Sprintf("saved query %s: fetch listings: %v", q.ID, err))
		return
	}

	for i := range listings {
		l := &listings[i]
		if !q.Matches(l) {
			continue
		}
		summary.Matches++

		created, err := s.store.CreateMatchNotification(ctx, model.Notification{
			RecipientID:  q.OwnerID,
			Kind:         model.NotificationNewMatch,
			Title:        fmt.Sprintf("New match for %q", q.Name),
			Body:         fmt.Sprintf("%q looks like a match for your saved search %q.", l.Title, q.Name),
			SavedQueryID: &q.ID,
			ListingID:    &l.ID,
		})
		if err != nil {
			s.recordError(summary, fmt.Sprintf("saved query %s: notify listing %s: %v", q.ID, l.ID, err))
			continue
		}
		if created {
			summary.Created++
		}
	}

	// The cursor advances whether or not anything matched.
	if err := s.store.AdvanceCursor(ctx, q.ID, s.now()); err != nil {
		s.recordError(summary, fmt.Sprintf("saved query %s: advance cursor: %v", q.ID, err))
	}
}

func (s *Sweeper) sweepExpiring(ctx context.Context, summary *Summary) {
	listings, err := s.store.ExpiringListings(ctx, s.expiryWindow)
	if err != nil {
		s.recordError(summary, fmt.Sprintf("fetch expiring listings: %v", err))
		return
	}

	for i := range listings {
		l := &listings[i]
		created, err := s.store.CreateExpiryNotification(ctx, model.Notification{
			RecipientID: l.OwnerID,
			Kind:        model.NotificationListingExpiring,
			Title:       fmt.Sprintf("Your listing %q expires soon", l.Title),
			Body:        fmt.Sprintf("Renew %q to keep it visible to searchers.", l.Title),
			ListingID:   &l.ID,
		})
		if err != nil {
			s.recordError(summary, fmt.Sprintf("expiring listing %s: %v", l.ID, err))
			continue
		}
		if created {
			summary.Expiring++
		}
	}
}

func (s *Sweeper) recordError(summary *Summary, msg string) {
	summary.Errors = append(summary.Errors, msg)
	s.logger.Warn("sweep item failed", zap.String("error", msg))
}
