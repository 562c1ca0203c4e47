// Package notify drains pending notification records and drives retried,
// at-least-once outbound delivery through an external transport.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/localhands/matchd/internal/model"
)

// Transport delivers one message to a recipient address. Implementations
// report success or failure only; no delivery receipts flow back.
type Transport interface {
	Send(to, subject, body string) error
}

type dispatchStore interface {
	PendingNotifications(ctx context.Context, limit int) ([]model.Notification, error)
	RecipientEmail(ctx context.Context, id uuid.UUID) (string, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error
	RecordFailure(ctx context.Context, id uuid.UUID, next time.Time, permanent bool) error
}

// Report summarizes one drain run.
type Report struct {
	Sent   int      `json:"sent"`
	Errors []string `json:"errors,omitempty"`
}

const (
	defaultBatchSize   = 50
	defaultMaxAttempts = 8
	defaultBackoff     = time.Minute
	maxBackoff         = 24 * time.Hour
)

// Dispatcher performs at-least-once delivery of pending notifications.
// A failed attempt leaves the row pending with an advanced attempt counter
// and an exponentially backed-off next attempt; after maxAttempts the row is
// parked as failed_permanently for an operator to inspect. The batch
// fetch-then-update is not safe against a second concurrent dispatcher, so
// callers hold a lease or run a single instance.
type Dispatcher struct {
	store       dispatchStore
	transport   Transport
	logger      *zap.Logger
	maxAttempts int
	baseBackoff time.Duration
	now         func() time.Time
}

// NewDispatcher wires a dispatcher. Non-positive maxAttempts and backoff
// fall back to the defaults.
func NewDispatcher(st dispatchStore, transport Transport, maxAttempts int, backoff time.Duration, logger *zap.Logger) *Dispatcher {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		store:       st,
		transport:   transport,
		logger:      logger,
		maxAttempts: maxAttempts,
		baseBackoff: backoff,
		now:         time.Now,
	}
}

// Drain processes up to limit due pending notifications, oldest first. One
// bad item never aborts the batch; per-item errors are collected into the
// report.
func (d *Dispatcher) Drain(ctx context.Context, limit int) (*Report, error) {
	if limit <= 0 {
		limit = defaultBatchSize
	}

	pending, err := d.store.PendingNotifications(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending notifications: %w", err)
	}

	report := &Report{}
	for i := range pending {
		d.deliver(ctx, &pending[i], report)
	}

	d.logger.Info("dispatch completed",
		zap.Int("pending", len(pending)),
		zap.Int("sent", report.Sent),
		zap.Int("errors", len(report.Errors)),
	)

	return report, nil
}

func (d *Dispatcher) deliver(ctx context.Context, n *model.Notification, report *Report) {
	email, err := d.store.RecipientEmail(ctx, n.RecipientID)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("notification %s: resolve recipient: %v", n.ID, err))
		return
	}
	if email == "" {
		// The row stays pending without burning an attempt: a user who adds
		// an address later still receives queued notifications.
		report.Errors = append(report.Errors, fmt.Sprintf("notification %s: recipient %s has no delivery address", n.ID, n.RecipientID))
		return
	}

	if err := d.transport.Send(email, n.Title, n.Body); err != nil {
		d.recordFailure(ctx, n, err, report)
		return
	}

	if err := d.store.MarkDelivered(ctx, n.ID, d.now()); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("notification %s: mark delivered: %v", n.ID, err))
		return
	}
	report.Sent++
}

func (d *Dispatcher) recordFailure(ctx context.Context, n *model.Notification, cause error, report *Report) {
	attempts := n.Attempts + 1
	permanent := attempts >= d.maxAttempts
	next := d.now().Add(backoffFor(d.baseBackoff, attempts))

	if err := d.store.RecordFailure(ctx, n.ID, next, permanent); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("notification %s: record failure: %v", n.ID, err))
		return
	}

	report.Errors = append(report.Errors, fmt.Sprintf("notification %s: deliver: %v", n.ID, cause))

	if permanent {
		d.logger.Warn("notification failed permanently",
			zap.String("notification_id", n.ID.String()),
			zap.Int("attempts", attempts),
			zap.Error(cause),
		)
	}
}

// backoffFor doubles the delay per attempt, capped at maxBackoff.
func backoffFor(base time.Duration, attempts int) time.Duration {
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
