package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/localhands/matchd/internal/model"
)

// CreateMatchNotification inserts a new-match notification, deduplicated by
// the (recipient, saved query, listing) triple. The partial unique index on
// that triple closes the race between concurrent sweep runs, so a duplicate
// is detected by the database, not by a check-then-insert. It reports
// whether a row was actually created; a skipped duplicate is not an error.
func (s *Store) CreateMatchNotification(ctx context.Context, n model.Notification) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (recipient_id, kind, title, body, saved_query_id, listing_id,
		                            status, next_attempt_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		 ON CONFLICT (recipient_id, saved_query_id, listing_id)
		 WHERE kind = 'new_match'
		 DO NOTHING`,
		n.RecipientID, string(model.NotificationNewMatch), n.Title, n.Body,
		n.SavedQueryID, n.ListingID, string(model.DeliveryPending),
	)
	if err != nil {
		return false, storeErr("create match notification", err)
	}

	return tag.RowsAffected() == 1, nil
}

// CreateExpiryNotification inserts a listing-expiring notification, at most
// once per (recipient, listing) pair.
func (s *Store) CreateExpiryNotification(ctx context.Context, n model.Notification) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (recipient_id, kind, title, body, listing_id,
		                            status, next_attempt_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (recipient_id, listing_id)
		 WHERE kind = 'listing_expiring'
		 DO NOTHING`,
		n.RecipientID, string(model.NotificationListingExpiring), n.Title, n.Body,
		n.ListingID, string(model.DeliveryPending),
	)
	if err != nil {
		return false, storeErr("create expiry notification", err)
	}

	return tag.RowsAffected() == 1, nil
}

// CreateNotification inserts a notification of any kind without dedup
// bookkeeping. Collaborators use it for message_received and contact_shared
// events they own.
func (s *Store) CreateNotification(ctx context.Context, n model.Notification) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx,
		`INSERT INTO notifications (recipient_id, kind, title, body, saved_query_id, listing_id,
		                            status, next_attempt_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		 RETURNING id`,
		n.RecipientID, string(n.Kind), n.Title, n.Body, n.SavedQueryID, n.ListingID,
		string(model.DeliveryPending),
	).Scan(&id)
	if err != nil {
		return uuid.Nil, storeErr("create notification", err)
	}

	return id, nil
}

// PendingNotifications fetches up to limit pending rows whose next attempt
// is due, oldest first so a backlog drains fairly.
func (s *Store) PendingNotifications(ctx context.Context, limit int) ([]model.Notification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, recipient_id, kind, title, body, saved_query_id, listing_id,
		        status, attempts, last_attempt_at, next_attempt_at, delivered_at, created_at
		 FROM notifications
		 WHERE status = $1 AND next_attempt_at <= now()
		 ORDER BY created_at ASC
		 LIMIT $2`,
		string(model.DeliveryPending), limit,
	)
	if err != nil {
		return nil, storeErr("query pending notifications", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var (
			n      model.Notification
			kind   string
			status string
		)
		if err := rows.Scan(
			&n.ID, &n.RecipientID, &kind, &n.Title, &n.Body, &n.SavedQueryID, &n.ListingID,
			&status, &n.Attempts, &n.LastAttemptAt, &n.NextAttemptAt, &n.DeliveredAt, &n.CreatedAt,
		); err != nil {
			return nil, storeErr("scan notification", err)
		}
		n.Kind = model.NotificationKind(kind)
		n.Status = model.DeliveryStatus(status)
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate notifications", err)
	}

	return notifications, nil
}

// MarkDelivered transitions a pending notification to delivered. The status
// guard keeps the transition one-way.
func (s *Store) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications
		 SET status = $2, delivered_at = $3
		 WHERE id = $1 AND status = $4`,
		id, string(model.DeliveryDelivered), at, string(model.DeliveryPending),
	)
	if err != nil {
		return storeErr("mark delivered", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// RecordFailure bumps the attempt counter after a failed delivery, schedules
// the next attempt, and parks the row as failed_permanently once the
// dispatcher's cutoff is reached.
func (s *Store) RecordFailure(ctx context.Context, id uuid.UUID, next time.Time, permanent bool) error {
	status := model.DeliveryPending
	if permanent {
		status = model.DeliveryFailedPermanently
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications
		 SET attempts = attempts + 1, last_attempt_at = now(), next_attempt_at = $2, status = $3
		 WHERE id = $1 AND status = $4`,
		id, next, string(status), string(model.DeliveryPending),
	)
	if err != nil {
		return storeErr("record failure", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
