package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/localhands/matchd/internal/model"
)

// eligibleCap bounds the candidate set handed to the ranking layer.
const eligibleCap = 50

// EligibleListings returns a snapshot of active, unexpired listings of the
// given kind, excluding those posted by excludeOwner, newest first. The
// result is capped at 50 rows.
func (s *Store) EligibleListings(ctx context.Context, kind model.ListingKind, excludeOwner uuid.UUID, limit int) ([]model.Listing, error) {
	if limit <= 0 || limit > eligibleCap {
		limit = eligibleCap
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, kind, title, description, skills,
		        rate_min, rate_max, remote, location, created_at, expires_at, active
		 FROM listings
		 WHERE active = true
		   AND (expires_at IS NULL OR expires_at > now())
		   AND kind = $1
		   AND owner_id <> $2
		 ORDER BY created_at DESC
		 LIMIT $3`,
		string(kind), excludeOwner, limit,
	)
	if err != nil {
		return nil, storeErr("query eligible listings", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

// ExpiringListings returns active listings whose expiry falls inside the
// given window from now, used by the sweep to warn owners.
func (s *Store) ExpiringListings(ctx context.Context, within time.Duration) ([]model.Listing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, kind, title, description, skills,
		        rate_min, rate_max, remote, location, created_at, expires_at, active
		 FROM listings
		 WHERE active = true
		   AND expires_at IS NOT NULL
		   AND expires_at > now()
		   AND expires_at <= now() + $1
		 ORDER BY expires_at ASC`,
		within,
	)
	if err != nil {
		return nil, storeErr("query expiring listings", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

// CreateListing inserts a new listing owned by l.OwnerID and returns its id.
func (s *Store) CreateListing(ctx context.Context, l model.Listing) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx,
		`INSERT INTO listings (owner_id, kind, title, description, skills,
		                       rate_min, rate_max, remote, location, expires_at, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, true)
		 RETURNING id`,
		l.OwnerID, string(l.Kind), l.Title, l.Description, model.NormalizeSkills(l.Skills),
		l.RateMin, l.RateMax, l.Remote, l.Location, l.ExpiresAt,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, storeErr("create listing", err)
	}

	return id, nil
}

// RenewListing extends the expiry of an owner's listing.
func (s *Store) RenewListing(ctx context.Context, id, owner uuid.UUID, until time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE listings SET expires_at = $3 WHERE id = $1 AND owner_id = $2`,
		id, owner, until,
	)
	if err != nil {
		return storeErr("renew listing", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeactivateListing removes an owner's listing from matching. Listings are
// never hard-deleted here.
func (s *Store) DeactivateListing(ctx context.Context, id, owner uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE listings SET active = false WHERE id = $1 AND owner_id = $2`,
		id, owner,
	)
	if err != nil {
		return storeErr("deactivate listing", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanListings(rows pgxRows) ([]model.Listing, error) {
	var listings []model.Listing
	for rows.Next() {
		var (
			l    model.Listing
			kind string
		)
		if err := rows.Scan(
			&l.ID, &l.OwnerID, &kind, &l.Title, &l.Description, &l.Skills,
			&l.RateMin, &l.RateMax, &l.Remote, &l.Location, &l.CreatedAt, &l.ExpiresAt, &l.Active,
		); err != nil {
			return nil, storeErr("scan listing", err)
		}
		l.Kind = model.ListingKind(kind)
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate listings", err)
	}

	return listings, nil
}
