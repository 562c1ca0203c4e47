package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/localhands/matchd/internal/model"
)

// Profile resolves a user id to its minimal public subset.
func (s *Store) Profile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	var p model.Profile
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(headline, '') FROM users WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Headline)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("query profile", err)
	}

	return &p, nil
}

// RecipientEmail returns the delivery address for a user, or an empty string
// when the user has not configured one yet.
func (s *Store) RecipientEmail(ctx context.Context, id uuid.UUID) (string, error) {
	var email *string
	err := s.pool.QueryRow(ctx,
		`SELECT email FROM users WHERE id = $1`,
		id,
	).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", storeErr("query recipient email", err)
	}
	if email == nil {
		return "", nil
	}

	return *email, nil
}
