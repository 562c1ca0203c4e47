// Package store is the typed read/write adapter over the relational
// marketplace data: listings, users, saved queries and notifications.
// It carries no business logic; failures surface as ErrUnavailable and the
// caller decides whether to fail the request or degrade.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUnavailable wraps any data-layer failure.
	ErrUnavailable = errors.New("store unavailable")
	// ErrNotFound is returned when a row does not exist or is not visible
	// to the requesting owner.
	ErrNotFound = errors.New("not found")
)

// Store wraps a pgx connection pool. It is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against the provided DSN and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
