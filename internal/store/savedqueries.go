package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/localhands/matchd/internal/model"
)

const savedQueryColumns = `id, owner_id, name, kind, query, skills, rate_min, rate_max,
	remote_only, location, notify_by_email, last_evaluated_at, created_at, active`

// CreateSavedQuery persists a new standing query and returns its id.
func (s *Store) CreateSavedQuery(ctx context.Context, q model.SavedQuery) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx,
		`INSERT INTO saved_queries (owner_id, name, kind, query, skills, rate_min, rate_max,
		                            remote_only, location, notify_by_email, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, true)
		 RETURNING id`,
		q.OwnerID, q.Name, string(q.Kind), q.Query, model.NormalizeSkills(q.Skills),
		q.RateMin, q.RateMax, q.RemoteOnly, q.Location, q.NotifyByEmail,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, storeErr("create saved query", err)
	}

	return id, nil
}

// SavedQueryForOwner loads a saved query, visible only to its owner.
func (s *Store) SavedQueryForOwner(ctx context.Context, id, owner uuid.UUID) (*model.SavedQuery, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+savedQueryColumns+`
		 FROM saved_queries
		 WHERE id = $1 AND owner_id = $2`,
		id, owner,
	)

	q, err := scanSavedQuery(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("query saved query", err)
	}

	return q, nil
}

// SavedQueriesByOwner lists all saved queries of one user, newest first.
func (s *Store) SavedQueriesByOwner(ctx context.Context, owner uuid.UUID) ([]model.SavedQuery, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+savedQueryColumns+`
		 FROM saved_queries
		 WHERE owner_id = $1
		 ORDER BY created_at DESC`,
		owner,
	)
	if err != nil {
		return nil, storeErr("query saved queries", err)
	}
	defer rows.Close()

	var queries []model.SavedQuery
	for rows.Next() {
		q, err := scanSavedQuery(rows)
		if err != nil {
			return nil, storeErr("scan saved query", err)
		}
		queries = append(queries, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate saved queries", err)
	}

	return queries, nil
}

// ActiveSavedQueries returns every active standing query across all owners,
// in creation order, for the sweep.
func (s *Store) ActiveSavedQueries(ctx context.Context) ([]model.SavedQuery, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+savedQueryColumns+`
		 FROM saved_queries
		 WHERE active = true
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, storeErr("query active saved queries", err)
	}
	defer rows.Close()

	var queries []model.SavedQuery
	for rows.Next() {
		q, err := scanSavedQuery(rows)
		if err != nil {
			return nil, storeErr("scan saved query", err)
		}
		queries = append(queries, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate saved queries", err)
	}

	return queries, nil
}

// DeactivateSavedQuery stops a standing query from being swept.
func (s *Store) DeactivateSavedQuery(ctx context.Context, id, owner uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE saved_queries SET active = false WHERE id = $1 AND owner_id = $2`,
		id, owner,
	)
	if err != nil {
		return storeErr("deactivate saved query", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// AdvanceCursor moves the evaluation cursor forward. GREATEST keeps the
// cursor monotonic under overlapping sweep runs.
func (s *Store) AdvanceCursor(ctx context.Context, id uuid.UUID, to time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE saved_queries
		 SET last_evaluated_at = GREATEST(COALESCE(last_evaluated_at, 'epoch'::timestamptz), $2)
		 WHERE id = $1`,
		id, to,
	)
	if err != nil {
		return storeErr("advance cursor", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

type pgxRow interface {
	Scan(dest ...any) error
}

func scanSavedQuery(row pgxRow) (*model.SavedQuery, error) {
	var (
		q    model.SavedQuery
		kind string
	)
	err := row.Scan(
		&q.ID, &q.OwnerID, &q.Name, &kind, &q.Query, &q.Skills, &q.RateMin, &q.RateMax,
		&q.RemoteOnly, &q.Location, &q.NotifyByEmail, &q.LastEvaluatedAt, &q.CreatedAt, &q.Active,
	)
	if err != nil {
		return nil, err
	}
	q.Kind = model.ListingKind(kind)

	return &q, nil
}
