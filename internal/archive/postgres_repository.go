package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the runs table. Bins and bounds are stored as JSONB.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	city        TEXT NOT NULL,
	gas         TEXT NOT NULL DEFAULT '',
	start_date  DATE NOT NULL,
	end_date    DATE NOT NULL,
	mode        TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL DEFAULT '',
	bins        JSONB,
	bounds      JSONB,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_created_at_idx ON runs (created_at DESC);
`

const runColumns = `id, kind, city, gas, start_date, end_date, mode, title, bins, bounds, created_at`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a PostgreSQL run repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Migrate creates the schema if it does not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate runs: %w", err)
	}
	return nil
}

// Get retrieves a run by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`

	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return run, nil
}

// List retrieves runs newest first.
func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	// Fetch one extra to detect another page.
	fetchLimit := limit + 1

	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE ($1 = '' OR lower(city) = lower($1))
		  AND ($2 = '' OR upper(gas) = upper($2))
		  AND ($3 = '' OR kind = $3)
		  AND ($4 = '' OR (created_at, id) < (SELECT created_at, id FROM runs WHERE id = $4))
		ORDER BY created_at DESC, id DESC
		LIMIT $5
	`

	rows, err := r.pool.Query(ctx, query, opts.City, opts.Gas, string(opts.Kind), opts.Cursor, fetchLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &ListResult{Items: runs}
	if len(runs) > limit {
		result.Items = runs[:limit]
		result.NextCursor = runs[limit-1].ID
	}
	return result, nil
}

// Create stores a run.
func (r *PostgresRepository) Create(ctx context.Context, run *Run) error {
	bins, err := marshalNullable(run.Bins, run.Bins == nil)
	if err != nil {
		return fmt.Errorf("encode bins: %w", err)
	}
	bounds, err := marshalNullable(run.Bounds, run.Bounds == nil)
	if err != nil {
		return fmt.Errorf("encode bounds: %w", err)
	}

	query := `INSERT INTO runs (` + runColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = r.pool.Exec(ctx, query,
		run.ID,
		string(run.Kind),
		run.City,
		run.Gas,
		run.Start,
		run.End,
		run.Mode,
		run.Title,
		bins,
		bounds,
		run.CreatedAt,
	)
	return err
}

func scanRun(row pgx.Row) (*Run, error) {
	var (
		run          Run
		kind         string
		bins, bounds []byte
	)
	err := row.Scan(
		&run.ID,
		&kind,
		&run.City,
		&run.Gas,
		&run.Start,
		&run.End,
		&run.Mode,
		&run.Title,
		&bins,
		&bounds,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Kind = Kind(kind)

	if len(bins) > 0 {
		if err := json.Unmarshal(bins, &run.Bins); err != nil {
			return nil, fmt.Errorf("decode bins of %s: %w", run.ID, err)
		}
	}
	if len(bounds) > 0 {
		if err := json.Unmarshal(bounds, &run.Bounds); err != nil {
			return nil, fmt.Errorf("decode bounds of %s: %w", run.ID, err)
		}
	}
	return &run, nil
}

func marshalNullable(v any, isNil bool) ([]byte, error) {
	if isNil {
		return nil, nil
	}
	return json.Marshal(v)
}

var _ Repository = (*PostgresRepository)(nil)
