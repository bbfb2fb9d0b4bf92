package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amishk599/jobradar/internal/model"
)

var _ model.JobStore = (*PostgresStore)(nil)

const createPostgresTable = `CREATE TABLE IF NOT EXISTS job_records (
	key         TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	title       TEXT NOT NULL,
	company     TEXT,
	location    TEXT,
	remote      BOOLEAN NOT NULL DEFAULT false,
	url         TEXT,
	salary_text TEXT,
	salary      JSONB,
	posted_at   TIMESTAMPTZ,
	posted_text TEXT,
	description TEXT,
	language    TEXT,
	score       JSONB,
	scraped_at  TIMESTAMPTZ NOT NULL
)`

// PostgresStore persists job records in PostgreSQL, for setups where several
// instances share one history.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL, verifies the connection and
// ensures the job_records table exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	if _, err := pool.Exec(ctx, createPostgresTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating job_records table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Exists returns the subset of keys that are already stored.
func (s *PostgresStore) Exists(ctx context.Context, keys []string) (map[string]bool, error) {
	found := make(map[string]bool)
	if len(keys) == 0 {
		return found, nil
	}

	rows, err := s.pool.Query(ctx, `SELECT key FROM job_records WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("looking up %d keys: %w", len(keys), err)
	}
	defer rows.Close()

	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		found[k] = true
	}
	return found, rows.Err()
}

// InsertMany stores records in one batch and returns how many were new.
func (s *PostgresStore) InsertMany(ctx context.Context, records []model.JobRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		row, err := encodeRecord(rec)
		if err != nil {
			return 0, err
		}
		batch.Queue(`INSERT INTO job_records
			(key, source, title, company, location, remote, url, salary_text, salary,
			 posted_at, posted_text, description, language, score, scraped_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12, $13, $14::jsonb, $15)
			ON CONFLICT (key) DO NOTHING`,
			rec.Key, rec.Source, rec.Title, rec.Company, rec.Location, rec.Remote, rec.URL,
			rec.SalaryText, nullableJSON(row.salary), rec.PostedAt, rec.PostedText, rec.Description,
			string(rec.Language), nullableJSON(row.score), rec.ScrapedAt,
		)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning insert: %w", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	inserted := 0
	for _, rec := range records {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("inserting job %s: %w", rec.Key, err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("closing insert batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing insert: %w", err)
	}
	return inserted, nil
}

// Cleanup deletes records scraped longer ago than olderThan.
func (s *PostgresStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM job_records WHERE scraped_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("cleaning up jobs older than %v: %w", olderThan, err)
	}
	return int(tag.RowsAffected()), nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
