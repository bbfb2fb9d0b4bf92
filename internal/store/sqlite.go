package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amishk599/jobradar/internal/model"
)

var _ model.JobStore = (*SQLiteStore)(nil)

// SQLiteStore persists job records in a SQLite database. The identity key is
// the primary key, so inserts are idempotent.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures the
// job_records table exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	// A single writer avoids SQLITE_BUSY between concurrent scheduled runs.
	db.SetMaxOpenConns(1)

	createTable := `CREATE TABLE IF NOT EXISTS job_records (
		key         TEXT PRIMARY KEY,
		source      TEXT NOT NULL,
		title       TEXT NOT NULL,
		company     TEXT,
		location    TEXT,
		remote      INTEGER NOT NULL DEFAULT 0,
		url         TEXT,
		salary_text TEXT,
		salary      TEXT,
		posted_at   INTEGER,
		posted_text TEXT,
		description TEXT,
		language    TEXT,
		score       TEXT,
		scraped_at  INTEGER NOT NULL
	)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating job_records table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Exists returns the subset of keys that are already stored.
func (s *SQLiteStore) Exists(ctx context.Context, keys []string) (map[string]bool, error) {
	found := make(map[string]bool)
	if len(keys) == 0 {
		return found, nil
	}

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	query := "SELECT key FROM job_records WHERE key IN (?" + strings.Repeat(",?", len(keys)-1) + ")"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("looking up %d keys: %w", len(keys), err)
	}
	defer rows.Close()

	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		found[k] = true
	}
	return found, rows.Err()
}

// InsertMany stores records in one transaction and returns how many were new.
// Records whose key already exists are ignored.
func (s *SQLiteStore) InsertMany(ctx context.Context, records []model.JobRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO job_records
		(key, source, title, company, location, remote, url, salary_text, salary,
		 posted_at, posted_text, description, language, score, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range records {
		row, err := encodeRecord(rec)
		if err != nil {
			return 0, err
		}
		var postedAt any
		if rec.PostedAt != nil {
			postedAt = rec.PostedAt.Unix()
		}
		res, err := stmt.ExecContext(ctx,
			rec.Key, rec.Source, rec.Title, rec.Company, rec.Location, rec.Remote, rec.URL,
			rec.SalaryText, nullableJSON(row.salary), postedAt, rec.PostedText, rec.Description,
			string(rec.Language), nullableJSON(row.score), rec.ScrapedAt.Unix(),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting job %s: %w", rec.Key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("inserting job %s: %w", rec.Key, err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing insert: %w", err)
	}
	return inserted, nil
}

// Cleanup deletes records scraped longer ago than olderThan.
func (s *SQLiteStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).Unix()
	res, err := s.db.ExecContext(ctx, "DELETE FROM job_records WHERE scraped_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up jobs older than %v: %w", olderThan, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
