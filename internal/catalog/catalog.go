// Package catalog records downloaded batches and written artifacts in a local
// SQLite database so re-runs can skip finished work and outputs can be traced
// to the run that produced them.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	_ "modernc.org/sqlite"
)

// Batch statuses.
const (
	StatusPending  = "pending"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS batches (
	variable   TEXT NOT NULL,
	period     TEXT NOT NULL,
	path       TEXT NOT NULL,
	status     TEXT NOT NULL,
	bytes      INTEGER NOT NULL DEFAULT 0,
	attempts   INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (variable, period)
);
CREATE TABLE IF NOT EXISTS artifacts (
	run_id     TEXT NOT NULL,
	stage      TEXT NOT NULL,
	variable   TEXT NOT NULL,
	product    TEXT NOT NULL,
	path       TEXT NOT NULL,
	sha256     TEXT NOT NULL,
	bytes      INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	PRIMARY KEY (path)
);
CREATE INDEX IF NOT EXISTS idx_artifacts_run ON artifacts(run_id);
`

// Batch is one acquisition unit.
type Batch struct {
	Variable  string
	Period    string
	Path      string
	Status    string
	Bytes     int64
	Attempts  int
	UpdatedAt time.Time
}

// Catalog wraps the SQLite database.
type Catalog struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog at path. ":memory:" is accepted
// for tests.
func Open(path string) (*Catalog, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating catalog directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	_, _ = db.Exec("PRAGMA journal_mode=WAL")
	_, _ = db.Exec("PRAGMA synchronous=NORMAL")
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close releases the database.
func (c *Catalog) Close() error { return c.db.Close() }

// Batch looks up a batch. The bool is false when no row exists.
func (c *Catalog) Batch(ctx context.Context, variable, period string) (Batch, bool, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT variable, period, path, status, bytes, attempts, updated_at
		FROM batches WHERE variable = ? AND period = ?`, variable, period)

	var b Batch
	var updated string
	if err := row.Scan(&b.Variable, &b.Period, &b.Path, &b.Status, &b.Bytes, &b.Attempts, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Batch{}, false, nil
		}
		return Batch{}, false, fmt.Errorf("querying batch %s/%s: %w", variable, period, err)
	}
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return b, true, nil
}

// UpsertBatch inserts or replaces a batch row, stamping UpdatedAt.
func (c *Catalog) UpsertBatch(ctx context.Context, b Batch) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO batches (variable, period, path, status, bytes, attempts, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(variable, period) DO UPDATE SET
			path = excluded.path,
			status = excluded.status,
			bytes = excluded.bytes,
			attempts = excluded.attempts,
			updated_at = excluded.updated_at`,
		b.Variable, b.Period, b.Path, b.Status, b.Bytes, b.Attempts, domain.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting batch %s/%s: %w", b.Variable, b.Period, err)
	}
	return nil
}

// Batches lists every batch of a variable ordered by period.
func (c *Catalog) Batches(ctx context.Context, variable string) ([]Batch, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT variable, period, path, status, bytes, attempts, updated_at
		FROM batches WHERE variable = ? ORDER BY period`, variable)
	if err != nil {
		return nil, fmt.Errorf("querying batches: %w", err)
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		var b Batch
		var updated string
		if err := rows.Scan(&b.Variable, &b.Period, &b.Path, &b.Status, &b.Bytes, &b.Attempts, &updated); err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}
		b.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		out = append(out, b)
	}
	return out, rows.Err()
}

// RecordArtifact upserts an artifact keyed by path, so a re-run replaces the
// previous row for the same file.
func (c *Catalog) RecordArtifact(ctx context.Context, a domain.ArtifactEvent) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO artifacts (run_id, stage, variable, product, path, sha256, bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			run_id = excluded.run_id,
			stage = excluded.stage,
			variable = excluded.variable,
			product = excluded.product,
			sha256 = excluded.sha256,
			bytes = excluded.bytes,
			created_at = excluded.created_at`,
		a.RunID, a.Stage, a.Variable, a.Product, a.Path, a.SHA256, a.Bytes, a.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording artifact %s: %w", a.Path, err)
	}
	return nil
}

// Artifacts lists the artifacts written by a run, or every artifact when
// runID is empty.
func (c *Catalog) Artifacts(ctx context.Context, runID string) ([]domain.ArtifactEvent, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT run_id, stage, variable, product, path, sha256, bytes, created_at
		FROM artifacts WHERE ? = '' OR run_id = ? ORDER BY path`, runID, runID)
	if err != nil {
		return nil, fmt.Errorf("querying artifacts: %w", err)
	}
	defer rows.Close()

	var out []domain.ArtifactEvent
	for rows.Next() {
		var a domain.ArtifactEvent
		var created string
		if err := rows.Scan(&a.RunID, &a.Stage, &a.Variable, &a.Product, &a.Path, &a.SHA256, &a.Bytes, &created); err != nil {
			return nil, fmt.Errorf("scanning artifact: %w", err)
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, a)
	}
	return out, rows.Err()
}
