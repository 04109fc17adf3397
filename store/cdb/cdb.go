// Package cdb provides a ResultStore backed by CockroachDB (or any other
// PostgreSQL-compatible database).
package cdb

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pregelhq/pregel/store"
	"golang.org/x/xerrors"
)

var (
	createTableQuery = `
CREATE TABLE IF NOT EXISTS vertex_results (
	job_id STRING NOT NULL,
	vertex_id STRING NOT NULL,
	value JSONB,
	PRIMARY KEY (job_id, vertex_id)
)
`
	resultsQuery       = "SELECT vertex_id, value FROM vertex_results WHERE job_id=$1 ORDER BY vertex_id"
	deleteResultsQuery = "DELETE FROM vertex_results WHERE job_id=$1"

	// Compile-time check for ensuring CockroachDBStore implements
	// store.ResultStore.
	_ store.ResultStore = (*CockroachDBStore)(nil)
)

// CockroachDBStore persists job results to a cockroachdb instance.
type CockroachDBStore struct {
	db *sql.DB
}

// NewCockroachDBStore returns a CockroachDBStore instance that connects to the
// cockroachdb instance specified by dsn and makes sure that the results table
// exists.
func NewCockroachDBStore(dsn string) (*CockroachDBStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if _, err = db.Exec(createTableQuery); err != nil {
		_ = db.Close()
		return nil, xerrors.Errorf("create results table: %w", err)
	}

	return &CockroachDBStore{db: db}, nil
}

// Close terminates the connection to the backing cockroachdb instance.
func (c *CockroachDBStore) Close() error {
	return c.db.Close()
}

// StoreResults implements store.ResultStore. The batch is streamed to the
// database with a COPY statement inside a single transaction.
func (c *CockroachDBStore) StoreResults(ctx context.Context, jobID string, results []store.VertexResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.Errorf("store results: %w", err)
	}

	if err = copyResults(ctx, tx, jobID, results); err != nil {
		_ = tx.Rollback()
		return xerrors.Errorf("store results: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return xerrors.Errorf("store results: %w", err)
	}
	return nil
}

func copyResults(ctx context.Context, tx *sql.Tx, jobID string, results []store.VertexResult) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("vertex_results", "job_id", "vertex_id", "value"))
	if err != nil {
		return err
	}

	for _, res := range results {
		if _, err = stmt.ExecContext(ctx, jobID, res.VertexID, string(res.Value)); err != nil {
			_ = stmt.Close()
			return err
		}
	}

	// Flush buffered rows.
	if _, err = stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return err
	}
	return stmt.Close()
}

// Results implements store.ResultStore.
func (c *CockroachDBStore) Results(ctx context.Context, jobID string) ([]store.VertexResult, error) {
	rows, err := c.db.QueryContext(ctx, resultsQuery, jobID)
	if err != nil {
		return nil, xerrors.Errorf("results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var list []store.VertexResult
	for rows.Next() {
		var (
			res   store.VertexResult
			value []byte
		)
		if err = rows.Scan(&res.VertexID, &value); err != nil {
			return nil, xerrors.Errorf("results: %w", err)
		}
		res.Value = value
		list = append(list, res)
	}
	if err = rows.Err(); err != nil {
		return nil, xerrors.Errorf("results: %w", err)
	}

	if len(list) == 0 {
		return nil, xerrors.Errorf("results for job %q: %w", jobID, store.ErrNotFound)
	}
	return list, nil
}

// DeleteResults implements store.ResultStore.
func (c *CockroachDBStore) DeleteResults(ctx context.Context, jobID string) error {
	if _, err := c.db.ExecContext(ctx, deleteResultsQuery, jobID); err != nil {
		return xerrors.Errorf("delete results: %w", err)
	}
	return nil
}
