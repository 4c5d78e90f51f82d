// Package sqliteengine provides the embedded analytical engine hybrid
// analytics materializes filtered result sets into (C11). It wraps a
// single in-memory SQLite handle via modernc.org/sqlite, the pure-Go
// driver, so the module carries no cgo dependency.
//
// The original hybrid_analytics.py opens a DuckDB connection for this
// role; DuckDB has no mature pure-Go binding in this corpus, so this
// package plays the same part with modernc.org/sqlite (seen in the
// retrieval pack's erigon repo) standing in for DuckDB.
package sqliteengine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/jesseVast/tamscore/pkg/logger"
)

var log = logger.NewDefault("sqliteengine")

// Handle is a process-local, single-threaded embedded SQL engine.
// Contract: concurrent callers serialize on mu, matching the original's
// single DuckDB connection-per-process design. db is an *sqlx.DB rather
// than *sql.DB so CreateAndLoad can bind rows by column name instead of
// hand-tracked positional placeholders.
type Handle struct {
	mu sync.Mutex
	db *sqlx.DB
}

// Open initializes a fresh in-memory embedded database. A returned error
// means hybrid analytics is unavailable for this process; callers must
// not silently fall back to another path per the hybrid-analytics
// contract.
func Open() (*Handle, error) {
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		log.Errorf("failed to initialize embedded sqlite engine: %v", err)
		return nil, fmt.Errorf("sqliteengine: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		log.Errorf("failed to initialize embedded sqlite engine: %v", err)
		return nil, fmt.Errorf("sqliteengine: ping: %w", err)
	}
	log.Info("initialized embedded sqlite engine for hybrid analytics")
	return newHandleFromDB(db), nil
}

// newHandleFromDB builds a Handle around an already-open *sqlx.DB, letting
// tests substitute a github.com/DATA-DOG/go-sqlmock-backed handle to
// assert on the exact SQL this package issues without a real engine.
func newHandleFromDB(db *sqlx.DB) *Handle {
	return &Handle{db: db}
}

// Close releases the embedded connection.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	log.Info("closed embedded sqlite engine")
	return err
}

// Column is one column of a temporary table, with value typed as TEXT or
// REAL since that's all the hybrid queries in this package need.
type Column struct {
	Name    string
	SQLType string // "REAL" or "TEXT"
}

// CreateAndLoad creates a temporary table named name with the given
// columns and loads rows into it in a single transaction, mirroring the
// original's "CREATE TABLE temp_x AS SELECT * FROM vast_result" step.
func (h *Handle) CreateAndLoad(ctx context.Context, name string, columns []Column, rows [][]any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return fmt.Errorf("sqliteengine: not initialized")
	}

	colDefs := make([]string, len(columns))
	namedCols := make([]string, len(columns))
	namedParams := make([]string, len(columns))
	for i, c := range columns {
		colDefs[i] = fmt.Sprintf("%s %s", c.Name, c.SQLType)
		namedCols[i] = c.Name
		namedParams[i] = ":" + c.Name
	}

	tx, err := h.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqliteengine: begin: %w", err)
	}
	defer tx.Rollback()

	createSQL := fmt.Sprintf("CREATE TEMP TABLE %s (%s)", name, strings.Join(colDefs, ", "))
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("sqliteengine: create temp table: %w", err)
	}

	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", name, strings.Join(namedCols, ", "), strings.Join(namedParams, ", "))
	for _, row := range rows {
		bound := make(map[string]any, len(columns))
		for i, c := range columns {
			bound[c.Name] = row[i]
		}
		if _, err := tx.NamedExecContext(ctx, insertSQL, bound); err != nil {
			return fmt.Errorf("sqliteengine: insert row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqliteengine: commit: %w", err)
	}
	return nil
}

// Query runs query against the embedded engine and returns *sqlx.Rows.
// Callers must close the returned rows.
func (h *Handle) Query(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return nil, fmt.Errorf("sqliteengine: not initialized")
	}
	return h.db.QueryxContext(ctx, query, args...)
}

// Drop drops the named temporary table, mirroring the original's
// explicit cleanup step after each analytic query.
func (h *Handle) Drop(ctx context.Context, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return nil
	}
	_, err := h.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", name))
	return err
}
