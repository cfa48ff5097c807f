package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const backendSQLite = "sqlite"

// SQLite reads the pending count from a local SQLite database. Useful for
// running the service against a snapshot of the package table.
type SQLite struct {
	db      *sql.DB
	query   string
	pred    Predicate
	timeout time.Duration
}

// NewSQLite opens dsn with the pure-Go sqlite driver.
func NewSQLite(dsn string, pred Predicate, opts Options) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if opts.MaxConns > 0 {
		db.SetMaxOpenConns(opts.MaxConns)
	}

	s, err := NewSQLiteFromDB(db, pred, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteFromDB wraps an already open database handle.
func NewSQLiteFromDB(db *sql.DB, pred Predicate, opts Options) (*SQLite, error) {
	if err := pred.Validate(); err != nil {
		return nil, err
	}
	return &SQLite{
		db:      db,
		query:   countQuery(pred.Table, questionMark),
		pred:    pred,
		timeout: opts.QueryTimeout,
	}, nil
}

// ReadPendingCount implements CountReader.
func (s *SQLite) ReadPendingCount(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	var count int64
	err := s.db.QueryRowContext(ctx, s.query, s.pred.PendingStateID, s.pred.MaxAttempts).Scan(&count)
	observeQuery(backendSQLite, start, err)
	if err != nil {
		return 0, unavailable(backendSQLite, "count pending", err)
	}
	return count, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable(backendSQLite, "ping", err)
	}
	return nil
}

func (s *SQLite) Backend() string { return backendSQLite }

func (s *SQLite) Close() error {
	return s.db.Close()
}
