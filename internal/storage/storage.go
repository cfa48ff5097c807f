package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"connectoralert/internal/config"
	"connectoralert/internal/metrics"
)

// ErrStoreUnavailable wraps every connection or query failure of a count read.
var ErrStoreUnavailable = errors.New("store unavailable")

// ErrInvalidTable is returned for table names that are not plain SQL identifiers.
var ErrInvalidTable = errors.New("invalid table name")

// CountReader returns the number of pending packages.
type CountReader interface {
	ReadPendingCount(ctx context.Context) (int64, error)
}

// Store is a CountReader backed by a database connection pool.
type Store interface {
	CountReader
	Ping(ctx context.Context) error
	Backend() string
	Close() error
}

// Predicate selects pending packages: state_id equal to PendingStateID and
// between 0 and MaxAttempts prior attempts. The default MaxAttempts of 0
// means exactly attempts = 0.
type Predicate struct {
	Table          string
	PendingStateID int
	MaxAttempts    int
}

// Table names are interpolated into SQL, so only name or schema.name is accepted.
var tablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Validate checks the predicate before any query is built from it.
func (p Predicate) Validate() error {
	if !tablePattern.MatchString(p.Table) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, p.Table)
	}
	if p.MaxAttempts < 0 {
		return fmt.Errorf("max attempts must not be negative, got %d", p.MaxAttempts)
	}
	return nil
}

type placeholderStyle int

const (
	questionMark placeholderStyle = iota
	dollar
)

// countQuery builds the pending count query for a validated table.
func countQuery(table string, style placeholderStyle) string {
	if style == dollar {
		return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE state_id = $1 AND attempts >= 0 AND attempts <= $2", table)
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE state_id = ? AND attempts >= 0 AND attempts <= ?", table)
}

// Options tune the connection pool and per-query timeout.
type Options struct {
	QueryTimeout time.Duration
	MaxConns     int
}

// Open returns the Store for the configured backend. Connections are
// established lazily, so an unreachable database does not fail Open.
func Open(ctx context.Context, cfg config.DatabaseConfig, pred Predicate) (Store, error) {
	if err := pred.Validate(); err != nil {
		return nil, err
	}

	opts := Options{
		QueryTimeout: cfg.QueryTimeout,
		MaxConns:     cfg.MaxConns,
	}

	switch cfg.Backend {
	case "postgres":
		return NewPostgres(ctx, cfg.DSN, pred, opts)
	case "clickhouse":
		return NewClickHouse(cfg.DSN, pred, opts)
	case "sqlite":
		return NewSQLite(cfg.DSN, pred, opts)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// withTimeout bounds a single query. A zero timeout leaves ctx untouched.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// unavailable wraps err as ErrStoreUnavailable and records the failed query.
func unavailable(backend, op string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrStoreUnavailable, backend, op, err)
}

func observeQuery(backend string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	metrics.StoreQueryDuration.WithLabelValues(backend, status).Observe(time.Since(start).Seconds())
}
