package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const backendPostgres = "postgres"

// Postgres reads the pending count through a pgx connection pool.
type Postgres struct {
	pool    *pgxpool.Pool
	query   string
	pred    Predicate
	timeout time.Duration
}

// NewPostgres creates a pool for dsn. No connection is made until the first query.
func NewPostgres(ctx context.Context, dsn string, pred Predicate, opts Options) (*Postgres, error) {
	if err := pred.Validate(); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		poolCfg.MaxConns = int32(opts.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	return &Postgres{
		pool:    pool,
		query:   countQuery(pred.Table, dollar),
		pred:    pred,
		timeout: opts.QueryTimeout,
	}, nil
}

// ReadPendingCount implements CountReader.
func (p *Postgres) ReadPendingCount(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	var count int64
	err := p.pool.QueryRow(ctx, p.query, p.pred.PendingStateID, p.pred.MaxAttempts).Scan(&count)
	observeQuery(backendPostgres, start, err)
	if err != nil {
		return 0, unavailable(backendPostgres, "count pending", err)
	}
	return count, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return unavailable(backendPostgres, "ping", err)
	}
	return nil
}

func (p *Postgres) Backend() string { return backendPostgres }

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
