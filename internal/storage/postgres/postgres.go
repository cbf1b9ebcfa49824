// Package postgres implements the engine's durable stores (transaction
// records, goals, the ledger) over PostgreSQL via pgxpool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Default pool tuning.
const (
	DefaultMaxConns    = 10
	DefaultPingTimeout = 5 * time.Second
)

// Pool is the shared connection handle every store in this package is
// constructed over.
type Pool struct {
	*pgxpool.Pool
}

// PoolOption tunes the pool before it connects.
type PoolOption func(*poolSettings)

type poolSettings struct {
	maxConns    int32
	pingTimeout time.Duration
}

// WithMaxConns caps the number of pooled connections.
func WithMaxConns(n int32) PoolOption {
	return func(s *poolSettings) {
		s.maxConns = n
	}
}

// WithPingTimeout bounds the connectivity probe NewPool runs before
// handing the pool out.
func WithPingTimeout(d time.Duration) PoolOption {
	return func(s *poolSettings) {
		s.pingTimeout = d
	}
}

// poolConfig parses the DSN and applies tuning options. Split from
// NewPool so the resulting configuration can be checked without a live
// database.
func poolConfig(dsn string, opts ...PoolOption) (*pgxpool.Config, time.Duration, error) {
	settings := poolSettings{
		maxConns:    DefaultMaxConns,
		pingTimeout: DefaultPingTimeout,
	}
	for _, opt := range opts {
		opt(&settings)
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, 0, fmt.Errorf("parse postgres dsn: %w", err)
	}
	config.MaxConns = settings.maxConns
	return config, settings.pingTimeout, nil
}

// NewPool connects to PostgreSQL and verifies connectivity before
// returning, so store constructors never hold a dead pool.
func NewPool(ctx context.Context, dsn string, opts ...PoolOption) (*Pool, error) {
	config, pingTimeout, err := poolConfig(dsn, opts...)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Close releases every pooled connection.
func (p *Pool) Close() {
	p.Pool.Close()
}

// unique_violation. Raised by UNIQUE(batch_id, kind) when two prepares
// of the same batch race.
const pgErrUniqueViolation = "23505"

// isDuplicateKeyError detects the unique-constraint violation the
// idempotency guard relies on: the losing prepare maps it to
// storage.ErrDuplicateKey and re-reads the winner's row instead of
// surfacing a failure.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}

// isNotFoundError detects pgx's empty-result sentinel.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
