package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions tunes the connection pool and transaction behaviour.
type PoolOptions struct {
	MaxConns    int32
	MinConns    int32
	LockTimeout time.Duration
}

// Store is the PostgreSQL implementation of the account, client and ledger stores.
type Store struct {
	Db          *pgxpool.Pool
	lockTimeout time.Duration
}

func NewStore(ctx context.Context, connString string, opts PoolOptions) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		config.MinConns = opts.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return NewStoreFromPool(pool, opts.LockTimeout), nil
}

// NewStoreFromPool wraps an existing pool.
func NewStoreFromPool(pool *pgxpool.Pool, lockTimeout time.Duration) *Store {
	return &Store{Db: pool, lockTimeout: lockTimeout}
}

func (s *Store) Close() {
	s.Db.Close()
}

// Ping checks connectivity for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.Db.Ping(ctx)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// q returns the transaction carried by ctx, or the pool.
func (s *Store) q(ctx context.Context) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.Db
}
