// Package store persists deals, facilities, monthly time series, and the
// extraction-history log in Postgres.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/snf-deals/internal/db"
	"github.com/sells-group/snf-deals/internal/resilience"
)

// Postgres implements the deal, time-series, and history stores.
type Postgres struct {
	pool    db.Pool
	retry   resilience.RetryConfig
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres opens a pool and waits for the server to answer a ping,
// retrying while it is still starting up.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*Postgres, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 1
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	pingCfg := resilience.DefaultRetryConfig()
	pingCfg.MaxAttempts = 5
	pingCfg.Operation = "postgres.ping"
	if err := resilience.Do(ctx, pingCfg, pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &Postgres{pool: pool, retry: writeRetry(), closeFn: pool.Close}, nil
}

// New wraps an existing pool. Tests pass a pgxmock pool.
func New(pool db.Pool) *Postgres {
	return &Postgres{pool: pool, retry: writeRetry()}
}

func writeRetry() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.Operation = "postgres.write"
	return cfg
}

// Pool returns the underlying pool for subsystems that run their own SQL.
func (s *Postgres) Pool() db.Pool {
	return s.pool
}

// Ping checks connectivity.
func (s *Postgres) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Migrate applies the embedded schema migrations.
func (s *Postgres) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.pool)
}

// Close releases the pool.
func (s *Postgres) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
