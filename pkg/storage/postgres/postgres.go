package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kestrelsec/netcontrol/pkg/storage"
)

type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wraps an existing pool. Call EnsureSchema before using it.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the monitor tables if they are missing: an append-only
// observations log plus a latest_state table holding the newest outcome per
// endpoint.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	ddl := `
CREATE TABLE IF NOT EXISTS observations (
  cycle_id TEXT NOT NULL,
  address TEXT NOT NULL,
  port INTEGER NOT NULL,
  kind TEXT NOT NULL,
  reachable BOOLEAN NOT NULL,
  latency_ms DOUBLE PRECISION NOT NULL,
  detail TEXT NOT NULL,
  observed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS observations_endpoint_idx ON observations (address, port, observed_at);
CREATE TABLE IF NOT EXISTS latest_state (
  address TEXT NOT NULL,
  port INTEGER NOT NULL,
  reachable BOOLEAN NOT NULL,
  latency_ms DOUBLE PRECISION NOT NULL,
  detail TEXT NOT NULL,
  observed_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (address, port)
);`
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ERROR creating monitor tables: %w", err)
	}
	return nil
}

// AppendObservation records one monitor row. The log is append-only; history
// queries and retention are left to the database.
func (r *Repository) AppendObservation(ctx context.Context, obs storage.Observation) error {
	const query = `
INSERT INTO observations (cycle_id, address, port, kind, reachable, latency_ms, detail, observed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	_, err := r.pool.Exec(ctx, query,
		obs.CycleID,
		obs.Address,
		int(obs.Port),
		obs.Kind,
		obs.Reachable,
		obs.LatencyMS,
		obs.Detail,
		obs.ObservedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append observation: %w", err)
	}
	return nil
}

// UpsertLatest persists the newest outcome for an (address, port) endpoint.
// Older observations are ignored to protect against out-of-order writes from
// overlapping cycles.
func (r *Repository) UpsertLatest(ctx context.Context, obs storage.Observation) error {
	const query = `
INSERT INTO latest_state (address, port, reachable, latency_ms, detail, observed_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (address, port)
DO UPDATE SET
  reachable = EXCLUDED.reachable,
  latency_ms = EXCLUDED.latency_ms,
  detail = EXCLUDED.detail,
  observed_at = EXCLUDED.observed_at
WHERE EXCLUDED.observed_at >= latest_state.observed_at;
`
	_, err := r.pool.Exec(ctx, query,
		obs.Address,
		int(obs.Port),
		obs.Reachable,
		obs.LatencyMS,
		obs.Detail,
		obs.ObservedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert latest state: %w", err)
	}
	return nil
}

// Close helps when wiring Repository to a lifecycle manager.
func (r *Repository) Close() {
	r.pool.Close()
}

// NewDB opens a pgx pool with tuned defaults.
func NewDB(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	// Keep a small, steady pool; monitors write a handful of rows per cycle.
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}
