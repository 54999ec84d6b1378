// Package postgres provides pgx-backed persistence for the ledger engine.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store holds the shared connection pool behind the typed stores.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS positions (
	id TEXT PRIMARY KEY,
	protocol TEXT NOT NULL,
	chain_id BIGINT NOT NULL,
	pool_id TEXT NOT NULL,
	external_id TEXT NOT NULL,
	owner_address TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ledger_events (
	id TEXT PRIMARY KEY,
	position_id TEXT NOT NULL,
	protocol TEXT NOT NULL,
	previous_id TEXT REFERENCES ledger_events(id),
	ts TIMESTAMPTZ NOT NULL,
	event_type TEXT NOT NULL,
	input_hash TEXT NOT NULL,
	block_number BIGINT NOT NULL,
	tx_index BIGINT NOT NULL,
	log_index BIGINT NOT NULL,
	tx_hash TEXT NOT NULL,
	pool_price NUMERIC(78,0) NOT NULL,
	token0_amount NUMERIC(78,0) NOT NULL,
	token1_amount NUMERIC(78,0) NOT NULL,
	token_value NUMERIC(78,0) NOT NULL,
	rewards JSONB NOT NULL DEFAULT '[]',
	delta_cost_basis NUMERIC(78,0) NOT NULL,
	cost_basis_after NUMERIC(78,0) NOT NULL,
	delta_pnl NUMERIC(78,0) NOT NULL,
	pnl_after NUMERIC(78,0) NOT NULL,
	config JSONB NOT NULL,
	state JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (position_id, input_hash)
);

CREATE INDEX IF NOT EXISTS idx_ledger_events_position_ts
	ON ledger_events (position_id, ts DESC);
CREATE INDEX IF NOT EXISTS idx_ledger_events_position_block
	ON ledger_events (position_id, block_number);

CREATE TABLE IF NOT EXISTS apr_periods (
	id TEXT PRIMARY KEY,
	position_id TEXT NOT NULL,
	start_event_id TEXT NOT NULL,
	end_event_id TEXT NOT NULL,
	start_ts TIMESTAMPTZ NOT NULL,
	end_ts TIMESTAMPTZ NOT NULL,
	duration_seconds BIGINT NOT NULL,
	cost_basis NUMERIC(78,0) NOT NULL,
	collected_fee_value NUMERIC(78,0) NOT NULL,
	apr_bps BIGINT NOT NULL,
	event_count INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_apr_periods_position_start
	ON apr_periods (position_id, start_ts DESC);

CREATE TABLE IF NOT EXISTS sync_states (
	position_id TEXT PRIMARY KEY,
	pending_events JSONB NOT NULL DEFAULT '[]',
	last_sync_at TIMESTAMPTZ,
	last_sync_by TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// InitSchema creates the engine's tables when missing.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}
