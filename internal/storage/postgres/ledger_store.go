package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/ledger"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
)

// EventStore implements ledger.EventRepository on Postgres. Big integers are
// stored as NUMERIC(78,0) and moved over the wire as base-10 strings.
type EventStore struct {
	store *Store
}

var _ ledger.EventRepository = (*EventStore)(nil)

func NewEventStore(store *Store) *EventStore {
	return &EventStore{store: store}
}

const eventColumns = `id, position_id, protocol, previous_id, ts, event_type,
	input_hash, block_number, tx_index, log_index, tx_hash,
	pool_price::text, token0_amount::text, token1_amount::text, token_value::text,
	rewards, delta_cost_basis::text, cost_basis_after::text,
	delta_pnl::text, pnl_after::text, config, state, created_at`

func (s *EventStore) Insert(ctx context.Context, event *model.LedgerEvent) error {
	rewards, err := json.Marshal(event.Rewards)
	if err != nil {
		return fmt.Errorf("marshal rewards: %w", err)
	}
	_, err = s.store.pool.Exec(ctx, `
		INSERT INTO ledger_events (
			id, position_id, protocol, previous_id, ts, event_type,
			input_hash, block_number, tx_index, log_index, tx_hash,
			pool_price, token0_amount, token1_amount, token_value,
			rewards, delta_cost_basis, cost_basis_after, delta_pnl, pnl_after,
			config, state, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12::numeric, $13::numeric, $14::numeric, $15::numeric,
			$16, $17::numeric, $18::numeric, $19::numeric, $20::numeric,
			$21, $22, $23
		)`,
		event.ID, event.PositionID, event.Protocol, event.PreviousID,
		event.Timestamp, event.EventType, event.InputHash,
		event.BlockNumber, event.TxIndex, event.LogIndex, event.TxHash,
		model.FormatBigInt(event.PoolPrice),
		model.FormatBigInt(event.Token0Amount),
		model.FormatBigInt(event.Token1Amount),
		model.FormatBigInt(event.TokenValue),
		rewards,
		model.FormatBigInt(event.DeltaCostBasis),
		model.FormatBigInt(event.CostBasisAfter),
		model.FormatBigInt(event.DeltaPnl),
		model.FormatBigInt(event.PnlAfter),
		event.Config, event.State, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger event: %w", err)
	}
	return nil
}

func (s *EventStore) FindByID(ctx context.Context, id string) (*model.LedgerEvent, error) {
	row := s.store.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM ledger_events WHERE id = $1`, id)
	event, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return event, err
}

func (s *EventStore) FindByInputHash(ctx context.Context, positionID, inputHash string) (*model.LedgerEvent, error) {
	row := s.store.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM ledger_events
		 WHERE position_id = $1 AND input_hash = $2`, positionID, inputHash)
	event, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return event, err
}

func (s *EventStore) FindAll(ctx context.Context, positionID string) ([]*model.LedgerEvent, error) {
	rows, err := s.store.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM ledger_events
		 WHERE position_id = $1
		 ORDER BY ts DESC, block_number DESC, tx_index DESC, log_index DESC`,
		positionID)
	if err != nil {
		return nil, fmt.Errorf("query ledger events: %w", err)
	}
	defer rows.Close()

	var events []*model.LedgerEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *EventStore) DeleteAll(ctx context.Context, positionID string) error {
	_, err := s.store.pool.Exec(ctx,
		`DELETE FROM ledger_events WHERE position_id = $1`, positionID)
	return err
}

func (s *EventStore) DeleteFromBlock(ctx context.Context, positionID string, fromBlock uint64) error {
	_, err := s.store.pool.Exec(ctx,
		`DELETE FROM ledger_events WHERE position_id = $1 AND block_number >= $2`,
		positionID, fromBlock)
	return err
}

func scanEvent(row pgx.Row) (*model.LedgerEvent, error) {
	var (
		event     model.LedgerEvent
		poolPrice string
		amount0   string
		amount1   string
		value     string
		deltaCB   string
		cbAfter   string
		deltaPnl  string
		pnlAfter  string
		rewards   []byte
		ts        time.Time
		createdAt time.Time
	)
	err := row.Scan(
		&event.ID, &event.PositionID, &event.Protocol, &event.PreviousID,
		&ts, &event.EventType, &event.InputHash,
		&event.BlockNumber, &event.TxIndex, &event.LogIndex, &event.TxHash,
		&poolPrice, &amount0, &amount1, &value,
		&rewards, &deltaCB, &cbAfter, &deltaPnl, &pnlAfter,
		&event.Config, &event.State, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	event.Timestamp = ts
	event.CreatedAt = createdAt
	if err := json.Unmarshal(rewards, &event.Rewards); err != nil {
		return nil, fmt.Errorf("unmarshal rewards: %w", err)
	}
	if event.PoolPrice, err = model.ParseBigInt(poolPrice); err != nil {
		return nil, err
	}
	if event.Token0Amount, err = model.ParseBigInt(amount0); err != nil {
		return nil, err
	}
	if event.Token1Amount, err = model.ParseBigInt(amount1); err != nil {
		return nil, err
	}
	if event.TokenValue, err = model.ParseBigInt(value); err != nil {
		return nil, err
	}
	if event.DeltaCostBasis, err = model.ParseBigInt(deltaCB); err != nil {
		return nil, err
	}
	if event.CostBasisAfter, err = model.ParseBigInt(cbAfter); err != nil {
		return nil, err
	}
	if event.DeltaPnl, err = model.ParseBigInt(deltaPnl); err != nil {
		return nil, err
	}
	if event.PnlAfter, err = model.ParseBigInt(pnlAfter); err != nil {
		return nil, err
	}
	return &event, nil
}
