package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
	ledgersync "github.com/0xNedAlbo/midcurve-services-sub002/internal/sync"
)

// PositionStore implements sync.PositionSource on Postgres.
type PositionStore struct {
	store *Store
}

var _ ledgersync.PositionSource = (*PositionStore)(nil)

func NewPositionStore(store *Store) *PositionStore {
	return &PositionStore{store: store}
}

func (s *PositionStore) GetPosition(ctx context.Context, positionID string) (*model.Position, error) {
	var pos model.Position
	err := s.store.pool.QueryRow(ctx, `
		SELECT id, protocol, chain_id, pool_id, external_id, owner_address
		FROM positions WHERE id = $1`, positionID).
		Scan(&pos.ID, &pos.Protocol, &pos.ChainID, &pos.PoolID, &pos.ExternalID, &pos.Owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ledgersync.ErrPositionNotFound, positionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load position: %w", err)
	}
	return &pos, nil
}

// Upsert registers a position for tracking. Identity fields other than the
// owner never change once registered.
func (s *PositionStore) Upsert(ctx context.Context, pos *model.Position) error {
	_, err := s.store.pool.Exec(ctx, `
		INSERT INTO positions (id, protocol, chain_id, pool_id, external_id, owner_address)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET owner_address = EXCLUDED.owner_address`,
		pos.ID, pos.Protocol, pos.ChainID, pos.PoolID, pos.ExternalID, pos.Owner)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}
