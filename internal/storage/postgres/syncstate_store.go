package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/syncstate"
)

// SyncStateStore implements syncstate.Repository on Postgres. The pending
// buffer is one JSONB document per position, replaced wholesale on save.
type SyncStateStore struct {
	store *Store
}

var _ syncstate.Repository = (*SyncStateStore)(nil)

func NewSyncStateStore(store *Store) *SyncStateStore {
	return &SyncStateStore{store: store}
}

func (s *SyncStateStore) Load(ctx context.Context, positionID string) (*syncstate.State, error) {
	var (
		pending    []byte
		lastSyncAt *time.Time
		lastSyncBy string
	)
	err := s.store.pool.QueryRow(ctx, `
		SELECT pending_events, last_sync_at, last_sync_by
		FROM sync_states WHERE position_id = $1`, positionID).
		Scan(&pending, &lastSyncAt, &lastSyncBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return syncstate.NewState(positionID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load sync state: %w", err)
	}

	state := syncstate.NewState(positionID)
	if err := json.Unmarshal(pending, &state.PendingEvents); err != nil {
		return nil, fmt.Errorf("unmarshal pending events: %w", err)
	}
	if lastSyncAt != nil {
		state.LastSyncAt = *lastSyncAt
	}
	state.LastSyncBy = lastSyncBy
	return state, nil
}

func (s *SyncStateStore) Save(ctx context.Context, state *syncstate.State) error {
	pending := state.PendingEvents
	if pending == nil {
		pending = []model.PendingEvent{}
	}
	payload, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("marshal pending events: %w", err)
	}

	var lastSyncAt *time.Time
	if !state.LastSyncAt.IsZero() {
		lastSyncAt = &state.LastSyncAt
	}
	_, err = s.store.pool.Exec(ctx, `
		INSERT INTO sync_states (position_id, pending_events, last_sync_at, last_sync_by, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (position_id) DO UPDATE SET
			pending_events = EXCLUDED.pending_events,
			last_sync_at = EXCLUDED.last_sync_at,
			last_sync_by = EXCLUDED.last_sync_by,
			updated_at = now()`,
		state.PositionID, payload, lastSyncAt, state.LastSyncBy)
	if err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	return nil
}
