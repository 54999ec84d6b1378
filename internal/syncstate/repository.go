package syncstate

import (
	"context"
	"sync"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
)

// Repository persists sync state as one unit keyed by position. There is no
// per-entry persistence.
type Repository interface {
	// Load returns the position's state, or a fresh empty state when none
	// has been saved yet.
	Load(ctx context.Context, positionID string) (*State, error)
	Save(ctx context.Context, state *State) error
}

// MemoryRepository is an in-memory Repository used by tests and tooling.
type MemoryRepository struct {
	mu     sync.RWMutex
	states map[string]State
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{states: make(map[string]State)}
}

func (r *MemoryRepository) Load(_ context.Context, positionID string) (*State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.states[positionID]
	if !ok {
		return NewState(positionID), nil
	}
	copied := state
	copied.PendingEvents = append([]model.PendingEvent(nil), state.PendingEvents...)
	return &copied, nil
}

func (r *MemoryRepository) Save(_ context.Context, state *State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *state
	copied.PendingEvents = append([]model.PendingEvent(nil), state.PendingEvents...)
	r.states[state.PositionID] = copied
	return nil
}
