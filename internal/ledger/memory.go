package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
)

// MemoryRepository is an in-memory EventRepository used by tests and tooling.
type MemoryRepository struct {
	mu     sync.RWMutex
	events map[string]*model.LedgerEvent
}

var _ EventRepository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{events: make(map[string]*model.LedgerEvent)}
}

func (r *MemoryRepository) Insert(_ context.Context, event *model.LedgerEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *event
	r.events[event.ID] = &copied
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*model.LedgerEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	event, ok := r.events[id]
	if !ok {
		return nil, nil
	}
	copied := *event
	return &copied, nil
}

func (r *MemoryRepository) FindByInputHash(_ context.Context, positionID, inputHash string) (*model.LedgerEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, event := range r.events {
		if event.PositionID == positionID && event.InputHash == inputHash {
			copied := *event
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) FindAll(_ context.Context, positionID string) ([]*model.LedgerEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.LedgerEvent, 0)
	for _, event := range r.events {
		if event.PositionID != positionID {
			continue
		}
		copied := *event
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		if out[i].BlockNumber != out[j].BlockNumber {
			return out[i].BlockNumber > out[j].BlockNumber
		}
		if out[i].TxIndex != out[j].TxIndex {
			return out[i].TxIndex > out[j].TxIndex
		}
		return out[i].LogIndex > out[j].LogIndex
	})
	return out, nil
}

func (r *MemoryRepository) DeleteAll(_ context.Context, positionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, event := range r.events {
		if event.PositionID == positionID {
			delete(r.events, id)
		}
	}
	return nil
}

func (r *MemoryRepository) DeleteFromBlock(_ context.Context, positionID string, fromBlock uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, event := range r.events {
		if event.PositionID == positionID && event.BlockNumber >= fromBlock {
			delete(r.events, id)
		}
	}
	return nil
}
