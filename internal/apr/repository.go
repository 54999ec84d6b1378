package apr

import (
	"context"
	"sort"
	"sync"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
)

// PeriodRepository persists derived APR periods. The whole set for a position
// is replaced on every refresh; no partial updates exist.
type PeriodRepository interface {
	DeleteAll(ctx context.Context, positionID string) error
	InsertAll(ctx context.Context, periods []*model.AprPeriod) error

	// FindAll returns a position's periods ordered descending by start time.
	FindAll(ctx context.Context, positionID string) ([]*model.AprPeriod, error)
}

// MemoryPeriodRepository is an in-memory PeriodRepository for tests.
type MemoryPeriodRepository struct {
	mu      sync.RWMutex
	periods map[string][]*model.AprPeriod
}

var _ PeriodRepository = (*MemoryPeriodRepository)(nil)

func NewMemoryPeriodRepository() *MemoryPeriodRepository {
	return &MemoryPeriodRepository{periods: make(map[string][]*model.AprPeriod)}
}

func (r *MemoryPeriodRepository) DeleteAll(_ context.Context, positionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.periods, positionID)
	return nil
}

func (r *MemoryPeriodRepository) InsertAll(_ context.Context, periods []*model.AprPeriod) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, period := range periods {
		copied := *period
		r.periods[period.PositionID] = append(r.periods[period.PositionID], &copied)
	}
	return nil
}

func (r *MemoryPeriodRepository) FindAll(_ context.Context, positionID string) ([]*model.AprPeriod, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.AprPeriod, 0, len(r.periods[positionID]))
	for _, period := range r.periods[positionID] {
		copied := *period
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTimestamp.After(out[j].StartTimestamp)
	})
	return out, nil
}
