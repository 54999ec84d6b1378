package syncstate

import (
	"sort"
	"time"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
)

// State is the per-position pending-event buffer plus sync metadata. It is
// loaded, mutated, and saved wholesale within one sync run; the orchestrator
// is its only owner.
type State struct {
	PositionID    string
	PendingEvents []model.PendingEvent
	LastSyncAt    time.Time
	LastSyncBy    string
}

// NewState returns an empty buffer for a position.
func NewState(positionID string) *State {
	return &State{PositionID: positionID}
}

// AddMissingEvents appends optimistically captured events to the buffer.
// Entries sharing (txHash, logIndex) with an existing entry are skipped.
func (s *State) AddMissingEvents(events ...model.PendingEvent) {
	for _, event := range events {
		if s.contains(event.TxHash, event.LogIndex) {
			continue
		}
		s.PendingEvents = append(s.PendingEvents, event)
	}
}

// RemoveMissingEvent removes the single entry with the given coordinates.
func (s *State) RemoveMissingEvent(txHash string, logIndex uint64) {
	kept := s.PendingEvents[:0]
	for _, event := range s.PendingEvents {
		if event.TxHash == txHash && event.LogIndex == logIndex {
			continue
		}
		kept = append(kept, event)
	}
	s.PendingEvents = kept
}

// RemoveMissingEventsByTxHash removes every entry sharing a transaction hash.
// A transaction's events are atomic on chain, so they confirm or drop
// together.
func (s *State) RemoveMissingEventsByTxHash(txHash string) {
	kept := s.PendingEvents[:0]
	for _, event := range s.PendingEvents {
		if event.TxHash == txHash {
			continue
		}
		kept = append(kept, event)
	}
	s.PendingEvents = kept
}

// PruneEvents drops entries at or below the given block.
func (s *State) PruneEvents(blockNumber uint64) {
	kept := s.PendingEvents[:0]
	for _, event := range s.PendingEvents {
		if event.BlockNumber <= blockNumber {
			continue
		}
		kept = append(kept, event)
	}
	s.PendingEvents = kept
}

// MissingEventsSorted returns the buffer ascending by block, then transaction
// index, then log index.
func (s *State) MissingEventsSorted() []model.PendingEvent {
	out := make([]model.PendingEvent, len(s.PendingEvents))
	copy(out, s.PendingEvents)
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockNumber != out[j].BlockNumber {
			return out[i].BlockNumber < out[j].BlockNumber
		}
		if out[i].TxIndex != out[j].TxIndex {
			return out[i].TxIndex < out[j].TxIndex
		}
		return out[i].LogIndex < out[j].LogIndex
	})
	return out
}

func (s *State) contains(txHash string, logIndex uint64) bool {
	for _, event := range s.PendingEvents {
		if event.TxHash == txHash && event.LogIndex == logIndex {
			return true
		}
	}
	return false
}
