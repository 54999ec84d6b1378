// Package reconcile merges indexer events and pending events into one
// deduplicated, chronologically ordered stream. All functions are pure.
package reconcile

import (
	"fmt"
	"sort"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
)

// ConvertPendingToRaw lifts a pending-buffer entry into the unified raw shape.
func ConvertPendingToRaw(pending model.PendingEvent, chainID uint64, externalPositionID string) model.RawEvent {
	return model.RawEvent{
		EventType:          pending.EventType,
		ChainID:            chainID,
		ExternalPositionID: externalPositionID,
		BlockNumber:        pending.BlockNumber,
		TxIndex:            pending.TxIndex,
		LogIndex:           pending.LogIndex,
		TxHash:             pending.TxHash,
		Timestamp:          pending.Timestamp,
		Liquidity:          model.CloneBigInt(pending.Liquidity),
		Amount0:            model.CloneBigInt(pending.Amount0),
		Amount1:            model.CloneBigInt(pending.Amount1),
		Recipient:          pending.Recipient,
	}
}

// Merge concatenates the two streams. Callers pass indexer events first so
// that deduplication gives them precedence.
func Merge(indexerEvents, pendingEvents []model.RawEvent) []model.RawEvent {
	merged := make([]model.RawEvent, 0, len(indexerEvents)+len(pendingEvents))
	merged = append(merged, indexerEvents...)
	merged = append(merged, pendingEvents...)
	return merged
}

// Deduplicate keeps the first occurrence of each blockchain coordinate.
func Deduplicate(events []model.RawEvent) []model.RawEvent {
	seen := make(map[string]struct{}, len(events))
	out := make([]model.RawEvent, 0, len(events))
	for _, event := range events {
		key := coordKey(event)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, event)
	}
	return out
}

// SortByBlockchainOrder orders events ascending by block, transaction index,
// and log index. This is the canonical chronological order for sequential
// state computation.
func SortByBlockchainOrder(events []model.RawEvent) []model.RawEvent {
	out := make([]model.RawEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
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

func coordKey(event model.RawEvent) string {
	return fmt.Sprintf("%d:%d:%d", event.BlockNumber, event.TxIndex, event.LogIndex)
}
