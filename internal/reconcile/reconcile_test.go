package reconcile

import (
	"math/big"
	"reflect"
	"testing"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
)

func rawAt(block, txIndex, logIndex uint64, txHash string) model.RawEvent {
	return model.RawEvent{
		EventType:   model.EventTypeIncreasePosition,
		BlockNumber: block,
		TxIndex:     txIndex,
		LogIndex:    logIndex,
		TxHash:      txHash,
	}
}

func TestDeduplicateFirstWins(t *testing.T) {
	confirmed := rawAt(100, 1, 2, "0xaa")
	pending := rawAt(100, 1, 2, "0xaa")
	pending.EventType = model.EventTypeCollect

	got := Deduplicate([]model.RawEvent{confirmed, pending})
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].EventType != model.EventTypeIncreasePosition {
		t.Fatalf("expected the first occurrence to win, got %s", got[0].EventType)
	}
}

func TestDeduplicateKeepsDistinctCoordinates(t *testing.T) {
	events := []model.RawEvent{
		rawAt(100, 1, 2, "0xaa"),
		rawAt(100, 1, 3, "0xaa"),
		rawAt(101, 0, 0, "0xbb"),
	}
	got := Deduplicate(events)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
}

func TestSortByBlockchainOrder(t *testing.T) {
	events := []model.RawEvent{
		rawAt(200, 0, 0, "0xcc"),
		rawAt(100, 3, 1, "0xbb"),
		rawAt(100, 3, 0, "0xbb"),
		rawAt(100, 1, 5, "0xaa"),
	}

	got := SortByBlockchainOrder(events)

	want := []model.RawEvent{
		rawAt(100, 1, 5, "0xaa"),
		rawAt(100, 3, 0, "0xbb"),
		rawAt(100, 3, 1, "0xbb"),
		rawAt(200, 0, 0, "0xcc"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order mismatch: %+v != %+v", got, want)
	}

	// Input order is preserved.
	if events[0].BlockNumber != 200 {
		t.Fatalf("input slice was mutated")
	}
}

func TestMergeIndexerPrecedence(t *testing.T) {
	indexer := []model.RawEvent{rawAt(100, 1, 2, "0xaa")}
	pending := []model.RawEvent{rawAt(100, 1, 2, "0xaa"), rawAt(105, 0, 0, "0xdd")}

	merged := SortByBlockchainOrder(Deduplicate(Merge(indexer, pending)))
	if len(merged) != 2 {
		t.Fatalf("expected 2 events, got %d", len(merged))
	}
	if merged[0].BlockNumber != 100 || merged[1].BlockNumber != 105 {
		t.Fatalf("unexpected merged order: %+v", merged)
	}
}

func TestConvertPendingToRaw(t *testing.T) {
	pending := model.PendingEvent{
		EventType:   model.EventTypeDecreasePosition,
		Timestamp:   1700000000,
		BlockNumber: 42,
		TxIndex:     7,
		LogIndex:    3,
		TxHash:      "0xee",
		Liquidity:   big.NewInt(500),
		Amount0:     big.NewInt(10),
		Amount1:     big.NewInt(20),
	}

	got := ConvertPendingToRaw(pending, 1, "12345")

	if got.ChainID != 1 || got.ExternalPositionID != "12345" {
		t.Fatalf("identity fields not set: %+v", got)
	}
	if got.BlockNumber != 42 || got.TxIndex != 7 || got.LogIndex != 3 {
		t.Fatalf("coordinates mismatch: %+v", got)
	}
	if got.Liquidity.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("liquidity mismatch: %s", got.Liquidity)
	}

	// Amounts are copies, not aliases.
	got.Amount0.SetInt64(999)
	if pending.Amount0.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("pending amount was mutated through the raw event")
	}
}
