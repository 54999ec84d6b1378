package model

import (
	"encoding/json"
	"math/big"
	"time"
)

// Ledger event types. Every type carries the position's full post-event
// state forward, so the newest event is always the authoritative current state.
const (
	EventTypeIncreasePosition = "INCREASE_POSITION"
	EventTypeDecreasePosition = "DECREASE_POSITION"
	EventTypeCollect          = "COLLECT"
)

// Reward is one fee token credited by a COLLECT event.
type Reward struct {
	TokenID     string   `json:"token_id"`
	TokenAmount *big.Int `json:"-"`
	TokenValue  *big.Int `json:"-"`
}

type rewardJSON struct {
	TokenID     string `json:"token_id"`
	TokenAmount string `json:"token_amount"`
	TokenValue  string `json:"token_value"`
}

// MarshalJSON encodes reward amounts as base-10 strings.
func (r Reward) MarshalJSON() ([]byte, error) {
	return json.Marshal(rewardJSON{
		TokenID:     r.TokenID,
		TokenAmount: FormatBigInt(r.TokenAmount),
		TokenValue:  FormatBigInt(r.TokenValue),
	})
}

// UnmarshalJSON decodes reward amounts from base-10 strings.
func (r *Reward) UnmarshalJSON(data []byte) error {
	var a rewardJSON
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	amount, err := ParseBigInt(a.TokenAmount)
	if err != nil {
		return err
	}
	value, err := ParseBigInt(a.TokenValue)
	if err != nil {
		return err
	}
	r.TokenID = a.TokenID
	r.TokenAmount = amount
	r.TokenValue = value
	return nil
}

// LedgerEvent is one entry in an immutable, singly linked chain per
// (position, protocol). PreviousID is nil only for the chain's first event.
// Events are created once by the ledger store and never mutated; the sync
// orchestrator removes them only in bulk when rebuilding a re-sync window.
type LedgerEvent struct {
	ID         string
	PositionID string
	Protocol   string
	PreviousID *string
	Timestamp  time.Time
	EventType  string

	// InputHash is a deterministic digest of the event's blockchain
	// coordinates, unique within a position's chain.
	InputHash   string
	BlockNumber uint64
	TxIndex     uint64
	LogIndex    uint64
	TxHash      string

	PoolPrice    *big.Int
	Token0Amount *big.Int
	Token1Amount *big.Int
	TokenValue   *big.Int
	Rewards      []Reward

	DeltaCostBasis *big.Int
	CostBasisAfter *big.Int
	DeltaPnl       *big.Int
	PnlAfter       *big.Int

	// Config holds the protocol-specific immutable facts of the event,
	// State the raw event's own fields. Both are serialized by the
	// protocol implementation with integers as strings.
	Config json.RawMessage
	State  json.RawMessage

	CreatedAt time.Time
}
