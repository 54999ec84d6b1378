package model

import (
	"encoding/json"
	"math/big"
)

// PendingEvent is a position-affecting event captured from a client
// submission before the external indexer has confirmed it. It is removed when
// its transaction hash shows up in indexer results, or when its block falls
// below the finalized boundary without ever being observed.
type PendingEvent struct {
	EventType   string
	Timestamp   uint64
	BlockNumber uint64
	TxIndex     uint64
	LogIndex    uint64
	TxHash      string
	Liquidity   *big.Int
	Amount0     *big.Int
	Amount1     *big.Int
	Recipient   string
}

type pendingEventJSON struct {
	EventType   string `json:"event_type"`
	Timestamp   uint64 `json:"timestamp"`
	BlockNumber uint64 `json:"block_number"`
	TxIndex     uint64 `json:"tx_index"`
	LogIndex    uint64 `json:"log_index"`
	TxHash      string `json:"tx_hash"`
	Liquidity   string `json:"liquidity,omitempty"`
	Amount0     string `json:"amount0,omitempty"`
	Amount1     string `json:"amount1,omitempty"`
	Recipient   string `json:"recipient,omitempty"`
}

// MarshalJSON encodes optional amounts as base-10 strings.
func (p PendingEvent) MarshalJSON() ([]byte, error) {
	a := pendingEventJSON{
		EventType:   p.EventType,
		Timestamp:   p.Timestamp,
		BlockNumber: p.BlockNumber,
		TxIndex:     p.TxIndex,
		LogIndex:    p.LogIndex,
		TxHash:      p.TxHash,
		Recipient:   p.Recipient,
	}
	if p.Liquidity != nil {
		a.Liquidity = p.Liquidity.String()
	}
	if p.Amount0 != nil {
		a.Amount0 = p.Amount0.String()
	}
	if p.Amount1 != nil {
		a.Amount1 = p.Amount1.String()
	}
	return json.Marshal(a)
}

// UnmarshalJSON decodes optional amounts from base-10 strings.
func (p *PendingEvent) UnmarshalJSON(data []byte) error {
	var a pendingEventJSON
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	decode := func(value string) (*big.Int, error) {
		if value == "" {
			return nil, nil
		}
		return ParseBigInt(value)
	}
	liquidity, err := decode(a.Liquidity)
	if err != nil {
		return err
	}
	amount0, err := decode(a.Amount0)
	if err != nil {
		return err
	}
	amount1, err := decode(a.Amount1)
	if err != nil {
		return err
	}
	*p = PendingEvent{
		EventType:   a.EventType,
		Timestamp:   a.Timestamp,
		BlockNumber: a.BlockNumber,
		TxIndex:     a.TxIndex,
		LogIndex:    a.LogIndex,
		TxHash:      a.TxHash,
		Liquidity:   liquidity,
		Amount0:     amount0,
		Amount1:     amount1,
		Recipient:   a.Recipient,
	}
	return nil
}
