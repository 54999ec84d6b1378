package model

import "math/big"

// RawEvent is the unified, ephemeral shape of an event before reconciliation,
// whether it came from the indexer or from the pending buffer. It is never
// persisted directly.
type RawEvent struct {
	EventType          string
	ChainID            uint64
	ExternalPositionID string
	BlockNumber        uint64
	TxIndex            uint64
	LogIndex           uint64
	TxHash             string
	Timestamp          uint64
	Liquidity          *big.Int
	Amount0            *big.Int
	Amount1            *big.Int
	Recipient          string
}

// Position identifies a tracked concentrated-liquidity position.
type Position struct {
	ID         string
	Protocol   string
	ChainID    uint64
	PoolID     string
	ExternalID string
	Owner      string
}
