package protocol

import (
	"encoding/json"
	"math/big"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
)

// Config holds the immutable blockchain facts of a ledger event: where it
// happened and the position's post-event on-chain state.
type Config struct {
	ChainID            uint64
	ExternalPositionID string
	BlockNumber        uint64
	TxIndex            uint64
	LogIndex           uint64
	TxHash             string

	LiquidityDelta        *big.Int
	LiquidityAfter        *big.Int
	UncollectedPrincipal0 *big.Int
	UncollectedPrincipal1 *big.Int
	SqrtPriceX96          *big.Int
}

// PriceState is the pool price discovered at a specific block.
type PriceState struct {
	PoolID       string
	BlockNumber  uint64
	SqrtPriceX96 *big.Int
	Tick         int32
}

// Protocol bundles the per-protocol behavior of the engine: event hashing,
// config/state serialization, deployment lower bounds, and the price law.
// One implementation exists per protocol and is selected at construction time.
type Protocol interface {
	Name() string

	// GenesisBlock returns the protocol's deployment block on a chain,
	// the lower bound for full resyncs.
	GenesisBlock(chainID uint64) (uint64, bool)

	// InputHash digests an event's blockchain coordinates. It is the
	// ledger's deduplication key.
	InputHash(chainID, blockNumber, txIndex, logIndex uint64) string

	EncodeConfig(cfg *Config) (json.RawMessage, error)
	DecodeConfig(raw json.RawMessage) (*Config, error)

	// EncodeState serializes the raw event's own fields.
	EncodeState(raw *model.RawEvent) (json.RawMessage, error)

	// QuotePrice converts a pool sqrt price into a quote-denominated
	// price scaled by PriceScale.
	QuotePrice(sqrtPriceX96 *big.Int) *big.Int
}

// PriceScale is the fixed-point scale of quote-denominated prices.
var PriceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
