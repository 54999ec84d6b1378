package uniswapv3

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/protocol"
)

// ProtocolName identifies Uniswap V3 ledgers.
const ProtocolName = "uniswapv3"

// NonfungiblePositionManager deployment blocks per chain.
var defaultGenesisBlocks = map[uint64]uint64{
	1:     12369651, // mainnet
	10:    0,        // optimism (regenesis)
	137:   22757547, // polygon
	8453:  1371680,  // base
	42161: 173,      // arbitrum one
}

// Uniswap V3 implementation of the protocol interface.
type UniswapV3 struct {
	genesis map[uint64]uint64
}

var _ protocol.Protocol = (*UniswapV3)(nil)

// New builds the Uniswap V3 protocol with the default deployment blocks,
// overridden per chain by extraGenesis.
func New(extraGenesis map[uint64]uint64) *UniswapV3 {
	genesis := make(map[uint64]uint64, len(defaultGenesisBlocks)+len(extraGenesis))
	for chainID, block := range defaultGenesisBlocks {
		genesis[chainID] = block
	}
	for chainID, block := range extraGenesis {
		genesis[chainID] = block
	}
	return &UniswapV3{genesis: genesis}
}

func (u *UniswapV3) Name() string {
	return ProtocolName
}

func (u *UniswapV3) GenesisBlock(chainID uint64) (uint64, bool) {
	block, ok := u.genesis[chainID]
	return block, ok
}

// InputHash is SHA-256 over the protocol name and the event's blockchain
// coordinates. Identical coordinates always hash to the same value, which is
// what makes ledger insertion idempotent.
func (u *UniswapV3) InputHash(chainID, blockNumber, txIndex, logIndex uint64) string {
	digest := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d:%d:%d", ProtocolName, chainID, blockNumber, txIndex, logIndex)))
	return hex.EncodeToString(digest[:])
}

type configJSON struct {
	ChainID            uint64 `json:"chain_id"`
	ExternalPositionID string `json:"external_position_id"`
	BlockNumber        uint64 `json:"block_number"`
	TxIndex            uint64 `json:"tx_index"`
	LogIndex           uint64 `json:"log_index"`
	TxHash             string `json:"tx_hash"`

	LiquidityDelta        string `json:"liquidity_delta"`
	LiquidityAfter        string `json:"liquidity_after"`
	UncollectedPrincipal0 string `json:"uncollected_principal0"`
	UncollectedPrincipal1 string `json:"uncollected_principal1"`
	SqrtPriceX96          string `json:"sqrt_price_x96"`
}

func (u *UniswapV3) EncodeConfig(cfg *protocol.Config) (json.RawMessage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	return json.Marshal(configJSON{
		ChainID:               cfg.ChainID,
		ExternalPositionID:    cfg.ExternalPositionID,
		BlockNumber:           cfg.BlockNumber,
		TxIndex:               cfg.TxIndex,
		LogIndex:              cfg.LogIndex,
		TxHash:                cfg.TxHash,
		LiquidityDelta:        model.FormatBigInt(cfg.LiquidityDelta),
		LiquidityAfter:        model.FormatBigInt(cfg.LiquidityAfter),
		UncollectedPrincipal0: model.FormatBigInt(cfg.UncollectedPrincipal0),
		UncollectedPrincipal1: model.FormatBigInt(cfg.UncollectedPrincipal1),
		SqrtPriceX96:          model.FormatBigInt(cfg.SqrtPriceX96),
	})
}

func (u *UniswapV3) DecodeConfig(raw json.RawMessage) (*protocol.Config, error) {
	var a configJSON
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg := &protocol.Config{
		ChainID:            a.ChainID,
		ExternalPositionID: a.ExternalPositionID,
		BlockNumber:        a.BlockNumber,
		TxIndex:            a.TxIndex,
		LogIndex:           a.LogIndex,
		TxHash:             a.TxHash,
	}

	var err error
	if cfg.LiquidityDelta, err = model.ParseBigInt(a.LiquidityDelta); err != nil {
		return nil, fmt.Errorf("liquidity_delta: %w", err)
	}
	if cfg.LiquidityAfter, err = model.ParseBigInt(a.LiquidityAfter); err != nil {
		return nil, fmt.Errorf("liquidity_after: %w", err)
	}
	if cfg.UncollectedPrincipal0, err = model.ParseBigInt(a.UncollectedPrincipal0); err != nil {
		return nil, fmt.Errorf("uncollected_principal0: %w", err)
	}
	if cfg.UncollectedPrincipal1, err = model.ParseBigInt(a.UncollectedPrincipal1); err != nil {
		return nil, fmt.Errorf("uncollected_principal1: %w", err)
	}
	if cfg.SqrtPriceX96, err = model.ParseBigInt(a.SqrtPriceX96); err != nil {
		return nil, fmt.Errorf("sqrt_price_x96: %w", err)
	}
	return cfg, nil
}

type stateJSON struct {
	EventType   string `json:"event_type"`
	Timestamp   uint64 `json:"timestamp"`
	BlockNumber uint64 `json:"block_number"`
	TxIndex     uint64 `json:"tx_index"`
	LogIndex    uint64 `json:"log_index"`
	TxHash      string `json:"tx_hash"`
	Liquidity   string `json:"liquidity"`
	Amount0     string `json:"amount0"`
	Amount1     string `json:"amount1"`
	Recipient   string `json:"recipient,omitempty"`
}

func (u *UniswapV3) EncodeState(raw *model.RawEvent) (json.RawMessage, error) {
	if raw == nil {
		return nil, fmt.Errorf("raw event is nil")
	}
	return json.Marshal(stateJSON{
		EventType:   raw.EventType,
		Timestamp:   raw.Timestamp,
		BlockNumber: raw.BlockNumber,
		TxIndex:     raw.TxIndex,
		LogIndex:    raw.LogIndex,
		TxHash:      raw.TxHash,
		Liquidity:   model.FormatBigInt(raw.Liquidity),
		Amount0:     model.FormatBigInt(raw.Amount0),
		Amount1:     model.FormatBigInt(raw.Amount1),
		Recipient:   raw.Recipient,
	})
}

// QuotePrice converts sqrtPriceX96 into token1 per token0 raw units, scaled
// by PriceScale: price = sqrtPriceX96^2 * scale / 2^192.
func (u *UniswapV3) QuotePrice(sqrtPriceX96 *big.Int) *big.Int {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return big.NewInt(0)
	}
	price := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	price.Mul(price, protocol.PriceScale)
	price.Rsh(price, 192)
	return price
}
