// Package price resolves pool prices pinned to historical blocks.
package price

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/chain"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/protocol"
)

const slot0ABIJSON = `[
  {
    "inputs": [],
    "name": "slot0",
    "outputs": [
      {"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
      {"internalType": "int24", "name": "tick", "type": "int24"},
      {"internalType": "uint16", "name": "observationIndex", "type": "uint16"},
      {"internalType": "uint16", "name": "observationCardinality", "type": "uint16"},
      {"internalType": "uint16", "name": "observationCardinalityNext", "type": "uint16"},
      {"internalType": "uint8", "name": "feeProtocol", "type": "uint8"},
      {"internalType": "bool", "name": "unlocked", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	slot0ABI    abi.ABI
	slot0Once   sync.Once
	slot0ABIErr error
)

func getSlot0ABI() (abi.ABI, error) {
	slot0Once.Do(func() {
		slot0ABI, slot0ABIErr = abi.JSON(strings.NewReader(slot0ABIJSON))
	})
	return slot0ABI, slot0ABIErr
}

// Discovery resolves a pool's sqrt price at a block via eth_call, memoized by
// (pool, block). Historical accuracy requires an archive RPC.
type Discovery struct {
	chain  *chain.Client
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]*protocol.PriceState
}

func NewDiscovery(chainClient *chain.Client, logger *zap.Logger) *Discovery {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discovery{
		chain:  chainClient,
		logger: logger,
		cache:  make(map[string]*protocol.PriceState),
	}
}

// HistoricPrice returns the pool price state at blockNumber.
func (d *Discovery) HistoricPrice(ctx context.Context, poolID string, blockNumber uint64) (*protocol.PriceState, error) {
	if !common.IsHexAddress(poolID) {
		return nil, fmt.Errorf("invalid pool address: %s", poolID)
	}

	key := cacheKey(poolID, blockNumber)
	d.mu.RLock()
	cached, ok := d.cache[key]
	d.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if d.chain == nil {
		return nil, fmt.Errorf("chain client is nil")
	}

	poolABI, err := getSlot0ABI()
	if err != nil {
		return nil, err
	}
	data, err := poolABI.Pack("slot0")
	if err != nil {
		return nil, fmt.Errorf("pack slot0: %w", err)
	}

	pool := common.HexToAddress(poolID)
	msg := ethereum.CallMsg{To: &pool, Data: data}
	resp, err := d.chain.CallContract(ctx, msg, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return nil, fmt.Errorf("call slot0: %w", err)
	}

	values, err := poolABI.Unpack("slot0", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack slot0: %w", err)
	}
	if len(values) < 2 {
		return nil, fmt.Errorf("slot0 return size %d", len(values))
	}
	sqrtPrice, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("slot0 sqrtPriceX96 type %T", values[0])
	}
	tick, ok := values[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("slot0 tick type %T", values[1])
	}

	state := &protocol.PriceState{
		PoolID:       strings.ToLower(poolID),
		BlockNumber:  blockNumber,
		SqrtPriceX96: new(big.Int).Set(sqrtPrice),
		Tick:         int32(tick.Int64()),
	}

	d.mu.Lock()
	d.cache[key] = state
	d.mu.Unlock()

	d.logger.Debug("pool price discovered",
		zap.String("pool", state.PoolID),
		zap.Uint64("block", blockNumber),
		zap.String("sqrt_price_x96", state.SqrtPriceX96.String()),
	)
	return state, nil
}

func cacheKey(poolID string, blockNumber uint64) string {
	return fmt.Sprintf("%s:%d", strings.ToLower(poolID), blockNumber)
}
