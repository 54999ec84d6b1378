// Package pool resolves immutable pool and token metadata from chain.
package pool

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/chain"
)

// Meta holds the immutable facts of a concentrated-liquidity pool.
type Meta struct {
	Token0      string
	Token1      string
	Fee         uint32
	TickSpacing int32
}

// TokenMeta holds ERC20 token metadata. Symbol and Name are best effort.
type TokenMeta struct {
	Address  string
	Symbol   string
	Name     string
	Decimals uint8
}

// Resolver fetches pool and token metadata with per-address caching.
type Resolver struct {
	chain  *chain.Client
	logger *zap.Logger

	mu     sync.RWMutex
	pools  map[common.Address]Meta
	tokens map[common.Address]TokenMeta
}

func NewResolver(chainClient *chain.Client, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		chain:  chainClient,
		logger: logger,
		pools:  make(map[common.Address]Meta),
		tokens: make(map[common.Address]TokenMeta),
	}
}

// PoolMeta loads a pool's token pair and fee tier. Also used to verify that an
// address actually is a pool: a plain EOA or wrong contract fails the calls.
func (r *Resolver) PoolMeta(ctx context.Context, poolAddress string) (Meta, error) {
	if !common.IsHexAddress(poolAddress) {
		return Meta{}, fmt.Errorf("invalid pool address: %s", poolAddress)
	}
	address := common.HexToAddress(poolAddress)

	r.mu.RLock()
	meta, ok := r.pools[address]
	r.mu.RUnlock()
	if ok {
		return meta, nil
	}

	parsed, err := viewABI()
	if err != nil {
		return Meta{}, fmt.Errorf("parse pool abi: %w", err)
	}

	token0, err := r.callAddress(ctx, address, parsed, "token0")
	if err != nil {
		return Meta{}, err
	}
	token1, err := r.callAddress(ctx, address, parsed, "token1")
	if err != nil {
		return Meta{}, err
	}
	fee, err := r.callBigInt(ctx, address, parsed, "fee")
	if err != nil {
		return Meta{}, err
	}
	tickSpacing, err := r.callBigInt(ctx, address, parsed, "tickSpacing")
	if err != nil {
		return Meta{}, err
	}

	meta = Meta{
		Token0:      token0.Hex(),
		Token1:      token1.Hex(),
		Fee:         uint32(fee.Uint64()),
		TickSpacing: int32(tickSpacing.Int64()),
	}

	r.mu.Lock()
	r.pools[address] = meta
	r.mu.Unlock()

	return meta, nil
}

// TokenMeta loads ERC20 metadata. Decimals is mandatory; symbol and name fall
// back to the bytes32 variants some older tokens expose.
func (r *Resolver) TokenMeta(ctx context.Context, tokenAddress string) (TokenMeta, error) {
	if !common.IsHexAddress(tokenAddress) {
		return TokenMeta{}, fmt.Errorf("invalid token address: %s", tokenAddress)
	}
	address := common.HexToAddress(tokenAddress)

	r.mu.RLock()
	meta, ok := r.tokens[address]
	r.mu.RUnlock()
	if ok {
		return meta, nil
	}

	stringABI, bytes32ABI, err := erc20ABIs()
	if err != nil {
		return TokenMeta{}, fmt.Errorf("parse erc20 abi: %w", err)
	}

	meta = TokenMeta{Address: address.Hex()}

	values, err := r.call(ctx, address, stringABI, "decimals")
	if err != nil {
		return TokenMeta{}, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return TokenMeta{}, fmt.Errorf("decimals: unsupported type %T", values[0])
	}
	meta.Decimals = decimals

	meta.Symbol = r.stringField(ctx, address, stringABI, bytes32ABI, "symbol")
	meta.Name = r.stringField(ctx, address, stringABI, bytes32ABI, "name")

	r.mu.Lock()
	r.tokens[address] = meta
	r.mu.Unlock()

	return meta, nil
}

func (r *Resolver) stringField(ctx context.Context, address common.Address, stringABI, bytes32ABI abi.ABI, method string) string {
	if values, err := r.call(ctx, address, stringABI, method); err == nil {
		if s, ok := values[0].(string); ok {
			return s
		}
	}
	if values, err := r.call(ctx, address, bytes32ABI, method); err == nil {
		if raw, ok := values[0].([32]byte); ok {
			return string(bytes.TrimRight(raw[:], "\x00"))
		}
	} else {
		r.logger.Debug("token metadata call failed",
			zap.String("token", address.Hex()),
			zap.String("method", method),
			zap.Error(err),
		)
	}
	return ""
}

func (r *Resolver) callAddress(ctx context.Context, address common.Address, parsed abi.ABI, method string) (common.Address, error) {
	values, err := r.call(ctx, address, parsed, method)
	if err != nil {
		return common.Address{}, err
	}
	out, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: unsupported type %T", method, values[0])
	}
	return out, nil
}

func (r *Resolver) callBigInt(ctx context.Context, address common.Address, parsed abi.ABI, method string) (*big.Int, error) {
	values, err := r.call(ctx, address, parsed, method)
	if err != nil {
		return nil, err
	}
	out, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unsupported type %T", method, values[0])
	}
	return new(big.Int).Set(out), nil
}

func (r *Resolver) call(ctx context.Context, address common.Address, parsed abi.ABI, method string) ([]interface{}, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &address, Data: data}
	resp, err := r.chain.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	return values, nil
}
