// Package position computes the financial deltas of single ledger events.
// All functions are pure; the sync orchestrator drives them sequentially
// because each event's deltas depend on the prior event's balances.
package position

import (
	"fmt"
	"math/big"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/protocol"
)

// Accumulator carries a position's running balances between events.
type Accumulator struct {
	Liquidity             *big.Int
	UncollectedPrincipal0 *big.Int
	UncollectedPrincipal1 *big.Int
	CostBasis             *big.Int
	Pnl                   *big.Int
}

// Zero returns an accumulator with all balances at zero, the seed for a
// position whose surviving chain is empty.
func Zero() Accumulator {
	return Accumulator{
		Liquidity:             big.NewInt(0),
		UncollectedPrincipal0: big.NewInt(0),
		UncollectedPrincipal1: big.NewInt(0),
		CostBasis:             big.NewInt(0),
		Pnl:                   big.NewInt(0),
	}
}

// FromEvent seeds an accumulator from a stored event's resulting balances.
func FromEvent(event *model.LedgerEvent, cfg *protocol.Config) Accumulator {
	return Accumulator{
		Liquidity:             model.CloneBigInt(cfg.LiquidityAfter),
		UncollectedPrincipal0: model.CloneBigInt(cfg.UncollectedPrincipal0),
		UncollectedPrincipal1: model.CloneBigInt(cfg.UncollectedPrincipal1),
		CostBasis:             model.CloneBigInt(event.CostBasisAfter),
		Pnl:                   model.CloneBigInt(event.PnlAfter),
	}
}

// Computation is the full financial outcome of applying one raw event.
type Computation struct {
	PoolPrice    *big.Int
	Token0Amount *big.Int
	Token1Amount *big.Int
	TokenValue   *big.Int
	Rewards      []model.Reward

	DeltaCostBasis *big.Int
	CostBasisAfter *big.Int
	DeltaPnl       *big.Int
	PnlAfter       *big.Int

	LiquidityAfter             *big.Int
	UncollectedPrincipal0After *big.Int
	UncollectedPrincipal1After *big.Int
}

// After returns the accumulator resulting from the computation.
func (c Computation) After() Accumulator {
	return Accumulator{
		Liquidity:             model.CloneBigInt(c.LiquidityAfter),
		UncollectedPrincipal0: model.CloneBigInt(c.UncollectedPrincipal0After),
		UncollectedPrincipal1: model.CloneBigInt(c.UncollectedPrincipal1After),
		CostBasis:             model.CloneBigInt(c.CostBasisAfter),
		Pnl:                   model.CloneBigInt(c.PnlAfter),
	}
}

// QuoteValue values a token pair in quote (token1) raw units at the given
// scaled pool price.
func QuoteValue(amount0, amount1, poolPrice *big.Int) *big.Int {
	value := new(big.Int).Mul(model.CloneBigInt(amount0), model.CloneBigInt(poolPrice))
	value.Quo(value, protocol.PriceScale)
	value.Add(value, model.CloneBigInt(amount1))
	return value
}

// Apply folds one raw event into the accumulator at the given pool price.
func Apply(acc Accumulator, raw model.RawEvent, poolPrice *big.Int) (Computation, error) {
	switch raw.EventType {
	case model.EventTypeIncreasePosition:
		return applyIncrease(acc, raw, poolPrice), nil
	case model.EventTypeDecreasePosition:
		return applyDecrease(acc, raw, poolPrice), nil
	case model.EventTypeCollect:
		return applyCollect(acc, raw, poolPrice), nil
	default:
		return Computation{}, fmt.Errorf("unknown event type: %s", raw.EventType)
	}
}

func applyIncrease(acc Accumulator, raw model.RawEvent, poolPrice *big.Int) Computation {
	value := QuoteValue(raw.Amount0, raw.Amount1, poolPrice)

	return Computation{
		PoolPrice:    model.CloneBigInt(poolPrice),
		Token0Amount: model.CloneBigInt(raw.Amount0),
		Token1Amount: model.CloneBigInt(raw.Amount1),
		TokenValue:   value,

		DeltaCostBasis: model.CloneBigInt(value),
		CostBasisAfter: new(big.Int).Add(acc.CostBasis, value),
		DeltaPnl:       big.NewInt(0),
		PnlAfter:       model.CloneBigInt(acc.Pnl),

		LiquidityAfter:             new(big.Int).Add(acc.Liquidity, model.CloneBigInt(raw.Liquidity)),
		UncollectedPrincipal0After: model.CloneBigInt(acc.UncollectedPrincipal0),
		UncollectedPrincipal1After: model.CloneBigInt(acc.UncollectedPrincipal1),
	}
}

func applyDecrease(acc Accumulator, raw model.RawEvent, poolPrice *big.Int) Computation {
	value := QuoteValue(raw.Amount0, raw.Amount1, poolPrice)
	removed := model.CloneBigInt(raw.Liquidity)

	// Cost basis leaves the position pro-rata to the liquidity share removed.
	removedCostBasis := big.NewInt(0)
	if acc.Liquidity.Sign() > 0 {
		removedCostBasis = new(big.Int).Mul(acc.CostBasis, removed)
		removedCostBasis.Quo(removedCostBasis, acc.Liquidity)
	}

	liquidityAfter := new(big.Int).Sub(acc.Liquidity, removed)
	if liquidityAfter.Sign() < 0 {
		liquidityAfter.SetInt64(0)
	}

	deltaPnl := new(big.Int).Sub(value, removedCostBasis)

	return Computation{
		PoolPrice:    model.CloneBigInt(poolPrice),
		Token0Amount: model.CloneBigInt(raw.Amount0),
		Token1Amount: model.CloneBigInt(raw.Amount1),
		TokenValue:   value,

		DeltaCostBasis: new(big.Int).Neg(removedCostBasis),
		CostBasisAfter: new(big.Int).Sub(acc.CostBasis, removedCostBasis),
		DeltaPnl:       deltaPnl,
		PnlAfter:       new(big.Int).Add(acc.Pnl, deltaPnl),

		LiquidityAfter:             liquidityAfter,
		UncollectedPrincipal0After: new(big.Int).Add(acc.UncollectedPrincipal0, model.CloneBigInt(raw.Amount0)),
		UncollectedPrincipal1After: new(big.Int).Add(acc.UncollectedPrincipal1, model.CloneBigInt(raw.Amount1)),
	}
}

func applyCollect(acc Accumulator, raw model.RawEvent, poolPrice *big.Int) Computation {
	amount0 := model.CloneBigInt(raw.Amount0)
	amount1 := model.CloneBigInt(raw.Amount1)

	// Collected amounts repay uncollected principal first; the excess is fees.
	principal0 := minBig(amount0, acc.UncollectedPrincipal0)
	principal1 := minBig(amount1, acc.UncollectedPrincipal1)
	fee0 := new(big.Int).Sub(amount0, principal0)
	fee1 := new(big.Int).Sub(amount1, principal1)

	fee0Value := new(big.Int).Mul(fee0, model.CloneBigInt(poolPrice))
	fee0Value.Quo(fee0Value, protocol.PriceScale)
	fee1Value := model.CloneBigInt(fee1)
	feeValue := new(big.Int).Add(fee0Value, fee1Value)

	rewards := []model.Reward{
		{TokenID: "token0", TokenAmount: fee0, TokenValue: fee0Value},
		{TokenID: "token1", TokenAmount: fee1, TokenValue: fee1Value},
	}

	return Computation{
		PoolPrice:    model.CloneBigInt(poolPrice),
		Token0Amount: amount0,
		Token1Amount: amount1,
		TokenValue:   QuoteValue(amount0, amount1, poolPrice),
		Rewards:      rewards,

		DeltaCostBasis: big.NewInt(0),
		CostBasisAfter: model.CloneBigInt(acc.CostBasis),
		DeltaPnl:       feeValue,
		PnlAfter:       new(big.Int).Add(acc.Pnl, feeValue),

		LiquidityAfter:             model.CloneBigInt(acc.Liquidity),
		UncollectedPrincipal0After: new(big.Int).Sub(acc.UncollectedPrincipal0, principal0),
		UncollectedPrincipal1After: new(big.Int).Sub(acc.UncollectedPrincipal1, principal1),
	}
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return model.CloneBigInt(a)
	}
	return model.CloneBigInt(b)
}
