package position

import (
	"math/big"
	"testing"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/protocol"
)

// price of 2 token1 per token0 raw unit at the 1e18 scale
var testPrice = new(big.Int).Mul(big.NewInt(2), protocol.PriceScale)

func TestQuoteValue(t *testing.T) {
	got := QuoteValue(big.NewInt(100), big.NewInt(50), testPrice)
	if got.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("expected 250, got %s", got)
	}
}

func TestQuoteValueZeroAmounts(t *testing.T) {
	got := QuoteValue(nil, nil, testPrice)
	if got.Sign() != 0 {
		t.Fatalf("expected 0, got %s", got)
	}
}

func TestApplyIncrease(t *testing.T) {
	raw := model.RawEvent{
		EventType: model.EventTypeIncreasePosition,
		Liquidity: big.NewInt(1000),
		Amount0:   big.NewInt(100),
		Amount1:   big.NewInt(50),
	}

	comp, err := Apply(Zero(), raw, testPrice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if comp.TokenValue.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("token value: %s", comp.TokenValue)
	}
	if comp.DeltaCostBasis.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("delta cost basis: %s", comp.DeltaCostBasis)
	}
	if comp.CostBasisAfter.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("cost basis after: %s", comp.CostBasisAfter)
	}
	if comp.DeltaPnl.Sign() != 0 {
		t.Fatalf("increase must not realize pnl: %s", comp.DeltaPnl)
	}
	if comp.LiquidityAfter.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("liquidity after: %s", comp.LiquidityAfter)
	}
}

func TestApplyDecreaseProRata(t *testing.T) {
	acc := Zero()
	acc.Liquidity = big.NewInt(1000)
	acc.CostBasis = big.NewInt(250)

	raw := model.RawEvent{
		EventType: model.EventTypeDecreasePosition,
		Liquidity: big.NewInt(500),
		Amount0:   big.NewInt(60),
		Amount1:   big.NewInt(40),
	}

	comp, err := Apply(acc, raw, testPrice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Removing half the liquidity removes half the cost basis.
	if comp.DeltaCostBasis.Cmp(big.NewInt(-125)) != 0 {
		t.Fatalf("delta cost basis: %s", comp.DeltaCostBasis)
	}
	if comp.CostBasisAfter.Cmp(big.NewInt(125)) != 0 {
		t.Fatalf("cost basis after: %s", comp.CostBasisAfter)
	}

	// Withdrawn value 160 against removed basis 125 realizes 35.
	if comp.DeltaPnl.Cmp(big.NewInt(35)) != 0 {
		t.Fatalf("delta pnl: %s", comp.DeltaPnl)
	}
	if comp.PnlAfter.Cmp(big.NewInt(35)) != 0 {
		t.Fatalf("pnl after: %s", comp.PnlAfter)
	}

	if comp.LiquidityAfter.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("liquidity after: %s", comp.LiquidityAfter)
	}
	if comp.UncollectedPrincipal0After.Cmp(big.NewInt(60)) != 0 ||
		comp.UncollectedPrincipal1After.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("uncollected principal: %s / %s", comp.UncollectedPrincipal0After, comp.UncollectedPrincipal1After)
	}
}

func TestApplyDecreaseZeroLiquidity(t *testing.T) {
	raw := model.RawEvent{
		EventType: model.EventTypeDecreasePosition,
		Liquidity: big.NewInt(500),
		Amount0:   big.NewInt(10),
		Amount1:   big.NewInt(10),
	}

	comp, err := Apply(Zero(), raw, testPrice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if comp.DeltaCostBasis.Sign() != 0 {
		t.Fatalf("no basis to remove from an empty position: %s", comp.DeltaCostBasis)
	}
	if comp.LiquidityAfter.Sign() != 0 {
		t.Fatalf("liquidity must clamp at zero: %s", comp.LiquidityAfter)
	}
}

func TestApplyCollectSplitsPrincipalAndFees(t *testing.T) {
	acc := Zero()
	acc.CostBasis = big.NewInt(125)
	acc.Pnl = big.NewInt(35)
	acc.UncollectedPrincipal0 = big.NewInt(60)
	acc.UncollectedPrincipal1 = big.NewInt(40)

	raw := model.RawEvent{
		EventType: model.EventTypeCollect,
		Amount0:   big.NewInt(80),
		Amount1:   big.NewInt(50),
	}

	comp, err := Apply(acc, raw, testPrice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 60/40 repay principal; 20/10 are fees worth 40+10 in quote.
	if len(comp.Rewards) != 2 {
		t.Fatalf("expected 2 rewards, got %d", len(comp.Rewards))
	}
	if comp.Rewards[0].TokenAmount.Cmp(big.NewInt(20)) != 0 ||
		comp.Rewards[0].TokenValue.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("token0 reward: %s worth %s", comp.Rewards[0].TokenAmount, comp.Rewards[0].TokenValue)
	}
	if comp.Rewards[1].TokenAmount.Cmp(big.NewInt(10)) != 0 ||
		comp.Rewards[1].TokenValue.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("token1 reward: %s worth %s", comp.Rewards[1].TokenAmount, comp.Rewards[1].TokenValue)
	}

	if comp.DeltaPnl.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("delta pnl: %s", comp.DeltaPnl)
	}
	if comp.PnlAfter.Cmp(big.NewInt(85)) != 0 {
		t.Fatalf("pnl after: %s", comp.PnlAfter)
	}

	// Collect never touches cost basis.
	if comp.DeltaCostBasis.Sign() != 0 || comp.CostBasisAfter.Cmp(big.NewInt(125)) != 0 {
		t.Fatalf("cost basis changed: %s / %s", comp.DeltaCostBasis, comp.CostBasisAfter)
	}

	if comp.UncollectedPrincipal0After.Sign() != 0 || comp.UncollectedPrincipal1After.Sign() != 0 {
		t.Fatalf("principal not cleared: %s / %s", comp.UncollectedPrincipal0After, comp.UncollectedPrincipal1After)
	}
}

func TestApplyCollectPrincipalOnly(t *testing.T) {
	acc := Zero()
	acc.UncollectedPrincipal0 = big.NewInt(100)
	acc.UncollectedPrincipal1 = big.NewInt(100)

	raw := model.RawEvent{
		EventType: model.EventTypeCollect,
		Amount0:   big.NewInt(30),
		Amount1:   big.NewInt(30),
	}

	comp, err := Apply(acc, raw, testPrice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if comp.DeltaPnl.Sign() != 0 {
		t.Fatalf("pure principal collection must not move pnl: %s", comp.DeltaPnl)
	}
	if comp.UncollectedPrincipal0After.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("remaining principal: %s", comp.UncollectedPrincipal0After)
	}
}

func TestApplyUnknownEventType(t *testing.T) {
	_, err := Apply(Zero(), model.RawEvent{EventType: "SWAP"}, testPrice)
	if err == nil {
		t.Fatalf("expected error for unknown event type")
	}
}

func TestComputationAfterMatchesFields(t *testing.T) {
	raw := model.RawEvent{
		EventType: model.EventTypeIncreasePosition,
		Liquidity: big.NewInt(1000),
		Amount0:   big.NewInt(100),
		Amount1:   big.NewInt(50),
	}
	comp, err := Apply(Zero(), raw, testPrice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after := comp.After()
	if after.CostBasis.Cmp(comp.CostBasisAfter) != 0 ||
		after.Liquidity.Cmp(comp.LiquidityAfter) != 0 ||
		after.Pnl.Cmp(comp.PnlAfter) != 0 {
		t.Fatalf("accumulator does not match computation: %+v", after)
	}
}
