package uniswapv3

import (
	"math/big"
	"testing"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/protocol"
)

func TestInputHashDeterministic(t *testing.T) {
	proto := New(nil)

	first := proto.InputHash(1, 18000000, 5, 12)
	second := proto.InputHash(1, 18000000, 5, 12)
	if first != second {
		t.Fatalf("identical coordinates must hash identically: %s != %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected hex sha256, got %q", first)
	}

	if proto.InputHash(1, 18000000, 5, 13) == first {
		t.Fatalf("different coordinates must not collide")
	}
	if proto.InputHash(137, 18000000, 5, 12) == first {
		t.Fatalf("chain id must contribute to the hash")
	}
}

func TestGenesisBlocks(t *testing.T) {
	proto := New(map[uint64]uint64{31337: 1})

	block, ok := proto.GenesisBlock(1)
	if !ok || block != 12369651 {
		t.Fatalf("mainnet genesis: %d %v", block, ok)
	}
	if block, ok := proto.GenesisBlock(31337); !ok || block != 1 {
		t.Fatalf("extra genesis not applied: %d %v", block, ok)
	}
	if _, ok := proto.GenesisBlock(999); ok {
		t.Fatalf("unknown chain must report no genesis")
	}
}

func TestConfigRoundTrip(t *testing.T) {
	proto := New(nil)

	in := &protocol.Config{
		ChainID:               42161,
		ExternalPositionID:    "123456",
		BlockNumber:           18000000,
		TxIndex:               5,
		LogIndex:              12,
		TxHash:                "0xabc",
		LiquidityDelta:        big.NewInt(-500),
		LiquidityAfter:        big.NewInt(500),
		UncollectedPrincipal0: big.NewInt(60),
		UncollectedPrincipal1: big.NewInt(40),
		SqrtPriceX96:          new(big.Int).Lsh(big.NewInt(1), 96),
	}

	raw, err := proto.EncodeConfig(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := proto.DecodeConfig(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.ChainID != in.ChainID || out.ExternalPositionID != in.ExternalPositionID ||
		out.BlockNumber != in.BlockNumber || out.TxHash != in.TxHash {
		t.Fatalf("identity fields mismatch: %+v", out)
	}
	if out.LiquidityDelta.Cmp(in.LiquidityDelta) != 0 {
		t.Fatalf("liquidity delta: %s", out.LiquidityDelta)
	}
	if out.SqrtPriceX96.Cmp(in.SqrtPriceX96) != 0 {
		t.Fatalf("sqrt price: %s", out.SqrtPriceX96)
	}
	if out.UncollectedPrincipal0.Cmp(in.UncollectedPrincipal0) != 0 ||
		out.UncollectedPrincipal1.Cmp(in.UncollectedPrincipal1) != 0 {
		t.Fatalf("principals: %s / %s", out.UncollectedPrincipal0, out.UncollectedPrincipal1)
	}
}

func TestQuotePrice(t *testing.T) {
	proto := New(nil)

	// sqrtPriceX96 = 2^96 means a price of exactly 1.
	price := proto.QuotePrice(new(big.Int).Lsh(big.NewInt(1), 96))
	if price.Cmp(protocol.PriceScale) != 0 {
		t.Fatalf("expected %s, got %s", protocol.PriceScale, price)
	}

	// Doubling sqrtPrice quadruples the price.
	price = proto.QuotePrice(new(big.Int).Lsh(big.NewInt(2), 96))
	want := new(big.Int).Mul(big.NewInt(4), protocol.PriceScale)
	if price.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, price)
	}

	if proto.QuotePrice(nil).Sign() != 0 || proto.QuotePrice(big.NewInt(0)).Sign() != 0 {
		t.Fatalf("zero sqrt price must map to zero")
	}
}
