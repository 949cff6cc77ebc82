package engine

import (
	"testing"

	"github.com/shopspring/decimal"

	"poolscope/internal/model"
	"poolscope/internal/store"
)

func newOracle(t *testing.T) (*Oracle, *store.Store) {
	t.Helper()
	reg, err := NewRegistry([]string{wbnb, usdx}, []string{usdx})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	st := store.New()
	return NewOracle(st, reg), st
}

func TestRecordTradePriceDirection(t *testing.T) {
	o, st := newOracle(t)

	// 100 tokenA traded for 10 usdx: the recorded rate is the asset
	// amount over the pricing amount, 100/10 = 10.
	o.RecordTrade(poolAddr, tokenA, usdx, dec(100), dec(10), 70, 1, 210)

	lp, ok := st.LatestPrice(model.LatestPriceKey(tokenA, usdx))
	if !ok {
		t.Fatalf("latest price not recorded")
	}
	if !lp.Price.Equal(dec(10)) {
		t.Fatalf("price = %s, want 10", lp.Price)
	}
	if lp.Block != 70 || lp.PoolID != poolAddr {
		t.Fatalf("unexpected latest price: %+v", lp)
	}

	tp, ok := st.TokenPrice(model.TokenPriceKey(poolAddr, tokenA, usdx, 70))
	if !ok {
		t.Fatalf("token price not recorded")
	}
	if !tp.Amount.Equal(dec(10)) || !tp.Price.Equal(dec(10)) {
		t.Fatalf("unexpected token price: %+v", tp)
	}
}

func TestRecordTradeLastWriteWins(t *testing.T) {
	o, st := newOracle(t)

	o.RecordTrade(poolAddr, tokenA, usdx, dec(100), dec(10), 70, 1, 210)
	o.RecordTrade(poolAddr, tokenA, usdx, dec(100), dec(20), 71, 2, 213)

	lp, _ := st.LatestPrice(model.LatestPriceKey(tokenA, usdx))
	if !lp.Price.Equal(dec(5)) {
		t.Fatalf("price = %s, want 5", lp.Price)
	}
	if lp.Block != 71 {
		t.Fatalf("block = %d, want 71", lp.Block)
	}
}

func TestRecordTradeZeroPricingAmount(t *testing.T) {
	o, st := newOracle(t)

	o.RecordTrade(poolAddr, tokenA, usdx, dec(100), decimal.Decimal{}, 70, 1, 210)

	if _, ok := st.LatestPrice(model.LatestPriceKey(tokenA, usdx)); ok {
		t.Fatalf("zero pricing amount must not record a price")
	}
}

func TestValueInUSD(t *testing.T) {
	o, _ := newOracle(t)

	// USD-stable assets convert 1:1 without any price record.
	if v, ok := o.ValueInUSD(dec(7), usdx); !ok || !v.Equal(dec(7)) {
		t.Fatalf("stable value = %s ok=%v, want 7 true", v, ok)
	}

	// Unpriced asset: unknown.
	if _, ok := o.ValueInUSD(dec(5), tokenA); ok {
		t.Fatalf("unpriced asset must report not ok")
	}

	o.RecordTrade(poolAddr, tokenA, usdx, dec(100), dec(10), 70, 1, 210)

	if v, ok := o.ValueInUSD(dec(5), tokenA); !ok || !v.Equal(dec(50)) {
		t.Fatalf("value = %s ok=%v, want 50 true", v, ok)
	}
}
