package engine

import (
	"github.com/shopspring/decimal"

	"poolscope/internal/model"
	"poolscope/internal/store"
)

// Valuator recomputes pool liquidity from oracle prices.
type Valuator struct {
	store  *store.Store
	oracle *Oracle
}

func NewValuator(st *store.Store, oracle *Oracle) *Valuator {
	return &Valuator{store: st, oracle: oracle}
}

// RecomputePoolLiquidity revalues every constituent token of the pool in
// USD, rolls the deltas into the per-token cross-pool aggregates and the
// protocol total, and appends a PoolHistoricalLiquidity snapshot keyed by
// (pool, pricingAsset, block). No-op for absent pools and pools with fewer
// than two tokens.
func (v *Valuator) RecomputePoolLiquidity(poolID, pricingAsset string, block uint64) {
	pool, ok := v.store.Pool(poolID)
	if !ok || len(pool.TokensList) < 2 {
		return
	}

	newLiquidity := v.revalueTokens(pool)

	phl := &model.PoolHistoricalLiquidity{
		ID:              model.HistoricalLiquidityKey(poolID, pricingAsset, block),
		PoolID:          poolID,
		PricingAsset:    pricingAsset,
		PoolTotalShares: pool.TotalShares,
		PoolLiquidity:   newLiquidity,
		Block:           block,
	}
	if pool.TotalShares.IsZero() {
		phl.PoolShareValue = newLiquidity
	} else {
		phl.PoolShareValue = newLiquidity.Div(pool.TotalShares)
	}
	v.store.SaveHistoricalLiquidity(phl)

	v.applyLiquidityDelta(pool, newLiquidity)
}

// RecomputeWithoutSnapshot does the same per-token and aggregate bookkeeping
// without a snapshot. Used when a price update in one pool must refresh
// sibling pools that share a token.
func (v *Valuator) RecomputeWithoutSnapshot(poolID string) {
	pool, ok := v.store.Pool(poolID)
	if !ok || len(pool.TokensList) < 2 {
		return
	}
	newLiquidity := v.revalueTokens(pool)
	v.applyLiquidityDelta(pool, newLiquidity)
}

// revalueTokens reprices every constituent token, updating PoolToken and
// SwapToken liquidity, and returns the new pool total. Unpriced tokens
// contribute zero.
func (v *Valuator) revalueTokens(pool *model.Pool) decimal.Decimal {
	newLiquidity := decimal.Decimal{}
	for _, token := range pool.TokensList {
		pt, ok := v.store.PoolToken(model.PoolTokenKey(pool.ID, token))
		if !ok {
			continue
		}
		oldTokenLiquidity := pt.Liquidity
		tokenLiquidity, _ := v.oracle.ValueInUSD(pt.Balance, token)
		pt.Liquidity = tokenLiquidity
		v.store.SavePoolToken(pt)

		if st, ok := v.store.SwapToken(token); ok {
			st.Liquidity = st.Liquidity.Sub(oldTokenLiquidity).Add(tokenLiquidity)
			v.store.SaveSwapToken(st)
		}
		newLiquidity = newLiquidity.Add(tokenLiquidity)
	}
	return newLiquidity
}

func (v *Valuator) applyLiquidityDelta(pool *model.Pool, newLiquidity decimal.Decimal) {
	delta := newLiquidity.Sub(pool.Liquidity)
	protocol := v.store.Protocol()
	protocol.TotalLiquidity = protocol.TotalLiquidity.Add(delta)

	pool.Liquidity = newLiquidity
	v.store.SavePool(pool)
}

// TokensLiquidity sums the cross-pool liquidity aggregates of the given
// tokens. Tokens without an aggregate contribute zero.
func (v *Valuator) TokensLiquidity(tokens ...string) decimal.Decimal {
	total := decimal.Decimal{}
	for _, token := range tokens {
		if st, ok := v.store.SwapToken(token); ok {
			total = total.Add(st.Liquidity)
		}
	}
	return total
}
