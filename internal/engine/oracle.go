package engine

import (
	"github.com/shopspring/decimal"

	"poolscope/internal/model"
	"poolscope/internal/store"
)

// Oracle maintains last-observed exchange rates between assets and pricing
// assets and converts token quantities to USD value.
type Oracle struct {
	store    *store.Store
	registry *Registry
}

func NewOracle(st *store.Store, registry *Registry) *Oracle {
	return &Oracle{store: st, registry: registry}
}

// RecordTrade stores one observed trade of asset against pricingAsset:
// an immutable TokenPrice keyed by (pool, asset, pricingAsset, block) and an
// unconditional LatestPrice overwrite. Last write wins; on-chain order is the
// authority. Skips trades where the pricing-asset amount is zero (no rate
// can be derived).
func (o *Oracle) RecordTrade(poolID, asset, pricingAsset string, assetAmount, pricingAmount decimal.Decimal, block, logIndex, timestamp uint64) {
	if pricingAmount.IsZero() {
		return
	}
	price := assetAmount.Div(pricingAmount)

	o.store.SaveTokenPrice(&model.TokenPrice{
		ID:           model.TokenPriceKey(poolID, asset, pricingAsset, block),
		PoolID:       poolID,
		Asset:        asset,
		PricingAsset: pricingAsset,
		Amount:       pricingAmount,
		Price:        price,
		Block:        block,
		Timestamp:    timestamp,
		LogIndex:     logIndex,
	})

	o.store.SaveLatestPrice(&model.LatestPrice{
		ID:           model.LatestPriceKey(asset, pricingAsset),
		Asset:        asset,
		PricingAsset: pricingAsset,
		PoolID:       poolID,
		Price:        price,
		Block:        block,
	})
}

// ValueInUSD converts a token quantity to USD. USD-stable assets convert
// 1:1. Other assets need a LatestPrice against the anchor; without one the
// value is unknown and ok is false. Callers choose the fallback.
func (o *Oracle) ValueInUSD(quantity decimal.Decimal, asset string) (decimal.Decimal, bool) {
	if o.registry.IsUSDStable(asset) {
		return quantity, true
	}
	lp, ok := o.store.LatestPrice(model.LatestPriceKey(asset, o.registry.USDAnchor()))
	if !ok {
		return decimal.Decimal{}, false
	}
	return quantity.Mul(lp.Price), true
}
