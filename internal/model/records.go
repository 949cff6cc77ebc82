package model

import "github.com/shopspring/decimal"

// LatestPrice is the most recent observed exchange rate for an
// (asset, pricingAsset) pair. Overwritten on every qualifying trade.
type LatestPrice struct {
	ID           string
	Asset        string
	PricingAsset string
	PoolID       string
	Price        decimal.Decimal
	Block        uint64
}

// TokenPrice is an immutable trade-price observation keyed by
// (pool, asset, pricingAsset, block).
type TokenPrice struct {
	ID           string
	PoolID       string
	Asset        string
	PricingAsset string
	Amount       decimal.Decimal
	Price        decimal.Decimal
	Block        uint64
	Timestamp    uint64
	LogIndex     uint64
}

// PoolHistoricalLiquidity is an immutable point-in-time liquidity snapshot
// keyed by (pool, pricingAsset, block).
type PoolHistoricalLiquidity struct {
	ID              string
	PoolID          string
	PricingAsset    string
	PoolTotalShares decimal.Decimal
	PoolLiquidity   decimal.Decimal
	PoolShareValue  decimal.Decimal
	Block           uint64
}

// PoolSnapshot is the per-day rollup for one pool, keyed by
// (pool, dayBucket). Created once per day, then volume and fees accumulate.
type PoolSnapshot struct {
	ID          string
	PoolID      string
	Tokens      []string
	Amounts     []decimal.Decimal
	TotalShares decimal.Decimal
	SwapVolume  decimal.Decimal
	SwapFees    decimal.Decimal
	Timestamp   uint64
}

// VirtualSwap is a liquidity checkpoint recorded for a pool as a side effect
// of a price update originating in another pool sharing a token.
type VirtualSwap struct {
	ID                string
	PoolID            string
	PoolLiquidity     decimal.Decimal
	Timestamp         uint64
	TimestampLogIndex uint64
}

// Swap is the immutable audit record of one swap with all derived quantities
// captured at the moment of the swap.
type Swap struct {
	ID          string
	PoolID      string
	Caller      string
	UserAddress string

	TokenIn        string
	TokenInSym     string
	TokenAmountIn  decimal.Decimal
	TokenOut       string
	TokenOutSym    string
	TokenAmountOut decimal.Decimal

	Value       decimal.Decimal
	FeeValue    decimal.Decimal
	NetFeeValue decimal.Decimal

	PoolTotalSwapVolume     decimal.Decimal
	PoolTotalSwapFee        decimal.Decimal
	PoolTotalProtocolFee    decimal.Decimal
	PoolTotalNetFee         decimal.Decimal
	PoolTotalAddVolume      decimal.Decimal
	PoolTotalWithdrawVolume decimal.Decimal
	PoolLiquidity           decimal.Decimal

	PairSwapVolume decimal.Decimal
	PairLiquidity  decimal.Decimal

	Timestamp         uint64
	TimestampLogIndex uint64
}
