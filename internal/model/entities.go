package model

import "github.com/shopspring/decimal"

// Pool is the mutable derived state of one AMM pool.
type Pool struct {
	ID         string
	Controller string
	Crp        bool
	PublicSwap bool
	Finalized  bool
	Active     bool

	SwapFee     decimal.Decimal
	ProtocolFee decimal.Decimal
	NetFee      decimal.Decimal

	TotalWeight decimal.Decimal
	TotalShares decimal.Decimal
	Liquidity   decimal.Decimal

	TotalSwapVolume     decimal.Decimal
	TotalSwapFee        decimal.Decimal
	TotalProtocolFee    decimal.Decimal
	TotalNetFee         decimal.Decimal
	TotalAddVolume      decimal.Decimal
	TotalWithdrawVolume decimal.Decimal

	CreateTime   uint64
	TokensCount  uint64
	HoldersCount int64
	JoinsCount   uint64
	ExitsCount   uint64
	SwapsCount   uint64

	// Ordered sets: insertion order preserved, no duplicates.
	TokensList         []string
	LiquidityProviders []string
}

// AddToken inserts a token address into the pool's token set.
func (p *Pool) AddToken(token string) {
	if !contains(p.TokensList, token) {
		p.TokensList = append(p.TokensList, token)
	}
	p.TokensCount = uint64(len(p.TokensList))
}

// RemoveToken removes a token address from the pool's token set.
func (p *Pool) RemoveToken(token string) {
	p.TokensList = remove(p.TokensList, token)
	p.TokensCount = uint64(len(p.TokensList))
}

// AddLiquidityProvider registers a holder address. Holders are never removed,
// even after their balance drops to zero.
func (p *Pool) AddLiquidityProvider(holder string) {
	if !contains(p.LiquidityProviders, holder) {
		p.LiquidityProviders = append(p.LiquidityProviders, holder)
	}
}

// PoolToken is the per-(pool, token) constituent state. Created on bind,
// deleted on unbind.
type PoolToken struct {
	ID           string
	PoolID       string
	Address      string
	Symbol       string
	Name         string
	Decimals     int32
	Balance      decimal.Decimal
	DenormWeight decimal.Decimal
	Liquidity    decimal.Decimal
}

// PoolShare is the per-(pool, holder) share position. Dormant shares
// (balance zero) are retained with their fee and loss history.
type PoolShare struct {
	ID      string
	PoolID  string
	Holder  string
	Balance decimal.Decimal
	SwapFee decimal.Decimal
	Loss    decimal.Decimal
}

// PoolShareLoss is the signed per-(share, token) running loss balance in
// token units. Never deleted; values may be negative.
type PoolShareLoss struct {
	ID      string
	PoolID  string
	ShareID string
	Holder  string
	Token   string
	Balance decimal.Decimal
}

// SwapToken is the cross-pool rollup for one token: every pool that lists it
// and the token's aggregate liquidity over those pools.
type SwapToken struct {
	ID        string
	Liquidity decimal.Decimal
	PoolsList []string
}

// AddPool inserts a pool into the token's pool set.
func (t *SwapToken) AddPool(poolID string) {
	if !contains(t.PoolsList, poolID) {
		t.PoolsList = append(t.PoolsList, poolID)
	}
}

// RemovePool removes a pool from the token's pool set.
func (t *SwapToken) RemovePool(poolID string) {
	t.PoolsList = remove(t.PoolsList, poolID)
}

// SwapPair accumulates volume and liquidity for an unordered token pair.
type SwapPair struct {
	ID         string
	TokenA     string
	TokenB     string
	SwapVolume decimal.Decimal
	Liquidity  decimal.Decimal
}

// Protocol is the process-wide singleton aggregate, created lazily on first
// access.
type Protocol struct {
	ID                 string
	PoolCount          int64
	FinalizedPoolCount int64
	CrpCount           int64
	TxCount            int64
	TotalLiquidity     decimal.Decimal
	TotalSwapVolume    decimal.Decimal
	TotalSwapFee       decimal.Decimal
	TotalProtocolFee   decimal.Decimal
	TotalNetFee        decimal.Decimal
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func remove(list []string, value string) []string {
	out := list[:0]
	for _, item := range list {
		if item != value {
			out = append(out, item)
		}
	}
	return out
}
