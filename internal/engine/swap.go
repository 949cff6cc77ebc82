package engine

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"poolscope/internal/model"
	"poolscope/internal/store"
)

// SwapProcessor orchestrates one swap event end to end: token balances, fee
// and volume accounting, price recording, liquidity recompute with cross-pool
// propagation, snapshot upkeep, the audit record, and fee/loss distribution.
type SwapProcessor struct {
	store     *store.Store
	registry  *Registry
	oracle    *Oracle
	valuator  *Valuator
	ledger    *ShareLedger
	snapshots *Snapshots
	logger    *zap.Logger
}

func NewSwapProcessor(st *store.Store, registry *Registry, oracle *Oracle, valuator *Valuator, ledger *ShareLedger, snapshots *Snapshots, logger *zap.Logger) *SwapProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SwapProcessor{
		store:     st,
		registry:  registry,
		oracle:    oracle,
		valuator:  valuator,
		ledger:    ledger,
		snapshots: snapshots,
		logger:    logger,
	}
}

// Process applies one swap. If the pool or either constituent token is
// unknown the event is rejected before any state is touched.
func (p *SwapProcessor) Process(ev model.Event, data model.SwapExecutedData) {
	poolID := ev.Address
	pool, ok := p.store.Pool(poolID)
	if !ok {
		p.logger.Warn("swap for unknown pool", zap.String("pool", poolID))
		return
	}

	ptIn, ok := p.store.PoolToken(model.PoolTokenKey(poolID, data.TokenIn))
	if !ok {
		p.logger.Warn("swap tokenIn not bound", zap.String("pool", poolID), zap.String("token", data.TokenIn))
		return
	}
	ptOut, ok := p.store.PoolToken(model.PoolTokenKey(poolID, data.TokenOut))
	if !ok {
		p.logger.Warn("swap tokenOut not bound", zap.String("pool", poolID), zap.String("token", data.TokenOut))
		return
	}

	amountIn, err := tokenAmount(data.AmountIn, ptIn.Decimals)
	if err != nil {
		p.logger.Warn("bad swap amountIn", zap.String("pool", poolID), zap.Error(err))
		return
	}
	amountOut, err := tokenAmount(data.AmountOut, ptOut.Decimals)
	if err != nil {
		p.logger.Warn("bad swap amountOut", zap.String("pool", poolID), zap.Error(err))
		return
	}

	// The protocol-fee skim leaves the pool immediately; it is removed from
	// the tracked tokenIn balance rather than accounted as an outflow.
	newAmountIn := ptIn.Balance.Add(amountIn).Sub(amountIn.Mul(pool.ProtocolFee))
	ptIn.Balance = newAmountIn
	p.store.SavePoolToken(ptIn)

	newAmountOut := ptOut.Balance.Sub(amountOut)
	ptOut.Balance = newAmountOut
	p.store.SavePoolToken(ptOut)

	// Audit records carry the liquidity the swap executed against.
	preSwapLiquidity := pool.Liquidity

	value, priced := p.oracle.ValueInUSD(amountOut, data.TokenOut)
	if !priced {
		value, priced = p.oracle.ValueInUSD(amountIn, data.TokenIn)
	}
	if !priced {
		value = decimal.Decimal{}
	}
	swapFeeUSD := value.Mul(pool.SwapFee)
	protocolFeeUSD := value.Mul(pool.ProtocolFee)
	netFeeUSD := swapFeeUSD.Sub(protocolFeeUSD)

	pool.TotalSwapVolume = pool.TotalSwapVolume.Add(value)
	pool.TotalSwapFee = pool.TotalSwapFee.Add(swapFeeUSD)
	pool.TotalProtocolFee = pool.TotalProtocolFee.Add(protocolFeeUSD)
	pool.TotalNetFee = pool.TotalNetFee.Add(netFeeUSD)
	pool.SwapsCount++

	protocol := p.store.Protocol()
	protocol.TotalSwapVolume = protocol.TotalSwapVolume.Add(value)
	protocol.TotalSwapFee = protocol.TotalSwapFee.Add(swapFeeUSD)
	protocol.TotalProtocolFee = protocol.TotalProtocolFee.Add(protocolFeeUSD)
	protocol.TotalNetFee = protocol.TotalNetFee.Add(netFeeUSD)
	protocol.TxCount++

	if newAmountIn.IsZero() || newAmountOut.IsZero() {
		deactivatePool(p.store, pool)
	}
	p.store.SavePool(pool)

	if p.registry.IsPricingAsset(data.TokenIn) {
		p.oracle.RecordTrade(poolID, data.TokenOut, data.TokenIn, amountOut, amountIn, ev.BlockNumber, ev.LogIndex, ev.Timestamp)
		p.valuator.RecomputePoolLiquidity(poolID, data.TokenIn, ev.BlockNumber)
		p.propagate(data.TokenOut, ev)
	}
	if p.registry.IsPricingAsset(data.TokenOut) {
		p.oracle.RecordTrade(poolID, data.TokenIn, data.TokenOut, amountIn, amountOut, ev.BlockNumber, ev.LogIndex, ev.Timestamp)
		p.valuator.RecomputePoolLiquidity(poolID, data.TokenOut, ev.BlockNumber)
		p.propagate(data.TokenIn, ev)
	}

	p.snapshots.DailySnapshot(poolID, ev.Timestamp)
	p.snapshots.AccumulateSwap(poolID, ev.Timestamp, value, swapFeeUSD)

	pairID, tokenA, tokenB := model.SwapPairKey(data.TokenIn, data.TokenOut)
	pair, ok := p.store.SwapPair(pairID)
	if !ok {
		pair = &model.SwapPair{ID: pairID, TokenA: tokenA, TokenB: tokenB}
	}
	pair.Liquidity = p.valuator.TokensLiquidity(tokenA, tokenB)
	pair.SwapVolume = pair.SwapVolume.Add(value)
	p.store.SaveSwapPair(pair)

	p.store.SaveSwap(&model.Swap{
		ID:          model.SwapKey(ev.TxHash, ev.LogIndex),
		PoolID:      poolID,
		Caller:      data.Caller,
		UserAddress: ev.TxFrom,

		TokenIn:        data.TokenIn,
		TokenInSym:     ptIn.Symbol,
		TokenAmountIn:  amountIn,
		TokenOut:       data.TokenOut,
		TokenOutSym:    ptOut.Symbol,
		TokenAmountOut: amountOut,

		Value:       value,
		FeeValue:    swapFeeUSD,
		NetFeeValue: netFeeUSD,

		PoolTotalSwapVolume:     pool.TotalSwapVolume,
		PoolTotalSwapFee:        pool.TotalSwapFee,
		PoolTotalProtocolFee:    pool.TotalProtocolFee,
		PoolTotalNetFee:         pool.TotalNetFee,
		PoolTotalAddVolume:      pool.TotalAddVolume,
		PoolTotalWithdrawVolume: pool.TotalWithdrawVolume,
		PoolLiquidity:           preSwapLiquidity,

		PairSwapVolume: pair.SwapVolume,
		PairLiquidity:  pair.Liquidity,

		Timestamp:         ev.Timestamp,
		TimestampLogIndex: model.TimestampLogIndex(ev.Timestamp, ev.LogIndex),
	})

	p.ledger.DistributeSwapFee(poolID, netFeeUSD)
	p.ledger.DistributeSwapLoss(poolID,
		data.TokenIn, amountIn.Sub(amountIn.Mul(pool.SwapFee)),
		data.TokenOut, amountOut)
}

// propagate refreshes the liquidity of every other pool listing the newly
// priced asset and records a virtual-swap checkpoint for each. Skipped for
// USD-stable assets, whose valuation never changes.
func (p *SwapProcessor) propagate(asset string, ev model.Event) {
	if p.registry.IsUSDStable(asset) {
		return
	}
	swapToken, ok := p.store.SwapToken(asset)
	if !ok {
		return
	}
	for _, poolID := range swapToken.PoolsList {
		p.valuator.RecomputeWithoutSnapshot(poolID)
		p.snapshots.VirtualSwapCheckpoint(poolID, ev.TxHash, ev.LogIndex, ev.Timestamp)
	}
}
