package engine

import (
	"go.uber.org/zap"

	"poolscope/internal/model"
	"poolscope/internal/store"
)

// Lifecycle applies pool creation, token bind/unbind, join/exit, fee-rate,
// finalize, and public-swap events.
type Lifecycle struct {
	store     *store.Store
	registry  *Registry
	oracle    *Oracle
	valuator  *Valuator
	snapshots *Snapshots
	logger    *zap.Logger
}

func NewLifecycle(st *store.Store, registry *Registry, oracle *Oracle, valuator *Valuator, snapshots *Snapshots, logger *zap.Logger) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{
		store:     st,
		registry:  registry,
		oracle:    oracle,
		valuator:  valuator,
		snapshots: snapshots,
		logger:    logger,
	}
}

// ApplyPoolCreated registers a new pool and bumps the protocol counters.
func (l *Lifecycle) ApplyPoolCreated(ev model.Event, data model.PoolCreatedData) {
	protocol := l.store.Protocol()

	pool := &model.Pool{
		ID:         data.Pool,
		Controller: data.Controller,
		Crp:        data.Crp,
		Active:     true,
		CreateTime: ev.Timestamp,
	}
	l.store.SavePool(pool)

	protocol.PoolCount++
	if data.Crp {
		protocol.CrpCount++
	}
}

// ApplyTokenBound binds or re-binds a token: creates the PoolToken on first
// bind, adjusts the pool's total weight by the weight delta, registers the
// pool on the token's cross-pool rollup, and sets the token balance. A bind
// to a zero balance deactivates the pool.
func (l *Lifecycle) ApplyTokenBound(ev model.Event, data model.TokenBoundData) {
	pool, ok := l.store.Pool(ev.Address)
	if !ok {
		l.logger.Warn("bind for unknown pool", zap.String("pool", ev.Address))
		return
	}

	weight, err := feeRate(data.Weight)
	if err != nil {
		l.logger.Warn("bad bind weight", zap.String("pool", pool.ID), zap.Error(err))
		return
	}

	poolTokenID := model.PoolTokenKey(pool.ID, data.Token)
	pt, havePT := l.store.PoolToken(poolTokenID)

	decimals := data.Decimals
	if havePT {
		decimals = pt.Decimals
	} else if decimals == 0 {
		// Decoder metadata enrichment was off or failed upstream.
		l.logger.Warn("bind without token decimals, assuming 18",
			zap.String("pool", pool.ID), zap.String("token", data.Token))
		decimals = 18
	}

	// Validate before touching the pool; a bad balance must not leave a
	// phantom entry in the token list.
	balance, err := tokenAmount(data.Balance, decimals)
	if err != nil {
		l.logger.Warn("bad bind balance", zap.String("pool", pool.ID), zap.Error(err))
		return
	}

	if !havePT {
		pt = &model.PoolToken{
			ID:       poolTokenID,
			PoolID:   pool.ID,
			Address:  data.Token,
			Symbol:   data.Symbol,
			Name:     data.Name,
			Decimals: decimals,
		}
		pool.TotalWeight = pool.TotalWeight.Add(weight)
	} else {
		pool.TotalWeight = pool.TotalWeight.Add(weight.Sub(pt.DenormWeight))
	}
	pool.AddToken(data.Token)

	swapToken, ok := l.store.SwapToken(data.Token)
	if !ok {
		swapToken = &model.SwapToken{ID: data.Token}
	}
	swapToken.AddPool(pool.ID)
	l.store.SaveSwapToken(swapToken)

	pt.Balance = balance
	pt.DenormWeight = weight
	l.store.SavePoolToken(pt)

	if balance.IsZero() {
		deactivatePool(l.store, pool)
	}
	l.store.SavePool(pool)

	l.repriceFromPoolAssets(pool, ev, true)
}

// ApplyTokenUnbound removes a token from the pool. If no remaining
// constituent holds a nonzero balance the pool is deactivated.
func (l *Lifecycle) ApplyTokenUnbound(ev model.Event, data model.TokenUnboundData) {
	pool, ok := l.store.Pool(ev.Address)
	if !ok {
		l.logger.Warn("unbind for unknown pool", zap.String("pool", ev.Address))
		return
	}

	poolTokenID := model.PoolTokenKey(pool.ID, data.Token)
	pt, ok := l.store.PoolToken(poolTokenID)
	if !ok {
		l.logger.Warn("unbind for unknown token", zap.String("pool", pool.ID), zap.String("token", data.Token))
		return
	}

	pool.RemoveToken(data.Token)
	pool.TotalWeight = pool.TotalWeight.Sub(pt.DenormWeight)
	l.store.DeletePoolToken(poolTokenID)

	if swapToken, ok := l.store.SwapToken(data.Token); ok {
		swapToken.RemovePool(pool.ID)
		l.store.SaveSwapToken(swapToken)
	}

	if !l.hasFundedToken(pool) {
		deactivatePool(l.store, pool)
	}
	l.store.SavePool(pool)

	l.repriceFromPoolAssets(pool, ev, true)
}

// ApplyJoin adds deposited tokens to the pool balance and accumulates the
// deposit's USD value into the pool's add volume.
func (l *Lifecycle) ApplyJoin(ev model.Event, data model.PoolJoinedData) {
	pool, ok := l.store.Pool(ev.Address)
	if !ok {
		l.logger.Warn("join for unknown pool", zap.String("pool", ev.Address))
		return
	}
	pt, ok := l.store.PoolToken(model.PoolTokenKey(pool.ID, data.Token))
	if !ok {
		l.logger.Warn("join for unknown token", zap.String("pool", pool.ID), zap.String("token", data.Token))
		return
	}

	amount, err := tokenAmount(data.Amount, pt.Decimals)
	if err != nil {
		l.logger.Warn("bad join amount", zap.String("pool", pool.ID), zap.Error(err))
		return
	}
	pt.Balance = pt.Balance.Add(amount)
	l.store.SavePoolToken(pt)

	pool.JoinsCount++
	l.store.SavePool(pool)

	l.repriceFromPoolAssets(pool, ev, false)

	value, _ := l.oracle.ValueInUSD(amount, data.Token)
	pool.TotalAddVolume = pool.TotalAddVolume.Add(value)
	l.store.SavePool(pool)
}

// ApplyExit removes withdrawn tokens from the pool balance, deactivating the
// pool if the balance hits exactly zero, and accumulates the withdrawal's
// USD value.
func (l *Lifecycle) ApplyExit(ev model.Event, data model.PoolExitedData) {
	pool, ok := l.store.Pool(ev.Address)
	if !ok {
		l.logger.Warn("exit for unknown pool", zap.String("pool", ev.Address))
		return
	}
	pt, ok := l.store.PoolToken(model.PoolTokenKey(pool.ID, data.Token))
	if !ok {
		l.logger.Warn("exit for unknown token", zap.String("pool", pool.ID), zap.String("token", data.Token))
		return
	}

	amount, err := tokenAmount(data.Amount, pt.Decimals)
	if err != nil {
		l.logger.Warn("bad exit amount", zap.String("pool", pool.ID), zap.Error(err))
		return
	}
	pt.Balance = pt.Balance.Sub(amount)
	l.store.SavePoolToken(pt)

	if pt.Balance.IsZero() {
		deactivatePool(l.store, pool)
	}
	pool.ExitsCount++
	l.store.SavePool(pool)

	l.repriceFromPoolAssets(pool, ev, false)

	value, _ := l.oracle.ValueInUSD(amount, data.Token)
	pool.TotalWithdrawVolume = pool.TotalWithdrawVolume.Add(value)
	l.store.SavePool(pool)
}

// ApplyFeeRateChanged updates the swap or protocol fee rate and keeps
// netFee = swapFee - protocolFee.
func (l *Lifecycle) ApplyFeeRateChanged(ev model.Event, data model.FeeRateChangedData) {
	pool, ok := l.store.Pool(ev.Address)
	if !ok {
		l.logger.Warn("fee change for unknown pool", zap.String("pool", ev.Address))
		return
	}

	if data.SwapFee != "" {
		rate, err := feeRate(data.SwapFee)
		if err != nil {
			l.logger.Warn("bad swap fee", zap.String("pool", pool.ID), zap.Error(err))
			return
		}
		pool.SwapFee = rate
	}
	if data.ProtocolFee != "" {
		rate, err := feeRate(data.ProtocolFee)
		if err != nil {
			l.logger.Warn("bad protocol fee", zap.String("pool", pool.ID), zap.Error(err))
			return
		}
		pool.ProtocolFee = rate
	}
	pool.NetFee = pool.SwapFee.Sub(pool.ProtocolFee)
	l.store.SavePool(pool)
}

// ApplyPoolFinalized marks the pool finalized and publicly swappable. If the
// pool has never been valued, a valuation is attempted from its pricing
// assets.
func (l *Lifecycle) ApplyPoolFinalized(ev model.Event) {
	pool, ok := l.store.Pool(ev.Address)
	if !ok {
		l.logger.Warn("finalize for unknown pool", zap.String("pool", ev.Address))
		return
	}

	pool.Finalized = true
	pool.PublicSwap = true
	l.store.SavePool(pool)

	protocol := l.store.Protocol()
	protocol.FinalizedPoolCount++

	if pool.Liquidity.IsZero() {
		l.repriceFromPoolAssets(pool, ev, true)
	}
}

// ApplyPublicSwapSet toggles the public-swap flag, valuing the pool on first
// enable if it has never been valued.
func (l *Lifecycle) ApplyPublicSwapSet(ev model.Event, data model.PublicSwapSetData) {
	pool, ok := l.store.Pool(ev.Address)
	if !ok {
		l.logger.Warn("public-swap change for unknown pool", zap.String("pool", ev.Address))
		return
	}

	pool.PublicSwap = data.Enabled
	l.store.SavePool(pool)

	if pool.Liquidity.IsZero() {
		l.repriceFromPoolAssets(pool, ev, true)
	}
}

// repriceFromPoolAssets recomputes pool liquidity against the first
// constituent token that is a pricing asset, optionally recording a
// virtual-swap checkpoint.
func (l *Lifecycle) repriceFromPoolAssets(pool *model.Pool, ev model.Event, withCheckpoint bool) {
	for _, token := range pool.TokensList {
		if !l.registry.IsPricingAsset(token) {
			continue
		}
		l.valuator.RecomputePoolLiquidity(pool.ID, token, ev.BlockNumber)
		if withCheckpoint {
			l.snapshots.VirtualSwapCheckpoint(pool.ID, ev.TxHash, ev.LogIndex, ev.Timestamp)
		}
		break
	}
}

func (l *Lifecycle) hasFundedToken(pool *model.Pool) bool {
	for _, token := range pool.TokensList {
		if pt, ok := l.store.PoolToken(model.PoolTokenKey(pool.ID, token)); ok && pt.Balance.IsPositive() {
			return true
		}
	}
	return false
}

// deactivatePool retires an active pool and decrements the protocol
// counters. Guarded so repeated triggers decrement exactly once.
func deactivatePool(st *store.Store, pool *model.Pool) {
	if !pool.Active {
		return
	}
	protocol := st.Protocol()
	protocol.PoolCount--
	if pool.Finalized {
		protocol.FinalizedPoolCount--
	}
	if pool.Crp {
		protocol.CrpCount--
	}
	pool.Active = false
}
