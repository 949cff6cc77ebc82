package engine

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"poolscope/internal/model"
	"poolscope/internal/store"
)

// ShareLedger tracks per-holder share balances and distributes swap fees and
// impermanent loss across them in proportion to balance.
//
// Invariant: after any mutation, the sum of PoolShare.Balance over a pool's
// holders equals Pool.TotalShares.
type ShareLedger struct {
	store    *store.Store
	registry *Registry
	oracle   *Oracle
	logger   *zap.Logger
}

func NewShareLedger(st *store.Store, registry *Registry, oracle *Oracle, logger *zap.Logger) *ShareLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShareLedger{store: st, registry: registry, oracle: oracle, logger: logger}
}

// DistributeSwapFee credits netFeeUSD across all holders pro rata by share
// balance. Holders with zero balance receive nothing. O(holders) per swap;
// holder counts per pool are small in this domain.
func (l *ShareLedger) DistributeSwapFee(poolID string, netFeeUSD decimal.Decimal) {
	if netFeeUSD.IsZero() {
		return
	}
	pool, ok := l.store.Pool(poolID)
	if !ok || pool.TotalShares.IsZero() {
		return
	}

	for _, holder := range pool.LiquidityProviders {
		share, ok := l.store.PoolShare(model.PoolShareKey(poolID, holder))
		if !ok || share.Balance.IsZero() {
			continue
		}
		share.SwapFee = share.SwapFee.Add(netFeeUSD.Mul(share.Balance).Div(pool.TotalShares))
		l.store.SavePoolShare(share)
	}
}

// DistributeSwapLoss accumulates each holder's pro-rata token flow from one
// swap: amountIn increases the (share, tokenIn) loss record, amountOut
// decreases the (share, tokenOut) record. Loss records are created lazily.
// If either swap side is a pricing asset the holder's USD loss figure is
// revalued, preferring the tokenIn side.
func (l *ShareLedger) DistributeSwapLoss(poolID string, tokenIn string, amountIn decimal.Decimal, tokenOut string, amountOut decimal.Decimal) {
	pool, ok := l.store.Pool(poolID)
	if !ok || pool.TotalShares.IsZero() {
		return
	}

	for _, holder := range pool.LiquidityProviders {
		shareID := model.PoolShareKey(poolID, holder)
		share, ok := l.store.PoolShare(shareID)
		if !ok || share.Balance.IsZero() {
			continue
		}

		lossIn := l.getOrCreateLoss(poolID, shareID, holder, tokenIn)
		lossIn.Balance = lossIn.Balance.Add(amountIn.Mul(share.Balance).Div(pool.TotalShares))
		l.store.SaveShareLoss(lossIn)

		lossOut := l.getOrCreateLoss(poolID, shareID, holder, tokenOut)
		lossOut.Balance = lossOut.Balance.Sub(amountOut.Mul(share.Balance).Div(pool.TotalShares))
		l.store.SaveShareLoss(lossOut)

		if l.registry.IsPricingAsset(tokenIn) || l.registry.IsPricingAsset(tokenOut) {
			l.revalueLossUSD(pool, shareID)
		}
	}
}

// revalueLossUSD recomputes a share's aggregate USD loss as the sum of its
// per-token loss balances valued by the oracle. Unpriced tokens contribute
// zero; the figure is an approximation until every constituent has traded
// against a pricing asset.
func (l *ShareLedger) revalueLossUSD(pool *model.Pool, shareID string) {
	share, ok := l.store.PoolShare(shareID)
	if !ok {
		return
	}

	lossUSD := decimal.Decimal{}
	for _, token := range pool.TokensList {
		loss, ok := l.store.ShareLoss(model.ShareLossKey(shareID, token))
		if !ok {
			continue
		}
		value, _ := l.oracle.ValueInUSD(loss.Balance, token)
		lossUSD = lossUSD.Add(value)
	}
	share.Loss = lossUSD
	l.store.SavePoolShare(share)
}

// transferLoss moves fraction ratio of every per-token loss balance out of
// fromShareID. With a destination the moved loss is added there; on a burn
// (empty toShareID) it is discarded. Both endpoints are then revalued if the
// pool holds any pricing asset.
func (l *ShareLedger) transferLoss(pool *model.Pool, fromShareID string, ratio decimal.Decimal, toShareID string) {
	if _, ok := l.store.PoolShare(fromShareID); !ok {
		return
	}

	for _, token := range pool.TokensList {
		lossFrom, ok := l.store.ShareLoss(model.ShareLossKey(fromShareID, token))
		if !ok {
			continue
		}
		moved := lossFrom.Balance.Mul(ratio)
		lossFrom.Balance = lossFrom.Balance.Sub(moved)
		l.store.SaveShareLoss(lossFrom)

		if toShareID == "" {
			continue
		}
		shareTo, ok := l.store.PoolShare(toShareID)
		if !ok {
			continue
		}
		lossTo := l.getOrCreateLoss(pool.ID, toShareID, shareTo.Holder, token)
		lossTo.Balance = lossTo.Balance.Add(moved)
		l.store.SaveShareLoss(lossTo)
	}

	for _, token := range pool.TokensList {
		if l.registry.IsPricingAsset(token) {
			l.revalueLossUSD(pool, fromShareID)
			if toShareID != "" {
				l.revalueLossUSD(pool, toShareID)
			}
			break
		}
	}
}

// ApplyMint credits newly minted shares to a holder and grows
// Pool.TotalShares by the same amount.
func (l *ShareLedger) ApplyMint(poolID, holder string, amount decimal.Decimal) {
	pool, ok := l.store.Pool(poolID)
	if !ok {
		l.logger.Warn("mint for unknown pool", zap.String("pool", poolID))
		return
	}

	share := l.getOrCreateShare(pool, holder)
	priorBalance := share.Balance
	share.Balance = share.Balance.Add(amount)
	l.store.SavePoolShare(share)

	pool.TotalShares = pool.TotalShares.Add(amount)
	if priorBalance.IsZero() && !share.Balance.IsZero() {
		pool.HoldersCount++
	}
	l.store.SavePool(pool)
}

// ApplyBurn removes shares from a holder, burning the proportional slice of
// accrued fee credit and loss history, and shrinks Pool.TotalShares. A burn
// against a zero prior balance uses ratio 1: the fee credit and loss are
// fully cleared.
func (l *ShareLedger) ApplyBurn(poolID, holder string, amount decimal.Decimal) {
	pool, ok := l.store.Pool(poolID)
	if !ok {
		l.logger.Warn("burn for unknown pool", zap.String("pool", poolID))
		return
	}

	share := l.getOrCreateShare(pool, holder)
	priorBalance := share.Balance

	ratio := decimal.NewFromInt(1)
	if priorBalance.IsPositive() {
		ratio = amount.Div(priorBalance)
	}
	share.SwapFee = share.SwapFee.Sub(share.SwapFee.Mul(ratio))
	l.transferLoss(pool, share.ID, ratio, "")

	share.Balance = priorBalance.Sub(amount)
	l.store.SavePoolShare(share)

	pool.TotalShares = pool.TotalShares.Sub(amount)
	if share.Balance.IsZero() && !priorBalance.IsZero() {
		pool.HoldersCount--
	}
	l.store.SavePool(pool)
}

// ApplyTransfer moves shares between holders. The proportional slice of fee
// credit and loss history travels with the shares; Pool.TotalShares is
// unchanged.
func (l *ShareLedger) ApplyTransfer(poolID, from, to string, amount decimal.Decimal) {
	pool, ok := l.store.Pool(poolID)
	if !ok {
		l.logger.Warn("transfer for unknown pool", zap.String("pool", poolID))
		return
	}

	// A self-transfer moves nothing; applying both legs to the one record
	// would re-add the amount on top of the undecremented balance.
	if from == to {
		l.getOrCreateShare(pool, from)
		l.store.SavePool(pool)
		return
	}

	shareFrom := l.getOrCreateShare(pool, from)
	shareTo := l.getOrCreateShare(pool, to)
	fromPrior := shareFrom.Balance
	toPrior := shareTo.Balance

	ratio := decimal.NewFromInt(1)
	if fromPrior.IsPositive() {
		ratio = amount.Div(fromPrior)
	}
	movedFee := shareFrom.SwapFee.Mul(ratio)

	shareFrom.SwapFee = shareFrom.SwapFee.Sub(movedFee)
	shareFrom.Balance = fromPrior.Sub(amount)
	l.store.SavePoolShare(shareFrom)

	shareTo.SwapFee = shareTo.SwapFee.Add(movedFee)
	shareTo.Balance = toPrior.Add(amount)
	l.store.SavePoolShare(shareTo)

	l.transferLoss(pool, shareFrom.ID, ratio, shareTo.ID)

	if toPrior.IsZero() && !shareTo.Balance.IsZero() {
		pool.HoldersCount++
	}
	if shareFrom.Balance.IsZero() && !fromPrior.IsZero() {
		pool.HoldersCount--
	}
	l.store.SavePool(pool)
}

// getOrCreateShare returns the holder's share, creating a dormant record and
// registering the holder as a liquidity provider on first reference. Shares
// are never deleted; a returning provider resumes its fee/loss history.
func (l *ShareLedger) getOrCreateShare(pool *model.Pool, holder string) *model.PoolShare {
	shareID := model.PoolShareKey(pool.ID, holder)
	if share, ok := l.store.PoolShare(shareID); ok {
		return share
	}
	share := &model.PoolShare{ID: shareID, PoolID: pool.ID, Holder: holder}
	l.store.SavePoolShare(share)
	pool.AddLiquidityProvider(holder)
	return share
}

func (l *ShareLedger) getOrCreateLoss(poolID, shareID, holder, token string) *model.PoolShareLoss {
	lossID := model.ShareLossKey(shareID, token)
	if loss, ok := l.store.ShareLoss(lossID); ok {
		return loss
	}
	return &model.PoolShareLoss{
		ID:      lossID,
		PoolID:  poolID,
		ShareID: shareID,
		Holder:  holder,
		Token:   token,
	}
}
