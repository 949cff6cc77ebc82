package engine

import (
	"testing"

	"github.com/shopspring/decimal"

	"poolscope/internal/model"
)

// sharesSum adds every holder's balance for a pool.
func sharesSum(t *testing.T, e *Engine, poolID string) decimal.Decimal {
	t.Helper()
	pool, ok := e.Store().Pool(poolID)
	if !ok {
		t.Fatalf("pool %s missing", poolID)
	}
	sum := decimal.Decimal{}
	for _, holder := range pool.LiquidityProviders {
		if share, ok := e.Store().PoolShare(model.PoolShareKey(poolID, holder)); ok {
			sum = sum.Add(share.Balance)
		}
	}
	return sum
}

func TestMintBurnTransferSharesSum(t *testing.T) {
	e := newTestEngine(t)
	setupPool(t, e)

	apply(t, e, model.EventSharesMinted, 4, 0, poolAddr, model.ShareTransferData{To: holderOne, Amount: raw(100)})
	apply(t, e, model.EventSharesMinted, 4, 1, poolAddr, model.ShareTransferData{To: holderTwo, Amount: raw(50)})
	apply(t, e, model.EventSharesTransferred, 5, 0, poolAddr, model.ShareTransferData{From: holderOne, To: holderTwo, Amount: raw(25)})
	apply(t, e, model.EventSharesBurned, 6, 0, poolAddr, model.ShareTransferData{From: holderTwo, Amount: raw(40)})

	pool, _ := e.Store().Pool(poolAddr)
	if !pool.TotalShares.Equal(dec(110)) {
		t.Fatalf("total shares = %s, want 110", pool.TotalShares)
	}
	if !sharesSum(t, e, poolAddr).Equal(pool.TotalShares) {
		t.Fatalf("holder balances do not sum to total shares")
	}
	if pool.HoldersCount != 2 {
		t.Fatalf("holders = %d, want 2", pool.HoldersCount)
	}
}

func TestHoldersCountTransitions(t *testing.T) {
	e := newTestEngine(t)
	setupPool(t, e)

	apply(t, e, model.EventSharesMinted, 4, 0, poolAddr, model.ShareTransferData{To: holderOne, Amount: raw(100)})
	pool, _ := e.Store().Pool(poolAddr)
	if pool.HoldersCount != 1 {
		t.Fatalf("holders after mint = %d, want 1", pool.HoldersCount)
	}

	// Full exit: the holder count drops but the share record stays.
	apply(t, e, model.EventSharesBurned, 5, 0, poolAddr, model.ShareTransferData{From: holderOne, Amount: raw(100)})
	pool, _ = e.Store().Pool(poolAddr)
	if pool.HoldersCount != 0 {
		t.Fatalf("holders after burn = %d, want 0", pool.HoldersCount)
	}
	share, ok := e.Store().PoolShare(model.PoolShareKey(poolAddr, holderOne))
	if !ok {
		t.Fatalf("dormant share must be retained")
	}
	if !share.Balance.IsZero() {
		t.Fatalf("dormant share balance = %s, want 0", share.Balance)
	}
	if len(pool.LiquidityProviders) != 1 {
		t.Fatalf("provider list must keep dormant holders")
	}

	// Returning provider: same record resumes.
	apply(t, e, model.EventSharesMinted, 6, 0, poolAddr, model.ShareTransferData{To: holderOne, Amount: raw(10)})
	pool, _ = e.Store().Pool(poolAddr)
	if pool.HoldersCount != 1 || len(pool.LiquidityProviders) != 1 {
		t.Fatalf("returning provider: holders=%d providers=%d", pool.HoldersCount, len(pool.LiquidityProviders))
	}
}

func TestDistributeSwapFeePropRata(t *testing.T) {
	e := newTestEngine(t)
	setupPool(t, e)

	apply(t, e, model.EventSharesMinted, 4, 0, poolAddr, model.ShareTransferData{To: holderOne, Amount: raw(75)})
	apply(t, e, model.EventSharesMinted, 4, 1, poolAddr, model.ShareTransferData{To: holderTwo, Amount: raw(25)})

	e.ledger.DistributeSwapFee(poolAddr, dec(4))

	shareOne, _ := e.Store().PoolShare(model.PoolShareKey(poolAddr, holderOne))
	shareTwo, _ := e.Store().PoolShare(model.PoolShareKey(poolAddr, holderTwo))
	if !shareOne.SwapFee.Equal(dec(3)) {
		t.Fatalf("holder one fee = %s, want 3", shareOne.SwapFee)
	}
	if !shareTwo.SwapFee.Equal(dec(1)) {
		t.Fatalf("holder two fee = %s, want 1", shareTwo.SwapFee)
	}

	// Fee conservation: distributed credits sum to the input.
	if !shareOne.SwapFee.Add(shareTwo.SwapFee).Equal(dec(4)) {
		t.Fatalf("fee not conserved")
	}
}

func TestDistributeSwapFeeSkipsDormantHolders(t *testing.T) {
	e := newTestEngine(t)
	setupPool(t, e)

	apply(t, e, model.EventSharesMinted, 4, 0, poolAddr, model.ShareTransferData{To: holderOne, Amount: raw(100)})
	apply(t, e, model.EventSharesMinted, 4, 1, poolAddr, model.ShareTransferData{To: holderTwo, Amount: raw(100)})
	apply(t, e, model.EventSharesBurned, 5, 0, poolAddr, model.ShareTransferData{From: holderTwo, Amount: raw(100)})

	e.ledger.DistributeSwapFee(poolAddr, dec(10))

	shareTwo, _ := e.Store().PoolShare(model.PoolShareKey(poolAddr, holderTwo))
	if !shareTwo.SwapFee.IsZero() {
		t.Fatalf("dormant holder received fees: %s", shareTwo.SwapFee)
	}
}

func TestBurnClearsProportionalFeeCredit(t *testing.T) {
	e := newTestEngine(t)
	setupPool(t, e)

	apply(t, e, model.EventSharesMinted, 4, 0, poolAddr, model.ShareTransferData{To: holderOne, Amount: raw(100)})
	e.ledger.DistributeSwapFee(poolAddr, dec(8))

	apply(t, e, model.EventSharesBurned, 5, 0, poolAddr, model.ShareTransferData{From: holderOne, Amount: raw(50)})

	share, _ := e.Store().PoolShare(model.PoolShareKey(poolAddr, holderOne))
	if !share.SwapFee.Equal(dec(4)) {
		t.Fatalf("fee after half burn = %s, want 4", share.SwapFee)
	}
}

func TestBurnZeroPriorBalanceClearsEverything(t *testing.T) {
	e := newTestEngine(t)
	setupPool(t, e)

	apply(t, e, model.EventSharesMinted, 4, 0, poolAddr, model.ShareTransferData{To: holderOne, Amount: raw(100)})
	apply(t, e, model.EventSharesBurned, 5, 0, poolAddr, model.ShareTransferData{From: holderOne, Amount: raw(100)})

	share, _ := e.Store().PoolShare(model.PoolShareKey(poolAddr, holderOne))
	share.SwapFee = dec(5)
	e.Store().SavePoolShare(share)

	// A burn observed against an already-zero balance uses ratio 1.
	apply(t, e, model.EventSharesBurned, 6, 0, poolAddr, model.ShareTransferData{From: holderOne, Amount: raw(0)})

	share, _ = e.Store().PoolShare(model.PoolShareKey(poolAddr, holderOne))
	if !share.SwapFee.IsZero() {
		t.Fatalf("fee after ratio-1 burn = %s, want 0", share.SwapFee)
	}
}

func TestTransferMovesFeeCreditAndLoss(t *testing.T) {
	e := newTestEngine(t)
	setupPool(t, e)

	apply(t, e, model.EventSharesMinted, 4, 0, poolAddr, model.ShareTransferData{To: holderOne, Amount: raw(100)})
	e.ledger.DistributeSwapFee(poolAddr, dec(10))
	e.ledger.DistributeSwapLoss(poolAddr, tokenA, dec(99), usdx, dec(10))

	apply(t, e, model.EventSharesTransferred, 5, 0, poolAddr, model.ShareTransferData{From: holderOne, To: holderTwo, Amount: raw(60)})

	shareOne, _ := e.Store().PoolShare(model.PoolShareKey(poolAddr, holderOne))
	shareTwo, _ := e.Store().PoolShare(model.PoolShareKey(poolAddr, holderTwo))
	if !shareOne.SwapFee.Equal(dec(4)) || !shareTwo.SwapFee.Equal(dec(6)) {
		t.Fatalf("fee split = %s / %s, want 4 / 6", shareOne.SwapFee, shareTwo.SwapFee)
	}

	lossOne, _ := e.Store().ShareLoss(model.ShareLossKey(shareOne.ID, tokenA))
	lossTwo, _ := e.Store().ShareLoss(model.ShareLossKey(shareTwo.ID, tokenA))
	if !lossOne.Balance.Add(lossTwo.Balance).Equal(dec(99)) {
		t.Fatalf("loss not conserved across transfer: %s + %s", lossOne.Balance, lossTwo.Balance)
	}
	want := dec(99).Mul(dec(60)).Div(dec(100))
	if !lossTwo.Balance.Equal(want) {
		t.Fatalf("moved loss = %s, want %s", lossTwo.Balance, want)
	}
}

func TestSelfTransferKeepsSharesInvariant(t *testing.T) {
	e := newTestEngine(t)
	setupPool(t, e)

	apply(t, e, model.EventSharesMinted, 4, 0, poolAddr, model.ShareTransferData{To: holderOne, Amount: raw(100)})
	e.ledger.DistributeSwapFee(poolAddr, dec(10))

	apply(t, e, model.EventSharesTransferred, 5, 0, poolAddr, model.ShareTransferData{From: holderOne, To: holderOne, Amount: raw(25)})

	pool, _ := e.Store().Pool(poolAddr)
	share, _ := e.Store().PoolShare(model.PoolShareKey(poolAddr, holderOne))
	if !share.Balance.Equal(dec(100)) {
		t.Fatalf("balance after self-transfer = %s, want 100", share.Balance)
	}
	if !pool.TotalShares.Equal(dec(100)) {
		t.Fatalf("total shares = %s, want 100", pool.TotalShares)
	}
	if !sharesSum(t, e, poolAddr).Equal(pool.TotalShares) {
		t.Fatalf("holder balances do not sum to total shares")
	}
	if !share.SwapFee.Equal(dec(10)) {
		t.Fatalf("fee credit after self-transfer = %s, want 10", share.SwapFee)
	}
	if pool.HoldersCount != 1 {
		t.Fatalf("holders = %d, want 1", pool.HoldersCount)
	}
}

func TestDistributeSwapLossSignedBalances(t *testing.T) {
	e := newTestEngine(t)
	setupPool(t, e)

	apply(t, e, model.EventSharesMinted, 4, 0, poolAddr, model.ShareTransferData{To: holderOne, Amount: raw(100)})

	e.ledger.DistributeSwapLoss(poolAddr, tokenA, dec(99), usdx, dec(10))

	shareID := model.PoolShareKey(poolAddr, holderOne)
	lossIn, _ := e.Store().ShareLoss(model.ShareLossKey(shareID, tokenA))
	lossOut, _ := e.Store().ShareLoss(model.ShareLossKey(shareID, usdx))
	if !lossIn.Balance.Equal(dec(99)) {
		t.Fatalf("tokenIn loss = %s, want 99", lossIn.Balance)
	}
	if !lossOut.Balance.Equal(dec(-10)) {
		t.Fatalf("tokenOut loss = %s, want -10", lossOut.Balance)
	}

	// usdx is a pricing asset, so the USD figure was revalued. tokenA has
	// no price yet and contributes zero.
	share, _ := e.Store().PoolShare(shareID)
	if !share.Loss.Equal(dec(-10)) {
		t.Fatalf("loss USD = %s, want -10", share.Loss)
	}
}
