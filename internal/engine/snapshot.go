package engine

import (
	"github.com/shopspring/decimal"

	"poolscope/internal/model"
	"poolscope/internal/store"
)

// Snapshots maintains daily pool rollups and virtual-swap liquidity
// checkpoints.
type Snapshots struct {
	store *store.Store
}

func NewSnapshots(st *store.Store) *Snapshots {
	return &Snapshots{store: st}
}

// DailySnapshot creates the (pool, day) rollup if it does not exist yet,
// seeding token balances and total shares from current state and volume and
// fees at zero. An existing record for the day is left untouched; swaps
// accumulate into it via AccumulateSwap.
func (s *Snapshots) DailySnapshot(poolID string, timestamp uint64) {
	pool, ok := s.store.Pool(poolID)
	if !ok {
		return
	}

	day := model.DayBucket(timestamp)
	snapshotID := model.SnapshotKey(poolID, day)
	if _, ok := s.store.Snapshot(snapshotID); ok {
		return
	}

	tokens := make([]string, len(pool.TokensList))
	amounts := make([]decimal.Decimal, len(pool.TokensList))
	for i, token := range pool.TokensList {
		tokens[i] = token
		if pt, ok := s.store.PoolToken(model.PoolTokenKey(poolID, token)); ok {
			amounts[i] = pt.Balance
		}
	}

	s.store.SaveSnapshot(&model.PoolSnapshot{
		ID:          snapshotID,
		PoolID:      poolID,
		Tokens:      tokens,
		Amounts:     amounts,
		TotalShares: pool.TotalShares,
		Timestamp:   day,
	})
}

// AccumulateSwap adds one swap's volume and fees to the day's rollup. No-op
// when the day record is absent.
func (s *Snapshots) AccumulateSwap(poolID string, timestamp uint64, volume, fees decimal.Decimal) {
	snapshot, ok := s.store.Snapshot(model.SnapshotKey(poolID, model.DayBucket(timestamp)))
	if !ok {
		return
	}
	snapshot.SwapVolume = snapshot.SwapVolume.Add(volume)
	snapshot.SwapFees = snapshot.SwapFees.Add(fees)
	s.store.SaveSnapshot(snapshot)
}

// VirtualSwapCheckpoint records the pool's current liquidity under the
// deterministic (txHash, logIndex, pool) key, with a sort key that totally
// orders checkpoints within a block.
func (s *Snapshots) VirtualSwapCheckpoint(poolID, txHash string, logIndex, timestamp uint64) {
	pool, ok := s.store.Pool(poolID)
	if !ok {
		return
	}
	s.store.SaveVirtualSwap(&model.VirtualSwap{
		ID:                model.VirtualSwapKey(txHash, logIndex, poolID),
		PoolID:            poolID,
		PoolLiquidity:     pool.Liquidity,
		Timestamp:         timestamp,
		TimestampLogIndex: model.TimestampLogIndex(timestamp, logIndex),
	})
}
