// Package store provides the key-addressed in-memory record store the
// engine derives state into. Loads return (value, ok); saves overwrite.
package store

import (
	"sort"

	"poolscope/internal/model"
)

// Store holds every derived record, keyed by the composite keys in
// internal/model. It is not safe for concurrent use; the engine processes
// one event at a time.
type Store struct {
	protocol    *model.Protocol
	pools       map[string]*model.Pool
	poolTokens  map[string]*model.PoolToken
	poolShares  map[string]*model.PoolShare
	shareLosses map[string]*model.PoolShareLoss
	swapTokens  map[string]*model.SwapToken
	swapPairs   map[string]*model.SwapPair

	latestPrices map[string]*model.LatestPrice
	tokenPrices  map[string]*model.TokenPrice
	historical   map[string]*model.PoolHistoricalLiquidity
	snapshots    map[string]*model.PoolSnapshot
	virtualSwaps map[string]*model.VirtualSwap
	swaps        map[string]*model.Swap
}

func New() *Store {
	return &Store{
		pools:        make(map[string]*model.Pool),
		poolTokens:   make(map[string]*model.PoolToken),
		poolShares:   make(map[string]*model.PoolShare),
		shareLosses:  make(map[string]*model.PoolShareLoss),
		swapTokens:   make(map[string]*model.SwapToken),
		swapPairs:    make(map[string]*model.SwapPair),
		latestPrices: make(map[string]*model.LatestPrice),
		tokenPrices:  make(map[string]*model.TokenPrice),
		historical:   make(map[string]*model.PoolHistoricalLiquidity),
		snapshots:    make(map[string]*model.PoolSnapshot),
		virtualSwaps: make(map[string]*model.VirtualSwap),
		swaps:        make(map[string]*model.Swap),
	}
}

// Protocol returns the process-wide singleton, creating it on first access.
func (s *Store) Protocol() *model.Protocol {
	if s.protocol == nil {
		s.protocol = &model.Protocol{ID: model.ProtocolID}
	}
	return s.protocol
}

func (s *Store) Pool(id string) (*model.Pool, bool) {
	p, ok := s.pools[id]
	return p, ok
}

func (s *Store) SavePool(p *model.Pool) { s.pools[p.ID] = p }

func (s *Store) PoolToken(id string) (*model.PoolToken, bool) {
	t, ok := s.poolTokens[id]
	return t, ok
}

func (s *Store) SavePoolToken(t *model.PoolToken) { s.poolTokens[t.ID] = t }

func (s *Store) DeletePoolToken(id string) { delete(s.poolTokens, id) }

func (s *Store) PoolShare(id string) (*model.PoolShare, bool) {
	sh, ok := s.poolShares[id]
	return sh, ok
}

func (s *Store) SavePoolShare(sh *model.PoolShare) { s.poolShares[sh.ID] = sh }

func (s *Store) ShareLoss(id string) (*model.PoolShareLoss, bool) {
	l, ok := s.shareLosses[id]
	return l, ok
}

func (s *Store) SaveShareLoss(l *model.PoolShareLoss) { s.shareLosses[l.ID] = l }

func (s *Store) SwapToken(id string) (*model.SwapToken, bool) {
	t, ok := s.swapTokens[id]
	return t, ok
}

func (s *Store) SaveSwapToken(t *model.SwapToken) { s.swapTokens[t.ID] = t }

func (s *Store) SwapPair(id string) (*model.SwapPair, bool) {
	p, ok := s.swapPairs[id]
	return p, ok
}

func (s *Store) SaveSwapPair(p *model.SwapPair) { s.swapPairs[p.ID] = p }

func (s *Store) LatestPrice(id string) (*model.LatestPrice, bool) {
	lp, ok := s.latestPrices[id]
	return lp, ok
}

func (s *Store) SaveLatestPrice(lp *model.LatestPrice) { s.latestPrices[lp.ID] = lp }

func (s *Store) TokenPrice(id string) (*model.TokenPrice, bool) {
	tp, ok := s.tokenPrices[id]
	return tp, ok
}

func (s *Store) SaveTokenPrice(tp *model.TokenPrice) { s.tokenPrices[tp.ID] = tp }

func (s *Store) HistoricalLiquidity(id string) (*model.PoolHistoricalLiquidity, bool) {
	h, ok := s.historical[id]
	return h, ok
}

func (s *Store) SaveHistoricalLiquidity(h *model.PoolHistoricalLiquidity) {
	s.historical[h.ID] = h
}

func (s *Store) Snapshot(id string) (*model.PoolSnapshot, bool) {
	sn, ok := s.snapshots[id]
	return sn, ok
}

func (s *Store) SaveSnapshot(sn *model.PoolSnapshot) { s.snapshots[sn.ID] = sn }

func (s *Store) VirtualSwap(id string) (*model.VirtualSwap, bool) {
	v, ok := s.virtualSwaps[id]
	return v, ok
}

func (s *Store) SaveVirtualSwap(v *model.VirtualSwap) { s.virtualSwaps[v.ID] = v }

func (s *Store) Swap(id string) (*model.Swap, bool) {
	sw, ok := s.swaps[id]
	return sw, ok
}

func (s *Store) SaveSwap(sw *model.Swap) { s.swaps[sw.ID] = sw }

// Iteration helpers return records sorted by key so downstream writes are
// deterministic.

func (s *Store) Pools() []*model.Pool {
	return sortedValues(s.pools)
}

func (s *Store) PoolTokens() []*model.PoolToken {
	return sortedValues(s.poolTokens)
}

func (s *Store) PoolShares() []*model.PoolShare {
	return sortedValues(s.poolShares)
}

func (s *Store) ShareLosses() []*model.PoolShareLoss {
	return sortedValues(s.shareLosses)
}

func (s *Store) SwapTokens() []*model.SwapToken {
	return sortedValues(s.swapTokens)
}

func (s *Store) SwapPairs() []*model.SwapPair {
	return sortedValues(s.swapPairs)
}

func (s *Store) LatestPrices() []*model.LatestPrice {
	return sortedValues(s.latestPrices)
}

func (s *Store) TokenPrices() []*model.TokenPrice {
	return sortedValues(s.tokenPrices)
}

func (s *Store) HistoricalLiquidities() []*model.PoolHistoricalLiquidity {
	return sortedValues(s.historical)
}

func (s *Store) Snapshots() []*model.PoolSnapshot {
	return sortedValues(s.snapshots)
}

func (s *Store) VirtualSwaps() []*model.VirtualSwap {
	return sortedValues(s.virtualSwaps)
}

func (s *Store) Swaps() []*model.Swap {
	return sortedValues(s.swaps)
}

func sortedValues[T any](m map[string]*T) []*T {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}
