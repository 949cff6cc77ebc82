// Package postgres persists the derived pool state. Every table is keyed by
// the same deterministic IDs the in-memory store uses, so replaying a range
// upserts the same rows instead of duplicating them.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolscope/internal/model"
	"poolscope/internal/store"
)

// Store provides Postgres persistence for derived state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Flush upserts the full derived state. Idempotent: flushing the same store
// twice writes the same rows.
func (s *Store) Flush(ctx context.Context, st *store.Store) error {
	if err := s.upsertProtocol(ctx, st.Protocol()); err != nil {
		return fmt.Errorf("flush protocol: %w", err)
	}
	if err := s.upsertPools(ctx, st.Pools()); err != nil {
		return fmt.Errorf("flush pools: %w", err)
	}
	if err := s.upsertPoolTokens(ctx, st.PoolTokens()); err != nil {
		return fmt.Errorf("flush pool tokens: %w", err)
	}
	if err := s.upsertPoolShares(ctx, st.PoolShares()); err != nil {
		return fmt.Errorf("flush pool shares: %w", err)
	}
	if err := s.upsertShareLosses(ctx, st.ShareLosses()); err != nil {
		return fmt.Errorf("flush share losses: %w", err)
	}
	if err := s.upsertSwapTokens(ctx, st.SwapTokens()); err != nil {
		return fmt.Errorf("flush swap tokens: %w", err)
	}
	if err := s.upsertSwapPairs(ctx, st.SwapPairs()); err != nil {
		return fmt.Errorf("flush swap pairs: %w", err)
	}
	if err := s.upsertLatestPrices(ctx, st.LatestPrices()); err != nil {
		return fmt.Errorf("flush latest prices: %w", err)
	}
	if err := s.upsertTokenPrices(ctx, st.TokenPrices()); err != nil {
		return fmt.Errorf("flush token prices: %w", err)
	}
	if err := s.upsertHistoricalLiquidity(ctx, st.HistoricalLiquidities()); err != nil {
		return fmt.Errorf("flush historical liquidity: %w", err)
	}
	if err := s.upsertSnapshots(ctx, st.Snapshots()); err != nil {
		return fmt.Errorf("flush snapshots: %w", err)
	}
	if err := s.upsertVirtualSwaps(ctx, st.VirtualSwaps()); err != nil {
		return fmt.Errorf("flush virtual swaps: %w", err)
	}
	if err := s.upsertSwaps(ctx, st.Swaps()); err != nil {
		return fmt.Errorf("flush swaps: %w", err)
	}
	return nil
}

func (s *Store) upsertProtocol(ctx context.Context, p *model.Protocol) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO protocol (
			id, pool_count, finalized_pool_count, crp_count, tx_count,
			total_liquidity, total_swap_volume, total_swap_fee,
			total_protocol_fee, total_net_fee, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())
		ON CONFLICT (id) DO UPDATE SET
			pool_count = EXCLUDED.pool_count,
			finalized_pool_count = EXCLUDED.finalized_pool_count,
			crp_count = EXCLUDED.crp_count,
			tx_count = EXCLUDED.tx_count,
			total_liquidity = EXCLUDED.total_liquidity,
			total_swap_volume = EXCLUDED.total_swap_volume,
			total_swap_fee = EXCLUDED.total_swap_fee,
			total_protocol_fee = EXCLUDED.total_protocol_fee,
			total_net_fee = EXCLUDED.total_net_fee,
			updated_at = now()
	`,
		p.ID, p.PoolCount, p.FinalizedPoolCount, p.CrpCount, p.TxCount,
		p.TotalLiquidity.String(), p.TotalSwapVolume.String(), p.TotalSwapFee.String(),
		p.TotalProtocolFee.String(), p.TotalNetFee.String(),
	)
	return err
}

func (s *Store) upsertPools(ctx context.Context, pools []*model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pools {
		batch.Queue(`
			INSERT INTO pools (
				id, controller, crp, public_swap, finalized, active,
				swap_fee, protocol_fee, net_fee,
				total_weight, total_shares, liquidity,
				total_swap_volume, total_swap_fee, total_protocol_fee, total_net_fee,
				total_add_volume, total_withdraw_volume,
				create_time, tokens_count, holders_count, joins_count, exits_count, swaps_count,
				tokens_list, liquidity_providers, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,now())
			ON CONFLICT (id) DO UPDATE SET
				controller = EXCLUDED.controller,
				crp = EXCLUDED.crp,
				public_swap = EXCLUDED.public_swap,
				finalized = EXCLUDED.finalized,
				active = EXCLUDED.active,
				swap_fee = EXCLUDED.swap_fee,
				protocol_fee = EXCLUDED.protocol_fee,
				net_fee = EXCLUDED.net_fee,
				total_weight = EXCLUDED.total_weight,
				total_shares = EXCLUDED.total_shares,
				liquidity = EXCLUDED.liquidity,
				total_swap_volume = EXCLUDED.total_swap_volume,
				total_swap_fee = EXCLUDED.total_swap_fee,
				total_protocol_fee = EXCLUDED.total_protocol_fee,
				total_net_fee = EXCLUDED.total_net_fee,
				total_add_volume = EXCLUDED.total_add_volume,
				total_withdraw_volume = EXCLUDED.total_withdraw_volume,
				create_time = EXCLUDED.create_time,
				tokens_count = EXCLUDED.tokens_count,
				holders_count = EXCLUDED.holders_count,
				joins_count = EXCLUDED.joins_count,
				exits_count = EXCLUDED.exits_count,
				swaps_count = EXCLUDED.swaps_count,
				tokens_list = EXCLUDED.tokens_list,
				liquidity_providers = EXCLUDED.liquidity_providers,
				updated_at = now()
		`,
			p.ID, p.Controller, p.Crp, p.PublicSwap, p.Finalized, p.Active,
			p.SwapFee.String(), p.ProtocolFee.String(), p.NetFee.String(),
			p.TotalWeight.String(), p.TotalShares.String(), p.Liquidity.String(),
			p.TotalSwapVolume.String(), p.TotalSwapFee.String(), p.TotalProtocolFee.String(), p.TotalNetFee.String(),
			p.TotalAddVolume.String(), p.TotalWithdrawVolume.String(),
			int64(p.CreateTime), int64(p.TokensCount), p.HoldersCount,
			int64(p.JoinsCount), int64(p.ExitsCount), int64(p.SwapsCount),
			p.TokensList, p.LiquidityProviders,
		)
	}
	return s.sendBatch(ctx, batch, len(pools))
}

func (s *Store) upsertPoolTokens(ctx context.Context, tokens []*model.PoolToken) error {
	if len(tokens) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range tokens {
		batch.Queue(`
			INSERT INTO pool_tokens (
				id, pool_id, address, symbol, name, decimals,
				balance, denorm_weight, liquidity, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now())
			ON CONFLICT (id) DO UPDATE SET
				symbol = EXCLUDED.symbol,
				name = EXCLUDED.name,
				decimals = EXCLUDED.decimals,
				balance = EXCLUDED.balance,
				denorm_weight = EXCLUDED.denorm_weight,
				liquidity = EXCLUDED.liquidity,
				updated_at = now()
		`,
			t.ID, t.PoolID, t.Address, t.Symbol, t.Name, t.Decimals,
			t.Balance.String(), t.DenormWeight.String(), t.Liquidity.String(),
		)
	}
	return s.sendBatch(ctx, batch, len(tokens))
}

func (s *Store) upsertPoolShares(ctx context.Context, shares []*model.PoolShare) error {
	if len(shares) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, sh := range shares {
		batch.Queue(`
			INSERT INTO pool_shares (
				id, pool_id, holder, balance, swap_fee, loss, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,now())
			ON CONFLICT (id) DO UPDATE SET
				balance = EXCLUDED.balance,
				swap_fee = EXCLUDED.swap_fee,
				loss = EXCLUDED.loss,
				updated_at = now()
		`,
			sh.ID, sh.PoolID, sh.Holder,
			sh.Balance.String(), sh.SwapFee.String(), sh.Loss.String(),
		)
	}
	return s.sendBatch(ctx, batch, len(shares))
}

func (s *Store) upsertShareLosses(ctx context.Context, losses []*model.PoolShareLoss) error {
	if len(losses) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, l := range losses {
		batch.Queue(`
			INSERT INTO pool_share_losses (
				id, pool_id, share_id, holder, token, balance, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,now())
			ON CONFLICT (id) DO UPDATE SET
				balance = EXCLUDED.balance,
				updated_at = now()
		`,
			l.ID, l.PoolID, l.ShareID, l.Holder, l.Token, l.Balance.String(),
		)
	}
	return s.sendBatch(ctx, batch, len(losses))
}

func (s *Store) upsertSwapTokens(ctx context.Context, tokens []*model.SwapToken) error {
	if len(tokens) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range tokens {
		batch.Queue(`
			INSERT INTO swap_tokens (id, liquidity, pools_list, updated_at)
			VALUES ($1,$2,$3,now())
			ON CONFLICT (id) DO UPDATE SET
				liquidity = EXCLUDED.liquidity,
				pools_list = EXCLUDED.pools_list,
				updated_at = now()
		`,
			t.ID, t.Liquidity.String(), t.PoolsList,
		)
	}
	return s.sendBatch(ctx, batch, len(tokens))
}

func (s *Store) upsertSwapPairs(ctx context.Context, pairs []*model.SwapPair) error {
	if len(pairs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pairs {
		batch.Queue(`
			INSERT INTO swap_pairs (id, token_a, token_b, swap_volume, liquidity, updated_at)
			VALUES ($1,$2,$3,$4,$5,now())
			ON CONFLICT (id) DO UPDATE SET
				swap_volume = EXCLUDED.swap_volume,
				liquidity = EXCLUDED.liquidity,
				updated_at = now()
		`,
			p.ID, p.TokenA, p.TokenB, p.SwapVolume.String(), p.Liquidity.String(),
		)
	}
	return s.sendBatch(ctx, batch, len(pairs))
}

func (s *Store) upsertLatestPrices(ctx context.Context, prices []*model.LatestPrice) error {
	if len(prices) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range prices {
		batch.Queue(`
			INSERT INTO latest_prices (id, asset, pricing_asset, pool_id, price, block, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,now())
			ON CONFLICT (id) DO UPDATE SET
				pool_id = EXCLUDED.pool_id,
				price = EXCLUDED.price,
				block = EXCLUDED.block,
				updated_at = now()
		`,
			p.ID, p.Asset, p.PricingAsset, p.PoolID, p.Price.String(), int64(p.Block),
		)
	}
	return s.sendBatch(ctx, batch, len(prices))
}

func (s *Store) upsertTokenPrices(ctx context.Context, prices []*model.TokenPrice) error {
	if len(prices) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range prices {
		batch.Queue(`
			INSERT INTO token_prices (
				id, pool_id, asset, pricing_asset, amount, price,
				block, ts, log_index
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (id) DO UPDATE SET
				amount = EXCLUDED.amount,
				price = EXCLUDED.price,
				ts = EXCLUDED.ts,
				log_index = EXCLUDED.log_index
		`,
			p.ID, p.PoolID, p.Asset, p.PricingAsset,
			p.Amount.String(), p.Price.String(),
			int64(p.Block), int64(p.Timestamp), int64(p.LogIndex),
		)
	}
	return s.sendBatch(ctx, batch, len(prices))
}

func (s *Store) upsertHistoricalLiquidity(ctx context.Context, records []*model.PoolHistoricalLiquidity) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO pool_historical_liquidity (
				id, pool_id, pricing_asset, pool_total_shares,
				pool_liquidity, pool_share_value, block
			) VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (id) DO UPDATE SET
				pool_total_shares = EXCLUDED.pool_total_shares,
				pool_liquidity = EXCLUDED.pool_liquidity,
				pool_share_value = EXCLUDED.pool_share_value
		`,
			r.ID, r.PoolID, r.PricingAsset, r.PoolTotalShares.String(),
			r.PoolLiquidity.String(), r.PoolShareValue.String(), int64(r.Block),
		)
	}
	return s.sendBatch(ctx, batch, len(records))
}

func (s *Store) upsertSnapshots(ctx context.Context, snapshots []*model.PoolSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		amounts := make([]string, 0, len(snap.Amounts))
		for _, a := range snap.Amounts {
			amounts = append(amounts, a.String())
		}
		batch.Queue(`
			INSERT INTO pool_snapshots (
				id, pool_id, tokens, amounts, total_shares,
				swap_volume, swap_fees, ts
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (id) DO UPDATE SET
				tokens = EXCLUDED.tokens,
				amounts = EXCLUDED.amounts,
				total_shares = EXCLUDED.total_shares,
				swap_volume = EXCLUDED.swap_volume,
				swap_fees = EXCLUDED.swap_fees
		`,
			snap.ID, snap.PoolID, snap.Tokens, amounts, snap.TotalShares.String(),
			snap.SwapVolume.String(), snap.SwapFees.String(), int64(snap.Timestamp),
		)
	}
	return s.sendBatch(ctx, batch, len(snapshots))
}

func (s *Store) upsertVirtualSwaps(ctx context.Context, swaps []*model.VirtualSwap) error {
	if len(swaps) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, v := range swaps {
		batch.Queue(`
			INSERT INTO virtual_swaps (id, pool_id, pool_liquidity, ts, ts_log_index)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (id) DO UPDATE SET
				pool_liquidity = EXCLUDED.pool_liquidity
		`,
			v.ID, v.PoolID, v.PoolLiquidity.String(),
			int64(v.Timestamp), int64(v.TimestampLogIndex),
		)
	}
	return s.sendBatch(ctx, batch, len(swaps))
}

func (s *Store) upsertSwaps(ctx context.Context, swaps []*model.Swap) error {
	if len(swaps) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, sw := range swaps {
		batch.Queue(`
			INSERT INTO swaps (
				id, pool_id, caller, user_address,
				token_in, token_in_sym, token_amount_in,
				token_out, token_out_sym, token_amount_out,
				value, fee_value, net_fee_value,
				pool_total_swap_volume, pool_total_swap_fee,
				pool_total_protocol_fee, pool_total_net_fee,
				pool_total_add_volume, pool_total_withdraw_volume,
				pool_liquidity, pair_swap_volume, pair_liquidity,
				ts, ts_log_index
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
			ON CONFLICT (id) DO UPDATE SET
				value = EXCLUDED.value,
				fee_value = EXCLUDED.fee_value,
				net_fee_value = EXCLUDED.net_fee_value,
				pool_total_swap_volume = EXCLUDED.pool_total_swap_volume,
				pool_total_swap_fee = EXCLUDED.pool_total_swap_fee,
				pool_total_protocol_fee = EXCLUDED.pool_total_protocol_fee,
				pool_total_net_fee = EXCLUDED.pool_total_net_fee,
				pool_total_add_volume = EXCLUDED.pool_total_add_volume,
				pool_total_withdraw_volume = EXCLUDED.pool_total_withdraw_volume,
				pool_liquidity = EXCLUDED.pool_liquidity,
				pair_swap_volume = EXCLUDED.pair_swap_volume,
				pair_liquidity = EXCLUDED.pair_liquidity
		`,
			sw.ID, sw.PoolID, sw.Caller, sw.UserAddress,
			sw.TokenIn, sw.TokenInSym, sw.TokenAmountIn.String(),
			sw.TokenOut, sw.TokenOutSym, sw.TokenAmountOut.String(),
			sw.Value.String(), sw.FeeValue.String(), sw.NetFeeValue.String(),
			sw.PoolTotalSwapVolume.String(), sw.PoolTotalSwapFee.String(),
			sw.PoolTotalProtocolFee.String(), sw.PoolTotalNetFee.String(),
			sw.PoolTotalAddVolume.String(), sw.PoolTotalWithdrawVolume.String(),
			sw.PoolLiquidity.String(), sw.PairSwapVolume.String(), sw.PairLiquidity.String(),
			int64(sw.Timestamp), int64(sw.TimestampLogIndex),
		)
	}
	return s.sendBatch(ctx, batch, len(swaps))
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadCursor returns the saved derive position for a name.
func (s *Store) LoadCursor(ctx context.Context, name string) (block uint64, logIndex uint64, ok bool, err error) {
	if name == "" {
		return 0, 0, false, fmt.Errorf("cursor name required")
	}
	var b, l int64
	row := s.pool.QueryRow(ctx, `SELECT last_block, last_log_index FROM derive_state WHERE name=$1`, name)
	if err := row.Scan(&b, &l); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, false, nil
		}
		return 0, 0, false, err
	}
	return uint64(b), uint64(l), true, nil
}

// SaveCursor upserts the derive position for a name.
func (s *Store) SaveCursor(ctx context.Context, name string, block uint64, logIndex uint64) error {
	if name == "" {
		return fmt.Errorf("cursor name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO derive_state (name, last_block, last_log_index, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET last_block = EXCLUDED.last_block, last_log_index = EXCLUDED.last_log_index, updated_at = now()
	`, name, int64(block), int64(logIndex))
	return err
}
