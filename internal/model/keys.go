package model

import "strconv"

// DaySeconds is the snapshot bucket width.
const DaySeconds = 24 * 60 * 60

// ProtocolID keys the process-wide singleton aggregate.
const ProtocolID = "1"

func PoolTokenKey(poolID, token string) string {
	return poolID + "-" + token
}

func PoolShareKey(poolID, holder string) string {
	return poolID + "-" + holder
}

func ShareLossKey(shareID, token string) string {
	return shareID + "-" + token
}

func LatestPriceKey(asset, pricingAsset string) string {
	return asset + "-" + pricingAsset
}

func TokenPriceKey(poolID, asset, pricingAsset string, block uint64) string {
	return poolID + "-" + asset + "-" + pricingAsset + "-" + strconv.FormatUint(block, 10)
}

func HistoricalLiquidityKey(poolID, pricingAsset string, block uint64) string {
	return poolID + "-" + pricingAsset + "-" + strconv.FormatUint(block, 10)
}

func SnapshotKey(poolID string, dayBucket uint64) string {
	return poolID + "-" + strconv.FormatUint(dayBucket, 10)
}

func VirtualSwapKey(txHash string, logIndex uint64, poolID string) string {
	return txHash + "-" + strconv.FormatUint(logIndex, 10) + "-" + poolID
}

func SwapKey(txHash string, logIndex uint64) string {
	return txHash + "-" + strconv.FormatUint(logIndex, 10)
}

// SwapPairKey orders the two token addresses lexicographically so that both
// trade directions land on the same pair record.
func SwapPairKey(tokenA, tokenB string) (string, string, string) {
	if tokenB < tokenA {
		tokenA, tokenB = tokenB, tokenA
	}
	return tokenA + "-" + tokenB, tokenA, tokenB
}

// DayBucket floors a unix timestamp to the start of its day.
func DayBucket(timestamp uint64) uint64 {
	return timestamp - timestamp%DaySeconds
}

// TimestampLogIndex builds the total-order sort key for intra-block records.
// Assumes fewer than 10,000 logs of interest per distinct second.
func TimestampLogIndex(timestamp, logIndex uint64) uint64 {
	return timestamp*10_000 + logIndex
}
