package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Pool share tokens and fee rates are fixed at 18 decimals on chain.
const shareDecimals = 18

// tokenAmount parses a raw base-10 on-chain integer string and scales it by
// the token's decimals. Empty input is zero.
func tokenAmount(raw string, decimals int32) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Decimal{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return d.Shift(-decimals), nil
}

func shareAmount(raw string) (decimal.Decimal, error) {
	return tokenAmount(raw, shareDecimals)
}

func feeRate(raw string) (decimal.Decimal, error) {
	return tokenAmount(raw, shareDecimals)
}
