// Package units converts between human-readable token amounts and
// integer base units using the asset's declared decimal precision.
//
// Conversions always truncate toward zero. Rounding up would request
// more value than the caller holds.
package units

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxDecimals is the largest precision any supported SPL mint declares.
const MaxDecimals = 18

// ToBaseUnits converts a human-readable amount into integer base units.
func ToBaseUnits(amount decimal.Decimal, decimals int) (uint64, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return 0, fmt.Errorf("unsupported decimals %d", decimals)
	}
	if amount.IsNegative() {
		return 0, fmt.Errorf("negative amount %s", amount)
	}

	scaled := amount.Shift(int32(decimals)).Truncate(0)
	if !scaled.BigInt().IsUint64() {
		return 0, fmt.Errorf("amount %s overflows base units at %d decimals", amount, decimals)
	}
	return scaled.BigInt().Uint64(), nil
}

// FromBaseUnits converts integer base units back to a human-readable amount.
func FromBaseUnits(base uint64, decimals int) (decimal.Decimal, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return decimal.Zero, fmt.Errorf("unsupported decimals %d", decimals)
	}
	return decimal.NewFromUint64(base).Shift(int32(-decimals)), nil
}
