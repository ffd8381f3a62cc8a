/*
This file contains common helpers for basis-point math and for moving between
SDK integer amounts and decimal rates, with zero-tolerance error handling.
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"

	"github.com/keel-protocol/keel/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrAmountNil      = errors.New("amount is nil")
	ErrAmountNegative = errors.New("amount is negative")
	ErrBpsOutOfRange  = errors.New("basis points out of range")
	ErrRateInvalid    = errors.New("rate is not positive")
)

// ApplyBps returns amount × bps / 10000, truncating toward zero.
func ApplyBps(amount sdkmath.Int, bps uint64) (sdkmath.Int, error) {
	if amount.IsNil() {
		return sdkmath.ZeroInt(), ErrAmountNil
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	if bps > types.BpsDenominator {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d", ErrBpsOutOfRange, bps)
	}
	return amount.Mul(sdkmath.NewIntFromUint64(bps)).Quo(sdkmath.NewIntFromUint64(types.BpsDenominator)), nil
}

// ApplyBpsDec returns value × bps / 10000 for decimal values.
func ApplyBpsDec(value sdkmath.LegacyDec, bps uint64) (sdkmath.LegacyDec, error) {
	if value.IsNil() {
		return sdkmath.LegacyZeroDec(), ErrAmountNil
	}
	if bps > types.BpsDenominator {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: %d", ErrBpsOutOfRange, bps)
	}
	return value.MulInt64(int64(bps)).QuoInt64(int64(types.BpsDenominator)), nil
}

// crClampDec is the largest ratio representable before the sentinel kicks in.
// Anything above ten million percent is reported as infinite.
var crClampDec = sdkmath.LegacyNewDec(1_000_000_0)

// RatioToBps converts numerator/denominator into basis points, clamping huge
// ratios to CRInfinite. A zero denominator is the caller's bootstrap case and
// also reports CRInfinite.
func RatioToBps(numerator, denominator sdkmath.LegacyDec) uint64 {
	if denominator.IsNil() || denominator.IsZero() || !denominator.IsPositive() {
		return types.CRInfinite
	}
	ratio := numerator.Quo(denominator)
	if ratio.GTE(crClampDec) {
		return types.CRInfinite
	}
	if ratio.IsNegative() {
		return 0
	}
	bps := ratio.MulInt64(int64(types.BpsDenominator)).TruncateInt64()
	if bps < 0 {
		return 0
	}
	return uint64(bps)
}

// WithinToleranceBps reports whether actual deviates from expected by no more
// than tolBps of expected, in either direction.
func WithinToleranceBps(actual, expected sdkmath.Int, tolBps uint64) (bool, error) {
	if actual.IsNil() || expected.IsNil() {
		return false, ErrAmountNil
	}
	if tolBps >= types.BpsDenominator {
		return false, fmt.Errorf("%w: %d", ErrBpsOutOfRange, tolBps)
	}
	if expected.IsZero() {
		return actual.IsZero(), nil
	}
	diff := actual.Sub(expected).Abs()
	band, err := ApplyBps(expected.Abs(), tolBps)
	if err != nil {
		return false, err
	}
	return diff.LTE(band), nil
}

// DivByRate converts a base-denominated value into receipt units at the given
// receipt→base rate, truncating toward zero.
func DivByRate(value sdkmath.LegacyDec, rate sdkmath.LegacyDec) (sdkmath.Int, error) {
	if rate.IsNil() || !rate.IsPositive() {
		return sdkmath.ZeroInt(), ErrRateInvalid
	}
	return value.Quo(rate).TruncateInt(), nil
}

// IntMin returns the smaller of a and b.
func IntMin(a, b sdkmath.Int) sdkmath.Int {
	if a.LT(b) {
		return a
	}
	return b
}

// FiniteFloat guards calculations surfaced to the web layer.
func FiniteFloat(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
