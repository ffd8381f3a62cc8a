/*

This file contains the price feed contract the engine consumes. The engine
never proceeds on a price that fails the validity predicate; a stale or zero
price aborts the whole operation.

*/

package oracle

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// PriceData is one observation from a feed.
type PriceData struct {
	Price      sdkmath.LegacyDec `json:"price"`
	Timestamp  time.Time         `json:"timestamp"`
	Confidence sdkmath.LegacyDec `json:"confidence"`
}

// PriceOracle supplies the base-asset reference price.
type PriceOracle interface {
	// GetPrice returns the latest observation for a symbol.
	GetPrice(symbol string) (PriceData, error)

	// IsValidPrice applies the feed's own freshness/confidence predicate.
	IsValidPrice(data PriceData) bool
}

// Valid is the engine-side validity check layered on top of the feed's
// predicate: positive price, bounded age, minimum confidence.
func Valid(data PriceData, maxAge time.Duration, minConfidence sdkmath.LegacyDec, now time.Time) bool {
	if data.Price.IsNil() || !data.Price.IsPositive() {
		return false
	}
	if data.Timestamp.IsZero() || now.Sub(data.Timestamp) > maxAge {
		return false
	}
	if !minConfidence.IsNil() && !minConfidence.IsZero() {
		if data.Confidence.IsNil() || data.Confidence.LT(minConfidence) {
			return false
		}
	}
	return true
}
