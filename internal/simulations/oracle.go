/*

This file contains the scripted price oracle for simulation mode and tests.
Prices are set explicitly; the clock is injectable so freshness tests can
age an observation deterministically.

*/

package simulations

import (
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/keel-protocol/keel/internal/oracle"
)

// SimOracle serves explicitly set prices with full confidence.
type SimOracle struct {
	mu     sync.Mutex
	prices map[string]oracle.PriceData
	now    func() time.Time
}

// NewSimOracle creates an oracle with no prices. clock may be nil for wall
// time.
func NewSimOracle(clock func() time.Time) *SimOracle {
	if clock == nil {
		clock = time.Now
	}
	return &SimOracle{
		prices: make(map[string]oracle.PriceData),
		now:    clock,
	}
}

// SetPrice sets the observation for a symbol, stamped with the current
// clock and unit confidence.
func (o *SimOracle) SetPrice(symbol string, price sdkmath.LegacyDec) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[symbol] = oracle.PriceData{
		Price:      price,
		Timestamp:  o.now(),
		Confidence: sdkmath.LegacyOneDec(),
	}
}

// SetObservation sets a fully specified observation, for staleness and
// confidence scenarios.
func (o *SimOracle) SetObservation(symbol string, data oracle.PriceData) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[symbol] = data
}

func (o *SimOracle) GetPrice(symbol string) (oracle.PriceData, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.prices[symbol]
	if !ok {
		return oracle.PriceData{}, fmt.Errorf("no price set for %s", symbol)
	}
	return data, nil
}

func (o *SimOracle) IsValidPrice(data oracle.PriceData) bool {
	return !data.Price.IsNil() && data.Price.IsPositive()
}
