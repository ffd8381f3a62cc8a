/*

This file contains the fee schedule: per claim, per operation, three
basis-point rates keyed by safety tier. The schedule is set administratively
and bounded by hard maxima at configuration time, not at call time.

*/

package types

import "fmt"

const (
	// BpsDenominator is the basis-point scale: 10000 bps = 100%.
	BpsDenominator uint64 = 10_000

	// MaxMintFeeBps caps any mint fee at 10%.
	MaxMintFeeBps uint64 = 1_000
	// MaxRedeemFeeBps caps any redeem fee at 15%.
	MaxRedeemFeeBps uint64 = 1_500
)

// FeeTier holds the three rates for one (claim, operation) pair. DefensiveBps
// is the catch-all applied below the cautious threshold.
type FeeTier struct {
	NormalBps    uint64 `json:"normal_bps"`
	CautiousBps  uint64 `json:"cautious_bps"`
	DefensiveBps uint64 `json:"defensive_bps"`
}

func (t FeeTier) max() uint64 {
	m := t.NormalBps
	if t.CautiousBps > m {
		m = t.CautiousBps
	}
	if t.DefensiveBps > m {
		m = t.DefensiveBps
	}
	return m
}

// FeeSchedule is the full fee table for both claims and both operations.
type FeeSchedule struct {
	ParMint         FeeTier `json:"par_mint"`
	ParRedeem       FeeTier `json:"par_redeem"`
	LeveragedMint   FeeTier `json:"leveraged_mint"`
	LeveragedRedeem FeeTier `json:"leveraged_redeem"`
}

// Tier selects the schedule row for a claim and operation.
func (s FeeSchedule) Tier(kind ClaimKind, isMint bool) FeeTier {
	switch {
	case kind == ClaimPar && isMint:
		return s.ParMint
	case kind == ClaimPar:
		return s.ParRedeem
	case isMint:
		return s.LeveragedMint
	default:
		return s.LeveragedRedeem
	}
}

// Validate enforces the hard maxima. Called when the schedule is set, so fee
// resolution itself never needs to re-check bounds.
func (s FeeSchedule) Validate() error {
	for name, check := range map[string]struct {
		tier FeeTier
		cap  uint64
	}{
		"par_mint":         {s.ParMint, MaxMintFeeBps},
		"par_redeem":       {s.ParRedeem, MaxRedeemFeeBps},
		"leveraged_mint":   {s.LeveragedMint, MaxMintFeeBps},
		"leveraged_redeem": {s.LeveragedRedeem, MaxRedeemFeeBps},
	} {
		if m := check.tier.max(); m > check.cap {
			return fmt.Errorf("fee tier %s exceeds maximum: %d > %d bps", name, m, check.cap)
		}
	}
	return nil
}
