/*

This file contains the reserve ledger singleton mutated by every settlement.

All amounts are integer micro-units. The invariant maintained across every
operation is that TotalReceiptBalance + LockedReceiptBalance equals the
protocol's claim on vault assets, with AccumulatedFees tracked separately as
protocol revenue that stays invested until collected.

*/

package types

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// ReserveState is the shared accounting context owned by the engine. It is
// never global; the engine passes it by reference through its own methods so
// every write happens under the engine's lock.
type ReserveState struct {
	// TotalCollateral is the base-asset cost basis of the collateral the
	// protocol currently holds. Yield is measured as reserve value above it.
	TotalCollateral sdkmath.Int `json:"total_collateral"`
	// TotalReceiptBalance is the receipt units available to settle against.
	TotalReceiptBalance sdkmath.Int `json:"total_receipt_balance"`
	// LockedReceiptBalance is the receipt units reserved for in-flight
	// redemptions sitting in the unstake queue.
	LockedReceiptBalance sdkmath.Int `json:"locked_receipt_balance"`
	// AccumulatedFees is protocol revenue in receipt units, invested in the
	// vault until collected.
	AccumulatedFees sdkmath.Int `json:"accumulated_fees"`
	// TotalDeposited is the cumulative nominal base-asset inflow, checked
	// against the deposit cap. It only decreases by amounts that previously
	// increased it.
	TotalDeposited sdkmath.Int `json:"total_deposited"`
}

// NewReserveState returns a zeroed reserve ledger.
func NewReserveState() *ReserveState {
	return &ReserveState{
		TotalCollateral:      sdkmath.ZeroInt(),
		TotalReceiptBalance:  sdkmath.ZeroInt(),
		LockedReceiptBalance: sdkmath.ZeroInt(),
		AccumulatedFees:      sdkmath.ZeroInt(),
		TotalDeposited:       sdkmath.ZeroInt(),
	}
}

// Clone returns a copy, used for read snapshots served outside the lock.
func (r *ReserveState) Clone() ReserveState {
	return ReserveState{
		TotalCollateral:      r.TotalCollateral,
		TotalReceiptBalance:  r.TotalReceiptBalance,
		LockedReceiptBalance: r.LockedReceiptBalance,
		AccumulatedFees:      r.AccumulatedFees,
		TotalDeposited:       r.TotalDeposited,
	}
}

// CheckInvariants rejects states no operation should ever produce.
func (r *ReserveState) CheckInvariants() error {
	for name, v := range map[string]sdkmath.Int{
		"total_collateral":       r.TotalCollateral,
		"total_receipt_balance":  r.TotalReceiptBalance,
		"locked_receipt_balance": r.LockedReceiptBalance,
		"accumulated_fees":       r.AccumulatedFees,
		"total_deposited":        r.TotalDeposited,
	} {
		if v.IsNil() {
			return fmt.Errorf("reserve counter %s is nil", name)
		}
		if v.IsNegative() {
			return fmt.Errorf("reserve counter %s is negative: %s", name, v)
		}
	}
	return nil
}
