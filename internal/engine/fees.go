/*

This file contains fee resolution: a total function of the collateral ratio.
For any CR exactly one tier applies, and raising CR across a threshold never
raises the fee a well-formed schedule selects.

*/

package engine

import (
	"github.com/keel-protocol/keel/internal/types"
)

// feeFor maps (claim, operation, CR) to a basis-point rate. The lowest tier
// is the catch-all below the cautious threshold.
func (e *Engine) feeFor(kind types.ClaimKind, isMint bool, cr uint64) uint64 {
	tier := e.fees.Tier(kind, isMint)
	switch {
	case cr >= e.params.Thresholds.NormalBps:
		return tier.NormalBps
	case cr >= e.params.Thresholds.CautiousBps:
		return tier.CautiousBps
	default:
		return tier.DefensiveBps
	}
}

// FeeFor is the public, locked fee query.
func (e *Engine) FeeFor(kind types.ClaimKind, isMint bool) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cr, err := e.systemCR()
	if err != nil {
		return 0, err
	}
	return e.feeFor(kind, isMint, cr), nil
}
