/*

This file contains the yield source adapter contract: staking the base asset
for a yield-bearing receipt, and the delayed unstake queue the withdrawal
flow polls. The engine never blocks on the delay; callers re-invoke the claim
step once the adapter reports readiness.

*/

package yieldsource

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// Adapter abstracts the external staking system behind typed methods. Every
// method that moves value returns the actually-realized amount, never an
// assumed one.
type Adapter interface {
	// Stake converts base asset into receipt units with no slippage and
	// returns the receipt actually received.
	Stake(amount sdkmath.Int) (sdkmath.Int, error)

	// QueueUnstake hands receipt units to the delayed unstake queue and
	// returns a ticket id.
	QueueUnstake(receiptAmount sdkmath.Int) (uint64, error)

	// IsReady reports whether a ticket can be claimed and the base-asset
	// amount the adapter currently expects to pay out for it.
	IsReady(ticketID uint64) (bool, sdkmath.Int, error)

	// Claim redeems a ready ticket and returns the base asset received.
	Claim(ticketID uint64) (sdkmath.Int, error)

	// ExchangeRate is the receipt→base rate. It moves slowly as yield
	// accrues; the engine treats it as live data, never caches it.
	ExchangeRate() (sdkmath.LegacyDec, error)

	// WithdrawalDelay is the adapter's current unstake delay, used only for
	// the display-level readiness estimate.
	WithdrawalDelay() (time.Duration, error)

	// MinStakeAmount is the smallest stake the adapter accepts.
	MinStakeAmount() (sdkmath.Int, error)
}
