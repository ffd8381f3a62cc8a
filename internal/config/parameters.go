/*

This file contains the default protocol parameters and fee schedule.

These defaults are calibrated for a conservative launch configuration.
Each value balances capital safety for par claim holders against usability
for leveraged claim holders.

*/

package config

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/keel-protocol/keel/internal/types"
)

// DefaultProtocolParameters provides the baseline parameter set used when no
// overrides are supplied at startup.
var DefaultProtocolParameters = types.ProtocolParameters{
	Thresholds: types.Thresholds{
		NormalBps:   15_000, // 150% CR: full functionality.
		// Rationale: a 50% reserve buffer absorbs most single-day receipt-rate
		// or price moves without leaving the Normal tier.

		CautiousBps: 13_000, // 130% CR: defensive fees, intervention armed.
		// Rationale: enough remaining buffer that an intervention sized from
		// the buffer pool can still restore Normal before par claims are at risk.

		CriticalBps: 11_000, // 110% CR: leveraged operations effectively priced out.
		// Rationale: below 110% the residual claim is thin; the catch-all fee
		// tier discourages any flow that would thin it further.
	},

	RecoveryBufferBps: 1_000, // Intervention targets Cautious + 10%.
	// Rationale: landing exactly on the threshold would re-arm the trigger on
	// the next small rate move; a 10% overshoot prevents flapping.

	ClaimToleranceBps: 100, // 1% band between queue-time and claim-time payout.
	// Rationale: the unstake delay exposes the payout to rate drift; 1% covers
	// normal accrual over the delay while catching an adapter fault.

	ExecutionToleranceBps: 50, // 0.5% band on vault/router execution.
	// Rationale: same-block execution should land far inside this; anything
	// wider indicates a mispriced route.

	MinDeposit: sdkmath.NewInt(1_000_000), // 1.0 base unit minimum mint.
	// Rationale: dust deposits cost more in queue and audit overhead than
	// they add in reserve.

	MinRedeem: sdkmath.NewInt(1_000_000), // 1.0 claim unit minimum redeem.

	DepositCap: sdkmath.ZeroInt(), // Uncapped by default; set per deployment.

	InitialLeveragedNav: sdkmath.LegacyOneDec(), // Bootstrap leveraged mint at 1:1.

	MinHarvestSurplus: sdkmath.NewInt(10_000_000), // 10 base units.
	// Rationale: harvesting mints par against the surplus; running it for
	// dust churns supply without meaningful revenue.

	OracleMaxAge:        5 * time.Minute,
	OracleMinConfidence: sdkmath.LegacyMustNewDecFromStr("0.9"),
}

// DefaultFeeSchedule provides the baseline fee table. All rates sit well
// below the hard maxima enforced by FeeSchedule.Validate.
var DefaultFeeSchedule = types.FeeSchedule{
	ParMint: types.FeeTier{
		NormalBps:    10, // 0.10%
		CautiousBps:  5,  // Cheaper to mint par while CR is depressed: inflow helps.
		DefensiveBps: 0,
	},
	ParRedeem: types.FeeTier{
		NormalBps:    10,
		CautiousBps:  50, // Redemptions drain reserve when it is most needed.
		DefensiveBps: 200,
	},
	LeveragedMint: types.FeeTier{
		NormalBps:    20,
		CautiousBps:  10, // Leveraged inflow recapitalizes the buffer.
		DefensiveBps: 5,
	},
	LeveragedRedeem: types.FeeTier{
		NormalBps:    20,
		CautiousBps:  100,
		DefensiveBps: 400, // Exit of residual equity in the worst tier is priced steeply.
	},
}
