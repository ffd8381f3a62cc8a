package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// InterventionKind distinguishes the rebalancing direction.
type InterventionKind string

const (
	// InterventionRebalance retires par claims into leveraged equity while CR
	// is depressed.
	InterventionRebalance InterventionKind = "rebalance"
	// InterventionRecoveryExit converts buffered leveraged claims back into
	// par once CR has recovered.
	InterventionRecoveryExit InterventionKind = "recovery_exit"
)

// InterventionRecord describes one atomic pool rebalancing event. Ephemeral:
// recorded for audit, never consulted by settlement logic.
type InterventionRecord struct {
	Kind            InterventionKind `json:"kind"`
	ParBurned       sdkmath.Int      `json:"par_burned"`
	LeveragedMinted sdkmath.Int      `json:"leveraged_minted"`
	ParMinted       sdkmath.Int      `json:"par_minted"`
	LeveragedBurned sdkmath.Int      `json:"leveraged_burned"`
	CRBefore        uint64           `json:"cr_before"`
	CRAfter         uint64           `json:"cr_after"`
	Timestamp       time.Time        `json:"timestamp"`
}
