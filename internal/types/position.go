package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// UserPosition is the cumulative base-asset collateral a user has
// contributed. Informational only: solvency is pool-level, never per-user.
type UserPosition struct {
	Address    string      `json:"address"`
	Collateral sdkmath.Int `json:"collateral"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
