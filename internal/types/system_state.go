/*

This file contains the system-wide safety tier derived from the collateral
ratio. The tier is a pure function of CR against three descending thresholds
and is recomputed as the final step of every state-changing operation.

*/

package types

import "math"

// CRInfinite is the sentinel collateral ratio reported while no par claims
// are outstanding: undefined, but safe.
const CRInfinite uint64 = math.MaxUint64

// SystemState is the protocol safety tier.
type SystemState uint8

const (
	StateNormal SystemState = iota
	StateCautious
	StateCritical
	StateEmergency
)

func (s SystemState) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateCautious:
		return "cautious"
	case StateCritical:
		return "critical"
	case StateEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// Thresholds holds the three descending CR boundaries, in basis points.
type Thresholds struct {
	NormalBps   uint64 `json:"normal_bps"`
	CautiousBps uint64 `json:"cautious_bps"`
	CriticalBps uint64 `json:"critical_bps"`
}

// Valid reports whether the thresholds are strictly descending and nonzero.
func (t Thresholds) Valid() bool {
	return t.NormalBps > t.CautiousBps && t.CautiousBps > t.CriticalBps && t.CriticalBps > 0
}

// StateForCR maps a collateral ratio to its safety tier. The lowest tier is a
// catch-all; only three thresholds exist.
func StateForCR(cr uint64, t Thresholds) SystemState {
	switch {
	case cr >= t.NormalBps:
		return StateNormal
	case cr >= t.CautiousBps:
		return StateCautious
	case cr >= t.CriticalBps:
		return StateCritical
	default:
		return StateEmergency
	}
}
