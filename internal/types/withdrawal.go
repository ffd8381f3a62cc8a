/*

This file contains the withdrawal request record tracked through the
asynchronous unstake delay. Requests are created by redeem settlement,
mutated on claim, and kept for audit; only cancellation retires one early.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// WithdrawalStatus is the lifecycle state of a request. Readiness is observed
// through the yield source's predicate rather than stored as a transition.
type WithdrawalStatus uint8

const (
	WithdrawalQueued WithdrawalStatus = iota
	WithdrawalClaimed
	WithdrawalCancelled
)

func (s WithdrawalStatus) String() string {
	switch s {
	case WithdrawalQueued:
		return "queued"
	case WithdrawalClaimed:
		return "claimed"
	case WithdrawalCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// WithdrawalRequest tracks one in-flight redemption.
type WithdrawalRequest struct {
	ID        uint64    `json:"id"`
	Requester string    `json:"requester"`
	Kind      ClaimKind `json:"kind"`

	// ClaimAmount is the claim tokens held in custody, burned on claim.
	ClaimAmount sdkmath.Int `json:"claim_amount"`
	// ReceiptAmount is the net receipt units handed to the unstake queue and
	// mirrored in LockedReceiptBalance until claim.
	ReceiptAmount sdkmath.Int `json:"receipt_amount"`
	// ExpectedBase is the base-asset output expected at queue time; the claim
	// step enforces a tolerance band around it.
	ExpectedBase sdkmath.Int `json:"expected_base"`
	// CostBasisRemoved is the collateral cost basis released at queue time,
	// kept so cancellation can restore it exactly.
	CostBasisRemoved sdkmath.Int `json:"cost_basis_removed"`

	TicketID uint64    `json:"ticket_id"`
	QueuedAt time.Time `json:"queued_at"`
	// EstimatedReady is display-only; real readiness is the yield source's.
	EstimatedReady time.Time        `json:"estimated_ready"`
	ClaimedAt      *time.Time       `json:"claimed_at,omitempty"`
	Status         WithdrawalStatus `json:"status"`
}

// Terminal reports whether the request can no longer change state.
func (r *WithdrawalRequest) Terminal() bool {
	return r.Status == WithdrawalClaimed || r.Status == WithdrawalCancelled
}
