/*

This file contains the audit snapshot written after every settlement. Amounts
are serialized as decimal strings so the persistence layer never loses
precision on large integers.

*/

package types

import "time"

// OperationSnapshot is the audit record of one completed state-changing
// operation, including the reserve counters after it committed.
type OperationSnapshot struct {
	OpID      string    `json:"op_id"`
	OpType    string    `json:"op_type"` // mint, redeem, claim, intervention, recovery_exit, harvest, collect_fees, cancel
	Caller    string    `json:"caller"`
	Kind      string    `json:"kind,omitempty"`
	AmountIn  string    `json:"amount_in"`
	AmountOut string    `json:"amount_out"`
	FeeBps    uint64    `json:"fee_bps"`
	CRBefore  uint64    `json:"cr_before"`
	CRAfter   uint64    `json:"cr_after"`
	State     string    `json:"state"`
	Reserves  ReserveState `json:"reserves"`
	Timestamp time.Time `json:"timestamp"`
}
