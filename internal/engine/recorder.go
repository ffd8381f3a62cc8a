/*

This file contains the Recorder interface the engine writes its audit trail
through, plus the no-op implementation used when no database is configured.
Recording failures are logged, never allowed to fail a settled operation.

*/

package engine

import (
	"github.com/keel-protocol/keel/internal/types"
)

// Recorder persists the audit history of the engine.
type Recorder interface {
	RecordOperation(snap types.OperationSnapshot) error
	RecordWithdrawal(req types.WithdrawalRequest) error
	RecordPosition(pos types.UserPosition) error
	RecordIntervention(rec types.InterventionRecord) error
	RecordFeeSchedule(s types.FeeSchedule, actor string) error
	Close() error
}

// NoopRecorder is used when persistence is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordOperation(_ types.OperationSnapshot) error      { return nil }
func (n *NoopRecorder) RecordWithdrawal(_ types.WithdrawalRequest) error     { return nil }
func (n *NoopRecorder) RecordPosition(_ types.UserPosition) error            { return nil }
func (n *NoopRecorder) RecordIntervention(_ types.InterventionRecord) error  { return nil }
func (n *NoopRecorder) RecordFeeSchedule(_ types.FeeSchedule, _ string) error { return nil }
func (n *NoopRecorder) Close() error                                         { return nil }
