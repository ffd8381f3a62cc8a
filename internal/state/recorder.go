package state

import (
	"github.com/keel-protocol/keel/internal/types"
)

// PostgresRecorder adapts the package-level stores to the engine's audit
// interface. Construct it after InitDB/EnsureSchema have succeeded.
type PostgresRecorder struct{}

func NewPostgresRecorder() *PostgresRecorder { return &PostgresRecorder{} }

func (r *PostgresRecorder) RecordOperation(snap types.OperationSnapshot) error {
	_, err := SaveOperationSnapshot(snap)
	return err
}

func (r *PostgresRecorder) RecordWithdrawal(req types.WithdrawalRequest) error {
	return SaveWithdrawalRequest(req)
}

func (r *PostgresRecorder) RecordPosition(pos types.UserPosition) error {
	return SaveUserPosition(pos)
}

func (r *PostgresRecorder) RecordIntervention(rec types.InterventionRecord) error {
	_, err := SaveIntervention(rec)
	return err
}

func (r *PostgresRecorder) RecordFeeSchedule(s types.FeeSchedule, actor string) error {
	return SaveFeeSchedule(s, actor)
}

func (r *PostgresRecorder) Close() error {
	CloseDB()
	return nil
}
