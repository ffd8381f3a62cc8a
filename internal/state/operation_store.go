package state

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keel-protocol/keel/internal/types"
)

// SaveOperationSnapshot persists the audit record of one settled operation.
func SaveOperationSnapshot(snap types.OperationSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO operation_snapshots (
			op_id, op_type, caller, claim_kind,
			amount_in, amount_out, fee_bps, cr_before, cr_after, system_state,
			total_collateral, total_receipt, locked_receipt, accumulated_fees, total_deposited,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err := DB.QueryRow(
		query,
		snap.OpID, snap.OpType, snap.Caller, snap.Kind,
		nullableAmount(snap.AmountIn), nullableAmount(snap.AmountOut),
		snap.FeeBps, fmt.Sprintf("%d", snap.CRBefore), fmt.Sprintf("%d", snap.CRAfter), snap.State,
		snap.Reserves.TotalCollateral.String(), snap.Reserves.TotalReceiptBalance.String(),
		snap.Reserves.LockedReceiptBalance.String(), snap.Reserves.AccumulatedFees.String(),
		snap.Reserves.TotalDeposited.String(),
		snap.Timestamp,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save operation snapshot: %w", err)
	}

	log.Debug().
		Int64("snapshot_id", snapshotID).
		Str("op_type", snap.OpType).
		Msg("Operation snapshot saved")
	return snapshotID, nil
}

// OperationRow is one persisted snapshot as served by the web layer.
type OperationRow struct {
	SnapshotID int64     `json:"snapshot_id"`
	OpID       string    `json:"op_id"`
	OpType     string    `json:"op_type"`
	Caller     string    `json:"caller"`
	Kind       string    `json:"kind,omitempty"`
	AmountIn   string    `json:"amount_in"`
	AmountOut  string    `json:"amount_out"`
	FeeBps     uint64    `json:"fee_bps"`
	CRBefore   string    `json:"cr_before"`
	CRAfter    string    `json:"cr_after"`
	State      string    `json:"state"`
	CreatedAt  time.Time `json:"created_at"`
}

// GetRecentOperations returns the newest snapshots, optionally filtered by
// op type. limit is capped at 500.
func GetRecentOperations(opType string, limit int) ([]OperationRow, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 500
	}

	query := `
		SELECT snapshot_id, op_id, op_type, caller, COALESCE(claim_kind, ''),
		       COALESCE(amount_in::text, '0'), COALESCE(amount_out::text, '0'),
		       fee_bps, cr_before::text, cr_after::text, system_state, created_at
		FROM operation_snapshots
		WHERE ($1 = '' OR op_type = $1)
		ORDER BY created_at DESC
		LIMIT $2;
	`
	rows, err := DB.Query(query, opType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation snapshots: %w", err)
	}
	defer rows.Close()

	var out []OperationRow
	for rows.Next() {
		var r OperationRow
		if err := rows.Scan(
			&r.SnapshotID, &r.OpID, &r.OpType, &r.Caller, &r.Kind,
			&r.AmountIn, &r.AmountOut, &r.FeeBps, &r.CRBefore, &r.CRAfter, &r.State, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan operation snapshot: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// nullableAmount maps an empty amount string to SQL NULL.
func nullableAmount(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
