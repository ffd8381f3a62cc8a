package state

import (
	"database/sql"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/keel-protocol/keel/internal/types"
)

// SaveWithdrawalRequest upserts a withdrawal request; called on queue,
// claim and cancellation, so the row always mirrors the in-memory record.
func SaveWithdrawalRequest(req types.WithdrawalRequest) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	var claimedAt sql.NullTime
	if req.ClaimedAt != nil {
		claimedAt = sql.NullTime{Time: *req.ClaimedAt, Valid: true}
	}

	query := `
		INSERT INTO withdrawal_requests (
			request_id, requester, claim_kind, claim_amount, receipt_amount,
			expected_base, cost_basis_removed, ticket_id, queued_at,
			estimated_ready, claimed_at, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (request_id) DO UPDATE SET
			claimed_at = EXCLUDED.claimed_at,
			status = EXCLUDED.status;
	`
	_, err := DB.Exec(query,
		req.ID, req.Requester, req.Kind.String(),
		req.ClaimAmount.String(), req.ReceiptAmount.String(),
		req.ExpectedBase.String(), req.CostBasisRemoved.String(),
		req.TicketID, req.QueuedAt, req.EstimatedReady, claimedAt, req.Status.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save withdrawal request %d: %w", req.ID, err)
	}

	log.Debug().Uint64("request_id", req.ID).Str("status", req.Status.String()).Msg("Withdrawal request saved")
	return nil
}

// WithdrawalRow is one persisted withdrawal request.
type WithdrawalRow struct {
	RequestID        uint64     `json:"request_id"`
	Requester        string     `json:"requester"`
	Kind             string     `json:"kind"`
	ClaimAmount      string     `json:"claim_amount"`
	ReceiptAmount    string     `json:"receipt_amount"`
	ExpectedBase     string     `json:"expected_base"`
	CostBasisRemoved string     `json:"cost_basis_removed"`
	TicketID         uint64     `json:"ticket_id"`
	QueuedAt         time.Time  `json:"queued_at"`
	EstimatedReady   time.Time  `json:"estimated_ready"`
	ClaimedAt        *time.Time `json:"claimed_at,omitempty"`
	Status           string     `json:"status"`
}

// GetWithdrawalRequest fetches one persisted request by id.
func GetWithdrawalRequest(id uint64) (WithdrawalRow, error) {
	if DB == nil {
		return WithdrawalRow{}, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT request_id, requester, claim_kind, claim_amount::text, receipt_amount::text,
		       expected_base::text, cost_basis_removed::text, ticket_id,
		       queued_at, estimated_ready, claimed_at, status
		FROM withdrawal_requests WHERE request_id = $1;
	`
	var r WithdrawalRow
	var claimedAt sql.NullTime
	err := DB.QueryRow(query, id).Scan(
		&r.RequestID, &r.Requester, &r.Kind, &r.ClaimAmount, &r.ReceiptAmount,
		&r.ExpectedBase, &r.CostBasisRemoved, &r.TicketID,
		&r.QueuedAt, &r.EstimatedReady, &claimedAt, &r.Status,
	)
	if err != nil {
		return WithdrawalRow{}, fmt.Errorf("failed to fetch withdrawal request %d: %w", id, err)
	}
	if claimedAt.Valid {
		t := claimedAt.Time
		r.ClaimedAt = &t
	}
	return r, nil
}

// GetWithdrawalRequestsForUser returns every persisted request of one
// requester, oldest first.
func GetWithdrawalRequestsForUser(requester string) ([]WithdrawalRow, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT request_id, requester, claim_kind, claim_amount::text, receipt_amount::text,
		       expected_base::text, cost_basis_removed::text, ticket_id,
		       queued_at, estimated_ready, claimed_at, status
		FROM withdrawal_requests WHERE requester = $1 ORDER BY request_id;
	`
	rows, err := DB.Query(query, requester)
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawal requests: %w", err)
	}
	defer rows.Close()

	var out []WithdrawalRow
	for rows.Next() {
		var r WithdrawalRow
		var claimedAt sql.NullTime
		if err := rows.Scan(
			&r.RequestID, &r.Requester, &r.Kind, &r.ClaimAmount, &r.ReceiptAmount,
			&r.ExpectedBase, &r.CostBasisRemoved, &r.TicketID,
			&r.QueuedAt, &r.EstimatedReady, &claimedAt, &r.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal request: %w", err)
		}
		if claimedAt.Valid {
			t := claimedAt.Time
			r.ClaimedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// parseAmount converts a persisted NUMERIC text back into an Int, tolerating
// legacy empty values.
func parseAmount(s string) sdkmath.Int {
	if s == "" {
		return sdkmath.ZeroInt()
	}
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.ZeroInt()
	}
	return v
}
