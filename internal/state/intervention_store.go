package state

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keel-protocol/keel/internal/types"
)

// SaveIntervention persists one pool rebalancing event.
func SaveIntervention(rec types.InterventionRecord) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO interventions (
			kind, par_burned, leveraged_minted, par_minted, leveraged_burned,
			cr_before, cr_after, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING intervention_id;
	`
	var id int64
	err := DB.QueryRow(query,
		string(rec.Kind),
		rec.ParBurned.String(), rec.LeveragedMinted.String(),
		rec.ParMinted.String(), rec.LeveragedBurned.String(),
		fmt.Sprintf("%d", rec.CRBefore), fmt.Sprintf("%d", rec.CRAfter),
		rec.Timestamp,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save intervention: %w", err)
	}

	log.Info().Int64("intervention_id", id).Str("kind", string(rec.Kind)).Msg("Intervention saved")
	return id, nil
}

// InterventionRow is one persisted intervention.
type InterventionRow struct {
	InterventionID  int64     `json:"intervention_id"`
	Kind            string    `json:"kind"`
	ParBurned       string    `json:"par_burned"`
	LeveragedMinted string    `json:"leveraged_minted"`
	ParMinted       string    `json:"par_minted"`
	LeveragedBurned string    `json:"leveraged_burned"`
	CRBefore        string    `json:"cr_before"`
	CRAfter         string    `json:"cr_after"`
	ExecutedAt      time.Time `json:"executed_at"`
}

// GetRecentInterventions returns the newest interventions, capped at 200.
func GetRecentInterventions(limit int) ([]InterventionRow, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 200 {
		limit = 200
	}

	query := `
		SELECT intervention_id, kind, par_burned::text, leveraged_minted::text,
		       par_minted::text, leveraged_burned::text, cr_before::text, cr_after::text, executed_at
		FROM interventions ORDER BY executed_at DESC LIMIT $1;
	`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query interventions: %w", err)
	}
	defer rows.Close()

	var out []InterventionRow
	for rows.Next() {
		var r InterventionRow
		if err := rows.Scan(
			&r.InterventionID, &r.Kind, &r.ParBurned, &r.LeveragedMinted,
			&r.ParMinted, &r.LeveragedBurned, &r.CRBefore, &r.CRAfter, &r.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan intervention: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
