package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/keel-protocol/keel/internal/types"
)

// SaveFeeSchedule appends a fee schedule change to the audit history.
func SaveFeeSchedule(s types.FeeSchedule, actor string) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal fee schedule: %w", err)
	}

	query := `INSERT INTO fee_schedules (actor, schedule) VALUES ($1, $2);`
	if _, err := DB.Exec(query, actor, payload); err != nil {
		return fmt.Errorf("failed to save fee schedule: %w", err)
	}

	log.Info().Str("actor", actor).Msg("Fee schedule change saved")
	return nil
}

// GetLatestFeeSchedule returns the most recently saved schedule; the bool
// reports presence.
func GetLatestFeeSchedule() (types.FeeSchedule, bool, error) {
	if DB == nil {
		return types.FeeSchedule{}, false, fmt.Errorf("database not initialized")
	}

	query := `SELECT schedule FROM fee_schedules ORDER BY schedule_id DESC LIMIT 1;`
	var payload []byte
	err := DB.QueryRow(query).Scan(&payload)
	if err == sql.ErrNoRows {
		return types.FeeSchedule{}, false, nil
	}
	if err != nil {
		return types.FeeSchedule{}, false, fmt.Errorf("failed to fetch fee schedule: %w", err)
	}

	var s types.FeeSchedule
	if err := json.Unmarshal(payload, &s); err != nil {
		return types.FeeSchedule{}, false, fmt.Errorf("failed to unmarshal fee schedule: %w", err)
	}
	return s, true, nil
}
