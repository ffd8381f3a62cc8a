package state

import (
	"database/sql"
	"fmt"

	"github.com/keel-protocol/keel/internal/types"
)

// SaveUserPosition upserts the cumulative collateral position of a user.
func SaveUserPosition(pos types.UserPosition) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO user_positions (address, collateral, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (address) DO UPDATE SET
			collateral = EXCLUDED.collateral,
			updated_at = EXCLUDED.updated_at;
	`
	if _, err := DB.Exec(query, pos.Address, pos.Collateral.String(), pos.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save position for %s: %w", pos.Address, err)
	}
	return nil
}

// GetUserPosition fetches one persisted position; the bool reports presence.
func GetUserPosition(address string) (types.UserPosition, bool, error) {
	if DB == nil {
		return types.UserPosition{}, false, fmt.Errorf("database not initialized")
	}

	query := `SELECT address, collateral::text, updated_at FROM user_positions WHERE address = $1;`
	var pos types.UserPosition
	var collateral string
	err := DB.QueryRow(query, address).Scan(&pos.Address, &collateral, &pos.UpdatedAt)
	if err == sql.ErrNoRows {
		return types.UserPosition{}, false, nil
	}
	if err != nil {
		return types.UserPosition{}, false, fmt.Errorf("failed to fetch position for %s: %w", address, err)
	}
	pos.Collateral = parseAmount(collateral)
	return pos, true, nil
}
