package state

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
// Token amounts are stored as NUMERIC(39, 0) micro-unit strings; rates and
// NAVs as text, preserving full decimal precision.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS operation_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			op_id VARCHAR(64) NOT NULL,
			op_type VARCHAR(32) NOT NULL,
			caller VARCHAR(128) NOT NULL,
			claim_kind VARCHAR(16),
			amount_in NUMERIC(39, 0),
			amount_out NUMERIC(39, 0),
			fee_bps BIGINT NOT NULL DEFAULT 0,
			cr_before NUMERIC(20, 0) NOT NULL,
			cr_after NUMERIC(20, 0) NOT NULL,
			system_state VARCHAR(16) NOT NULL,
			total_collateral NUMERIC(39, 0) NOT NULL,
			total_receipt NUMERIC(39, 0) NOT NULL,
			locked_receipt NUMERIC(39, 0) NOT NULL,
			accumulated_fees NUMERIC(39, 0) NOT NULL,
			total_deposited NUMERIC(39, 0) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_operation_snapshots_type ON operation_snapshots (op_type, created_at DESC);

		CREATE TABLE IF NOT EXISTS withdrawal_requests (
			request_id BIGINT PRIMARY KEY,
			requester VARCHAR(128) NOT NULL,
			claim_kind VARCHAR(16) NOT NULL,
			claim_amount NUMERIC(39, 0) NOT NULL,
			receipt_amount NUMERIC(39, 0) NOT NULL,
			expected_base NUMERIC(39, 0) NOT NULL,
			cost_basis_removed NUMERIC(39, 0) NOT NULL,
			ticket_id BIGINT NOT NULL,
			queued_at TIMESTAMPTZ NOT NULL,
			estimated_ready TIMESTAMPTZ NOT NULL,
			claimed_at TIMESTAMPTZ,
			status VARCHAR(16) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_withdrawal_requests_requester ON withdrawal_requests (requester, request_id);

		CREATE TABLE IF NOT EXISTS user_positions (
			address VARCHAR(128) PRIMARY KEY,
			collateral NUMERIC(39, 0) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS interventions (
			intervention_id SERIAL PRIMARY KEY,
			kind VARCHAR(32) NOT NULL,
			par_burned NUMERIC(39, 0) NOT NULL,
			leveraged_minted NUMERIC(39, 0) NOT NULL,
			par_minted NUMERIC(39, 0) NOT NULL,
			leveraged_burned NUMERIC(39, 0) NOT NULL,
			cr_before NUMERIC(20, 0) NOT NULL,
			cr_after NUMERIC(20, 0) NOT NULL,
			executed_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS fee_schedules (
			schedule_id SERIAL PRIMARY KEY,
			actor VARCHAR(128) NOT NULL,
			schedule JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Info().Msg("Database schema ensured")
	return nil
}
