package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment
// variables. These are populated at startup by the LoadConfig function.
var (
	// Mode selects the collaborator wiring; only "sim" is accepted until a
	// production adapter set exists.
	Mode string

	// BaseSymbol is the base asset denomination the protocol accounts in.
	BaseSymbol string
	// ReceiptSymbol is the yield-bearing receipt denomination.
	ReceiptSymbol string
	// CustodyAddr is the address holding in-flight custody balances.
	CustodyAddr string
	// BufferPool is the address the intervention controller rebalances.
	BufferPool string
	// RevenueRecipient receives harvested yield and collected fees.
	RevenueRecipient string

	// WebPort is the port for the status server.
	WebPort int

	// HarvestCron is the cron expression for the scheduled harvest; empty
	// disables the scheduler.
	HarvestCron string

	// DBHost and friends configure the audit database. DBHost empty means
	// run without persistence.
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
)

// LoadConfig loads configuration from environment variables and sets the
// global config vars. Protocol identifiers are required; the database and
// scheduler blocks are optional.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	Mode, err = getEnv("KEEL_MODE")
	if err != nil {
		return err
	}

	BaseSymbol, err = getEnv("KEEL_BASE_SYMBOL")
	if err != nil {
		return err
	}

	ReceiptSymbol, err = getEnv("KEEL_RECEIPT_SYMBOL")
	if err != nil {
		return err
	}

	CustodyAddr, err = getEnv("KEEL_CUSTODY_ADDR")
	if err != nil {
		return err
	}

	BufferPool, err = getEnv("KEEL_BUFFER_POOL")
	if err != nil {
		return err
	}

	RevenueRecipient, err = getEnv("KEEL_REVENUE_RECIPIENT")
	if err != nil {
		return err
	}

	WebPort, err = getEnvAsInt("WEB_PORT")
	if err != nil {
		return err
	}

	HarvestCron = getEnvOptional("HARVEST_CRON", "")

	DBHost = getEnvOptional("DB_HOST", "")
	if DBHost != "" {
		DBPort, err = getEnvAsInt("DB_PORT")
		if err != nil {
			return err
		}
		DBUser, err = getEnv("DB_USER")
		if err != nil {
			return err
		}
		DBPassword, err = getEnv("DB_PASSWORD")
		if err != nil {
			return err
		}
		DBName, err = getEnv("DB_NAME")
		if err != nil {
			return err
		}
		DBSSLMode = getEnvOptional("DB_SSLMODE", "disable")
	}

	log.Debug().
		Str("Mode", Mode).
		Str("BaseSymbol", BaseSymbol).
		Str("ReceiptSymbol", ReceiptSymbol).
		Int("WebPort", WebPort).
		Bool("DatabaseConfigured", DBHost != "").
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOptional retrieves a string environment variable with a fallback.
func getEnvOptional(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an int. Returns error if
// not set or invalid.
func getEnvAsInt(key string) (int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int, got: " + valueStr)
	}
	return value, nil
}
