package main

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/keel-protocol/keel/internal/config"
	"github.com/keel-protocol/keel/internal/engine"
	"github.com/keel-protocol/keel/internal/logger"
	"github.com/keel-protocol/keel/internal/reconcile"
	"github.com/keel-protocol/keel/internal/simulations"
	"github.com/keel-protocol/keel/internal/state"
	"github.com/keel-protocol/keel/internal/web"

	sdkmath "cosmossdk.io/math"
)

// main is the entry point for the keel accounting daemon.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Keel accounting core starting...")

	// Initialize the audit database if configured; without it the engine runs
	// with in-memory audit only.
	var recorder engine.Recorder
	persisted := false
	if config.DBHost != "" {
		dbCfg := state.DBConfig{
			Host: config.DBHost, Port: config.DBPort,
			User: config.DBUser, Password: config.DBPassword,
			DBName: config.DBName, SSLMode: config.DBSSLMode,
		}
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		recorder = state.NewPostgresRecorder()
		persisted = true
	} else {
		log.Warn().Msg("DB_HOST not set; running without persisted audit history")
		recorder = engine.NewNoopRecorder()
	}

	// Fee schedule: most recent persisted one wins, defaults otherwise.
	feeSchedule := config.DefaultFeeSchedule
	if persisted {
		if s, ok, err := state.GetLatestFeeSchedule(); err != nil {
			log.Warn().Err(err).Msg("Failed to load persisted fee schedule, using defaults")
		} else if ok {
			feeSchedule = s
			log.Info().Msg("Loaded persisted fee schedule")
		}
	}

	// --- 2. Collaborator Wiring (with Safety Switch) ---
	// Only the simulated collaborator set exists today. Refuse to start in any
	// other mode rather than silently simulating against production config.
	if config.Mode != "sim" {
		log.Fatal().Str("mode", config.Mode).Msg("KEEL_MODE must be 'sim'. Halting to prevent accidental execution against unimplemented live adapters.")
	}
	log.Warn().Msg("Initializing in SIM mode. All collaborators are in-memory simulations.")

	baseToken := simulations.NewSimToken(config.BaseSymbol)
	receiptToken := simulations.NewSimToken(config.ReceiptSymbol)
	parToken := simulations.NewSimToken("kPAR")
	levToken := simulations.NewSimToken("kLEV")

	simOracle := simulations.NewSimOracle(nil)
	simOracle.SetPrice(config.BaseSymbol, sdkmath.LegacyOneDec())

	yieldSource := simulations.NewSimYieldSource(baseToken, receiptToken, config.CustodyAddr, 24*time.Hour, nil)
	vault := simulations.NewSimVault(receiptToken, config.CustodyAddr, "sim-vault")
	swapRouter := simulations.NewSimRouter(yieldSource, baseToken, receiptToken, 30)

	// --- 3. Engine Assembly with Dependency Injection ---
	eng, err := engine.New(engine.Config{
		Oracle:  simOracle,
		Adapter: yieldSource,
		Vault:   vault,
		Router:  swapRouter,

		ParToken:     parToken,
		LevToken:     levToken,
		BaseToken:    baseToken,
		ReceiptToken: receiptToken,

		BaseSymbol:    config.BaseSymbol,
		ReceiptSymbol: config.ReceiptSymbol,
		CustodyAddr:   config.CustodyAddr,
		BufferPool:    config.BufferPool,

		Params:      config.DefaultProtocolParameters,
		FeeSchedule: feeSchedule,

		Recorder: recorder,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create engine")
	}

	// --- 4. Web Server ---
	webServer := web.NewWebServer(eng, strconv.Itoa(config.WebPort), persisted)
	go func() {
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 5. Scheduled Harvest ---
	if config.HarvestCron != "" {
		auth := engine.NewAuthContext("harvester", engine.CapHarvest)
		harvester := reconcile.NewHarvester(eng, auth, config.RevenueRecipient)
		if err := harvester.Start(config.HarvestCron); err != nil {
			log.Fatal().Err(err).Str("schedule", config.HarvestCron).Msg("Failed to start harvester")
		}
		defer harvester.Stop()
	} else {
		log.Info().Msg("HARVEST_CRON not set; scheduled harvest disabled")
	}

	// --- 6. Run Until Signalled ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down")
}
