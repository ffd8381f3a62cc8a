/*

This file contains the scheduled harvester. Yield accrues continuously in the
receipt exchange rate; this runs Harvest on a cron schedule so the surplus is
reconciled without an operator in the loop. A harvest that finds nothing, or
one that loses the race with a concurrent operation, is logged and retried on
the next tick.

*/

package reconcile

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/keel-protocol/keel/internal/engine"
	"github.com/keel-protocol/keel/internal/logger"
)

// Harvester runs the engine's Harvest on a cron schedule.
type Harvester struct {
	logger    zerolog.Logger
	cron      *cron.Cron
	engine    *engine.Engine
	auth      engine.AuthContext
	recipient string
}

// NewHarvester creates a harvester; Start schedules it.
func NewHarvester(eng *engine.Engine, auth engine.AuthContext, recipient string) *Harvester {
	return &Harvester{
		logger:    logger.GetForComponent("harvester"),
		cron:      cron.New(),
		engine:    eng,
		auth:      auth,
		recipient: recipient,
	}
}

// Start registers the schedule and starts the cron runner.
func (h *Harvester) Start(spec string) error {
	if _, err := h.cron.AddFunc(spec, h.runOnce); err != nil {
		return err
	}
	h.cron.Start()
	h.logger.Info().Str("schedule", spec).Msg("Harvester started")
	return nil
}

// Stop halts the scheduler; a run in progress completes.
func (h *Harvester) Stop() {
	ctx := h.cron.Stop()
	<-ctx.Done()
	h.logger.Info().Msg("Harvester stopped")
}

func (h *Harvester) runOnce() {
	minted, err := h.engine.Harvest(h.auth, h.recipient)
	if err != nil {
		h.logger.Error().Err(err).Msg("Scheduled harvest failed")
		return
	}
	if minted.IsZero() {
		h.logger.Debug().Msg("Scheduled harvest found no reconcilable surplus")
		return
	}
	h.logger.Info().Str("minted", minted.String()).Msg("Scheduled harvest reconciled surplus")
}
