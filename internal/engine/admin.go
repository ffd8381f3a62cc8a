/*

This file contains the privileged policy mutators: fee schedule, operational
minimums, deposit cap, and the pause switch. These change configuration, not
ledger state; validation happens here so settlement can trust the values.

*/

package engine

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"github.com/keel-protocol/keel/internal/types"
)

// SetFeeSchedule replaces the fee schedule. Rates are validated against the
// hard maxima here, never at settlement time.
func (e *Engine) SetFeeSchedule(auth AuthContext, schedule types.FeeSchedule) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	if err := e.authorize(auth, CapConfigure); err != nil {
		return err
	}
	if err := schedule.Validate(); err != nil {
		return errorsmod.Wrapf(ErrFeeAboveMaximum, "%v", err)
	}

	e.fees = schedule
	e.logger.Info().Str("actor", auth.Actor).Msg("Fee schedule updated")
	if err := e.recorder.RecordFeeSchedule(schedule, auth.Actor); err != nil {
		e.logger.Error().Err(err).Msg("Failed to record fee schedule")
	}
	return nil
}

// SetMinimums updates the mint and redeem floors.
func (e *Engine) SetMinimums(auth AuthContext, minDeposit, minRedeem sdkmath.Int) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	if err := e.authorize(auth, CapConfigure); err != nil {
		return err
	}
	if minDeposit.IsNil() || minDeposit.IsNegative() || minRedeem.IsNil() || minRedeem.IsNegative() {
		return errorsmod.Wrap(ErrInvalidParams, "minimums must be non-negative")
	}

	e.params.MinDeposit = minDeposit
	e.params.MinRedeem = minRedeem
	e.logger.Info().
		Str("actor", auth.Actor).
		Str("min_deposit", minDeposit.String()).
		Str("min_redeem", minRedeem.String()).
		Msg("Minimums updated")
	return nil
}

// SetDepositCap updates the cumulative deposit cap. Zero disables the cap.
func (e *Engine) SetDepositCap(auth AuthContext, cap sdkmath.Int) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	if err := e.authorize(auth, CapConfigure); err != nil {
		return err
	}
	if cap.IsNil() || cap.IsNegative() {
		return errorsmod.Wrap(ErrInvalidParams, "deposit cap must be non-negative")
	}

	e.params.DepositCap = cap
	e.logger.Info().Str("actor", auth.Actor).Str("cap", cap.String()).Msg("Deposit cap updated")
	return nil
}

// Pause halts settlement. Reads and administrative calls keep working.
func (e *Engine) Pause(auth AuthContext) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	if err := e.authorize(auth, CapPause); err != nil {
		return err
	}
	if e.paused {
		return nil
	}
	e.paused = true
	e.logger.Warn().Str("actor", auth.Actor).Msg("Settlement paused")
	return nil
}

// Unpause resumes settlement.
func (e *Engine) Unpause(auth AuthContext) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	if err := e.authorize(auth, CapPause); err != nil {
		return err
	}
	if !e.paused {
		return nil
	}
	e.paused = false
	e.logger.Info().Str("actor", auth.Actor).Msg("Settlement resumed")
	return nil
}
