/*

This file contains the intervention controller: the permissionless pool
rebalancing that retires par claims from the buffer pool when the collateral
ratio sinks to the Cautious threshold, and the symmetric exit that converts
the pool's accumulated leveraged claims back once the ratio has recovered.
Both are sized analytically before any token moves so the post-condition can
be checked without an undo path.

*/

package engine

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"github.com/keel-protocol/keel/internal/types"
)

// Intervene retires par claims held by the buffer pool and replaces them
// with value-equivalent leveraged claims, lifting the collateral ratio onto
// the recovery target above the Cautious threshold. Callable by anyone.
func (e *Engine) Intervene() (types.InterventionRecord, error) {
	if err := e.begin(); err != nil {
		return types.InterventionRecord{}, err
	}
	defer e.end()

	opID, log := e.opLogger("intervene")

	if err := e.requireActive(); err != nil {
		return types.InterventionRecord{}, err
	}

	crBefore, err := e.systemCR()
	if err != nil {
		return types.InterventionRecord{}, err
	}
	if crBefore > e.params.Thresholds.CautiousBps {
		return types.InterventionRecord{}, errorsmod.Wrapf(ErrInterventionNotAllowed,
			"cr %d above cautious threshold %d", crBefore, e.params.Thresholds.CautiousBps)
	}
	if e.state == types.StateEmergency {
		return types.InterventionRecord{}, errorsmod.Wrap(ErrInterventionNotAllowed,
			"reserves no longer cover par liabilities")
	}

	navP, err := e.navPar()
	if err != nil {
		return types.InterventionRecord{}, err
	}
	// Captured before the burn changes supply; this is the issuance price for
	// the replacement leveraged claims (fixed initial NAV at bootstrap).
	navL, err := e.navLeveraged()
	if err != nil {
		return types.InterventionRecord{}, err
	}
	reserve, err := e.totalReserve()
	if err != nil {
		return types.InterventionRecord{}, err
	}
	liab, err := e.liabilities()
	if err != nil {
		return types.InterventionRecord{}, err
	}

	targetBps := e.params.Thresholds.CautiousBps + e.params.RecoveryBufferBps
	targetCR := sdkmath.LegacyNewDec(int64(targetBps)).Quo(sdkmath.LegacyNewDec(int64(types.BpsDenominator)))
	requiredLiab := reserve.Quo(targetCR)
	if liab.LTE(requiredLiab) {
		return types.InterventionRecord{}, errorsmod.Wrapf(ErrInterventionNotAllowed,
			"liabilities %s already within target %s", liab, requiredLiab)
	}
	reduction := liab.Sub(requiredLiab)

	// Round up so the post-intervention CR lands at or above target.
	parToBurn := reduction.Quo(navP).Ceil().TruncateInt()
	poolBalance, err := e.parToken.BalanceOf(e.bufferPool)
	if err != nil {
		return types.InterventionRecord{}, errorsmod.Wrapf(ErrInsufficientBalance, "buffer pool balance: %v", err)
	}
	if poolBalance.LT(parToBurn) {
		return types.InterventionRecord{}, errorsmod.Wrapf(ErrInsufficientBuffer,
			"buffer pool holds %s par, intervention needs %s", poolBalance, parToBurn)
	}

	burnedValue := sdkmath.LegacyNewDecFromInt(parToBurn).Mul(navP)
	levToMint := burnedValue.Quo(navL).TruncateInt()

	if err := e.parToken.Burn(e.bufferPool, parToBurn); err != nil {
		return types.InterventionRecord{}, errorsmod.Wrapf(ErrInsufficientBalance, "burn par: %v", err)
	}
	if err := e.levToken.Mint(e.bufferPool, levToMint); err != nil {
		return types.InterventionRecord{}, errorsmod.Wrapf(ErrInsufficientBalance, "mint leveraged: %v", err)
	}

	state := e.recomputeSystemState()
	crAfter, err := e.systemCR()
	if err != nil {
		return types.InterventionRecord{}, err
	}
	if crAfter < crBefore {
		// Sizing error, not a market move: the burn can only raise the ratio.
		return types.InterventionRecord{}, errorsmod.Wrapf(ErrCRRegression,
			"cr fell %d -> %d across intervention", crBefore, crAfter)
	}

	rec := types.InterventionRecord{
		Kind:            types.InterventionRebalance,
		ParBurned:       parToBurn,
		LeveragedMinted: levToMint,
		ParMinted:       sdkmath.ZeroInt(),
		LeveragedBurned: sdkmath.ZeroInt(),
		CRBefore:        crBefore,
		CRAfter:         crAfter,
		Timestamp:       e.now(),
	}

	log.Info().
		Str("par_burned", parToBurn.String()).
		Str("leveraged_minted", levToMint.String()).
		Uint64("cr_before", crBefore).
		Uint64("cr_after", crAfter).
		Str("state", state.String()).
		Msg("Intervention executed")

	if err := e.recorder.RecordIntervention(rec); err != nil {
		log.Error().Err(err).Str("op_id", opID).Msg("Failed to record intervention")
	}
	return rec, nil
}

// ExitRecovery converts the buffer pool's leveraged claims back into par
// once the collateral ratio has risen above the Normal threshold, restoring
// the pool's single-asset state. The conversion itself raises par
// liabilities, so it is sized first and refused if it would drag the ratio
// back under Normal.
func (e *Engine) ExitRecovery() (types.InterventionRecord, error) {
	if err := e.begin(); err != nil {
		return types.InterventionRecord{}, err
	}
	defer e.end()

	opID, log := e.opLogger("exit_recovery")

	if err := e.requireActive(); err != nil {
		return types.InterventionRecord{}, err
	}

	crBefore, err := e.systemCR()
	if err != nil {
		return types.InterventionRecord{}, err
	}
	if crBefore <= e.params.Thresholds.NormalBps {
		return types.InterventionRecord{}, errorsmod.Wrapf(ErrInterventionNotAllowed,
			"cr %d not above normal threshold %d", crBefore, e.params.Thresholds.NormalBps)
	}

	levBalance, err := e.levToken.BalanceOf(e.bufferPool)
	if err != nil {
		return types.InterventionRecord{}, errorsmod.Wrapf(ErrInsufficientBalance, "buffer pool balance: %v", err)
	}
	if levBalance.IsZero() {
		return types.InterventionRecord{}, errorsmod.Wrap(ErrInterventionNotAllowed, "buffer pool holds no leveraged claims")
	}

	navP, err := e.navPar()
	if err != nil {
		return types.InterventionRecord{}, err
	}
	navL, err := e.navLeveraged()
	if err != nil {
		return types.InterventionRecord{}, err
	}
	reserve, err := e.totalReserve()
	if err != nil {
		return types.InterventionRecord{}, err
	}
	liab, err := e.liabilities()
	if err != nil {
		return types.InterventionRecord{}, err
	}

	value := sdkmath.LegacyNewDecFromInt(levBalance).Mul(navL)
	parToMint := value.Quo(navP).TruncateInt()
	if !parToMint.IsPositive() {
		return types.InterventionRecord{}, errorsmod.Wrap(ErrInterventionNotAllowed, "leveraged balance too small to convert")
	}

	// The minted par raises liabilities with reserves unchanged; check the
	// resulting ratio before touching any ledger.
	liabAfter := liab.Add(sdkmath.LegacyNewDecFromInt(parToMint).Mul(navP))
	normal := sdkmath.LegacyNewDec(int64(e.params.Thresholds.NormalBps)).Quo(sdkmath.LegacyNewDec(int64(types.BpsDenominator)))
	if reserve.LT(liabAfter.Mul(normal)) {
		return types.InterventionRecord{}, errorsmod.Wrapf(ErrInterventionNotAllowed,
			"conversion would drop cr below normal threshold %d", e.params.Thresholds.NormalBps)
	}

	if err := e.levToken.Burn(e.bufferPool, levBalance); err != nil {
		return types.InterventionRecord{}, errorsmod.Wrapf(ErrInsufficientBalance, "burn leveraged: %v", err)
	}
	if err := e.parToken.Mint(e.bufferPool, parToMint); err != nil {
		return types.InterventionRecord{}, errorsmod.Wrapf(ErrInsufficientBalance, "mint par: %v", err)
	}

	state := e.recomputeSystemState()
	crAfter, err := e.systemCR()
	if err != nil {
		return types.InterventionRecord{}, err
	}
	if crAfter < e.params.Thresholds.NormalBps {
		return types.InterventionRecord{}, errorsmod.Wrapf(ErrCRRegression,
			"cr %d below normal threshold after exit", crAfter)
	}

	rec := types.InterventionRecord{
		Kind:            types.InterventionRecoveryExit,
		ParBurned:       sdkmath.ZeroInt(),
		LeveragedMinted: sdkmath.ZeroInt(),
		ParMinted:       parToMint,
		LeveragedBurned: levBalance,
		CRBefore:        crBefore,
		CRAfter:         crAfter,
		Timestamp:       e.now(),
	}

	log.Info().
		Str("leveraged_burned", levBalance.String()).
		Str("par_minted", parToMint.String()).
		Uint64("cr_before", crBefore).
		Uint64("cr_after", crAfter).
		Str("state", state.String()).
		Msg("Recovery exit executed")

	if err := e.recorder.RecordIntervention(rec); err != nil {
		log.Error().Err(err).Str("op_id", opID).Msg("Failed to record intervention")
	}
	return rec, nil
}
