/*

This file contains the protocol parameter set consulted by the engine. The
defaults live in internal/config; privileged setters adjust the mutable
subset at runtime.

*/

package types

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
)

// ProtocolParameters bundles the tunables the settlement engine reads.
type ProtocolParameters struct {
	// Thresholds are the CR tier boundaries.
	Thresholds Thresholds `json:"thresholds"`

	// RecoveryBufferBps is how far above the cautious threshold an
	// intervention aims, so the system does not flap at the boundary.
	RecoveryBufferBps uint64 `json:"recovery_buffer_bps"`

	// ClaimToleranceBps bounds how far a realized unstake output may deviate
	// from the amount expected at queue time.
	ClaimToleranceBps uint64 `json:"claim_tolerance_bps"`
	// ExecutionToleranceBps bounds vault/router execution against the
	// requested amount within one operation.
	ExecutionToleranceBps uint64 `json:"execution_tolerance_bps"`

	// MinDeposit and MinRedeem are the protocol minimums, micro-units.
	MinDeposit sdkmath.Int `json:"min_deposit"`
	MinRedeem  sdkmath.Int `json:"min_redeem"`
	// DepositCap bounds cumulative deposits; zero means uncapped.
	DepositCap sdkmath.Int `json:"deposit_cap"`

	// InitialLeveragedNav prices the first leveraged mint (bootstrap 1:1).
	InitialLeveragedNav sdkmath.LegacyDec `json:"initial_leveraged_nav"`

	// MinHarvestSurplus is the smallest reserve surplus worth reconciling.
	MinHarvestSurplus sdkmath.Int `json:"min_harvest_surplus"`

	// OracleMaxAge and OracleMinConfidence form the price validity predicate.
	OracleMaxAge        time.Duration     `json:"oracle_max_age"`
	OracleMinConfidence sdkmath.LegacyDec `json:"oracle_min_confidence"`
}

// Validate rejects parameter sets the engine must never run with.
func (p ProtocolParameters) Validate() error {
	if !p.Thresholds.Valid() {
		return fmt.Errorf("thresholds must be strictly descending and nonzero: %+v", p.Thresholds)
	}
	if p.RecoveryBufferBps == 0 {
		return fmt.Errorf("recovery buffer must be positive")
	}
	if p.Thresholds.CautiousBps+p.RecoveryBufferBps > p.Thresholds.NormalBps {
		return fmt.Errorf("recovery target %d bps must not exceed the normal threshold %d bps",
			p.Thresholds.CautiousBps+p.RecoveryBufferBps, p.Thresholds.NormalBps)
	}
	if p.ClaimToleranceBps == 0 || p.ClaimToleranceBps >= BpsDenominator {
		return fmt.Errorf("claim tolerance out of range: %d bps", p.ClaimToleranceBps)
	}
	if p.ExecutionToleranceBps == 0 || p.ExecutionToleranceBps >= BpsDenominator {
		return fmt.Errorf("execution tolerance out of range: %d bps", p.ExecutionToleranceBps)
	}
	for name, v := range map[string]sdkmath.Int{
		"min_deposit":         p.MinDeposit,
		"min_redeem":          p.MinRedeem,
		"deposit_cap":         p.DepositCap,
		"min_harvest_surplus": p.MinHarvestSurplus,
	} {
		if v.IsNil() || v.IsNegative() {
			return fmt.Errorf("parameter %s must be a non-negative amount", name)
		}
	}
	if p.InitialLeveragedNav.IsNil() || !p.InitialLeveragedNav.IsPositive() {
		return fmt.Errorf("initial leveraged NAV must be positive")
	}
	if p.OracleMaxAge <= 0 {
		return fmt.Errorf("oracle max age must be positive")
	}
	if p.OracleMinConfidence.IsNil() || p.OracleMinConfidence.IsNegative() {
		return fmt.Errorf("oracle min confidence must be non-negative")
	}
	return nil
}
