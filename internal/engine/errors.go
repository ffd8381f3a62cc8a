/*

This file contains the engine error registry. Every failure class gets one
registered error; callers branch with errors.Is and operations abort whole,
never partially.

*/

package engine

import (
	errorsmod "cosmossdk.io/errors"
)

const codespace = "engine"

var (
	// Input validation
	ErrAmountMismatch     = errorsmod.Register(codespace, 2, "declared amount does not match supplied value")
	ErrBelowMinimum       = errorsmod.Register(codespace, 3, "amount below protocol minimum")
	ErrDepositCapExceeded = errorsmod.Register(codespace, 4, "deposit cap exceeded")
	ErrInvalidClaimKind   = errorsmod.Register(codespace, 5, "invalid claim kind")

	// Oracle / feed
	ErrOracleInvalid = errorsmod.Register(codespace, 10, "oracle price invalid or stale")

	// Solvency
	ErrInsufficientReserve = errorsmod.Register(codespace, 20, "insufficient free reserve")
	ErrInsufficientBalance = errorsmod.Register(codespace, 21, "insufficient balance")
	ErrInsufficientBuffer  = errorsmod.Register(codespace, 22, "insufficient buffer pool balance")

	// External-system mismatch
	ErrSlippageExceeded = errorsmod.Register(codespace, 30, "realized amount outside acceptance tolerance")

	// State
	ErrNotReady         = errorsmod.Register(codespace, 40, "withdrawal not ready")
	ErrAlreadyFinalized = errorsmod.Register(codespace, 41, "withdrawal already claimed or cancelled")
	ErrUnknownRequest   = errorsmod.Register(codespace, 42, "unknown withdrawal request")
	ErrUnauthorized     = errorsmod.Register(codespace, 43, "missing capability")
	ErrPaused           = errorsmod.Register(codespace, 44, "engine is paused")
	ErrReentrantCall    = errorsmod.Register(codespace, 45, "reentrant call into the ledger")

	// Intervention
	ErrInterventionNotAllowed = errorsmod.Register(codespace, 50, "intervention preconditions not met")
	ErrCRRegression           = errorsmod.Register(codespace, 51, "intervention would not improve collateral ratio")

	// Configuration
	ErrFeeAboveMaximum = errorsmod.Register(codespace, 60, "fee schedule exceeds hard maximum")
	ErrInvalidParams   = errorsmod.Register(codespace, 61, "invalid protocol parameters")
)
