/*

This file contains mint settlement for both claims. One routine,
parameterized by claim kind: capture the pre-operation NAV, custody the
caller's base asset, obtain receipt units through the no-slippage stake path
or a pre-quoted swap route, take the fee from the receipt actually received,
deposit gross into the vault while accounting only the net.

*/

package engine

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"github.com/keel-protocol/keel/internal/types"
	"github.com/keel-protocol/keel/internal/utils"
)

// Mint settles a deposit of the base asset into newly issued claim tokens.
// routeData selects the swap-router path; nil uses the yield source's
// no-slippage stake path and ignores minReceiptOut. Returns the claim tokens
// minted to the caller.
func (e *Engine) Mint(caller string, kind types.ClaimKind, amount, declared sdkmath.Int, routeData []byte, minReceiptOut sdkmath.Int) (sdkmath.Int, error) {
	if err := e.begin(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer e.end()

	opID, log := e.opLogger("mint")

	if err := e.requireActive(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !kind.Valid() {
		return sdkmath.ZeroInt(), ErrInvalidClaimKind
	}
	if amount.IsNil() || declared.IsNil() || !amount.Equal(declared) {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrAmountMismatch, "declared %s, supplied %s", declared, amount)
	}
	if amount.LT(e.params.MinDeposit) {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrBelowMinimum, "deposit %s < minimum %s", amount, e.params.MinDeposit)
	}
	minStake, err := e.adapter.MinStakeAmount()
	if err != nil {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrOracleInvalid, "min stake query: %v", err)
	}
	if routeData == nil && amount.LT(minStake) {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrBelowMinimum, "deposit %s < yield source minimum %s", amount, minStake)
	}
	if !e.params.DepositCap.IsZero() && e.reserves.TotalDeposited.Add(amount).GT(e.params.DepositCap) {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrDepositCapExceeded,
			"deposited %s + %s > cap %s", e.reserves.TotalDeposited, amount, e.params.DepositCap)
	}
	if routeData != nil && e.swaps == nil {
		return sdkmath.ZeroInt(), errorsmod.Wrap(ErrAmountMismatch, "no swap router configured")
	}

	// The pre-operation NAV is the issuance denominator and must be captured
	// before the deposit changes reserves.
	navP, err := e.navPar()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	preNav := navP
	if kind == types.ClaimLeveraged {
		preNav, err = e.navLeveraged()
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	crBefore, err := e.systemCR()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	feeBps := e.feeFor(kind, true, crBefore)

	// Custody the caller's base asset before any outward call.
	if err := e.baseToken.Transfer(caller, e.custodyAddr, amount); err != nil {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrInsufficientBalance, "custody base: %v", err)
	}

	e.yieldMu.Lock()
	defer e.yieldMu.Unlock()

	var received sdkmath.Int
	if routeData == nil {
		received, err = e.adapter.Stake(amount)
	} else {
		received, err = e.swaps.ExecuteSwap(routeData, e.baseSymbol, e.receiptSymbol, amount, minReceiptOut, e.custodyAddr)
	}
	if err != nil {
		// The only compensating action: hand the custodied base back.
		if rerr := e.baseToken.Transfer(e.custodyAddr, caller, amount); rerr != nil {
			log.Error().Err(rerr).Msg("Failed to return custodied base after acquisition failure")
		}
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrSlippageExceeded, "receipt acquisition: %v", err)
	}
	if routeData != nil && !minReceiptOut.IsNil() && received.LT(minReceiptOut) {
		if rerr := e.baseToken.Transfer(e.custodyAddr, caller, amount); rerr != nil {
			log.Error().Err(rerr).Msg("Failed to return custodied base after slippage rejection")
		}
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrSlippageExceeded, "received %s < minimum %s", received, minReceiptOut)
	}

	// The base asset is spent; from here the acquired receipt units are the
	// custodied equivalent, and every failure path hands them back before the
	// counters ever move.

	// Fee is a fraction of the receipt units actually received, never of the
	// nominal input.
	fee, err := utils.ApplyBps(received, feeBps)
	if err != nil {
		e.returnReceipts(log, caller, received)
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrInvalidParams, "fee: %v", err)
	}
	net := received.Sub(fee)

	rate, err := e.exchangeRate()
	if err != nil {
		e.returnReceipts(log, caller, received)
		return sdkmath.ZeroInt(), err
	}
	// Honest accounting: the realized base value of the net receipt, so swap
	// execution price and slippage show up in the cost basis.
	actualBaseValue := sdkmath.LegacyNewDecFromInt(net).Mul(rate)

	var minted sdkmath.Int
	if kind == types.ClaimPar {
		minted = actualBaseValue.Quo(navP).TruncateInt()
	} else {
		minted = actualBaseValue.Quo(preNav).TruncateInt()
	}
	if !minted.IsPositive() {
		e.returnReceipts(log, caller, received)
		return sdkmath.ZeroInt(), errorsmod.Wrap(ErrBelowMinimum, "net value too small to mint")
	}

	if err := e.claimToken(kind).Mint(caller, minted); err != nil {
		e.returnReceipts(log, caller, received)
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrInsufficientBalance, "mint claim: %v", err)
	}

	// Gross goes into the vault; the fee stays invested until collected.
	if err := e.vault.Deposit(received); err != nil {
		if berr := e.claimToken(kind).Burn(caller, minted); berr != nil {
			log.Error().Err(berr).Msg("Failed to burn claim after vault deposit failure")
		}
		e.returnReceipts(log, caller, received)
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrInsufficientReserve, "vault deposit: %v", err)
	}

	// Counters commit only once every external call has succeeded.
	actualBaseInt := actualBaseValue.TruncateInt()
	e.reserves.TotalReceiptBalance = e.reserves.TotalReceiptBalance.Add(net)
	e.reserves.AccumulatedFees = e.reserves.AccumulatedFees.Add(fee)
	e.reserves.TotalCollateral = e.reserves.TotalCollateral.Add(actualBaseInt)
	e.reserves.TotalDeposited = e.reserves.TotalDeposited.Add(amount)

	pos := e.bumpPosition(caller, actualBaseInt)
	state := e.recomputeSystemState()
	crAfter, _ := e.systemCR()

	log.Info().
		Str("caller", caller).
		Str("kind", kind.String()).
		Str("amount_in", amount.String()).
		Str("receipt_received", received.String()).
		Str("receipt_net", net.String()).
		Str("minted", minted.String()).
		Uint64("fee_bps", feeBps).
		Uint64("cr_after", crAfter).
		Str("state", state.String()).
		Msg("Minted")

	e.recordPosition(pos)
	e.recordOperation(types.OperationSnapshot{
		OpID:      opID,
		OpType:    "mint",
		Caller:    caller,
		Kind:      kind.String(),
		AmountIn:  amount.String(),
		AmountOut: minted.String(),
		FeeBps:    feeBps,
		CRBefore:  crBefore,
		CRAfter:   crAfter,
		State:     state.String(),
		Reserves:  e.reserves.Clone(),
		Timestamp: e.now(),
	})

	return minted, nil
}
