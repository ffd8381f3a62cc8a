/*

This file contains the NAV and collateral-ratio derivations. Everything here
is read-only over the reserve counters, the oracle price, and the live
receipt exchange rate; calling any of it twice with no intervening mutation
returns identical results.

*/

package engine

import (
	sdkmath "cosmossdk.io/math"
	errorsmod "cosmossdk.io/errors"

	"github.com/keel-protocol/keel/internal/oracle"
	"github.com/keel-protocol/keel/internal/types"
	"github.com/keel-protocol/keel/internal/utils"
)

// oraclePrice fetches and validates the base-asset reference price.
func (e *Engine) oraclePrice() (sdkmath.LegacyDec, error) {
	data, err := e.oracle.GetPrice(e.baseSymbol)
	if err != nil {
		return sdkmath.LegacyZeroDec(), errorsmod.Wrapf(ErrOracleInvalid, "fetch %s: %v", e.baseSymbol, err)
	}
	if !e.oracle.IsValidPrice(data) {
		return sdkmath.LegacyZeroDec(), errorsmod.Wrapf(ErrOracleInvalid, "feed rejected %s observation", e.baseSymbol)
	}
	if !oracle.Valid(data, e.params.OracleMaxAge, e.params.OracleMinConfidence, e.now()) {
		return sdkmath.LegacyZeroDec(), errorsmod.Wrapf(ErrOracleInvalid, "%s price failed freshness/confidence predicate", e.baseSymbol)
	}
	return data.Price, nil
}

// exchangeRate fetches and validates the receipt→base rate.
func (e *Engine) exchangeRate() (sdkmath.LegacyDec, error) {
	rate, err := e.adapter.ExchangeRate()
	if err != nil {
		return sdkmath.LegacyZeroDec(), errorsmod.Wrapf(ErrOracleInvalid, "exchange rate: %v", err)
	}
	if rate.IsNil() || !rate.IsPositive() {
		return sdkmath.LegacyZeroDec(), errorsmod.Wrap(ErrOracleInvalid, "exchange rate not positive")
	}
	return rate, nil
}

// navPar is the par claim NAV in base-asset terms: pegged 1:1 to the
// reference unit, so 1/price.
func (e *Engine) navPar() (sdkmath.LegacyDec, error) {
	price, err := e.oraclePrice()
	if err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	return sdkmath.LegacyOneDec().Quo(price), nil
}

// totalReserve values available plus locked receipt at the live rate. With
// no receipt units yet (bootstrap) it falls back to the raw cost basis.
func (e *Engine) totalReserve() (sdkmath.LegacyDec, error) {
	total := e.reserves.TotalReceiptBalance.Add(e.reserves.LockedReceiptBalance)
	if total.IsZero() {
		return sdkmath.LegacyNewDecFromInt(e.reserves.TotalCollateral), nil
	}
	rate, err := e.exchangeRate()
	if err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	return sdkmath.LegacyNewDecFromInt(total).Mul(rate), nil
}

// availableReserve excludes locked/in-flight amounts; it gates redemption
// admissibility.
func (e *Engine) availableReserve() (sdkmath.LegacyDec, error) {
	if e.reserves.TotalReceiptBalance.IsZero() {
		return sdkmath.LegacyZeroDec(), nil
	}
	rate, err := e.exchangeRate()
	if err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	return sdkmath.LegacyNewDecFromInt(e.reserves.TotalReceiptBalance).Mul(rate), nil
}

// liabilities is the base-asset value owed to par claim holders.
func (e *Engine) liabilities() (sdkmath.LegacyDec, error) {
	supply, err := e.parToken.TotalSupply()
	if err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	if supply.IsZero() {
		return sdkmath.LegacyZeroDec(), nil
	}
	nav, err := e.navPar()
	if err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	return sdkmath.LegacyNewDecFromInt(supply).Mul(nav), nil
}

// navLeveraged is the residual value per leveraged claim. Undefined, not
// zero, once reserves no longer cover par liabilities: callers must not
// proceed with leveraged operations in that state.
func (e *Engine) navLeveraged() (sdkmath.LegacyDec, error) {
	supply, err := e.levToken.TotalSupply()
	if err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	if supply.IsZero() {
		return e.params.InitialLeveragedNav, nil
	}
	reserve, err := e.totalReserve()
	if err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	liab, err := e.liabilities()
	if err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	if reserve.LTE(liab) {
		return sdkmath.LegacyZeroDec(), errorsmod.Wrapf(ErrInsufficientReserve,
			"reserve %s does not cover liabilities %s", reserve, liab)
	}
	return reserve.Sub(liab).Quo(sdkmath.LegacyNewDecFromInt(supply)), nil
}

// navFor resolves the settlement NAV for a claim kind.
func (e *Engine) navFor(kind types.ClaimKind) (sdkmath.LegacyDec, error) {
	if kind == types.ClaimPar {
		return e.navPar()
	}
	return e.navLeveraged()
}

// systemCR is total reserve over par liabilities in basis points, with the
// infinite sentinel while no par claims are outstanding.
func (e *Engine) systemCR() (uint64, error) {
	liab, err := e.liabilities()
	if err != nil {
		return 0, err
	}
	if liab.IsZero() {
		return types.CRInfinite, nil
	}
	reserve, err := e.totalReserve()
	if err != nil {
		return 0, err
	}
	return utils.RatioToBps(reserve, liab), nil
}

// NavPar is the public, locked read of the par claim NAV.
func (e *Engine) NavPar() (sdkmath.LegacyDec, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.navPar()
}

// NavLeveraged is the public, locked read of the leveraged claim NAV.
func (e *Engine) NavLeveraged() (sdkmath.LegacyDec, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.navLeveraged()
}

// SystemCR is the public, locked read of the collateral ratio.
func (e *Engine) SystemCR() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.systemCR()
}
