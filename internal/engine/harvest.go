/*

This file contains the yield reconciliation operations: Harvest, which
captures accrued receipt-rate yield as newly issued par claims, and
CollectFees, which withdraws accumulated protocol fees out of the vault.

*/

package engine

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"github.com/keel-protocol/keel/internal/types"
)

// Harvest measures the surplus of the live reserve value over the tracked
// cost basis and, when it clears the configured minimum, mints par claims
// worth the surplus to the recipient and marks the cost basis up to the
// current reserve value. Returns zero with no error when there is nothing
// worth harvesting.
func (e *Engine) Harvest(auth AuthContext, recipient string) (sdkmath.Int, error) {
	if err := e.begin(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer e.end()

	opID, log := e.opLogger("harvest")

	if err := e.authorize(auth, CapHarvest); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := e.requireActive(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if recipient == "" {
		return sdkmath.ZeroInt(), errorsmod.Wrap(ErrInvalidParams, "recipient cannot be empty")
	}

	// The cost basis tracks unlocked holdings only: redemption queueing
	// removes a receipt's cost basis along with the receipt. Surplus is
	// therefore measured over the available reserve; valuing locked receipts
	// here would mint par against in-flight redemptions.
	avail, err := e.availableReserve()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	surplus := avail.Sub(sdkmath.LegacyNewDecFromInt(e.reserves.TotalCollateral))
	if surplus.TruncateInt().LT(e.params.MinHarvestSurplus) {
		log.Debug().Str("surplus", surplus.String()).Msg("Surplus below harvest minimum, skipping")
		return sdkmath.ZeroInt(), nil
	}

	navP, err := e.navPar()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	toMint := surplus.Quo(navP).TruncateInt()
	if !toMint.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}

	// The minted par raises liabilities against an unchanged reserve; refuse
	// a harvest that would push the system out of the Normal tier. Solvency is
	// judged on the full reserve, locked receipts included, since queued par
	// still counts as a liability until its claim tokens are burned.
	reserve, err := e.totalReserve()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	liab, err := e.liabilities()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	liabAfter := liab.Add(sdkmath.LegacyNewDecFromInt(toMint).Mul(navP))
	normal := sdkmath.LegacyNewDec(int64(e.params.Thresholds.NormalBps)).Quo(sdkmath.LegacyNewDec(int64(types.BpsDenominator)))
	if reserve.LT(liabAfter.Mul(normal)) {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrInsufficientBuffer,
			"harvest of %s would drop cr below normal threshold", toMint)
	}

	crBefore, err := e.systemCR()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	if err := e.parToken.Mint(recipient, toMint); err != nil {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrInsufficientBalance, "mint harvested par: %v", err)
	}
	e.reserves.TotalCollateral = avail.TruncateInt()

	state := e.recomputeSystemState()
	crAfter, _ := e.systemCR()

	log.Info().
		Str("recipient", recipient).
		Str("surplus", surplus.String()).
		Str("minted", toMint.String()).
		Uint64("cr_before", crBefore).
		Uint64("cr_after", crAfter).
		Msg("Yield harvested")

	e.recordOperation(types.OperationSnapshot{
		OpID:      opID,
		OpType:    "harvest",
		Caller:    auth.Actor,
		AmountIn:  surplus.TruncateInt().String(),
		AmountOut: toMint.String(),
		CRBefore:  crBefore,
		CRAfter:   crAfter,
		State:     state.String(),
		Reserves:  e.reserves.Clone(),
		Timestamp: e.now(),
	})

	return toMint, nil
}

// CollectFees withdraws the accumulated fee receipt units from the vault and
// transfers them to the recipient, zeroing the counter. Fees stay invested
// until this runs, so the withdrawal realizes whatever yield they earned.
func (e *Engine) CollectFees(auth AuthContext, recipient string) (sdkmath.Int, error) {
	if err := e.begin(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer e.end()

	opID, log := e.opLogger("collect_fees")

	if err := e.authorize(auth, CapCollectFees); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if recipient == "" {
		return sdkmath.ZeroInt(), errorsmod.Wrap(ErrInvalidParams, "recipient cannot be empty")
	}
	fees := e.reserves.AccumulatedFees
	if fees.IsZero() {
		return sdkmath.ZeroInt(), nil
	}

	e.yieldMu.Lock()
	defer e.yieldMu.Unlock()

	shares, err := e.vault.PreviewWithdraw(fees)
	if err != nil {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrInsufficientReserve, "vault preview: %v", err)
	}
	received, err := e.vault.Redeem(shares)
	if err != nil {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrInsufficientReserve, "vault redeem: %v", err)
	}
	if err := e.receiptToken.Transfer(e.custodyAddr, recipient, received); err != nil {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrInsufficientBalance, "transfer fees: %v", err)
	}

	e.reserves.AccumulatedFees = sdkmath.ZeroInt()

	log.Info().
		Str("recipient", recipient).
		Str("collected", received.String()).
		Msg("Fees collected")

	crAfter, _ := e.systemCR()
	e.recordOperation(types.OperationSnapshot{
		OpID:      opID,
		OpType:    "collect_fees",
		Caller:    auth.Actor,
		AmountIn:  fees.String(),
		AmountOut: received.String(),
		CRBefore:  crAfter,
		CRAfter:   crAfter,
		State:     e.state.String(),
		Reserves:  e.reserves.Clone(),
		Timestamp: e.now(),
	})

	return received, nil
}
