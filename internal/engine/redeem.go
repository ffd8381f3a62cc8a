/*

This file contains the two-phase redemption flow. Phase one values the claim
tokens, custodies them, moves the net receipt out of the vault into the yield
source's unstake queue and books a WithdrawalRequest. Phase two claims a ready
ticket, enforcing a tolerance band around the payout expected at queue time.
Cancellation is administrative and restores queue-time bookkeeping.

*/

package engine

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/keel-protocol/keel/internal/types"
	"github.com/keel-protocol/keel/internal/utils"
)

// Redeem runs phase one: claim tokens into custody, net receipt units into
// the unstake queue, and a Queued WithdrawalRequest out. The caller claims
// the base asset later through ClaimWithdrawal once the ticket matures.
func (e *Engine) Redeem(caller string, kind types.ClaimKind, amount, declared sdkmath.Int) (types.WithdrawalRequest, error) {
	if err := e.begin(); err != nil {
		return types.WithdrawalRequest{}, err
	}
	defer e.end()

	opID, log := e.opLogger("redeem")

	if err := e.requireActive(); err != nil {
		return types.WithdrawalRequest{}, err
	}
	if !kind.Valid() {
		return types.WithdrawalRequest{}, ErrInvalidClaimKind
	}
	if amount.IsNil() || declared.IsNil() || !amount.Equal(declared) {
		return types.WithdrawalRequest{}, errorsmod.Wrapf(ErrAmountMismatch, "declared %s, supplied %s", declared, amount)
	}
	if amount.LT(e.params.MinRedeem) {
		return types.WithdrawalRequest{}, errorsmod.Wrapf(ErrBelowMinimum, "redeem %s < minimum %s", amount, e.params.MinRedeem)
	}
	balance, err := e.claimToken(kind).BalanceOf(caller)
	if err != nil {
		return types.WithdrawalRequest{}, errorsmod.Wrapf(ErrInsufficientBalance, "balance query: %v", err)
	}
	if balance.LT(amount) {
		return types.WithdrawalRequest{}, errorsmod.Wrapf(ErrInsufficientBalance, "balance %s < redeem %s", balance, amount)
	}

	nav, err := e.navFor(kind)
	if err != nil {
		return types.WithdrawalRequest{}, err
	}
	rate, err := e.exchangeRate()
	if err != nil {
		return types.WithdrawalRequest{}, err
	}
	crBefore, err := e.systemCR()
	if err != nil {
		return types.WithdrawalRequest{}, err
	}
	feeBps := e.feeFor(kind, false, crBefore)

	grossBase := sdkmath.LegacyNewDecFromInt(amount).Mul(nav)
	feeBase, err := utils.ApplyBpsDec(grossBase, feeBps)
	if err != nil {
		return types.WithdrawalRequest{}, errorsmod.Wrapf(ErrInvalidParams, "fee: %v", err)
	}
	netBase := grossBase.Sub(feeBase)

	grossReceipt, err := utils.DivByRate(grossBase, rate)
	if err != nil {
		return types.WithdrawalRequest{}, err
	}
	feeReceipt, err := utils.DivByRate(feeBase, rate)
	if err != nil {
		return types.WithdrawalRequest{}, err
	}
	netReceipt := grossReceipt.Sub(feeReceipt)
	if !netReceipt.IsPositive() {
		return types.WithdrawalRequest{}, errorsmod.Wrap(ErrBelowMinimum, "net redemption too small")
	}
	if grossReceipt.GT(e.reserves.TotalReceiptBalance) {
		return types.WithdrawalRequest{}, errorsmod.Wrapf(ErrInsufficientReserve,
			"gross receipt %s > available %s", grossReceipt, e.reserves.TotalReceiptBalance)
	}

	// Solvency gates. Par redemptions draw only on the free reserve above par
	// liabilities; leveraged redemptions are bounded by the cost basis.
	if kind == types.ClaimPar {
		avail, err := e.availableReserve()
		if err != nil {
			return types.WithdrawalRequest{}, err
		}
		liab, err := e.liabilities()
		if err != nil {
			return types.WithdrawalRequest{}, err
		}
		if avail.Sub(liab).LT(netBase) {
			return types.WithdrawalRequest{}, errorsmod.Wrapf(ErrInsufficientReserve,
				"free reserve %s < net payout %s", avail.Sub(liab), netBase)
		}
	} else {
		if netBase.GT(sdkmath.LegacyNewDecFromInt(e.reserves.TotalCollateral)) {
			return types.WithdrawalRequest{}, errorsmod.Wrapf(ErrInsufficientReserve,
				"net payout %s > cost basis %s", netBase, e.reserves.TotalCollateral)
		}
	}

	// Custody precedes every external call so a reentrant actor cannot redeem
	// twice against the same balance.
	if err := e.claimToken(kind).Transfer(caller, e.custodyAddr, amount); err != nil {
		return types.WithdrawalRequest{}, errorsmod.Wrapf(ErrInsufficientBalance, "custody claim tokens: %v", err)
	}

	e.yieldMu.Lock()
	defer e.yieldMu.Unlock()

	shares, err := e.vault.PreviewWithdraw(netReceipt)
	if err != nil {
		e.returnCustody(log, kind, caller, amount)
		return types.WithdrawalRequest{}, errorsmod.Wrapf(ErrInsufficientReserve, "vault preview: %v", err)
	}
	withdrawn, err := e.vault.Redeem(shares)
	if err != nil {
		e.returnCustody(log, kind, caller, amount)
		return types.WithdrawalRequest{}, errorsmod.Wrapf(ErrInsufficientReserve, "vault redeem: %v", err)
	}
	if withdrawn.LT(netReceipt) {
		netReceipt = withdrawn
	}

	ticketID, err := e.adapter.QueueUnstake(netReceipt)
	if err != nil {
		if derr := e.vault.Deposit(withdrawn); derr != nil {
			log.Error().Err(derr).Msg("Failed to re-deposit receipt after unstake-queue failure")
		}
		e.returnCustody(log, kind, caller, amount)
		return types.WithdrawalRequest{}, errorsmod.Wrapf(ErrInsufficientReserve, "queue unstake: %v", err)
	}

	expectedBase := sdkmath.LegacyNewDecFromInt(netReceipt).Mul(rate).TruncateInt()

	// Cost basis leaves in proportion to the fraction of the receipt pool
	// that physically left.
	costBasisRemoved := grossReceipt.Mul(e.reserves.TotalCollateral).Quo(e.reserves.TotalReceiptBalance)
	costBasisRemoved = utils.IntMin(costBasisRemoved, e.reserves.TotalCollateral)

	e.reserves.TotalReceiptBalance = e.reserves.TotalReceiptBalance.Sub(grossReceipt)
	e.reserves.LockedReceiptBalance = e.reserves.LockedReceiptBalance.Add(netReceipt)
	e.reserves.AccumulatedFees = e.reserves.AccumulatedFees.Add(feeReceipt)
	e.reserves.TotalCollateral = e.reserves.TotalCollateral.Sub(costBasisRemoved)
	e.reserves.TotalDeposited = e.reserves.TotalDeposited.Sub(utils.IntMin(e.reserves.TotalDeposited, costBasisRemoved))

	delay, derr := e.adapter.WithdrawalDelay()
	if derr != nil {
		log.Warn().Err(derr).Msg("Withdrawal delay unavailable, readiness estimate omitted")
		delay = 0
	}
	queuedAt := e.now()
	req := e.queue.add(types.WithdrawalRequest{
		Requester:        caller,
		Kind:             kind,
		ClaimAmount:      amount,
		ReceiptAmount:    netReceipt,
		ExpectedBase:     expectedBase,
		CostBasisRemoved: costBasisRemoved,
		TicketID:         ticketID,
		QueuedAt:         queuedAt,
		EstimatedReady:   queuedAt.Add(delay),
		Status:           types.WithdrawalQueued,
	})

	pos := e.bumpPosition(caller, costBasisRemoved.Neg())
	state := e.recomputeSystemState()
	crAfter, _ := e.systemCR()

	log.Info().
		Str("caller", caller).
		Str("kind", kind.String()).
		Uint64("request_id", req.ID).
		Uint64("ticket_id", ticketID).
		Str("claim_amount", amount.String()).
		Str("net_receipt", netReceipt.String()).
		Str("expected_base", expectedBase.String()).
		Uint64("fee_bps", feeBps).
		Uint64("cr_after", crAfter).
		Msg("Redemption queued")

	e.recordPosition(pos)
	e.recordWithdrawal(*req)
	e.recordOperation(types.OperationSnapshot{
		OpID:      opID,
		OpType:    "redeem",
		Caller:    caller,
		Kind:      kind.String(),
		AmountIn:  amount.String(),
		AmountOut: expectedBase.String(),
		FeeBps:    feeBps,
		CRBefore:  crBefore,
		CRAfter:   crAfter,
		State:     state.String(),
		Reserves:  e.reserves.Clone(),
		Timestamp: queuedAt,
	})

	return *req, nil
}

// returnCustody is the compensating action for a failed phase-one external
// call.
func (e *Engine) returnCustody(log zerolog.Logger, kind types.ClaimKind, caller string, amount sdkmath.Int) {
	if err := e.claimToken(kind).Transfer(e.custodyAddr, caller, amount); err != nil {
		log.Error().Err(err).Msg("Failed to return custodied claim tokens")
	}
}

// returnReceipts compensates a mint that fails after the base asset has been
// converted: the acquired receipt units go to the caller in its place.
func (e *Engine) returnReceipts(log zerolog.Logger, caller string, amount sdkmath.Int) {
	if err := e.receiptToken.Transfer(e.custodyAddr, caller, amount); err != nil {
		log.Error().Err(err).Msg("Failed to return acquired receipt units")
	}
}

// ClaimWithdrawal runs phase two for a matured ticket. The payout the
// adapter reports must sit within the tolerance band around the queue-time
// expectation before claim is invoked, and the realized amount is held to
// the same band afterwards. Queue-time counters are never reduced again.
func (e *Engine) ClaimWithdrawal(caller string, requestID uint64) (sdkmath.Int, error) {
	if err := e.begin(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer e.end()

	opID, log := e.opLogger("claim")

	if err := e.requireActive(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	req, ok := e.queue.get(requestID)
	if !ok {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrUnknownRequest, "request %d", requestID)
	}
	if req.Requester != caller {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrUnauthorized, "request %d belongs to %s", requestID, req.Requester)
	}
	if req.Terminal() {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrAlreadyFinalized, "request %d is %s", requestID, req.Status)
	}

	e.yieldMu.Lock()
	defer e.yieldMu.Unlock()

	ready, expected, err := e.adapter.IsReady(req.TicketID)
	if err != nil {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrNotReady, "readiness query: %v", err)
	}
	if !ready {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrNotReady, "ticket %d not matured", req.TicketID)
	}
	ok, err = utils.WithinToleranceBps(expected, req.ExpectedBase, e.params.ClaimToleranceBps)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !ok {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrSlippageExceeded,
			"adapter expects %s, queued for %s (tolerance %d bps)", expected, req.ExpectedBase, e.params.ClaimToleranceBps)
	}

	received, err := e.adapter.Claim(req.TicketID)
	if err != nil {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrNotReady, "claim ticket %d: %v", req.TicketID, err)
	}
	ok, err = utils.WithinToleranceBps(received, req.ExpectedBase, e.params.ClaimToleranceBps)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !ok {
		// The base asset is in custody but the request stays Queued for
		// operator resolution; paying out a drifted amount silently would
		// hide an adapter fault.
		log.Error().
			Uint64("request_id", req.ID).
			Str("received", received.String()).
			Str("expected", req.ExpectedBase.String()).
			Msg("Realized unstake payout outside tolerance, claim held")
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrSlippageExceeded,
			"realized %s outside tolerance of %s", received, req.ExpectedBase)
	}

	if err := e.claimToken(req.Kind).Burn(e.custodyAddr, req.ClaimAmount); err != nil {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrInsufficientBalance, "burn custodied claim: %v", err)
	}
	if err := e.baseToken.Transfer(e.custodyAddr, caller, received); err != nil {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrInsufficientBalance, "pay out base: %v", err)
	}

	e.reserves.LockedReceiptBalance = e.reserves.LockedReceiptBalance.Sub(req.ReceiptAmount)
	claimedAt := e.now()
	req.Status = types.WithdrawalClaimed
	req.ClaimedAt = &claimedAt

	state := e.recomputeSystemState()
	crAfter, _ := e.systemCR()

	log.Info().
		Str("caller", caller).
		Uint64("request_id", req.ID).
		Str("received", received.String()).
		Uint64("cr_after", crAfter).
		Msg("Withdrawal claimed")

	e.recordWithdrawal(*req)
	e.recordOperation(types.OperationSnapshot{
		OpID:      opID,
		OpType:    "claim",
		Caller:    caller,
		Kind:      req.Kind.String(),
		AmountIn:  req.ClaimAmount.String(),
		AmountOut: received.String(),
		CRBefore:  crAfter,
		CRAfter:   crAfter,
		State:     state.String(),
		Reserves:  e.reserves.Clone(),
		Timestamp: claimedAt,
	})

	return received, nil
}

// CancelWithdrawal retires a Queued request administratively. Custodied
// claim tokens return to the requester and queue-time bookkeeping is
// restored; the abandoned unstake ticket is recovered out of band.
func (e *Engine) CancelWithdrawal(auth AuthContext, requestID uint64) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	if err := e.authorize(auth, CapManageQueue); err != nil {
		return err
	}
	req, ok := e.queue.get(requestID)
	if !ok {
		return errorsmod.Wrapf(ErrUnknownRequest, "request %d", requestID)
	}
	if req.Status != types.WithdrawalQueued {
		return errorsmod.Wrapf(ErrAlreadyFinalized, "request %d is %s", requestID, req.Status)
	}

	if err := e.claimToken(req.Kind).Transfer(e.custodyAddr, req.Requester, req.ClaimAmount); err != nil {
		return errorsmod.Wrapf(ErrInsufficientBalance, "return custodied claim: %v", err)
	}

	e.reserves.LockedReceiptBalance = e.reserves.LockedReceiptBalance.Sub(req.ReceiptAmount)
	e.reserves.TotalReceiptBalance = e.reserves.TotalReceiptBalance.Add(req.ReceiptAmount)
	e.reserves.TotalCollateral = e.reserves.TotalCollateral.Add(req.CostBasisRemoved)
	e.reserves.TotalDeposited = e.reserves.TotalDeposited.Add(req.CostBasisRemoved)
	req.Status = types.WithdrawalCancelled

	pos := e.bumpPosition(req.Requester, req.CostBasisRemoved)
	e.recomputeSystemState()

	e.logger.Info().
		Str("actor", auth.Actor).
		Uint64("request_id", req.ID).
		Uint64("ticket_id", req.TicketID).
		Msg("Withdrawal cancelled")

	e.recordPosition(pos)
	e.recordWithdrawal(*req)
	return nil
}
