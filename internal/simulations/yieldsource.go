/*

This file contains the simulated yield source: staking against the custody
address's base balance, a ticketed unstake queue with a configurable delay,
and an exchange rate that can be moved explicitly to model yield accrual or
a rate shock between queue and claim.

*/

package simulations

import (
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/keel-protocol/keel/internal/tokens"
)

type unstakeTicket struct {
	receiptAmount sdkmath.Int
	readyAt       time.Time
	claimed       bool
}

// SimYieldSource stakes the custody address's base asset into receipt units
// at the current exchange rate and runs the delayed unstake queue.
type SimYieldSource struct {
	mu sync.Mutex

	baseToken    tokens.Token
	receiptToken tokens.Token
	custodyAddr  string

	rate     sdkmath.LegacyDec
	delay    time.Duration
	minStake sdkmath.Int

	tickets      map[uint64]*unstakeTicket
	nextTicketID uint64

	now func() time.Time
}

// NewSimYieldSource creates a yield source at rate 1.0. clock may be nil for
// wall time.
func NewSimYieldSource(base, receipt tokens.Token, custodyAddr string, delay time.Duration, clock func() time.Time) *SimYieldSource {
	if clock == nil {
		clock = time.Now
	}
	return &SimYieldSource{
		baseToken:    base,
		receiptToken: receipt,
		custodyAddr:  custodyAddr,
		rate:         sdkmath.LegacyOneDec(),
		delay:        delay,
		minStake:     sdkmath.NewInt(1),
		tickets:      make(map[uint64]*unstakeTicket),
		nextTicketID: 1,
		now:          clock,
	}
}

// SetRate moves the receipt→base exchange rate.
func (y *SimYieldSource) SetRate(rate sdkmath.LegacyDec) {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.rate = rate
}

// SetMinStake sets the smallest accepted stake.
func (y *SimYieldSource) SetMinStake(min sdkmath.Int) {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.minStake = min
}

func (y *SimYieldSource) Stake(amount sdkmath.Int) (sdkmath.Int, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	if amount.LT(y.minStake) {
		return sdkmath.ZeroInt(), fmt.Errorf("stake %s below minimum %s", amount, y.minStake)
	}
	received := sdkmath.LegacyNewDecFromInt(amount).Quo(y.rate).TruncateInt()
	if err := y.baseToken.Burn(y.custodyAddr, amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := y.receiptToken.Mint(y.custodyAddr, received); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return received, nil
}

func (y *SimYieldSource) QueueUnstake(receiptAmount sdkmath.Int) (uint64, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	if !receiptAmount.IsPositive() {
		return 0, fmt.Errorf("unstake amount %s invalid", receiptAmount)
	}
	if err := y.receiptToken.Burn(y.custodyAddr, receiptAmount); err != nil {
		return 0, err
	}
	id := y.nextTicketID
	y.nextTicketID++
	y.tickets[id] = &unstakeTicket{
		receiptAmount: receiptAmount,
		readyAt:       y.now().Add(y.delay),
	}
	return id, nil
}

func (y *SimYieldSource) IsReady(ticketID uint64) (bool, sdkmath.Int, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	t, ok := y.tickets[ticketID]
	if !ok {
		return false, sdkmath.ZeroInt(), fmt.Errorf("unknown ticket %d", ticketID)
	}
	if t.claimed {
		return false, sdkmath.ZeroInt(), fmt.Errorf("ticket %d already claimed", ticketID)
	}
	expected := sdkmath.LegacyNewDecFromInt(t.receiptAmount).Mul(y.rate).TruncateInt()
	return !y.now().Before(t.readyAt), expected, nil
}

func (y *SimYieldSource) Claim(ticketID uint64) (sdkmath.Int, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	t, ok := y.tickets[ticketID]
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("unknown ticket %d", ticketID)
	}
	if t.claimed {
		return sdkmath.ZeroInt(), fmt.Errorf("ticket %d already claimed", ticketID)
	}
	if y.now().Before(t.readyAt) {
		return sdkmath.ZeroInt(), fmt.Errorf("ticket %d not matured", ticketID)
	}
	payout := sdkmath.LegacyNewDecFromInt(t.receiptAmount).Mul(y.rate).TruncateInt()
	if err := y.baseToken.Mint(y.custodyAddr, payout); err != nil {
		return sdkmath.ZeroInt(), err
	}
	t.claimed = true
	return payout, nil
}

func (y *SimYieldSource) ExchangeRate() (sdkmath.LegacyDec, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.rate, nil
}

func (y *SimYieldSource) WithdrawalDelay() (time.Duration, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.delay, nil
}

func (y *SimYieldSource) MinStakeAmount() (sdkmath.Int, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.minStake, nil
}
