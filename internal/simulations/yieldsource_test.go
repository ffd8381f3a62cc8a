package simulations

import (
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestSource(t *testing.T, delay time.Duration) (*SimYieldSource, *SimToken, *SimToken, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	base := NewSimToken("uBASE")
	receipt := NewSimToken("uRCPT")
	src := NewSimYieldSource(base, receipt, "custody", delay, clock.Now)
	return src, base, receipt, clock
}

func TestStakeConvertsAtRate(t *testing.T) {
	src, base, receipt, _ := newTestSource(t, time.Hour)
	require.NoError(t, base.Mint("custody", sdkmath.NewInt(110)))

	src.SetRate(sdkmath.LegacyMustNewDecFromStr("1.1"))
	received, err := src.Stake(sdkmath.NewInt(110))
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(100), received)

	// Base is consumed, receipt units appear in custody.
	bal, err := base.BalanceOf("custody")
	require.NoError(t, err)
	require.True(t, bal.IsZero())
	bal, err = receipt.BalanceOf("custody")
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(100), bal)
}

func TestStakeBelowMinimumRejected(t *testing.T) {
	src, base, _, _ := newTestSource(t, time.Hour)
	require.NoError(t, base.Mint("custody", sdkmath.NewInt(100)))
	src.SetMinStake(sdkmath.NewInt(50))

	_, err := src.Stake(sdkmath.NewInt(49))
	require.Error(t, err)
}

func TestUnstakeTicketLifecycle(t *testing.T) {
	src, base, receipt, clock := newTestSource(t, time.Hour)
	require.NoError(t, base.Mint("custody", sdkmath.NewInt(100)))
	_, err := src.Stake(sdkmath.NewInt(100))
	require.NoError(t, err)

	id, err := src.QueueUnstake(sdkmath.NewInt(100))
	require.NoError(t, err)

	// Receipts are burned at queue time.
	bal, err := receipt.BalanceOf("custody")
	require.NoError(t, err)
	require.True(t, bal.IsZero())

	ready, expected, err := src.IsReady(id)
	require.NoError(t, err)
	require.False(t, ready)
	require.Equal(t, sdkmath.NewInt(100), expected)

	_, err = src.Claim(id)
	require.Error(t, err)

	// Rate accrues while the ticket matures.
	src.SetRate(sdkmath.LegacyMustNewDecFromStr("1.05"))
	clock.Advance(2 * time.Hour)

	ready, expected, err = src.IsReady(id)
	require.NoError(t, err)
	require.True(t, ready)
	require.Equal(t, sdkmath.NewInt(105), expected)

	payout, err := src.Claim(id)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(105), payout)

	bal, err = base.BalanceOf("custody")
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(105), bal)

	// Second claim and readiness queries on a spent ticket fail.
	_, err = src.Claim(id)
	require.Error(t, err)
	_, _, err = src.IsReady(id)
	require.Error(t, err)
}

func TestClaimUnknownTicket(t *testing.T) {
	src, _, _, _ := newTestSource(t, time.Hour)
	_, err := src.Claim(42)
	require.Error(t, err)
	_, _, err = src.IsReady(42)
	require.Error(t, err)
}
