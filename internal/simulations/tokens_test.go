package simulations

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestSimTokenLedger(t *testing.T) {
	tok := NewSimToken("uTEST")
	require.Equal(t, "uTEST", tok.Symbol())

	require.NoError(t, tok.Mint("a", sdkmath.NewInt(100)))
	require.NoError(t, tok.Transfer("a", "b", sdkmath.NewInt(40)))

	balA, err := tok.BalanceOf("a")
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(60), balA)
	balB, err := tok.BalanceOf("b")
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(40), balB)

	supply, err := tok.TotalSupply()
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(100), supply)

	require.NoError(t, tok.Burn("b", sdkmath.NewInt(40)))
	supply, err = tok.TotalSupply()
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(60), supply)

	// Unknown addresses read as zero.
	bal, err := tok.BalanceOf("nobody")
	require.NoError(t, err)
	require.True(t, bal.IsZero())
}

func TestSimTokenRejectsOverdraft(t *testing.T) {
	tok := NewSimToken("uTEST")
	require.NoError(t, tok.Mint("a", sdkmath.NewInt(10)))

	require.Error(t, tok.Transfer("a", "b", sdkmath.NewInt(11)))
	require.Error(t, tok.Burn("a", sdkmath.NewInt(11)))
	require.Error(t, tok.Mint("a", sdkmath.NewInt(-1)))

	// Failed moves leave the ledger untouched.
	bal, err := tok.BalanceOf("a")
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(10), bal)
}

func TestSimRouterSwap(t *testing.T) {
	base := NewSimToken("uBASE")
	receipt := NewSimToken("uRCPT")
	src := NewSimYieldSource(base, receipt, "custody", 0, nil)
	router := NewSimRouter(src, base, receipt, 30)

	require.NoError(t, base.Mint("custody", sdkmath.NewInt(1_000_000)))

	// 30 bps of execution shading against the stake rate.
	out, err := router.ExecuteSwap([]byte("route"), "uBASE", "uRCPT",
		sdkmath.NewInt(1_000_000), sdkmath.ZeroInt(), "custody")
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(997_000), out)

	bal, err := receipt.BalanceOf("custody")
	require.NoError(t, err)
	require.Equal(t, out, bal)
}

func TestSimRouterEnforcesMinOutAndPair(t *testing.T) {
	base := NewSimToken("uBASE")
	receipt := NewSimToken("uRCPT")
	src := NewSimYieldSource(base, receipt, "custody", 0, nil)
	router := NewSimRouter(src, base, receipt, 30)

	require.NoError(t, base.Mint("custody", sdkmath.NewInt(1_000_000)))

	_, err := router.ExecuteSwap(nil, "uBASE", "uRCPT",
		sdkmath.NewInt(1_000_000), sdkmath.ZeroInt(), "custody")
	require.Error(t, err)

	_, err = router.ExecuteSwap([]byte("route"), "uRCPT", "uBASE",
		sdkmath.NewInt(1_000_000), sdkmath.ZeroInt(), "custody")
	require.Error(t, err)

	_, err = router.ExecuteSwap([]byte("route"), "uBASE", "uRCPT",
		sdkmath.NewInt(1_000_000), sdkmath.NewInt(998_000), "custody")
	require.Error(t, err)
}
