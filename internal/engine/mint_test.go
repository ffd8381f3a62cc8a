package engine_test

import (
	"fmt"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/keel-protocol/keel/internal/engine"
	"github.com/keel-protocol/keel/internal/simulations"
	"github.com/keel-protocol/keel/internal/types"
)

// failMintToken refuses issuance, standing in for a claim ledger outage.
type failMintToken struct {
	*simulations.SimToken
	fail bool
}

func (t *failMintToken) Mint(to string, amount sdkmath.Int) error {
	if t.fail {
		return fmt.Errorf("issuance disabled")
	}
	return t.SimToken.Mint(to, amount)
}

// failDepositVault accepts nothing.
type failDepositVault struct {
	*simulations.SimVault
}

func (v *failDepositVault) Deposit(amount sdkmath.Int) error {
	return fmt.Errorf("vault offline")
}

func TestMintClaimFailureLeavesNoPartialState(t *testing.T) {
	clock := newFakeClock()
	base := simulations.NewSimToken(baseSymbol)
	receipt := simulations.NewSimToken(rcptSymbol)
	par := simulations.NewSimToken("kPAR")
	lev := &failMintToken{SimToken: simulations.NewSimToken("kLEV"), fail: true}

	simOracle := simulations.NewSimOracle(clock.Now)
	simOracle.SetPrice(baseSymbol, sdkmath.LegacyOneDec())
	source := simulations.NewSimYieldSource(base, receipt, custodyAddr, time.Hour, clock.Now)
	vault := simulations.NewSimVault(receipt, custodyAddr, "sim-vault")

	eng, err := engine.New(engine.Config{
		Oracle:        simOracle,
		Adapter:       source,
		Vault:         vault,
		ParToken:      par,
		LevToken:      lev,
		BaseToken:     base,
		ReceiptToken:  receipt,
		BaseSymbol:    baseSymbol,
		ReceiptSymbol: rcptSymbol,
		CustodyAddr:   custodyAddr,
		BufferPool:    bufferPool,
		Params:        testParams(),
		FeeSchedule:   zeroFees(),
		Clock:         clock.Now,
	})
	require.NoError(t, err)

	require.NoError(t, base.Mint(alice, sdkmath.NewInt(10_000_000)))
	amt := sdkmath.NewInt(10_000_000)
	_, err = eng.Mint(alice, types.ClaimLeveraged, amt, amt, nil, sdkmath.ZeroInt())
	require.ErrorIs(t, err, engine.ErrInsufficientBalance)

	// No counter moved and nothing reached the vault.
	res := eng.Reserves()
	require.True(t, res.TotalReceiptBalance.IsZero())
	require.True(t, res.TotalCollateral.IsZero())
	require.True(t, res.TotalDeposited.IsZero())
	require.True(t, res.AccumulatedFees.IsZero())

	vaultBal, err := receipt.BalanceOf("sim-vault")
	require.NoError(t, err)
	require.True(t, vaultBal.IsZero())

	// The base asset was converted by the stake; its receipt equivalent comes
	// back to the caller instead of sitting stranded in custody.
	bal, err := receipt.BalanceOf(alice)
	require.NoError(t, err)
	require.Equal(t, amt, bal)
	custodyBal, err := receipt.BalanceOf(custodyAddr)
	require.NoError(t, err)
	require.True(t, custodyBal.IsZero())

	supply, err := lev.TotalSupply()
	require.NoError(t, err)
	require.True(t, supply.IsZero())
}

func TestMintVaultFailureBurnsClaimAndReturnsReceipts(t *testing.T) {
	clock := newFakeClock()
	base := simulations.NewSimToken(baseSymbol)
	receipt := simulations.NewSimToken(rcptSymbol)
	par := simulations.NewSimToken("kPAR")
	lev := simulations.NewSimToken("kLEV")

	simOracle := simulations.NewSimOracle(clock.Now)
	simOracle.SetPrice(baseSymbol, sdkmath.LegacyOneDec())
	source := simulations.NewSimYieldSource(base, receipt, custodyAddr, time.Hour, clock.Now)
	vault := &failDepositVault{SimVault: simulations.NewSimVault(receipt, custodyAddr, "sim-vault")}

	eng, err := engine.New(engine.Config{
		Oracle:        simOracle,
		Adapter:       source,
		Vault:         vault,
		ParToken:      par,
		LevToken:      lev,
		BaseToken:     base,
		ReceiptToken:  receipt,
		BaseSymbol:    baseSymbol,
		ReceiptSymbol: rcptSymbol,
		CustodyAddr:   custodyAddr,
		BufferPool:    bufferPool,
		Params:        testParams(),
		FeeSchedule:   zeroFees(),
		Clock:         clock.Now,
	})
	require.NoError(t, err)

	require.NoError(t, base.Mint(alice, sdkmath.NewInt(10_000_000)))
	amt := sdkmath.NewInt(10_000_000)
	_, err = eng.Mint(alice, types.ClaimPar, amt, amt, nil, sdkmath.ZeroInt())
	require.ErrorIs(t, err, engine.ErrInsufficientReserve)

	// The claim minted before the deposit attempt must not survive it.
	supply, err := par.TotalSupply()
	require.NoError(t, err)
	require.True(t, supply.IsZero())

	bal, err := receipt.BalanceOf(alice)
	require.NoError(t, err)
	require.Equal(t, amt, bal)

	res := eng.Reserves()
	require.True(t, res.TotalReceiptBalance.IsZero())
	require.True(t, res.TotalDeposited.IsZero())
}
