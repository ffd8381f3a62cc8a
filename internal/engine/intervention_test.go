package engine_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/keel-protocol/keel/internal/engine"
	"github.com/keel-protocol/keel/internal/types"
)

// rebalanceFixture backs 150.0 of par with 180.0 of reserve: CR 12000,
// squarely in the intervention window, with the buffer pool holding enough
// par to absorb the burn.
func rebalanceFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, zeroFees())
	f.fund(t, alice, 100_000_000)
	f.fund(t, bob, 30_000_000)
	f.fund(t, bufferPool, 50_000_000)

	f.mint(t, alice, types.ClaimPar, 100_000_000)
	f.mint(t, bufferPool, types.ClaimPar, 50_000_000)
	f.mint(t, bob, types.ClaimLeveraged, 30_000_000)

	cr, err := f.eng.SystemCR()
	require.NoError(t, err)
	require.Equal(t, uint64(12_000), cr)
	return f
}

func TestInterveneLiftsCRToRecoveryTarget(t *testing.T) {
	f := rebalanceFixture(t)

	rec, err := f.eng.Intervene()
	require.NoError(t, err)
	require.Equal(t, types.InterventionRebalance, rec.Kind)

	// Target CR is 1.4: required liabilities 180.0/1.4, so the burn rounds up
	// to 21,428,572 micro-units at par NAV 1.
	require.Equal(t, sdkmath.NewInt(21_428_572), rec.ParBurned)
	// Leveraged NAV is exactly 1 here, so the replacement mints one for one.
	require.Equal(t, sdkmath.NewInt(21_428_572), rec.LeveragedMinted)
	require.Equal(t, uint64(12_000), rec.CRBefore)
	require.Equal(t, uint64(14_000), rec.CRAfter)

	require.Equal(t, types.StateCautious, f.eng.SystemState())
	require.Equal(t, sdkmath.NewInt(28_571_428), f.balance(t, f.par, bufferPool))
	require.Equal(t, sdkmath.NewInt(21_428_572), f.balance(t, f.lev, bufferPool))
}

func TestInterveneRefusedAboveCautious(t *testing.T) {
	f := newFixture(t, zeroFees())
	f.fund(t, alice, 100_000_000)
	f.fund(t, bob, 50_000_000)
	f.mint(t, alice, types.ClaimPar, 100_000_000)
	f.mint(t, bob, types.ClaimLeveraged, 50_000_000)

	// CR 15000, nothing to fix.
	_, err := f.eng.Intervene()
	require.ErrorIs(t, err, engine.ErrInterventionNotAllowed)
}

func TestInterveneRefusedInEmergency(t *testing.T) {
	f := newFixture(t, zeroFees())
	f.fund(t, alice, 100_000_000)
	f.mint(t, alice, types.ClaimPar, 100_000_000)

	// Par-only backing is CR 10000: below every threshold, retiring par at
	// face value cannot help.
	require.Equal(t, types.StateEmergency, f.eng.SystemState())
	_, err := f.eng.Intervene()
	require.ErrorIs(t, err, engine.ErrInterventionNotAllowed)
}

func TestInterveneRefusedWhenBufferPoolShort(t *testing.T) {
	f := newFixture(t, zeroFees())
	f.fund(t, alice, 150_000_000)
	f.fund(t, bob, 30_000_000)
	f.mint(t, alice, types.ClaimPar, 150_000_000)
	f.mint(t, bob, types.ClaimLeveraged, 30_000_000)

	// Same CR 12000 shape, but the buffer pool holds no par at all.
	cr, err := f.eng.SystemCR()
	require.NoError(t, err)
	require.Equal(t, uint64(12_000), cr)

	_, err = f.eng.Intervene()
	require.ErrorIs(t, err, engine.ErrInsufficientBuffer)
}

func TestExitRecoveryRefusedUntilRatioSupportsIt(t *testing.T) {
	f := rebalanceFixture(t)
	_, err := f.eng.Intervene()
	require.NoError(t, err)

	// Still Cautious: the exit trigger itself is closed.
	f.source.SetRate(sdkmath.LegacyMustNewDecFromStr("1.1"))
	_, err = f.eng.ExitRecovery()
	require.ErrorIs(t, err, engine.ErrInterventionNotAllowed)

	// CR 16800 opens the trigger, but converting the pool's leveraged claims
	// back would push liabilities to ~165.0 against 216.0 of reserve and land
	// under the Normal threshold again. Refused before any token moves.
	f.source.SetRate(sdkmath.LegacyMustNewDecFromStr("1.2"))
	before := f.balance(t, f.lev, bufferPool)
	_, err = f.eng.ExitRecovery()
	require.ErrorIs(t, err, engine.ErrInterventionNotAllowed)
	require.Equal(t, before, f.balance(t, f.lev, bufferPool))
}

func TestExitRecoveryConvertsBufferAtHighCR(t *testing.T) {
	f := rebalanceFixture(t)
	_, err := f.eng.Intervene()
	require.NoError(t, err)

	f.source.SetRate(sdkmath.LegacyMustNewDecFromStr("2.0"))

	rec, err := f.eng.ExitRecovery()
	require.NoError(t, err)
	require.Equal(t, types.InterventionRecoveryExit, rec.Kind)
	require.Equal(t, sdkmath.NewInt(21_428_572), rec.LeveragedBurned)
	// Leveraged NAV sits a hair under 4.5 at rate 2.0 (the earlier rounded-up
	// burn left one unit of extra supply), and the conversion truncates.
	require.Equal(t, sdkmath.NewInt(96_428_573), rec.ParMinted)
	require.True(t, rec.CRAfter >= 15_000)
	require.True(t, rec.CRAfter < rec.CRBefore)

	require.True(t, f.balance(t, f.lev, bufferPool).IsZero())
	require.Equal(t, sdkmath.NewInt(125_000_001), f.balance(t, f.par, bufferPool))
	require.Equal(t, types.StateNormal, f.eng.SystemState())
}

func TestExitRecoveryRefusedWithEmptyBuffer(t *testing.T) {
	f := newFixture(t, zeroFees())
	f.fund(t, alice, 100_000_000)
	f.fund(t, bob, 100_000_000)
	f.mint(t, alice, types.ClaimPar, 100_000_000)
	f.mint(t, bob, types.ClaimLeveraged, 100_000_000)

	cr, err := f.eng.SystemCR()
	require.NoError(t, err)
	require.Equal(t, uint64(20_000), cr)

	_, err = f.eng.ExitRecovery()
	require.ErrorIs(t, err, engine.ErrInterventionNotAllowed)
}
