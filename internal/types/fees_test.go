package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleSchedule() FeeSchedule {
	return FeeSchedule{
		ParMint:         FeeTier{NormalBps: 10, CautiousBps: 25, DefensiveBps: 50},
		ParRedeem:       FeeTier{NormalBps: 10, CautiousBps: 50, DefensiveBps: 200},
		LeveragedMint:   FeeTier{NormalBps: 20, CautiousBps: 50, DefensiveBps: 100},
		LeveragedRedeem: FeeTier{NormalBps: 30, CautiousBps: 100, DefensiveBps: 400},
	}
}

func TestFeeScheduleTierSelection(t *testing.T) {
	s := sampleSchedule()

	require.Equal(t, s.ParMint, s.Tier(ClaimPar, true))
	require.Equal(t, s.ParRedeem, s.Tier(ClaimPar, false))
	require.Equal(t, s.LeveragedMint, s.Tier(ClaimLeveraged, true))
	require.Equal(t, s.LeveragedRedeem, s.Tier(ClaimLeveraged, false))
}

func TestFeeScheduleValidate(t *testing.T) {
	require.NoError(t, sampleSchedule().Validate())
	require.NoError(t, FeeSchedule{}.Validate())

	// Each cell is checked against its side's cap, whichever tier carries it.
	s := sampleSchedule()
	s.ParMint.CautiousBps = MaxMintFeeBps + 1
	require.Error(t, s.Validate())

	s = sampleSchedule()
	s.ParRedeem.DefensiveBps = MaxRedeemFeeBps + 1
	require.Error(t, s.Validate())

	// A redeem fee above the mint cap but under the redeem cap is fine.
	s = sampleSchedule()
	s.LeveragedRedeem.DefensiveBps = MaxMintFeeBps + 100
	require.NoError(t, s.Validate())
}
