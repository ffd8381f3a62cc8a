/*

This file contains the simulated share-accounted reserve vault. Shares are
issued pro-rata against the vault's receipt holdings; with no external yield
inside the vault itself the share price stays 1:1, but the share math is the
real thing so preview/redeem rounding behaves like production.

*/

package simulations

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/keel-protocol/keel/internal/tokens"
)

// SimVault holds receipt units transferred from the custody address under
// share accounting.
type SimVault struct {
	mu sync.Mutex

	receiptToken tokens.Token
	custodyAddr  string
	vaultAddr    string

	shares sdkmath.Int
	assets sdkmath.Int
}

// NewSimVault creates an empty vault with its own holding address.
func NewSimVault(receipt tokens.Token, custodyAddr, vaultAddr string) *SimVault {
	return &SimVault{
		receiptToken: receipt,
		custodyAddr:  custodyAddr,
		vaultAddr:    vaultAddr,
		shares:       sdkmath.ZeroInt(),
		assets:       sdkmath.ZeroInt(),
	}
}

func (v *SimVault) Deposit(receiptAmount sdkmath.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !receiptAmount.IsPositive() {
		return fmt.Errorf("deposit %s invalid", receiptAmount)
	}
	minted := receiptAmount
	if v.shares.IsPositive() && v.assets.IsPositive() {
		minted = receiptAmount.Mul(v.shares).Quo(v.assets)
	}
	if err := v.receiptToken.Transfer(v.custodyAddr, v.vaultAddr, receiptAmount); err != nil {
		return err
	}
	v.shares = v.shares.Add(minted)
	v.assets = v.assets.Add(receiptAmount)
	return nil
}

func (v *SimVault) PreviewWithdraw(receiptAmount sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !receiptAmount.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("withdraw %s invalid", receiptAmount)
	}
	if receiptAmount.GT(v.assets) {
		return sdkmath.ZeroInt(), fmt.Errorf("withdraw %s exceeds vault assets %s", receiptAmount, v.assets)
	}
	// Round shares up so redeeming them yields at least the requested amount.
	num := receiptAmount.Mul(v.shares)
	shares := num.Quo(v.assets)
	if !num.Mod(v.assets).IsZero() {
		shares = shares.AddRaw(1)
	}
	return shares, nil
}

func (v *SimVault) Redeem(shares sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !shares.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("redeem %s shares invalid", shares)
	}
	if shares.GT(v.shares) {
		return sdkmath.ZeroInt(), fmt.Errorf("redeem %s exceeds issued shares %s", shares, v.shares)
	}
	out := shares.Mul(v.assets).Quo(v.shares)
	if err := v.receiptToken.Transfer(v.vaultAddr, v.custodyAddr, out); err != nil {
		return sdkmath.ZeroInt(), err
	}
	v.shares = v.shares.Sub(shares)
	v.assets = v.assets.Sub(out)
	return out, nil
}

func (v *SimVault) BalanceOf() (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shares, nil
}

func (v *SimVault) ConvertToAssets(shares sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.shares.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	return shares.Mul(v.assets).Quo(v.shares), nil
}
