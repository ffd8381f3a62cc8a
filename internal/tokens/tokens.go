/*

This file contains the minimal token ledger contract the engine needs from
the two derivative tokens, the base asset, and the receipt asset. Balance and
transfer mechanics live outside the accounting core; the engine only mints,
burns, custodies and pays out through this interface.

*/

package tokens

import (
	sdkmath "cosmossdk.io/math"
)

// Token is a fungible ledger the engine can move value on.
type Token interface {
	Symbol() string

	Mint(to string, amount sdkmath.Int) error
	Burn(from string, amount sdkmath.Int) error
	Transfer(from, to string, amount sdkmath.Int) error

	BalanceOf(addr string) (sdkmath.Int, error)
	TotalSupply() (sdkmath.Int, error)
}
