/*

This file contains the tokenized reserve vault contract. The vault holds the
yield-bearing receipt under share accounting and accepts deposits and
withdrawals from the engine only.

*/

package reservevault

import (
	sdkmath "cosmossdk.io/math"
)

// Vault is the engine's view of the share-accounted reserve vault.
type Vault interface {
	// Deposit moves receipt units from the engine into the vault.
	Deposit(receiptAmount sdkmath.Int) error

	// PreviewWithdraw returns the shares required to withdraw the given
	// receipt amount.
	PreviewWithdraw(receiptAmount sdkmath.Int) (sdkmath.Int, error)

	// Redeem burns shares and returns the receipt actually received.
	Redeem(shares sdkmath.Int) (sdkmath.Int, error)

	// BalanceOf returns the shares held for the engine.
	BalanceOf() (sdkmath.Int, error)

	// ConvertToAssets values shares in receipt units.
	ConvertToAssets(shares sdkmath.Int) (sdkmath.Int, error)
}
