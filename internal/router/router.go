/*

This file contains the swap router contract. Routes arrive pre-quoted and
opaque; the engine only supplies the amounts and the slippage floor and
checks the realized output.

*/

package router

import (
	sdkmath "cosmossdk.io/math"
)

// SwapRouter executes pre-quoted swaps between the base asset, the receipt
// asset, and the derivative tokens' backing.
type SwapRouter interface {
	// ExecuteSwap runs an opaque pre-quoted route and returns the amount
	// actually received by the recipient. Implementations must fail rather
	// than deliver less than minOut.
	ExecuteSwap(routeData []byte, tokenIn, tokenOut string, amountIn, minOut sdkmath.Int, recipient string) (sdkmath.Int, error)
}
