/*

This file contains the simulated swap router. Execution price is the yield
source's exchange rate shaded by a configurable slippage, so swap-path mints
land slightly worse than the no-slippage stake path, as they do in
production.

*/

package simulations

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/keel-protocol/keel/internal/tokens"
)

// SimRouter swaps base for receipt against the simulated exchange rate.
type SimRouter struct {
	mu sync.Mutex

	source       *SimYieldSource
	baseToken    tokens.Token
	receiptToken tokens.Token

	slippageBps uint64
}

// NewSimRouter creates a router executing at the source's rate minus
// slippageBps.
func NewSimRouter(source *SimYieldSource, base, receipt tokens.Token, slippageBps uint64) *SimRouter {
	return &SimRouter{
		source:       source,
		baseToken:    base,
		receiptToken: receipt,
		slippageBps:  slippageBps,
	}
}

func (r *SimRouter) ExecuteSwap(routeData []byte, tokenIn, tokenOut string, amountIn, minOut sdkmath.Int, recipient string) (sdkmath.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(routeData) == 0 {
		return sdkmath.ZeroInt(), fmt.Errorf("empty route")
	}
	if tokenIn != r.baseToken.Symbol() || tokenOut != r.receiptToken.Symbol() {
		return sdkmath.ZeroInt(), fmt.Errorf("unsupported pair %s -> %s", tokenIn, tokenOut)
	}
	rate, err := r.source.ExchangeRate()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	ideal := sdkmath.LegacyNewDecFromInt(amountIn).Quo(rate)
	shade := sdkmath.LegacyNewDec(int64(10000 - r.slippageBps)).Quo(sdkmath.LegacyNewDec(10000))
	out := ideal.Mul(shade).TruncateInt()
	if !minOut.IsNil() && out.LT(minOut) {
		return sdkmath.ZeroInt(), fmt.Errorf("output %s below minimum %s", out, minOut)
	}

	if err := r.baseToken.Burn(recipient, amountIn); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := r.receiptToken.Mint(recipient, out); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return out, nil
}
