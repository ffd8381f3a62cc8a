/*

This file contains the in-memory token ledger used in simulation mode and in
tests. Exact integer accounting, no fees, no decimals conversion: balances
are the same micro-units the engine tracks.

*/

package simulations

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
)

// SimToken is a thread-safe in-memory fungible ledger.
type SimToken struct {
	mu       sync.Mutex
	symbol   string
	balances map[string]sdkmath.Int
	supply   sdkmath.Int
}

// NewSimToken creates an empty ledger for a symbol.
func NewSimToken(symbol string) *SimToken {
	return &SimToken{
		symbol:   symbol,
		balances: make(map[string]sdkmath.Int),
		supply:   sdkmath.ZeroInt(),
	}
}

func (t *SimToken) Symbol() string { return t.symbol }

func (t *SimToken) Mint(to string, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%s: mint amount %s invalid", t.symbol, amount)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[to] = t.balanceLocked(to).Add(amount)
	t.supply = t.supply.Add(amount)
	return nil
}

func (t *SimToken) Burn(from string, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%s: burn amount %s invalid", t.symbol, amount)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	bal := t.balanceLocked(from)
	if bal.LT(amount) {
		return fmt.Errorf("%s: burn %s exceeds balance %s of %s", t.symbol, amount, bal, from)
	}
	t.balances[from] = bal.Sub(amount)
	t.supply = t.supply.Sub(amount)
	return nil
}

func (t *SimToken) Transfer(from, to string, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%s: transfer amount %s invalid", t.symbol, amount)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	bal := t.balanceLocked(from)
	if bal.LT(amount) {
		return fmt.Errorf("%s: transfer %s exceeds balance %s of %s", t.symbol, amount, bal, from)
	}
	t.balances[from] = bal.Sub(amount)
	t.balances[to] = t.balanceLocked(to).Add(amount)
	return nil
}

func (t *SimToken) BalanceOf(addr string) (sdkmath.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balanceLocked(addr), nil
}

func (t *SimToken) TotalSupply() (sdkmath.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.supply, nil
}

func (t *SimToken) balanceLocked(addr string) sdkmath.Int {
	bal, ok := t.balances[addr]
	if !ok {
		return sdkmath.ZeroInt()
	}
	return bal
}
