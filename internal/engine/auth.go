/*

This file contains the capability-set authorization the privileged mutators
consult. Business logic never inspects roles; each privileged entry point
names the one capability it needs and checks it once.

*/

package engine

import (
	errorsmod "cosmossdk.io/errors"
)

// Capability names one privileged action class.
type Capability string

const (
	// CapConfigure covers fee schedule, minimums and deposit cap changes.
	CapConfigure Capability = "configure"
	// CapPause covers pausing and unpausing settlement.
	CapPause Capability = "pause"
	// CapCollectFees covers withdrawing accumulated fee revenue.
	CapCollectFees Capability = "collect_fees"
	// CapHarvest covers the yield reconciliation mint.
	CapHarvest Capability = "harvest"
	// CapManageQueue covers administrative withdrawal cancellation.
	CapManageQueue Capability = "manage_queue"
)

// AuthContext carries the caller identity and granted capabilities into a
// privileged call.
type AuthContext struct {
	Actor string
	caps  map[Capability]struct{}
}

// NewAuthContext builds an authorization context for an actor.
func NewAuthContext(actor string, caps ...Capability) AuthContext {
	set := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return AuthContext{Actor: actor, caps: set}
}

// Has reports whether the context grants a capability.
func (a AuthContext) Has(c Capability) bool {
	_, ok := a.caps[c]
	return ok
}

func (e *Engine) authorize(a AuthContext, c Capability) error {
	if !a.Has(c) {
		return errorsmod.Wrapf(ErrUnauthorized, "actor %q lacks %q", a.Actor, c)
	}
	return nil
}
