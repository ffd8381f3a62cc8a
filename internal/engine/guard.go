/*

This file contains the entry guard shared by every state-changing operation:
a goroutine-aware reentrancy check in front of the ledger mutex. A callback
from an external collaborator re-entering the ledger on the operating
goroutine is rejected instead of deadlocking, while independent operations
from other goroutines serialize on the mutex as usual.

*/

package engine

import (
	"github.com/petermattis/goid"
)

// begin takes the ledger lock for one operation. Must be paired with end.
func (e *Engine) begin() error {
	gid := goid.Get()
	if e.ownerGid.Load() == gid {
		return ErrReentrantCall
	}
	e.mu.Lock()
	e.ownerGid.Store(gid)
	return nil
}

// end releases the ledger lock taken by begin.
func (e *Engine) end() {
	e.ownerGid.Store(0)
	e.mu.Unlock()
}

// requireActive rejects settlement while paused. Called under the lock.
func (e *Engine) requireActive() error {
	if e.paused {
		return ErrPaused
	}
	return nil
}
