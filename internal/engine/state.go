/*

This file contains the system state machine step. The tier is a pure
function of CR; the only mutation is the single recomputation invoked at the
end of every state-changing operation.

*/

package engine

import (
	"github.com/keel-protocol/keel/internal/types"
)

// recomputeSystemState derives the tier from the current CR. On a feed
// failure after an otherwise-settled operation the previous tier is kept;
// the next operation revalidates the oracle up front anyway.
func (e *Engine) recomputeSystemState() types.SystemState {
	cr, err := e.systemCR()
	if err != nil {
		e.logger.Warn().Err(err).Msg("System state recomputation kept previous tier")
		return e.state
	}
	next := types.StateForCR(cr, e.params.Thresholds)
	if next != e.state {
		e.logger.Info().
			Str("from", e.state.String()).
			Str("to", next.String()).
			Uint64("cr_bps", cr).
			Msg("System state transition")
	}
	e.state = next
	return next
}
