/*

This file contains the Engine: the shared accounting context for the
two-token issuance protocol. It owns the reserve ledger, the withdrawal
queue, fee resolution and the safety-tier state machine, and settles every
mint, redeem, intervention and reconciliation against them.

Every state-changing operation runs to completion as a single unit under the
ledger lock; validations precede any mutation and internal counters commit
only after every external call has succeeded.

*/

package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keel-protocol/keel/internal/logger"
	"github.com/keel-protocol/keel/internal/oracle"
	"github.com/keel-protocol/keel/internal/reservevault"
	"github.com/keel-protocol/keel/internal/router"
	"github.com/keel-protocol/keel/internal/tokens"
	"github.com/keel-protocol/keel/internal/types"
	"github.com/keel-protocol/keel/internal/yieldsource"
)

// Engine is the accounting core. All mutation happens through its methods.
type Engine struct {
	logger zerolog.Logger

	mu       sync.Mutex
	ownerGid atomic.Int64
	// yieldMu serializes the segment that mutates receipt-unit accounting
	// during stake/unstake, independent of the outer ledger lock.
	yieldMu sync.Mutex

	oracle  oracle.PriceOracle
	adapter yieldsource.Adapter
	vault   reservevault.Vault
	swaps   router.SwapRouter // optional; nil disables the swap mint path

	parToken     tokens.Token
	levToken     tokens.Token
	baseToken    tokens.Token
	receiptToken tokens.Token

	baseSymbol    string
	receiptSymbol string
	custodyAddr   string
	bufferPool    string

	params   types.ProtocolParameters
	fees     types.FeeSchedule
	reserves *types.ReserveState
	state    types.SystemState
	paused   bool

	positions map[string]*types.UserPosition
	queue     *withdrawalQueue

	recorder Recorder
	now      func() time.Time
}

// Config holds the collaborators and initial policy for a new Engine.
type Config struct {
	Oracle  oracle.PriceOracle
	Adapter yieldsource.Adapter
	Vault   reservevault.Vault
	Router  router.SwapRouter // optional

	ParToken     tokens.Token
	LevToken     tokens.Token
	BaseToken    tokens.Token
	ReceiptToken tokens.Token

	BaseSymbol    string
	ReceiptSymbol string
	CustodyAddr   string
	BufferPool    string

	Params      types.ProtocolParameters
	FeeSchedule types.FeeSchedule

	Recorder Recorder // nil means NoopRecorder

	// Clock overrides time.Now, for deterministic tests.
	Clock func() time.Time
}

// New creates an Engine with dependency injection.
func New(cfg Config) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("engine configuration validation failed: %w", err)
	}

	rec := cfg.Recorder
	if rec == nil {
		rec = NewNoopRecorder()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	e := &Engine{
		logger:        logger.GetForComponent("engine"),
		oracle:        cfg.Oracle,
		adapter:       cfg.Adapter,
		vault:         cfg.Vault,
		swaps:         cfg.Router,
		parToken:      cfg.ParToken,
		levToken:      cfg.LevToken,
		baseToken:     cfg.BaseToken,
		receiptToken:  cfg.ReceiptToken,
		baseSymbol:    cfg.BaseSymbol,
		receiptSymbol: cfg.ReceiptSymbol,
		custodyAddr:   cfg.CustodyAddr,
		bufferPool:    cfg.BufferPool,
		params:        cfg.Params,
		fees:          cfg.FeeSchedule,
		reserves:      types.NewReserveState(),
		state:         types.StateNormal,
		positions:     make(map[string]*types.UserPosition),
		queue:         newWithdrawalQueue(),
		recorder:      rec,
		now:           clock,
	}

	e.logger.Info().
		Str("baseSymbol", e.baseSymbol).
		Str("receiptSymbol", e.receiptSymbol).
		Str("bufferPool", e.bufferPool).
		Msg("Engine instance created")

	return e, nil
}

func validateConfig(cfg Config) error {
	if cfg.Oracle == nil {
		return fmt.Errorf("price oracle cannot be nil")
	}
	if cfg.Adapter == nil {
		return fmt.Errorf("yield source adapter cannot be nil")
	}
	if cfg.Vault == nil {
		return fmt.Errorf("reserve vault cannot be nil")
	}
	if cfg.ParToken == nil || cfg.LevToken == nil || cfg.BaseToken == nil || cfg.ReceiptToken == nil {
		return fmt.Errorf("all four token ledgers are required")
	}
	if cfg.BaseSymbol == "" || cfg.ReceiptSymbol == "" {
		return fmt.Errorf("base and receipt symbols cannot be empty")
	}
	if cfg.CustodyAddr == "" {
		return fmt.Errorf("custody address cannot be empty")
	}
	if cfg.BufferPool == "" {
		return fmt.Errorf("buffer pool address cannot be empty")
	}
	if err := cfg.Params.Validate(); err != nil {
		return err
	}
	if err := cfg.FeeSchedule.Validate(); err != nil {
		return err
	}
	return nil
}

// claimToken maps a kind to its ledger.
func (e *Engine) claimToken(kind types.ClaimKind) tokens.Token {
	if kind == types.ClaimPar {
		return e.parToken
	}
	return e.levToken
}

// opLogger tags a per-operation trace id onto the component logger.
func (e *Engine) opLogger(opType string) (string, zerolog.Logger) {
	opID := uuid.New().String()
	return opID, e.logger.With().Str("op_id", opID).Str("op", opType).Logger()
}

// bumpPosition upserts the user position after a mint or redeem. delta may
// be negative; collateral floors at zero.
func (e *Engine) bumpPosition(addr string, delta sdkmath.Int) types.UserPosition {
	pos, ok := e.positions[addr]
	if !ok {
		pos = &types.UserPosition{Address: addr, Collateral: sdkmath.ZeroInt()}
		e.positions[addr] = pos
	}
	pos.Collateral = pos.Collateral.Add(delta)
	if pos.Collateral.IsNegative() {
		pos.Collateral = sdkmath.ZeroInt()
	}
	pos.UpdatedAt = e.now()
	return *pos
}

// recordOperation writes the audit snapshot; failures are logged only.
func (e *Engine) recordOperation(snap types.OperationSnapshot) {
	if err := e.recorder.RecordOperation(snap); err != nil {
		e.logger.Error().Err(err).Str("op_id", snap.OpID).Msg("Failed to record operation snapshot")
	}
}

func (e *Engine) recordWithdrawal(req types.WithdrawalRequest) {
	if err := e.recorder.RecordWithdrawal(req); err != nil {
		e.logger.Error().Err(err).Uint64("request_id", req.ID).Msg("Failed to record withdrawal request")
	}
}

func (e *Engine) recordPosition(pos types.UserPosition) {
	if err := e.recorder.RecordPosition(pos); err != nil {
		e.logger.Error().Err(err).Str("address", pos.Address).Msg("Failed to record user position")
	}
}

// Status is the read-only view served to the web layer.
type Status struct {
	Reserves     types.ReserveState `json:"reserves"`
	State        string             `json:"state"`
	CR           uint64             `json:"cr_bps"`
	NavPar       string             `json:"nav_par"`
	NavLeveraged string             `json:"nav_leveraged"`
	ParSupply    string             `json:"par_supply"`
	LevSupply    string             `json:"leveraged_supply"`
	Paused       bool               `json:"paused"`
	QueuedCount  int                `json:"queued_withdrawals"`
}

// StatusSnapshot assembles the live view. NAV fields degrade to empty strings
// rather than failing the whole status call when a feed is down.
func (e *Engine) StatusSnapshot() (Status, error) {
	if err := e.begin(); err != nil {
		return Status{}, err
	}
	defer e.end()

	st := Status{
		Reserves:    e.reserves.Clone(),
		State:       e.state.String(),
		Paused:      e.paused,
		QueuedCount: e.queue.countQueued(),
	}

	if cr, err := e.systemCR(); err == nil {
		st.CR = cr
	}
	if nav, err := e.navPar(); err == nil {
		st.NavPar = nav.String()
	}
	if nav, err := e.navLeveraged(); err == nil {
		st.NavLeveraged = nav.String()
	}
	if supply, err := e.parToken.TotalSupply(); err == nil {
		st.ParSupply = supply.String()
	}
	if supply, err := e.levToken.TotalSupply(); err == nil {
		st.LevSupply = supply.String()
	}
	return st, nil
}

// Params returns a copy of the current protocol parameters.
func (e *Engine) Params() types.ProtocolParameters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

// FeeSchedule returns a copy of the current fee schedule.
func (e *Engine) FeeSchedule() types.FeeSchedule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fees
}

// Reserves returns a copy of the reserve counters.
func (e *Engine) Reserves() types.ReserveState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reserves.Clone()
}

// SystemState returns the current safety tier.
func (e *Engine) SystemState() types.SystemState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Position returns the recorded position for an address, if any.
func (e *Engine) Position(addr string) (types.UserPosition, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pos, ok := e.positions[addr]
	if !ok {
		return types.UserPosition{}, false
	}
	return *pos, true
}

// WithdrawalRequest returns a copy of one request.
func (e *Engine) WithdrawalRequest(id uint64) (types.WithdrawalRequest, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	req, ok := e.queue.get(id)
	if !ok {
		return types.WithdrawalRequest{}, false
	}
	return *req, true
}

// WithdrawalRequestsFor returns copies of a user's requests, oldest first.
func (e *Engine) WithdrawalRequestsFor(addr string) []types.WithdrawalRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.forUser(addr)
}
