// Package controller drives the approve-then-execute sequence for the
// strategy that serves the current request.
package controller

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"go.uber.org/zap"

	"vault-solver/pkg/chain"
	"vault-solver/pkg/solver"
	"vault-solver/pkg/txstatus"
	"vault-solver/pkg/types"
)

// State is what the action button may do right now
type State string

const (
	Disabled       State = "disabled"
	NeedsApproval  State = "needs_approval"
	ReadyToExecute State = "ready"
	Executing      State = "executing"
)

var (
	ErrNotReady = errors.New("no action available in the current state")
	ErrBusy     = errors.New("another submission is in flight")
)

// Selector picks the solver for a request
type Selector interface {
	Active(req types.SolverRequest) solver.Solver
}

// Refresher reloads balances for the given (asset, chain) pairs. It is
// called without waiting for it to finish; Controller.Wait joins it.
type Refresher interface {
	Refresh(ctx context.Context, refs []types.AssetRef)
}

// RefreshFunc adapts a function to Refresher
type RefreshFunc func(ctx context.Context, refs []types.AssetRef)

// Refresh implements Refresher
func (f RefreshFunc) Refresh(ctx context.Context, refs []types.AssetRef) {
	f(ctx, refs)
}

// Controller holds the current request and both TxStatus trackers
type Controller struct {
	selector  Selector
	session   chain.Session
	refresher Refresher
	logger    *zap.Logger
	approval  *txstatus.Tracker
	action    *txstatus.Tracker

	refreshing sync.WaitGroup

	mu        sync.Mutex
	busy      bool
	intent    uint64
	req       *types.SolverRequest
	max       *big.Int
	active    solver.Solver
	quote     *types.Quote
	allowance types.AllowanceRecord
}

// Option configures a Controller
type Option func(*controllerOptions)

type controllerOptions struct {
	logger    *zap.Logger
	refresher Refresher
	status    []txstatus.Option
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *controllerOptions) { o.logger = logger }
}

// WithRefresher sets the balance refresh collaborator
func WithRefresher(r Refresher) Option {
	return func(o *controllerOptions) { o.refresher = r }
}

// WithStatusOptions configures both TxStatus trackers
func WithStatusOptions(opts ...txstatus.Option) Option {
	return func(o *controllerOptions) { o.status = append(o.status, opts...) }
}

// New creates a Controller
func New(sel Selector, session chain.Session, opts ...Option) *Controller {
	o := &controllerOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	return &Controller{
		selector:  sel,
		session:   session,
		refresher: o.refresher,
		logger:    o.logger,
		approval:  txstatus.New(o.status...),
		action:    txstatus.New(o.status...),
	}
}

// SetIntent replaces the current request, selects its strategy and loads the
// quote and the allowance. max caps the amount; nil means no cap. The
// returned quote is nil while unavailable.
func (c *Controller) SetIntent(ctx context.Context, req types.SolverRequest, max *big.Int) *types.Quote {
	if account, ok := c.session.Account(); ok {
		req.Owner = account
	}
	req = req.WithAmount(req.Amount)
	active := c.selector.Active(req)

	c.mu.Lock()
	c.intent++
	gen := c.intent
	c.req = &req
	c.max = max
	c.active = active
	c.quote = nil
	c.allowance = types.AllowanceRecord{}
	c.mu.Unlock()

	q := active.Init(ctx, req)
	record := active.RetrieveAllowance(ctx, false)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.intent {
		return nil
	}
	if active.IsCurrent(q) {
		c.quote = q
	}
	c.allowance = record
	return c.quote
}

// State derives the button state from the request, the quote, the allowance
// and both trackers
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	if c.action.IsPending() {
		return Executing
	}
	if _, ok := c.session.Account(); !ok {
		return Disabled
	}
	if c.req == nil || !c.req.HasAmount() {
		return Disabled
	}
	if c.max != nil && c.req.Amount.Cmp(c.max) > 0 {
		return Disabled
	}
	if c.quote == nil {
		return Disabled
	}
	if c.approval.IsPending() || !c.allowance.Covers(c.req.Amount) {
		return NeedsApproval
	}
	return ReadyToExecute
}

// Press performs the action for the current state: approve when the
// allowance is short, execute when it suffices. It returns true if the
// submitted transaction succeeded.
func (c *Controller) Press(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return false, ErrBusy
	}
	state := c.stateLocked()
	if state != NeedsApproval && state != ReadyToExecute {
		c.mu.Unlock()
		return false, ErrNotReady
	}
	c.busy = true
	active, req, gen := c.active, *c.req, c.intent
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	logger := c.logger.With(
		zap.String("strategy", active.Kind().String()),
		zap.String("direction", string(req.Direction)),
		zap.String("owner", req.Owner.Hex()))

	if state == NeedsApproval {
		logger.Info("requesting approval")
		return active.Approve(ctx, nil, c.approval.Set, func(ctx context.Context) {
			c.refreshAllowance(ctx, active, gen)
		})
	}

	logger.Info("submitting action", zap.String("amount", req.Amount.String()))
	execute := active.ExecuteDeposit
	if req.Direction == types.Withdraw {
		execute = active.ExecuteWithdraw
	}
	return execute(ctx, c.action.Set, func(ctx context.Context) {
		c.completed(ctx, active, req, gen)
	})
}

// refreshAllowance re-reads the allowance after an approval so the state
// only moves on once the chain reflects it
func (c *Controller) refreshAllowance(ctx context.Context, active solver.Solver, gen uint64) {
	record := active.RetrieveAllowance(ctx, true)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.intent {
		c.allowance = record
	}
}

// completed resets the amount and hands the touched balances to the
// refresher
func (c *Controller) completed(ctx context.Context, active solver.Solver, req types.SolverRequest, gen uint64) {
	cleared := req.WithAmount(new(big.Int))
	active.Init(ctx, cleared)

	c.mu.Lock()
	if gen == c.intent {
		c.intent++
		c.req = &cleared
		c.quote = nil
	}
	c.mu.Unlock()

	if c.refresher == nil {
		return
	}
	refs := req.Touched()
	c.refreshing.Add(1)
	go func() {
		defer c.refreshing.Done()
		c.refresher.Refresh(context.WithoutCancel(ctx), refs)
	}()
}

// Wait blocks until balance refreshes started by completed actions return
func (c *Controller) Wait() {
	c.refreshing.Wait()
}

// Amount returns the current request amount, zero when none is set
func (c *Controller) Amount() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.req == nil || c.req.Amount == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(c.req.Amount)
}

// Request returns the current request
func (c *Controller) Request() (types.SolverRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.req == nil {
		return types.SolverRequest{}, false
	}
	return *c.req, true
}

// Active returns the solver serving the current request
func (c *Controller) Active() solver.Solver {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Quote returns the quote of the current request
func (c *Controller) Quote() *types.Quote {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quote
}

// Allowance returns the last known allowance for the active spender
func (c *Controller) Allowance() types.AllowanceRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allowance
}

// ApprovalStatus is the approval tracker
func (c *Controller) ApprovalStatus() *txstatus.Tracker {
	return c.approval
}

// ActionStatus is the deposit/withdraw/migrate tracker
func (c *Controller) ActionStatus() *txstatus.Tracker {
	return c.action
}
