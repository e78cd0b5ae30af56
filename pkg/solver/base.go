package solver

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vault-solver/pkg/allowance"
	"vault-solver/pkg/chain"
	"vault-solver/pkg/estimate"
	"vault-solver/pkg/telemetry"
	"vault-solver/pkg/txstatus"
	"vault-solver/pkg/types"
)

// strategy is the part that differs between solvers
type strategy interface {
	supports(req types.SolverRequest) bool
	pair(req types.SolverRequest) (from, to common.Address)
	quote(ctx context.Context, req types.SolverRequest) (*big.Int, error)
	spender(req types.SolverRequest) (common.Address, bool)
	allowances(ctx context.Context, req types.SolverRequest) []allowanceSpec
	depositCall(ctx context.Context, req types.SolverRequest) (chain.Call, error)
	withdrawCall(ctx context.Context, req types.SolverRequest) (chain.Call, error)
}

// allowanceSpec is one authorization a strategy depends on. The first entry
// a strategy reports is the one the owner approves.
type allowanceSpec struct {
	key      types.AllowanceKey
	decimals uint8
}

// base implements the Solver contract on top of a strategy
type base struct {
	kind      Kind
	impl      strategy
	reader    chain.Reader
	writer    chain.Writer
	estimator *estimate.Estimator
	logger    *zap.Logger
	metrics   *telemetry.Metrics
	observer  Observer
	cache     *allowance.Cache
	disabled  bool

	mu         sync.Mutex
	req        *types.SolverRequest
	latest     *types.Quote
	generation uint64
}

func newBase(kind Kind, impl strategy, deps Deps, opts ...Option) *base {
	deps = deps.withDefaults()
	logger := deps.Logger.With(zap.String("strategy", kind.String()))

	b := &base{
		kind:      kind,
		impl:      impl,
		reader:    deps.Reader,
		writer:    deps.Writer,
		estimator: deps.Estimator,
		logger:    logger,
		metrics:   deps.Metrics,
		observer:  deps.Observer,
		cache: allowance.NewCache(deps.Reader,
			allowance.WithLogger(logger),
			allowance.WithMetrics(deps.Metrics)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Kind returns the strategy kind
func (b *base) Kind() Kind {
	return b.kind
}

func (b *base) supports(types.SolverRequest) bool {
	return true
}

func (b *base) pair(req types.SolverRequest) (common.Address, common.Address) {
	return req.Input.Address, req.Output.Address
}

func (b *base) allowances(_ context.Context, req types.SolverRequest) []allowanceSpec {
	spender, ok := b.impl.spender(req)
	if !ok {
		return nil
	}
	return []allowanceSpec{ownerSpec(req, spender)}
}

func ownerSpec(req types.SolverRequest, spender common.Address) allowanceSpec {
	return allowanceSpec{
		key: types.AllowanceKey{
			ChainID: req.Input.ChainID,
			Owner:   req.Owner,
			Spender: spender,
			Asset:   req.Input.Address,
		},
		decimals: req.Input.Decimals,
	}
}

// Init stores req and computes its quote
func (b *base) Init(ctx context.Context, req types.SolverRequest) *types.Quote {
	req = req.WithAmount(req.Amount)

	b.mu.Lock()
	b.generation++
	gen := b.generation
	b.req = &req
	b.latest = nil
	b.mu.Unlock()

	if b.disabled {
		b.logger.Debug("strategy disabled, no quote")
		return nil
	}
	if !b.impl.supports(req) {
		b.logger.Debug("request not supported, no quote",
			zap.Uint64("chain_id", req.Input.ChainID))
		return nil
	}

	amount := new(big.Int)
	if req.HasAmount() {
		out, err := b.impl.quote(ctx, req)
		if err != nil {
			b.metrics.RecordQuote(b.kind.String(), telemetry.OutcomeFailed)
			b.logger.Warn("quote unavailable",
				zap.Uint64("generation", gen),
				zap.Error(err))
			return nil
		}
		amount = out
	}

	from, to := b.impl.pair(req)
	q := &types.Quote{
		Amount:     types.NewAmount(amount, req.Output.Decimals),
		Generation: gen,
		Strategy:   b.kind.String(),
		From:       from,
		To:         to,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.generation {
		b.metrics.RecordStaleQuote(b.kind.String())
		b.logger.Debug("discarding superseded quote",
			zap.Uint64("generation", gen),
			zap.Uint64("latest", b.generation))
		return q
	}
	b.latest = q
	b.metrics.RecordQuote(b.kind.String(), telemetry.OutcomeOK)
	return q
}

// Quote returns the quote of the latest request, nil while it is loading or
// when it could not be computed
func (b *base) Quote() *types.Quote {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest
}

// IsCurrent returns true if q was produced for the latest request
func (b *base) IsCurrent(q *types.Quote) bool {
	if q == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return q.Generation == b.generation
}

// Request returns the latest request
func (b *base) Request() (types.SolverRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.req == nil {
		return types.SolverRequest{}, false
	}
	return *b.req, true
}

// Spender returns the contract the owner must approve for the latest request
func (b *base) Spender() (common.Address, bool) {
	req, ok := b.Request()
	if !ok {
		return common.Address{}, false
	}
	return b.impl.spender(req)
}

// RetrieveAllowance returns the authorization that gates the latest request.
// A forced refresh re-reads every allowance the strategy depends on.
func (b *base) RetrieveAllowance(ctx context.Context, force bool) types.AllowanceRecord {
	req, ok := b.Request()
	if !ok || req.Owner == (common.Address{}) || req.Input.IsZero() {
		return allowance.Zero(types.AllowanceKey{}, req.Input.Decimals)
	}

	specs := b.impl.allowances(ctx, req)
	if len(specs) == 0 {
		// nothing to approve
		return allowance.Unlimited(types.AllowanceKey{
			ChainID: req.Input.ChainID,
			Owner:   req.Owner,
			Spender: req.Owner,
			Asset:   req.Input.Address,
		}, req.Input.Decimals)
	}

	if !force || len(specs) == 1 {
		record, _ := b.cache.Get(ctx, specs[0].key, specs[0].decimals, force)
		return record
	}

	records := make([]types.AllowanceRecord, len(specs))
	var g errgroup.Group
	for i, spec := range specs {
		g.Go(func() error {
			records[i], _ = b.cache.Get(ctx, spec.key, spec.decimals, true)
			return nil
		})
	}
	_ = g.Wait()
	return records[0]
}

// Approve authorizes the strategy's spender to move amount of the input
// asset. A nil amount approves the maximum.
func (b *base) Approve(ctx context.Context, amount *big.Int, set StatusFunc, onSuccess func(context.Context)) (bool, error) {
	req, err := b.precheck("approve", false)
	if err != nil {
		return false, err
	}

	specs := b.impl.allowances(ctx, req)
	if len(specs) == 0 || specs[0].key.Asset == types.NativeAddress {
		return false, b.loud("approve", fmt.Errorf("%w: nothing to approve", ErrUnsupported))
	}
	if amount == nil {
		amount = math.MaxBig256
	}

	spec := specs[0]
	call := chain.Call{
		ChainID: spec.key.ChainID,
		To:      spec.key.Asset,
		ABI:     chain.ERC20ABI,
		Method:  "approve",
		Args:    []interface{}{spec.key.Spender, amount},
	}
	return b.submit(ctx, "approve", req, call, set, onSuccess), nil
}

// ExecuteDeposit submits the strategy's deposit (or migration) call
func (b *base) ExecuteDeposit(ctx context.Context, set StatusFunc, onSuccess func(context.Context)) (bool, error) {
	return b.execute(ctx, types.Deposit, set, onSuccess)
}

// ExecuteWithdraw submits the strategy's withdraw call
func (b *base) ExecuteWithdraw(ctx context.Context, set StatusFunc, onSuccess func(context.Context)) (bool, error) {
	return b.execute(ctx, types.Withdraw, set, onSuccess)
}

func (b *base) execute(ctx context.Context, dir types.Direction, set StatusFunc, onSuccess func(context.Context)) (bool, error) {
	op := string(dir)
	if dir == types.Deposit && b.kind.IsMigration() {
		op = "migrate"
	}

	req, err := b.precheck(op, true)
	if err != nil {
		return false, err
	}

	build := b.impl.depositCall
	if dir == types.Withdraw {
		build = b.impl.withdrawCall
	}
	call, err := build(ctx, req)
	if errors.Is(err, ErrUnsupported) {
		return false, b.loud(op, err)
	}
	if err != nil {
		// a read needed to build the call failed
		orNoop(set)(txstatus.Error)
		b.metrics.RecordWrite(b.kind.String(), op, telemetry.OutcomeFailed)
		b.logger.Warn("failed to prepare transaction",
			zap.String("operation", op),
			zap.Error(err))
		return false, nil
	}

	return b.submit(ctx, op, req, call, set, func(ctx context.Context) {
		b.spent(req)
		if onSuccess != nil {
			onSuccess(ctx)
		}
	}), nil
}

// spent drops the cached owner authorization an executed action consumed
func (b *base) spent(req types.SolverRequest) {
	spender, ok := b.impl.spender(req)
	if !ok {
		return
	}
	b.cache.Invalidate(ownerSpec(req, spender).key)
}

// precheck validates the caller-side preconditions of a write
func (b *base) precheck(op string, needAmount bool) (types.SolverRequest, error) {
	req, ok := b.Request()

	var err error
	switch {
	case !ok:
		err = ErrNoRequest
	case req.Input.IsZero():
		err = ErrNoInputToken
	case needAmount && !req.HasAmount():
		err = ErrZeroAmount
	case b.disabled:
		err = ErrDisabled
	case !b.impl.supports(req):
		err = ErrUnsupported
	}
	if err != nil {
		return req, b.loud(op, err)
	}
	return req, nil
}

func (b *base) loud(op string, err error) error {
	b.metrics.RecordWrite(b.kind.String(), op, telemetry.OutcomeNone)
	b.logger.Error("refusing to submit",
		zap.String("operation", op),
		zap.Error(err))
	return fmt.Errorf("%s %s: %w", b.kind, op, err)
}

// submit writes call and reports its lifecycle through set. Only an explicit
// success receipt counts as success.
func (b *base) submit(ctx context.Context, op string, req types.SolverRequest, call chain.Call, set StatusFunc, onSuccess func(context.Context)) bool {
	set = orNoop(set)
	set(txstatus.Pending)

	receipt, err := b.writer.Write(ctx, call)
	b.observe(ctx, Submission{
		Strategy:  b.kind,
		Operation: op,
		Request:   req,
		Call:      call,
		Receipt:   receipt,
		Err:       err,
	})

	if err != nil {
		set(txstatus.Error)
		b.metrics.RecordWrite(b.kind.String(), op, telemetry.OutcomeFailed)
		b.logger.Warn("transaction failed",
			zap.String("operation", op),
			zap.String("call", call.String()),
			zap.Error(err))
		return false
	}
	if !receipt.Succeeded() {
		set(txstatus.Error)
		b.metrics.RecordWrite(b.kind.String(), op, telemetry.OutcomeReverted)
		b.logger.Warn("transaction reverted",
			zap.String("operation", op),
			zap.String("tx_hash", receipt.Hash.Hex()))
		return false
	}

	set(txstatus.Success)
	b.metrics.RecordWrite(b.kind.String(), op, telemetry.OutcomeOK)
	b.logger.Info("transaction confirmed",
		zap.String("operation", op),
		zap.String("tx_hash", receipt.Hash.Hex()),
		zap.Uint64("block", receipt.BlockNumber))

	if onSuccess != nil {
		onSuccess(ctx)
	}
	return true
}

func (b *base) observe(ctx context.Context, s Submission) {
	if b.observer != nil {
		b.observer.Submitted(ctx, s)
	}
}

// expected returns the latest quote amount for req, estimating again when
// none is stored
func (b *base) expected(ctx context.Context, req types.SolverRequest) (*big.Int, error) {
	b.mu.Lock()
	q, gen := b.latest, b.generation
	b.mu.Unlock()

	if q != nil && q.Generation == gen && q.Amount.Raw != nil {
		return new(big.Int).Set(q.Amount.Raw), nil
	}
	return b.impl.quote(ctx, req)
}

func orNoop(set StatusFunc) StatusFunc {
	if set == nil {
		return func(txstatus.State) {}
	}
	return set
}
