// Package solver implements the execution strategies that turn a
// SolverRequest into a quote, an approval and a value-moving transaction.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vault-solver/pkg/chain"
	"vault-solver/pkg/estimate"
	"vault-solver/pkg/telemetry"
	"vault-solver/pkg/txstatus"
	"vault-solver/pkg/types"
)

// Kind names one strategy
type Kind int

const (
	Direct Kind = iota
	NativeWrapper
	Partner
	RouterMigration
	StakingZap
	InternalZap
)

// Kinds lists every strategy
var Kinds = []Kind{Direct, NativeWrapper, Partner, RouterMigration, StakingZap, InternalZap}

var kindNames = map[Kind]string{
	Direct:          "direct",
	NativeWrapper:   "native",
	Partner:         "partner",
	RouterMigration: "router",
	StakingZap:      "staking_zap",
	InternalZap:     "internal_zap",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsMigration returns true for strategies that move value between products
func (k Kind) IsMigration() bool {
	return k == RouterMigration || k == InternalZap
}

// ParseKind maps a strategy name back to its Kind
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for kind, known := range kindNames {
		if known == name {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown strategy %q", name)
}

// Errors returned for caller mistakes and unimplemented paths. Remote
// failures never surface as errors; they end in txstatus.Error.
var (
	ErrNoRequest    = errors.New("no request set")
	ErrNoInputToken = errors.New("request has no input token")
	ErrZeroAmount   = errors.New("request amount is zero")
	ErrUnsupported  = errors.New("operation not supported by strategy")
	ErrDisabled     = errors.New("strategy is disabled")
)

// DefaultMaxLossBps is the loss tolerance used when the request sets none
const DefaultMaxLossBps = 1

// StatusFunc receives TxStatus transitions of one submission
type StatusFunc func(txstatus.State)

// Solver is the contract every strategy fulfils
type Solver interface {
	Kind() Kind

	// Init stores req and computes its quote. It returns nil when the
	// strategy is disabled or the quote could not be read. Only the result
	// of the latest call is kept; use IsCurrent to check older results.
	Init(ctx context.Context, req types.SolverRequest) *types.Quote
	Quote() *types.Quote
	IsCurrent(q *types.Quote) bool
	Request() (types.SolverRequest, bool)

	Spender() (common.Address, bool)
	RetrieveAllowance(ctx context.Context, force bool) types.AllowanceRecord

	Approve(ctx context.Context, amount *big.Int, set StatusFunc, onSuccess func(context.Context)) (bool, error)
	ExecuteDeposit(ctx context.Context, set StatusFunc, onSuccess func(context.Context)) (bool, error)
	ExecuteWithdraw(ctx context.Context, set StatusFunc, onSuccess func(context.Context)) (bool, error)
}

// Submission describes one write handed to the chain
type Submission struct {
	Strategy  Kind
	Operation string
	Request   types.SolverRequest
	Call      chain.Call
	Receipt   *chain.Receipt // nil when the write was rejected
	Err       error
}

// Observer is told about every submitted write, successful or not
type Observer interface {
	Submitted(ctx context.Context, s Submission)
}

// Deps are the collaborators shared by every strategy
type Deps struct {
	Reader    chain.Reader
	Writer    chain.Writer
	Estimator *estimate.Estimator
	Logger    *zap.Logger
	Metrics   *telemetry.Metrics
	Observer  Observer
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Estimator == nil {
		d.Estimator = estimate.New(d.Reader,
			estimate.WithLogger(d.Logger),
			estimate.WithMetrics(d.Metrics))
	}
	return d
}

// Option configures a strategy
type Option func(*base)

// WithDisabled switches the strategy off administratively
func WithDisabled(disabled bool) Option {
	return func(b *base) { b.disabled = disabled }
}

func maxLoss(req types.SolverRequest) *big.Int {
	if req.MaxLossBps == 0 {
		return big.NewInt(DefaultMaxLossBps)
	}
	return big.NewInt(int64(req.MaxLossBps))
}

// vaultDeposit deposits into the request's vault on behalf of the owner
func vaultDeposit(req types.SolverRequest) chain.Call {
	vault := req.Vault()
	abi := chain.VaultV2ABI
	if req.IsV3() {
		abi = chain.VaultV3ABI
	}
	return chain.Call{
		ChainID: vault.ChainID,
		To:      vault.Address,
		ABI:     abi,
		Method:  "deposit",
		Args:    []interface{}{req.Amount, req.Owner},
	}
}

// vaultWithdraw redeems the owner's shares straight from the vault
func vaultWithdraw(req types.SolverRequest) chain.Call {
	vault := req.Vault()
	if req.IsV3() {
		return chain.Call{
			ChainID: vault.ChainID,
			To:      vault.Address,
			ABI:     chain.VaultV3ABI,
			Method:  "redeem",
			Args:    []interface{}{req.Amount, req.Owner, req.Owner, maxLoss(req)},
		}
	}
	return chain.Call{
		ChainID: vault.ChainID,
		To:      vault.Address,
		ABI:     chain.VaultV2ABI,
		Method:  "withdraw",
		Args:    []interface{}{req.Amount, req.Owner, maxLoss(req)},
	}
}

// vaultQuote estimates the request against its vault
func vaultQuote(ctx context.Context, est *estimate.Estimator, req types.SolverRequest) (*big.Int, error) {
	return est.Convert(ctx, req.Vault(), req.Version, req.Direction, req.Amount)
}
