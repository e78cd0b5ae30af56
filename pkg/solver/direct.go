package solver

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vault-solver/pkg/chain"
	"vault-solver/pkg/types"
)

// DirectSolver deposits into and withdraws from the vault itself
type DirectSolver struct {
	*base
}

// NewDirect creates the direct strategy
func NewDirect(deps Deps, opts ...Option) *DirectSolver {
	s := &DirectSolver{}
	s.base = newBase(Direct, s, deps, opts...)
	return s
}

func (s *DirectSolver) quote(ctx context.Context, req types.SolverRequest) (*big.Int, error) {
	return vaultQuote(ctx, s.estimator, req)
}

// The vault pulls the underlying on deposit; redeeming own shares needs no
// approval.
func (s *DirectSolver) spender(req types.SolverRequest) (common.Address, bool) {
	if req.Direction == types.Withdraw {
		return common.Address{}, false
	}
	return req.Output.Address, true
}

func (s *DirectSolver) depositCall(_ context.Context, req types.SolverRequest) (chain.Call, error) {
	return vaultDeposit(req), nil
}

func (s *DirectSolver) withdrawCall(_ context.Context, req types.SolverRequest) (chain.Call, error) {
	return vaultWithdraw(req), nil
}
