package solver

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vault-solver/pkg/chain"
	"vault-solver/pkg/types"
)

// InternalZapSolver moves value between internal product families through
// the zap contract. Its quote is the guaranteed minimum, and the same value
// is passed on as the zap's minimum output.
type InternalZapSolver struct {
	*base
	zap         common.Address
	slippageBps uint32
}

// NewInternalZap creates the internal zap strategy
func NewInternalZap(deps Deps, zap common.Address, slippageBps uint32, opts ...Option) *InternalZapSolver {
	s := &InternalZapSolver{zap: zap, slippageBps: slippageBps}
	s.base = newBase(InternalZap, s, deps, opts...)
	return s
}

func (s *InternalZapSolver) supports(types.SolverRequest) bool {
	return s.zap != (common.Address{})
}

func (s *InternalZapSolver) quote(ctx context.Context, req types.SolverRequest) (*big.Int, error) {
	return s.estimator.ZapMinimum(ctx, req.Input.ChainID, s.zap, req.Input.Address, req.Output.Address, req.Amount, s.slippageBps)
}

func (s *InternalZapSolver) spender(types.SolverRequest) (common.Address, bool) {
	return s.zap, true
}

func (s *InternalZapSolver) depositCall(ctx context.Context, req types.SolverRequest) (chain.Call, error) {
	return s.zapCall(ctx, req)
}

func (s *InternalZapSolver) withdrawCall(ctx context.Context, req types.SolverRequest) (chain.Call, error) {
	return s.zapCall(ctx, req)
}

func (s *InternalZapSolver) zapCall(ctx context.Context, req types.SolverRequest) (chain.Call, error) {
	minOut, err := s.expected(ctx, req)
	if err != nil {
		return chain.Call{}, fmt.Errorf("failed to compute minimum output: %w", err)
	}
	return chain.Call{
		ChainID: req.Input.ChainID,
		To:      s.zap,
		ABI:     chain.InternalZapABI,
		Method:  "zap",
		Args:    []interface{}{req.Input.Address, req.Output.Address, req.Amount, minOut, req.Owner},
	}, nil
}
