package solver

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vault-solver/pkg/chain"
	"vault-solver/pkg/types"
)

// StakingZapSolver deposits and stakes the minted shares in one call. It is
// off for chains without a zap contract and for native coin deposits.
type StakingZapSolver struct {
	*base
	zaps map[uint64]common.Address
}

// NewStakingZap creates the staking zap strategy for the given per-chain zaps
func NewStakingZap(deps Deps, zaps map[uint64]common.Address, opts ...Option) *StakingZapSolver {
	s := &StakingZapSolver{zaps: zaps}
	s.base = newBase(StakingZap, s, deps, opts...)
	return s
}

func (s *StakingZapSolver) zap(req types.SolverRequest) (common.Address, bool) {
	addr, ok := s.zaps[req.Output.ChainID]
	return addr, ok
}

func (s *StakingZapSolver) supports(req types.SolverRequest) bool {
	_, ok := s.zap(req)
	return ok && !req.HasNativeLeg()
}

func (s *StakingZapSolver) quote(ctx context.Context, req types.SolverRequest) (*big.Int, error) {
	return vaultQuote(ctx, s.estimator, req)
}

func (s *StakingZapSolver) spender(req types.SolverRequest) (common.Address, bool) {
	if req.Direction == types.Withdraw {
		return common.Address{}, false
	}
	return s.zap(req)
}

func (s *StakingZapSolver) depositCall(_ context.Context, req types.SolverRequest) (chain.Call, error) {
	if req.StakingPool == nil {
		return chain.Call{}, fmt.Errorf("%w: staking zap needs a staking pool", ErrUnsupported)
	}
	zap, _ := s.zap(req)
	return chain.Call{
		ChainID: req.Output.ChainID,
		To:      zap,
		ABI:     chain.StakingZapABI,
		Method:  "zapIn",
		Args:    []interface{}{req.Output.Address, *req.StakingPool, req.Amount},
	}, nil
}

func (s *StakingZapSolver) withdrawCall(_ context.Context, req types.SolverRequest) (chain.Call, error) {
	return vaultWithdraw(req), nil
}
