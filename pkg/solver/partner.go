package solver

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vault-solver/pkg/chain"
	"vault-solver/pkg/types"
)

// PartnerSolver routes deposits through a partner contract that records the
// referrer. Withdrawals go straight to the vault. Requests with a native leg
// are not supported.
type PartnerSolver struct {
	*base
	partnerID common.Address
	contracts map[uint64]common.Address
}

// NewPartner creates the partner-attributed strategy
func NewPartner(deps Deps, partnerID common.Address, contracts map[uint64]common.Address, opts ...Option) *PartnerSolver {
	s := &PartnerSolver{partnerID: partnerID, contracts: contracts}
	s.base = newBase(Partner, s, deps, opts...)
	return s
}

func (s *PartnerSolver) contract(req types.SolverRequest) (common.Address, bool) {
	addr, ok := s.contracts[req.Vault().ChainID]
	return addr, ok
}

func (s *PartnerSolver) supports(req types.SolverRequest) bool {
	_, ok := s.contract(req)
	return ok && s.partnerID != (common.Address{}) && !req.HasNativeLeg()
}

func (s *PartnerSolver) quote(ctx context.Context, req types.SolverRequest) (*big.Int, error) {
	return vaultQuote(ctx, s.estimator, req)
}

func (s *PartnerSolver) spender(req types.SolverRequest) (common.Address, bool) {
	if req.Direction == types.Withdraw {
		return common.Address{}, false
	}
	return s.contract(req)
}

func (s *PartnerSolver) depositCall(_ context.Context, req types.SolverRequest) (chain.Call, error) {
	contract, _ := s.contract(req)
	return chain.Call{
		ChainID: req.Output.ChainID,
		To:      contract,
		ABI:     chain.PartnerABI,
		Method:  "deposit",
		Args:    []interface{}{req.Output.Address, s.partnerID, req.Amount},
	}, nil
}

func (s *PartnerSolver) withdrawCall(_ context.Context, req types.SolverRequest) (chain.Call, error) {
	return vaultWithdraw(req), nil
}
