package solver

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vault-solver/config"
	"vault-solver/pkg/chain"
	"vault-solver/pkg/types"
)

// NativeSolver wraps the chain's native coin on the way in and unwraps it on
// the way out through a dedicated router
type NativeSolver struct {
	*base
	routes map[uint64]config.NativeRoute
}

// NewNative creates the native-coin strategy for the given per-chain routes
func NewNative(deps Deps, routes map[uint64]config.NativeRoute, opts ...Option) *NativeSolver {
	s := &NativeSolver{routes: routes}
	s.base = newBase(NativeWrapper, s, deps, opts...)
	return s
}

func (s *NativeSolver) route(req types.SolverRequest) (config.NativeRoute, bool) {
	route, ok := s.routes[req.Vault().ChainID]
	return route, ok
}

func (s *NativeSolver) supports(req types.SolverRequest) bool {
	_, ok := s.route(req)
	return ok
}

// pair reports the wrapped asset in place of the native pseudo-address
func (s *NativeSolver) pair(req types.SolverRequest) (common.Address, common.Address) {
	from, to := req.Input.Address, req.Output.Address
	route, ok := s.route(req)
	if !ok {
		return from, to
	}
	if req.Input.IsNative() {
		from = route.Wrapped
	}
	if req.Output.IsNative() {
		to = route.Wrapped
	}
	return from, to
}

func (s *NativeSolver) quote(ctx context.Context, req types.SolverRequest) (*big.Int, error) {
	// the vault side of the request holds the wrapped asset
	return vaultQuote(ctx, s.estimator, req)
}

func (s *NativeSolver) spender(req types.SolverRequest) (common.Address, bool) {
	route, ok := s.route(req)
	if !ok {
		return common.Address{}, false
	}
	return route.Router, true
}

func (s *NativeSolver) depositCall(_ context.Context, req types.SolverRequest) (chain.Call, error) {
	route, _ := s.route(req)
	if !req.Input.IsNative() {
		return chain.Call{}, fmt.Errorf("%w: native deposit needs the native coin as input", ErrUnsupported)
	}
	return chain.Call{
		ChainID: req.Output.ChainID,
		To:      route.Router,
		ABI:     chain.NativeRouterABI,
		Method:  "depositEth",
		Args:    []interface{}{req.Output.Address, req.Owner},
		Value:   req.Amount,
	}, nil
}

func (s *NativeSolver) withdrawCall(_ context.Context, req types.SolverRequest) (chain.Call, error) {
	route, _ := s.route(req)
	if !req.Output.IsNative() {
		return chain.Call{}, fmt.Errorf("%w: native withdraw needs the native coin as output", ErrUnsupported)
	}
	return chain.Call{
		ChainID: req.Input.ChainID,
		To:      route.Router,
		ABI:     chain.NativeRouterABI,
		Method:  "withdrawEth",
		Args:    []interface{}{req.Input.Address, req.Amount, req.Owner, maxLoss(req)},
	}, nil
}
