package solver

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"go.uber.org/zap"

	"vault-solver/pkg/chain"
	"vault-solver/pkg/estimate"
	"vault-solver/pkg/types"
)

// RouterSolver migrates shares between two vaults of the same family through
// a generic router. It depends on two authorizations: the owner's source
// shares to the router, and the router's underlying to the target vault.
// There is no withdraw path.
type RouterSolver struct {
	*base
}

// NewRouterMigration creates the router-assisted migration strategy. The
// router is taken from each request's migrator hint.
func NewRouterMigration(deps Deps, opts ...Option) *RouterSolver {
	s := &RouterSolver{}
	s.base = newBase(RouterMigration, s, deps, opts...)
	return s
}

func (s *RouterSolver) supports(req types.SolverRequest) bool {
	return req.Migrator != nil && *req.Migrator != (common.Address{})
}

func (s *RouterSolver) quote(ctx context.Context, req types.SolverRequest) (*big.Int, error) {
	return s.estimator.Migrate(ctx, req.Input, req.SourceVersion(), req.Output, req.Version, req.Amount)
}

func (s *RouterSolver) spender(req types.SolverRequest) (common.Address, bool) {
	if !s.supports(req) {
		return common.Address{}, false
	}
	return *req.Migrator, true
}

func (s *RouterSolver) allowances(ctx context.Context, req types.SolverRequest) []allowanceSpec {
	router, ok := s.spender(req)
	if !ok {
		return nil
	}
	specs := []allowanceSpec{ownerSpec(req, router)}

	underlying, err := s.underlying(ctx, req)
	if err != nil {
		s.logger.Warn("failed to resolve target vault asset", zap.Error(err))
		return specs
	}
	return append(specs, allowanceSpec{
		key: types.AllowanceKey{
			ChainID: req.Output.ChainID,
			Owner:   router,
			Spender: req.Output.Address,
			Asset:   underlying,
		},
		// vault shares carry the decimals of their underlying
		decimals: req.Output.Decimals,
	})
}

// underlying returns the asset the router deposits into the target vault
func (s *RouterSolver) underlying(ctx context.Context, req types.SolverRequest) (common.Address, error) {
	if req.AssetOverride != nil {
		return *req.AssetOverride, nil
	}

	call := chain.Call{
		ChainID: req.Output.ChainID,
		To:      req.Output.Address,
		ABI:     chain.VaultV2ABI,
		Method:  "token",
	}
	if req.IsV3() {
		call.ABI, call.Method = chain.VaultV3ABI, "asset"
	}

	out, err := s.reader.Read(ctx, call)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) == 0 {
		return common.Address{}, fmt.Errorf("empty result from %s", call)
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected result type %T from %s", out[0], call)
	}
	return addr, nil
}

// TargetAllowance returns the router's authorization on the target vault
func (s *RouterSolver) TargetAllowance(ctx context.Context, force bool) (types.AllowanceRecord, bool) {
	req, ok := s.Request()
	if !ok {
		return types.AllowanceRecord{}, false
	}
	specs := s.allowances(ctx, req)
	if len(specs) < 2 {
		return types.AllowanceRecord{}, false
	}
	record, _ := s.cache.Get(ctx, specs[1].key, specs[1].decimals, force)
	return record, true
}

func (s *RouterSolver) depositCall(ctx context.Context, req types.SolverRequest) (chain.Call, error) {
	router := *req.Migrator

	expected, err := s.expected(ctx, req)
	if err != nil {
		return chain.Call{}, fmt.Errorf("failed to estimate migration: %w", err)
	}
	migrate := chain.Call{
		ChainID: req.Output.ChainID,
		To:      router,
		ABI:     chain.RouterABI,
		Method:  "migrate",
		Args: []interface{}{
			req.Input.Address,
			req.Output.Address,
			req.Amount,
			estimate.ApplySlippage(expected, uint32(maxLoss(req).Uint64())),
		},
	}

	specs := s.allowances(ctx, req)
	if len(specs) < 2 {
		return migrate, nil
	}
	target := specs[1]
	record, _ := s.cache.Get(ctx, target.key, target.decimals, false)
	assets, err := s.estimator.Convert(ctx, req.Input, req.SourceVersion(), types.Withdraw, req.Amount)
	if err == nil && record.Covers(assets) {
		return migrate, nil
	}

	// the router approves the target vault in the same transaction
	approveData, err := chain.RouterABI.Pack("approve", target.key.Asset, target.key.Spender, math.MaxBig256)
	if err != nil {
		return chain.Call{}, fmt.Errorf("failed to pack router approve: %w", err)
	}
	migrateData, err := migrate.Pack()
	if err != nil {
		return chain.Call{}, err
	}
	return chain.Call{
		ChainID: req.Output.ChainID,
		To:      router,
		ABI:     chain.RouterABI,
		Method:  "multicall",
		Args:    []interface{}{[][]byte{approveData, migrateData}},
	}, nil
}

func (s *RouterSolver) withdrawCall(context.Context, types.SolverRequest) (chain.Call, error) {
	return chain.Call{}, fmt.Errorf("%w: router migration cannot withdraw", ErrUnsupported)
}
