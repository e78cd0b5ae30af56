// Package selector decides which strategy serves a request. The decision is
// an ordered table of predicates; the first match wins and Direct is the
// fallback.
package selector

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vault-solver/config"
	"vault-solver/pkg/solver"
	"vault-solver/pkg/types"
)

// Config is everything the table and the strategies need, fixed at
// construction
type Config struct {
	Disabled         map[solver.Kind]bool
	PartnerID        common.Address
	PartnerContracts map[uint64]common.Address
	Native           map[uint64]config.NativeRoute
	StakingZaps      map[uint64]common.Address
	InternalZap      common.Address
	ZapSlippageBps   uint32
}

// ConfigFrom converts the application configuration
func ConfigFrom(cfg *config.Config) (Config, error) {
	out := Config{
		Disabled:         make(map[solver.Kind]bool),
		PartnerContracts: cfg.PartnerContracts,
		Native:           cfg.Native,
		StakingZaps:      cfg.StakingZaps,
		InternalZap:      cfg.InternalZap,
		ZapSlippageBps:   cfg.ZapSlippageBps,
	}
	if cfg.PartnerID != "" {
		out.PartnerID = common.HexToAddress(cfg.PartnerID)
	}
	for _, name := range cfg.Disabled {
		kind, err := solver.ParseKind(name)
		if err != nil {
			return Config{}, fmt.Errorf("disabled: %w", err)
		}
		out.Disabled[kind] = true
	}
	return out, nil
}

// rule maps a predicate to a strategy. Optional rules only add something on
// top of a plainer path, so they are skipped when their strategy is disabled.
// Neither optional strategy can carry the native coin, so a native leg falls
// through them to the wrapper.
type rule struct {
	kind     solver.Kind
	optional bool
	match    func(cfg Config, req types.SolverRequest) bool
}

var rules = []rule{
	{
		kind: solver.RouterMigration,
		match: func(cfg Config, req types.SolverRequest) bool {
			return req.Migrator != nil &&
				*req.Migrator != cfg.InternalZap &&
				req.Direction == types.Deposit
		},
	},
	{
		kind: solver.InternalZap,
		match: func(cfg Config, req types.SolverRequest) bool {
			return req.Migrator != nil &&
				cfg.InternalZap != (common.Address{}) &&
				*req.Migrator == cfg.InternalZap
		},
	},
	{
		kind:     solver.StakingZap,
		optional: true,
		match: func(cfg Config, req types.SolverRequest) bool {
			_, ok := cfg.StakingZaps[req.Output.ChainID]
			return ok && req.Stake && req.Direction == types.Deposit && !req.HasNativeLeg()
		},
	},
	{
		kind:     solver.Partner,
		optional: true,
		match: func(cfg Config, req types.SolverRequest) bool {
			_, ok := cfg.PartnerContracts[req.Vault().ChainID]
			return ok && cfg.PartnerID != (common.Address{}) && !req.HasNativeLeg()
		},
	},
	{
		kind: solver.NativeWrapper,
		match: func(_ Config, req types.SolverRequest) bool {
			return req.HasNativeLeg()
		},
	},
}

// Selector owns one solver per strategy for the whole session
type Selector struct {
	cfg     Config
	logger  *zap.Logger
	solvers map[solver.Kind]solver.Solver
}

// New builds the selector and its solvers
func New(cfg Config, deps solver.Deps) *Selector {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	disabled := func(kind solver.Kind) solver.Option {
		return solver.WithDisabled(cfg.Disabled[kind])
	}

	return &Selector{
		cfg:    cfg,
		logger: deps.Logger,
		solvers: map[solver.Kind]solver.Solver{
			solver.Direct:          solver.NewDirect(deps, disabled(solver.Direct)),
			solver.NativeWrapper:   solver.NewNative(deps, cfg.Native, disabled(solver.NativeWrapper)),
			solver.Partner:         solver.NewPartner(deps, cfg.PartnerID, cfg.PartnerContracts, disabled(solver.Partner)),
			solver.RouterMigration: solver.NewRouterMigration(deps, disabled(solver.RouterMigration)),
			solver.StakingZap:      solver.NewStakingZap(deps, cfg.StakingZaps, disabled(solver.StakingZap)),
			solver.InternalZap:     solver.NewInternalZap(deps, cfg.InternalZap, cfg.ZapSlippageBps, disabled(solver.InternalZap)),
		},
	}
}

// Select returns the strategy for req
func (s *Selector) Select(req types.SolverRequest) solver.Kind {
	for _, r := range rules {
		if r.optional && s.cfg.Disabled[r.kind] {
			continue
		}
		if r.match(s.cfg, req) {
			return r.kind
		}
	}
	return solver.Direct
}

// Solver returns the session's solver for kind
func (s *Selector) Solver(kind solver.Kind) solver.Solver {
	return s.solvers[kind]
}

// Active returns the solver that serves req
func (s *Selector) Active(req types.SolverRequest) solver.Solver {
	kind := s.Select(req)
	s.logger.Debug("strategy selected",
		zap.String("strategy", kind.String()),
		zap.String("direction", string(req.Direction)),
		zap.Uint64("chain_id", req.Input.ChainID))
	return s.solvers[kind]
}

// Enabled returns the strategies that are not administratively disabled
func (s *Selector) Enabled() []solver.Kind {
	enabled := make([]solver.Kind, 0, len(solver.Kinds))
	for _, kind := range solver.Kinds {
		if !s.cfg.Disabled[kind] {
			enabled = append(enabled, kind)
		}
	}
	return enabled
}
