package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vault-solver/config"
	"vault-solver/pkg/chain"
	"vault-solver/pkg/controller"
	"vault-solver/pkg/journal"
	"vault-solver/pkg/selector"
	"vault-solver/pkg/solver"
	"vault-solver/pkg/telemetry"
	"vault-solver/pkg/txstatus"
	"vault-solver/pkg/types"
)

var errNoAccount = errors.New("no account configured, set private_key")

// engine is everything a command needs to quote and execute
type engine struct {
	cfg      *config.Config
	logger   *zap.Logger
	client   *chain.Client
	journal  *journal.Journal
	selector *selector.Selector
	ctrl     *controller.Controller

	// print the engine counters on Close
	dumpMetrics bool
}

func newEngine(cmd *cobra.Command) (*engine, error) {
	logger, err := newLogger(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	selCfg, err := selector.ConfigFrom(cfg)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	history, err := journal.Open(cfg.JournalPath, journal.WithLogger(logger))
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	client, err := chain.NewClient(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	sel := selector.New(selCfg, solver.Deps{
		Reader:   client,
		Writer:   client,
		Logger:   logger,
		Metrics:  telemetry.Default(),
		Observer: history,
	})

	ctrl := controller.New(sel, client,
		controller.WithLogger(logger),
		controller.WithRefresher(&balanceRefresher{client: client, logger: logger}),
		controller.WithStatusOptions(txstatus.WithCooldown(cfg.StatusCooldown)))

	verbose, _ := cmd.Flags().GetBool("verbose")
	metrics, _ := cmd.Flags().GetBool("metrics")

	return &engine{
		cfg:         cfg,
		logger:      logger,
		client:      client,
		journal:     history,
		selector:    sel,
		ctrl:        ctrl,
		dumpMetrics: verbose || metrics,
	}, nil
}

// Close waits for pending balance refreshes, prints the counters when asked
// to, then releases connections and flushes the logger
func (e *engine) Close() {
	e.ctrl.Wait()
	if e.dumpMetrics {
		if err := telemetry.WriteText(os.Stderr, prometheus.DefaultGatherer); err != nil {
			e.logger.Warn("failed to export metrics", zap.Error(err))
		}
	}
	e.client.Close()
	_ = e.logger.Sync()
}

// maxFor returns the owner's balance of the input asset, the most the
// request may move. Nil when unknown.
func (e *engine) maxFor(ctx context.Context, req types.SolverRequest) *big.Int {
	owner, ok := e.client.Account()
	if !ok {
		return nil
	}
	balance, err := e.client.Balance(ctx, req.Input.ChainID, req.Input.Address, owner)
	if err != nil {
		e.logger.Warn("balance unavailable",
			zap.String("asset", req.Input.Address.Hex()),
			zap.Error(err))
		return nil
	}
	return balance
}

// balanceRefresher re-reads balances after a completed action
type balanceRefresher struct {
	client *chain.Client
	logger *zap.Logger
}

func (r *balanceRefresher) Refresh(ctx context.Context, refs []types.AssetRef) {
	owner, ok := r.client.Account()
	if !ok {
		return
	}
	for _, ref := range refs {
		balance, err := r.client.Balance(ctx, ref.ChainID, ref.Address, owner)
		if err != nil {
			r.logger.Warn("balance refresh failed",
				zap.Uint64("chain_id", ref.ChainID),
				zap.String("asset", ref.Address.Hex()),
				zap.Error(err))
			continue
		}
		r.logger.Info("balance refreshed",
			zap.Uint64("chain_id", ref.ChainID),
			zap.String("asset", ref.Address.Hex()),
			zap.String("balance", balance.String()))
	}
}

// intentFlags are the flags that describe a SolverRequest
type intentFlags struct {
	chainID      uint64
	from         string
	to           string
	amount       string
	version      string
	inputVersion string
	migrator     string
	asset        string
	pool         string
	stake        bool
	maxLoss      uint32
	yes          bool
}

func (f *intentFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint64Var(&f.chainID, "chain", 1, "Chain ID")
	cmd.Flags().StringVar(&f.from, "from", "", "Input token address, or 'native' (REQUIRED)")
	cmd.Flags().StringVar(&f.to, "to", "", "Output token address, or 'native' (REQUIRED)")
	cmd.Flags().StringVar(&f.amount, "amount", "", "Amount of the input token, e.g. 1.5 (REQUIRED)")
	cmd.Flags().StringVar(&f.version, "version", types.VersionV3, "Product version of the vault (v2 or v3)")
	cmd.Flags().StringVar(&f.inputVersion, "input-version", "", "Product version of the vault being migrated out of")
	cmd.Flags().StringVar(&f.migrator, "migrator", "", "Router or zap contract to migrate through")
	cmd.Flags().StringVar(&f.asset, "asset", "", "Underlying asset override")
	cmd.Flags().StringVar(&f.pool, "pool", "", "Staking pool to enroll the shares in")
	cmd.Flags().BoolVar(&f.stake, "stake", false, "Stake the minted shares in the same transaction")
	cmd.Flags().Uint32Var(&f.maxLoss, "max-loss", 0, "Maximum acceptable loss in basis points")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "Skip confirmation prompt")
}

// build resolves both tokens on chain and assembles the request
func (f *intentFlags) build(ctx context.Context, client *chain.Client, dir types.Direction) (types.SolverRequest, error) {
	from, err := parseToken(f.from)
	if err != nil {
		return types.SolverRequest{}, fmt.Errorf("--from: %w", err)
	}
	to, err := parseToken(f.to)
	if err != nil {
		return types.SolverRequest{}, fmt.Errorf("--to: %w", err)
	}

	input, err := client.Asset(ctx, f.chainID, from)
	if err != nil {
		return types.SolverRequest{}, err
	}
	output, err := client.Asset(ctx, f.chainID, to)
	if err != nil {
		return types.SolverRequest{}, err
	}

	amount, err := types.ParseUnits(f.amount, input.Decimals)
	if err != nil {
		return types.SolverRequest{}, err
	}

	req := types.SolverRequest{
		Input:        input,
		Output:       output,
		Amount:       amount,
		Direction:    dir,
		Version:      f.version,
		InputVersion: f.inputVersion,
		Stake:        f.stake,
		MaxLossBps:   f.maxLoss,
	}
	if owner, ok := client.Account(); ok {
		req.Owner = owner
	}

	if req.Migrator, err = optionalAddress(f.migrator); err != nil {
		return types.SolverRequest{}, fmt.Errorf("--migrator: %w", err)
	}
	if req.AssetOverride, err = optionalAddress(f.asset); err != nil {
		return types.SolverRequest{}, fmt.Errorf("--asset: %w", err)
	}
	if req.StakingPool, err = optionalAddress(f.pool); err != nil {
		return types.SolverRequest{}, fmt.Errorf("--pool: %w", err)
	}
	return req, nil
}

func parseDirection(raw string) (types.Direction, error) {
	dir := types.Direction(strings.ToLower(strings.TrimSpace(raw)))
	if dir != types.Deposit && dir != types.Withdraw {
		return "", fmt.Errorf("invalid direction %q", raw)
	}
	return dir, nil
}

func parseToken(raw string) (common.Address, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return common.Address{}, fmt.Errorf("token is required")
	case "native", "eth":
		return types.NativeAddress, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(raw), nil
}

func optionalAddress(raw string) (*common.Address, error) {
	if raw == "" {
		return nil, nil
	}
	if !common.IsHexAddress(raw) {
		return nil, fmt.Errorf("invalid address %q", raw)
	}
	addr := common.HexToAddress(raw)
	return &addr, nil
}
