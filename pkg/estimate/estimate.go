// Package estimate computes expected outputs by simulating conversions
// against the target contracts.
package estimate

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vault-solver/pkg/chain"
	"vault-solver/pkg/telemetry"
	"vault-solver/pkg/types"
)

// BasisPoints is the denominator for slippage values
const BasisPoints = 10000

// Estimator reads conversion rates from the chain
type Estimator struct {
	reader  chain.Reader
	logger  *zap.Logger
	metrics *telemetry.Metrics
}

// Option configures an Estimator
type Option func(*Estimator)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Estimator) { e.logger = logger }
}

// WithMetrics sets the telemetry sink
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Estimator) { e.metrics = m }
}

// New creates an Estimator
func New(reader chain.Reader, opts ...Option) *Estimator {
	e := &Estimator{reader: reader, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Convert simulates moving amount into (deposit) or out of (withdraw) vault
// and returns the resulting amount: shares for deposits, underlying assets for
// withdrawals.
func (e *Estimator) Convert(ctx context.Context, vault types.Asset, version string, dir types.Direction, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() == 0 {
		return new(big.Int), nil
	}

	var (
		out *big.Int
		err error
	)
	if types.IsV3(version) {
		method := "previewDeposit"
		if dir == types.Withdraw {
			method = "previewRedeem"
		}
		out, err = e.readBig(ctx, chain.Call{
			ChainID: vault.ChainID,
			To:      vault.Address,
			ABI:     chain.VaultV3ABI,
			Method:  method,
			Args:    []interface{}{amount},
		})
	} else {
		out, err = e.convertV2(ctx, vault, dir, amount)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to estimate %s on %s: %w", dir, vault.Address.Hex(), err)
	}
	return out, nil
}

func (e *Estimator) convertV2(ctx context.Context, vault types.Asset, dir types.Direction, amount *big.Int) (*big.Int, error) {
	pps, err := e.readBig(ctx, chain.Call{
		ChainID: vault.ChainID,
		To:      vault.Address,
		ABI:     chain.VaultV2ABI,
		Method:  "pricePerShare",
	})
	if err != nil {
		return nil, err
	}
	if pps.Sign() == 0 {
		return nil, fmt.Errorf("vault %s reports zero price per share", vault.Address.Hex())
	}

	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(vault.Decimals)), nil)
	if dir == types.Withdraw {
		return new(big.Int).Div(new(big.Int).Mul(amount, pps), unit), nil
	}
	return new(big.Int).Div(new(big.Int).Mul(amount, unit), pps), nil
}

// Migrate estimates the target shares received for redeeming shares of from
// and depositing the proceeds into to.
func (e *Estimator) Migrate(ctx context.Context, from types.Asset, fromVersion string, to types.Asset, toVersion string, shares *big.Int) (*big.Int, error) {
	assets, err := e.Convert(ctx, from, fromVersion, types.Withdraw, shares)
	if err != nil {
		return nil, err
	}
	return e.Convert(ctx, to, toVersion, types.Deposit, assets)
}

// ZapMinimum asks the zap for both its mint and swap expectations and returns
// the guaranteed minimum output after the slippage haircut.
func (e *Estimator) ZapMinimum(ctx context.Context, chainID uint64, zap, input, output common.Address, amount *big.Int, slippageBps uint32) (*big.Int, error) {
	if amount == nil || amount.Sign() == 0 {
		return new(big.Int), nil
	}

	var mint, swap *big.Int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		mint, err = e.readBig(gctx, zapCall(chainID, zap, "expectedMint", input, output, amount))
		return err
	})
	g.Go(func() error {
		var err error
		swap, err = e.readBig(gctx, zapCall(chainID, zap, "expectedSwap", input, output, amount))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to estimate zap output: %w", err)
	}

	return GuaranteedMinimum(mint, swap, slippageBps), nil
}

func zapCall(chainID uint64, zap common.Address, method string, input, output common.Address, amount *big.Int) chain.Call {
	return chain.Call{
		ChainID: chainID,
		To:      zap,
		ABI:     chain.InternalZapABI,
		Method:  method,
		Args:    []interface{}{input, output, amount},
	}
}

// GuaranteedMinimum takes the smaller of the two expectations and removes
// slippageBps from it.
func GuaranteedMinimum(mint, swap *big.Int, slippageBps uint32) *big.Int {
	lowest := mint
	if swap.Cmp(mint) < 0 {
		lowest = swap
	}
	return ApplySlippage(lowest, slippageBps)
}

// ApplySlippage returns amount reduced by slippageBps basis points, rounded down
func ApplySlippage(amount *big.Int, slippageBps uint32) *big.Int {
	if slippageBps >= BasisPoints {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount, big.NewInt(int64(BasisPoints-slippageBps)))
	return out.Div(out, big.NewInt(BasisPoints))
}

func (e *Estimator) readBig(ctx context.Context, call chain.Call) (*big.Int, error) {
	value, err := chain.ReadBig(ctx, e.reader, call)
	if err != nil {
		e.metrics.RecordRead(call.Method, telemetry.OutcomeFailed)
		e.logger.Warn("estimate read failed",
			zap.String("call", call.String()),
			zap.Error(err))
		return nil, err
	}
	e.metrics.RecordRead(call.Method, telemetry.OutcomeOK)
	return value, nil
}
