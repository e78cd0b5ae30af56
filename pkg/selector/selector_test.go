package selector_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vault-solver/config"
	"vault-solver/pkg/chain/chaintest"
	"vault-solver/pkg/selector"
	"vault-solver/pkg/solver"
	"vault-solver/pkg/types"
)

var (
	owner        = common.HexToAddress("0x0000000000000000000000000000000000000001")
	usdc         = common.HexToAddress("0x0000000000000000000000000000000000000010")
	usdcVault    = common.HexToAddress("0x0000000000000000000000000000000000000020")
	wethVault    = common.HexToAddress("0x0000000000000000000000000000000000000021")
	weth         = common.HexToAddress("0x0000000000000000000000000000000000000030")
	nativeRouter = common.HexToAddress("0x0000000000000000000000000000000000000040")
	partnerAddr  = common.HexToAddress("0x0000000000000000000000000000000000000050")
	router       = common.HexToAddress("0x0000000000000000000000000000000000000060")
	stakingZap   = common.HexToAddress("0x0000000000000000000000000000000000000070")
	internalZap  = common.HexToAddress("0x0000000000000000000000000000000000000080")
)

func fullConfig() selector.Config {
	return selector.Config{
		Disabled:         map[solver.Kind]bool{},
		PartnerID:        common.HexToAddress("0x0000000000000000000000000000000000000051"),
		PartnerContracts: map[uint64]common.Address{1: partnerAddr},
		Native:           map[uint64]config.NativeRoute{1: {Router: nativeRouter, Wrapped: weth}},
		StakingZaps:      map[uint64]common.Address{1: stakingZap},
		InternalZap:      internalZap,
		ZapSlippageBps:   6,
	}
}

func deposit() types.SolverRequest {
	return types.SolverRequest{
		Input:     types.Asset{Address: usdc, ChainID: 1, Decimals: 6},
		Output:    types.Asset{Address: usdcVault, ChainID: 1, Decimals: 6},
		Amount:    big.NewInt(1_000_000),
		Direction: types.Deposit,
		Owner:     owner,
		Version:   types.VersionV3,
	}
}

func addr(a common.Address) *common.Address {
	return &a
}

func TestSelectPriority(t *testing.T) {
	plain := selector.Config{Disabled: map[solver.Kind]bool{}, InternalZap: internalZap}

	tests := []struct {
		name string
		cfg  selector.Config
		req  func() types.SolverRequest
		want solver.Kind
	}{
		{"plain deposit", plain, deposit, solver.Direct},
		{"migrator wins over everything", fullConfig(), func() types.SolverRequest {
			r := deposit()
			r.Migrator = addr(router)
			r.Stake = true
			r.Input.Address = types.NativeAddress
			return r
		}, solver.RouterMigration},
		{"zap registry as migrator", fullConfig(), func() types.SolverRequest {
			r := deposit()
			r.Migrator = addr(internalZap)
			return r
		}, solver.InternalZap},
		{"staking requested", fullConfig(), func() types.SolverRequest {
			r := deposit()
			r.Stake = true
			return r
		}, solver.StakingZap},
		{"staking without zap on chain", plain, func() types.SolverRequest {
			r := deposit()
			r.Stake = true
			return r
		}, solver.Direct},
		{"partner context", fullConfig(), deposit, solver.Partner},
		{"native input", plain, func() types.SolverRequest {
			r := deposit()
			r.Input.Address = types.NativeAddress
			return r
		}, solver.NativeWrapper},
		{"native input with partner configured", fullConfig(), func() types.SolverRequest {
			r := deposit()
			r.Input.Address = types.NativeAddress
			return r
		}, solver.NativeWrapper},
		{"native input with staking requested", fullConfig(), func() types.SolverRequest {
			r := deposit()
			r.Input.Address = types.NativeAddress
			r.Stake = true
			return r
		}, solver.NativeWrapper},
		{"native output with partner configured", fullConfig(), func() types.SolverRequest {
			r := deposit()
			r.Direction = types.Withdraw
			r.Input, r.Output = r.Output, types.Asset{Address: types.NativeAddress, ChainID: 1, Decimals: 18}
			return r
		}, solver.NativeWrapper},
		{"native output", plain, func() types.SolverRequest {
			r := deposit()
			r.Direction = types.Withdraw
			r.Input, r.Output = r.Output, types.Asset{Address: types.NativeAddress, ChainID: 1, Decimals: 18}
			return r
		}, solver.NativeWrapper},
		{"withdraw never goes to the router", plain, func() types.SolverRequest {
			r := deposit()
			r.Direction = types.Withdraw
			r.Migrator = addr(router)
			return r
		}, solver.Direct},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := selector.New(tt.cfg, solver.Deps{})
			assert.Equal(t, tt.want, s.Select(tt.req()))
		})
	}
}

func TestDisabledOptionalStrategyFallsThrough(t *testing.T) {
	cfg := fullConfig()
	cfg.Disabled[solver.Partner] = true
	cfg.Disabled[solver.StakingZap] = true
	s := selector.New(cfg, solver.Deps{})

	req := deposit()
	req.Stake = true
	assert.Equal(t, solver.Direct, s.Select(req))
	assert.NotContains(t, s.Enabled(), solver.Partner)
	assert.Len(t, s.Enabled(), 4)
}

func TestDisabledRequiredStrategyStaysSelected(t *testing.T) {
	cfg := fullConfig()
	cfg.Disabled[solver.NativeWrapper] = true
	s := selector.New(cfg, solver.Deps{Reader: chaintest.NewReader()})

	req := deposit()
	req.Input.Address = types.NativeAddress
	active := s.Active(req)
	assert.Equal(t, solver.NativeWrapper, active.Kind())
	assert.Nil(t, active.Init(context.Background(), req))
}

func TestSolversPersistAcrossSwitches(t *testing.T) {
	reader := chaintest.NewReader()
	reader.ReturnsBig(usdcVault, "previewDeposit", 990)
	s := selector.New(fullConfig(), solver.Deps{Reader: reader, Writer: chaintest.NewWriter()})
	ctx := context.Background()

	partnerReq := deposit()
	partnerQuote := s.Active(partnerReq).Init(ctx, partnerReq)
	require.NotNil(t, partnerQuote)

	stakeReq := deposit()
	stakeReq.Stake = true
	staking := s.Active(stakeReq)
	require.Equal(t, solver.StakingZap, staking.Kind())
	require.NotNil(t, staking.Init(ctx, stakeReq))

	assert.Same(t, s.Solver(solver.Partner), s.Active(partnerReq))
	assert.Same(t, partnerQuote, s.Solver(solver.Partner).Quote())
	assert.Nil(t, s.Solver(solver.NativeWrapper).Quote())
}

// Deposit of one native coin into the wrapped-asset vault
func TestNativeDepositScenario(t *testing.T) {
	reader := chaintest.NewReader()
	reader.ReturnsBig(wethVault, "previewDeposit", 990_000_000_000_000_000)
	writer := chaintest.NewWriter()
	s := selector.New(fullConfig(), solver.Deps{Reader: reader, Writer: writer})
	ctx := context.Background()

	oneEther := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	req := types.SolverRequest{
		Input:     types.Asset{Address: types.NativeAddress, ChainID: 1, Decimals: 18, Symbol: "ETH"},
		Output:    types.Asset{Address: wethVault, ChainID: 1, Decimals: 18, Symbol: "yvWETH"},
		Amount:    oneEther,
		Direction: types.Deposit,
		Owner:     owner,
		Version:   types.VersionV3,
	}

	active := s.Active(req)
	require.Equal(t, solver.NativeWrapper, active.Kind())

	q := active.Init(ctx, req)
	require.NotNil(t, q)
	assert.Equal(t, weth, q.From)
	assert.NotEqual(t, types.NativeAddress, q.From)

	spender, ok := active.Spender()
	require.True(t, ok)
	assert.Equal(t, nativeRouter, spender)
	assert.NotEqual(t, wethVault, spender)

	executed, err := active.ExecuteDeposit(ctx, nil, nil)
	require.NoError(t, err)
	require.True(t, executed)

	calls := writer.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, nativeRouter, calls[0].To)
	assert.Equal(t, "depositEth", calls[0].Method)
	assert.Equal(t, oneEther, calls[0].Value)
}

func TestConfigFrom(t *testing.T) {
	cfg, err := selector.ConfigFrom(&config.Config{
		PartnerID: "0x0000000000000000000000000000000000000051",
		Disabled:  []string{"Partner", " staking_zap "},
	})
	require.NoError(t, err)
	assert.True(t, cfg.Disabled[solver.Partner])
	assert.True(t, cfg.Disabled[solver.StakingZap])
	assert.Equal(t, common.HexToAddress("0x51"), cfg.PartnerID)

	_, err = selector.ConfigFrom(&config.Config{Disabled: []string{"bridge"}})
	assert.Error(t, err)
}
