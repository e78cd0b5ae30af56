package estimate_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vault-solver/pkg/chain/chaintest"
	"vault-solver/pkg/estimate"
	"vault-solver/pkg/telemetry"
	"vault-solver/pkg/types"
)

var (
	vaultAddr = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	zapAddr   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	tokenIn   = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	tokenOut  = common.HexToAddress("0x00000000000000000000000000000000000000d4")
)

func vault(decimals uint8) types.Asset {
	return types.Asset{Address: vaultAddr, ChainID: 1, Decimals: decimals}
}

func TestConvertV3UsesPreview(t *testing.T) {
	reader := chaintest.NewReader()
	reader.ReturnsBig(vaultAddr, "previewDeposit", 950)
	reader.ReturnsBig(vaultAddr, "previewRedeem", 1050)
	est := estimate.New(reader)

	shares, err := est.Convert(context.Background(), vault(6), types.VersionV3, types.Deposit, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, int64(950), shares.Int64())

	assets, err := est.Convert(context.Background(), vault(6), "3.0.2", types.Withdraw, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, int64(1050), assets.Int64())
}

func TestConvertV2UsesPricePerShare(t *testing.T) {
	reader := chaintest.NewReader()
	// 1 share = 1.25 underlying
	reader.ReturnsBig(vaultAddr, "pricePerShare", 1_250_000)
	est := estimate.New(reader)

	shares, err := est.Convert(context.Background(), vault(6), types.VersionV2, types.Deposit, big.NewInt(2_500_000))
	require.NoError(t, err)
	assert.Equal(t, int64(2_000_000), shares.Int64())

	assets, err := est.Convert(context.Background(), vault(6), types.VersionV2, types.Withdraw, big.NewInt(2_000_000))
	require.NoError(t, err)
	assert.Equal(t, int64(2_500_000), assets.Int64())
}

func TestConvertZeroAmountSkipsRead(t *testing.T) {
	reader := chaintest.NewReader()
	est := estimate.New(reader)

	out, err := est.Convert(context.Background(), vault(18), types.VersionV3, types.Deposit, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Sign())
	assert.Empty(t, reader.Calls())
}

func TestConvertReadFailure(t *testing.T) {
	reader := chaintest.NewReader()
	reader.Fails(vaultAddr, "previewDeposit", errors.New("rate limited"))
	metrics := telemetry.New()
	est := estimate.New(reader, estimate.WithMetrics(metrics))

	out, err := est.Convert(context.Background(), vault(18), types.VersionV3, types.Deposit, big.NewInt(1))
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Reads().WithLabelValues("previewDeposit", telemetry.OutcomeFailed)))
}

func TestConvertV2ZeroPricePerShare(t *testing.T) {
	reader := chaintest.NewReader()
	reader.ReturnsBig(vaultAddr, "pricePerShare", 0)
	est := estimate.New(reader)

	_, err := est.Convert(context.Background(), vault(18), types.VersionV2, types.Deposit, big.NewInt(1))
	require.Error(t, err)
}

func TestMigrateChainsRedeemAndDeposit(t *testing.T) {
	target := common.HexToAddress("0x00000000000000000000000000000000000000e5")
	reader := chaintest.NewReader()
	reader.ReturnsBig(vaultAddr, "previewRedeem", 1100)
	reader.ReturnsBig(target, "previewDeposit", 1000)
	est := estimate.New(reader)

	out, err := est.Migrate(context.Background(),
		vault(18), types.VersionV3,
		types.Asset{Address: target, ChainID: 1, Decimals: 18}, types.VersionV3,
		big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), out.Int64())

	calls := reader.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, big.NewInt(1100), calls[1].Args[0])
}

func TestZapMinimumTakesLowerExpectation(t *testing.T) {
	reader := chaintest.NewReader()
	reader.ReturnsBig(zapAddr, "expectedMint", 1_000_000) // M
	reader.ReturnsBig(zapAddr, "expectedSwap", 1_200_000) // S
	est := estimate.New(reader)

	out, err := est.ZapMinimum(context.Background(), 1, zapAddr, tokenIn, tokenOut, big.NewInt(1_000_000), 6)
	require.NoError(t, err)
	// 1_000_000 * (10000 - 6) / 10000
	assert.Equal(t, int64(999_400), out.Int64())
}

func TestZapMinimumFailsWhenEitherReadFails(t *testing.T) {
	reader := chaintest.NewReader()
	reader.ReturnsBig(zapAddr, "expectedMint", 1_000_000)
	reader.Fails(zapAddr, "expectedSwap", errors.New("timeout"))
	est := estimate.New(reader)

	out, err := est.ZapMinimum(context.Background(), 1, zapAddr, tokenIn, tokenOut, big.NewInt(1), 6)
	require.Error(t, err)
	assert.Nil(t, out)
}

func TestGuaranteedMinimum(t *testing.T) {
	tests := []struct {
		name string
		mint int64
		swap int64
		bps  uint32
		want int64
	}{
		{"mint lower", 100_000, 200_000, 6, 99_940},
		{"swap lower", 300_000, 200_000, 6, 199_880},
		{"equal", 10_000, 10_000, 0, 10_000},
		{"rounds down", 1, 1, 6, 0},
		{"full haircut", 500, 600, 10000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := estimate.GuaranteedMinimum(big.NewInt(tt.mint), big.NewInt(tt.swap), tt.bps)
			assert.Equal(t, tt.want, got.Int64())
		})
	}
}
