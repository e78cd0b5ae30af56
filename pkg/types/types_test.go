package types

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnits(t *testing.T) {
	tests := []struct {
		value    string
		decimals uint8
		want     string
	}{
		{"1", 18, "1000000000000000000"},
		{"1.5", 6, "1500000"},
		{".5", 6, "500000"},
		{"0.000001", 6, "1"},
		{" 42 ", 0, "42"},
		{"10.", 2, "1000"},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := ParseUnits(tt.value, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseUnitsRejects(t *testing.T) {
	for _, value := range []string{"", "-1", "1.2.3", "abc", "0.0000001", "1e6"} {
		_, err := ParseUnits(value, 6)
		assert.Error(t, err, value)
	}
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "1.5", FormatUnits(big.NewInt(1_500_000), 6))
	assert.Equal(t, "0.000001", FormatUnits(big.NewInt(1), 6))
	assert.Equal(t, "100", FormatUnits(big.NewInt(100_000_000), 6))
	assert.Equal(t, "-2.25", FormatUnits(big.NewInt(-225), 2))
	assert.Equal(t, "7", FormatUnits(big.NewInt(7), 0))
	assert.Equal(t, "0", FormatUnits(nil, 18))
}

func TestAmount(t *testing.T) {
	raw, err := ParseUnits("2.5", 6)
	require.NoError(t, err)
	a := NewAmount(raw, 6)
	assert.Equal(t, "2.5", a.String())
	assert.False(t, a.IsZero())
	assert.True(t, Amount{}.IsZero())

	raw = big.NewInt(10)
	copied := NewAmount(raw, 0)
	raw.SetInt64(11)
	assert.Equal(t, int64(10), copied.Raw.Int64())
}

func TestAllowanceCovers(t *testing.T) {
	record := AllowanceRecord{Amount: NewAmount(big.NewInt(100), 6)}
	assert.True(t, record.Covers(big.NewInt(100)))
	assert.False(t, record.Covers(big.NewInt(101)))
	assert.True(t, record.Covers(nil))
	assert.False(t, AllowanceRecord{}.Covers(big.NewInt(1)))
}

func TestRequestHelpers(t *testing.T) {
	usdc := common.HexToAddress("0x10")
	vault := common.HexToAddress("0x20")
	pool := common.HexToAddress("0x30")

	req := SolverRequest{
		Input:       Asset{Address: usdc, ChainID: 1},
		Output:      Asset{Address: vault, ChainID: 10},
		Amount:      big.NewInt(5),
		Direction:   Deposit,
		Version:     "3.0.1",
		StakingPool: &pool,
	}

	assert.True(t, req.IsV3())
	assert.Equal(t, vault, req.Vault().Address)
	assert.False(t, req.HasNativeLeg())
	assert.Equal(t, "3.0.1", req.SourceVersion())
	assert.Equal(t, []AssetRef{
		{Address: usdc, ChainID: 1},
		{Address: vault, ChainID: 10},
		{Address: pool, ChainID: 10},
	}, req.Touched())

	changed := req.WithAmount(big.NewInt(6))
	assert.Equal(t, int64(5), req.Amount.Int64())
	assert.Equal(t, int64(6), changed.Amount.Int64())
	assert.False(t, req.WithAmount(nil).HasAmount())

	req.Direction = Withdraw
	req.Version = VersionV2
	req.InputVersion = VersionV3
	req.Output.Address = NativeAddress
	assert.False(t, req.IsV3())
	assert.Equal(t, usdc, req.Vault().Address)
	assert.True(t, req.HasNativeLeg())
	assert.Equal(t, VersionV3, req.SourceVersion())
	assert.True(t, Asset{Address: NativeAddress}.IsNative())
}
