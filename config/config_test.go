package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func loadYAML(t *testing.T, raw string) (*Config, error) {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(raw)))
	return FromViper(v)
}

func TestFromViperDefaults(t *testing.T) {
	cfg, err := loadYAML(t, `journal_path: /tmp/history.json`)
	require.NoError(t, err)

	require.Equal(t, DefaultStatusCooldown, cfg.StatusCooldown)
	require.Equal(t, DefaultReceiptTimeout, cfg.ReceiptTimeout)
	require.Equal(t, uint32(DefaultZapSlippageBps), cfg.ZapSlippageBps)
	require.Equal(t, "/tmp/history.json", cfg.JournalPath)
	require.Empty(t, cfg.Networks)
	require.Equal(t, common.Address{}, cfg.InternalZap)
}

func TestFromViperChainMaps(t *testing.T) {
	cfg, err := loadYAML(t, `
rpc:
  "1": https://eth.example
  "10": https://op.example
gas_limit:
  "1": 500000
partner:
  id: "0x00000000000000000000000000000000000000aa"
  contracts:
    "1": "0x00000000000000000000000000000000000000b1"
native:
  "1":
    router: "0x00000000000000000000000000000000000000c1"
    wrapped: "0x00000000000000000000000000000000000000c2"
staking_zap:
  "10": "0x00000000000000000000000000000000000000d1"
internal_zap:
  address: "0x00000000000000000000000000000000000000e1"
  slippage_bps: 10
disabled: [partner]
status_cooldown: 5s
journal_path: /tmp/h.json
`)
	require.NoError(t, err)

	require.Len(t, cfg.Networks, 2)
	require.Equal(t, "https://op.example", cfg.Networks[10].RPCURL)
	require.NotNil(t, cfg.Networks[1].GasLimit)
	require.Equal(t, uint64(500000), *cfg.Networks[1].GasLimit)
	require.Nil(t, cfg.Networks[10].GasLimit)

	require.Equal(t, common.HexToAddress("0xb1"), cfg.PartnerContracts[1])
	require.Equal(t, common.HexToAddress("0xc1"), cfg.Native[1].Router)
	require.Equal(t, common.HexToAddress("0xc2"), cfg.Native[1].Wrapped)
	require.Equal(t, common.HexToAddress("0xd1"), cfg.StakingZaps[10])
	require.Equal(t, common.HexToAddress("0xe1"), cfg.InternalZap)
	require.Equal(t, uint32(10), cfg.ZapSlippageBps)
	require.Equal(t, 5*time.Second, cfg.StatusCooldown)
	require.Equal(t, []string{"partner"}, cfg.Disabled)
}

func TestFromViperRejectsBadValues(t *testing.T) {
	_, err := loadYAML(t, `
staking_zap:
  "1": not-an-address
journal_path: /tmp/h.json
`)
	require.Error(t, err)

	_, err = loadYAML(t, `
internal_zap:
  slippage_bps: 10000
journal_path: /tmp/h.json
`)
	require.Error(t, err)

	_, err = loadYAML(t, `
partner:
  id: acme
journal_path: /tmp/h.json
`)
	require.Error(t, err)

	_, err = loadYAML(t, `
rpc:
  mainnet: https://eth.example
journal_path: /tmp/h.json
`)
	require.Error(t, err)
}
