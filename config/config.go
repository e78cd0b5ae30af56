package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

const (
	DefaultStatusCooldown = 3 * time.Second
	DefaultReceiptTimeout = 5 * time.Minute
	DefaultZapSlippageBps = 6 // 0.06%
	DefaultJournalName    = ".vault-solver-history.json"
)

// Network holds the RPC settings for one chain
type Network struct {
	RPCURL   string
	GasLimit *uint64
	GasPrice *int64
}

// NativeRoute is the wrapping router and wrapped asset for a chain's native coin
type NativeRoute struct {
	Router  common.Address
	Wrapped common.Address
}

// Config holds the application configuration
type Config struct {
	Networks   map[uint64]Network
	PrivateKey string

	PartnerID        string
	PartnerContracts map[uint64]common.Address
	Native           map[uint64]NativeRoute
	StakingZaps      map[uint64]common.Address
	InternalZap      common.Address
	ZapSlippageBps   uint32

	// Disabled lists strategies switched off administratively, by name
	Disabled []string

	StatusCooldown time.Duration
	ReceiptTimeout time.Duration
	JournalPath    string
}

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".vault-solver")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	// Read from environment variables
	v.SetEnvPrefix("VAULT_SOLVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional)
	_ = v.ReadInConfig()

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetDefault("status_cooldown", DefaultStatusCooldown)
	v.SetDefault("receipt_timeout", DefaultReceiptTimeout)
	v.SetDefault("internal_zap.slippage_bps", DefaultZapSlippageBps)

	cfg := &Config{
		Networks:         make(map[uint64]Network),
		PrivateKey:       v.GetString("private_key"),
		PartnerID:        v.GetString("partner.id"),
		PartnerContracts: make(map[uint64]common.Address),
		Native:           make(map[uint64]NativeRoute),
		StakingZaps:      make(map[uint64]common.Address),
		Disabled:         v.GetStringSlice("disabled"),
		StatusCooldown:   v.GetDuration("status_cooldown"),
		ReceiptTimeout:   v.GetDuration("receipt_timeout"),
		JournalPath:      v.GetString("journal_path"),
	}

	for key, url := range v.GetStringMapString("rpc") {
		chainID, err := parseChainID(key)
		if err != nil {
			return nil, fmt.Errorf("rpc: %w", err)
		}
		network := Network{RPCURL: url}
		if v.IsSet(fmt.Sprintf("gas_limit.%s", key)) {
			limit := v.GetUint64(fmt.Sprintf("gas_limit.%s", key))
			network.GasLimit = &limit
		}
		if v.IsSet(fmt.Sprintf("gas_price.%s", key)) {
			price := v.GetInt64(fmt.Sprintf("gas_price.%s", key))
			network.GasPrice = &price
		}
		cfg.Networks[chainID] = network
	}

	var err error
	if cfg.PartnerContracts, err = addressMap(v.GetStringMapString("partner.contracts")); err != nil {
		return nil, fmt.Errorf("partner.contracts: %w", err)
	}
	if cfg.StakingZaps, err = addressMap(v.GetStringMapString("staking_zap")); err != nil {
		return nil, fmt.Errorf("staking_zap: %w", err)
	}

	for key := range v.GetStringMap("native") {
		chainID, err := parseChainID(key)
		if err != nil {
			return nil, fmt.Errorf("native: %w", err)
		}
		router, err := parseAddress(v.GetString(fmt.Sprintf("native.%s.router", key)))
		if err != nil {
			return nil, fmt.Errorf("native.%s.router: %w", key, err)
		}
		wrapped, err := parseAddress(v.GetString(fmt.Sprintf("native.%s.wrapped", key)))
		if err != nil {
			return nil, fmt.Errorf("native.%s.wrapped: %w", key, err)
		}
		cfg.Native[chainID] = NativeRoute{Router: router, Wrapped: wrapped}
	}

	if cfg.PartnerID != "" && !common.IsHexAddress(cfg.PartnerID) {
		return nil, fmt.Errorf("partner.id: invalid address %q", cfg.PartnerID)
	}

	if raw := v.GetString("internal_zap.address"); raw != "" {
		if cfg.InternalZap, err = parseAddress(raw); err != nil {
			return nil, fmt.Errorf("internal_zap.address: %w", err)
		}
	}

	bps := v.GetInt64("internal_zap.slippage_bps")
	if bps < 0 || bps >= 10000 {
		return nil, fmt.Errorf("internal_zap.slippage_bps must be between 0 and 9999, got %d", bps)
	}
	cfg.ZapSlippageBps = uint32(bps)

	if cfg.JournalPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.JournalPath = filepath.Join(home, DefaultJournalName)
	}

	return cfg, nil
}

func parseChainID(key string) (uint64, error) {
	chainID, err := strconv.ParseUint(strings.TrimSpace(key), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chain id %q", key)
	}
	return chainID, nil
}

func parseAddress(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(raw), nil
}

func addressMap(raw map[string]string) (map[uint64]common.Address, error) {
	out := make(map[uint64]common.Address, len(raw))
	for key, value := range raw {
		chainID, err := parseChainID(key)
		if err != nil {
			return nil, err
		}
		addr, err := parseAddress(value)
		if err != nil {
			return nil, err
		}
		out[chainID] = addr
	}
	return out, nil
}
