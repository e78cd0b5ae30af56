package types

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NativeAddress is the pseudo-address used for a chain's native coin.
var NativeAddress = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// Direction tells whether value moves into or out of a product
type Direction string

const (
	Deposit  Direction = "deposit"
	Withdraw Direction = "withdraw"
)

// Product versions understood by the estimator and the direct strategy
const (
	VersionV2 = "v2"
	VersionV3 = "v3"
)

// Asset identifies a token on a specific chain
type Asset struct {
	Address  common.Address `json:"address"`
	ChainID  uint64         `json:"chain_id"`
	Decimals uint8          `json:"decimals"`
	Symbol   string         `json:"symbol,omitempty"`
}

// IsNative returns true if the asset is the chain's native coin
func (a Asset) IsNative() bool {
	return a.Address == NativeAddress
}

// IsZero returns true if no asset has been selected
func (a Asset) IsZero() bool {
	return a.Address == (common.Address{})
}

// Ref returns the (asset, chain) pair used for balance refreshes
func (a Asset) Ref() AssetRef {
	return AssetRef{Address: a.Address, ChainID: a.ChainID}
}

// AssetRef is an (asset, chain) pair
type AssetRef struct {
	Address common.Address `json:"address"`
	ChainID uint64         `json:"chain_id"`
}

// SolverRequest is the user's intent. It is treated as immutable: callers
// build a new request whenever an input changes.
type SolverRequest struct {
	Input     Asset          `json:"input"`
	Output    Asset          `json:"output"`
	Amount    *big.Int       `json:"amount"` // raw units of Input
	Direction Direction      `json:"direction"`
	Owner     common.Address `json:"owner"`
	Version   string         `json:"version"`

	// InputVersion is the version of the product being migrated out of.
	// Empty means the same as Version.
	InputVersion string `json:"input_version,omitempty"`

	// Routing hints
	Migrator      *common.Address `json:"migrator,omitempty"`
	AssetOverride *common.Address `json:"asset_override,omitempty"`
	StakingPool   *common.Address `json:"staking_pool,omitempty"`
	Stake         bool            `json:"stake,omitempty"`
	MaxLossBps    uint32          `json:"max_loss_bps,omitempty"`
}

// WithAmount returns a copy of the request carrying a different amount
func (r SolverRequest) WithAmount(amount *big.Int) SolverRequest {
	if amount != nil {
		amount = new(big.Int).Set(amount)
	}
	r.Amount = amount
	return r
}

// HasAmount returns true if the request carries a positive amount
func (r SolverRequest) HasAmount() bool {
	return r.Amount != nil && r.Amount.Sign() > 0
}

// IsV3 returns true if the target product is a v3 (ERC-4626) vault
func (r SolverRequest) IsV3() bool {
	return IsV3(r.Version)
}

// SourceVersion returns the version of the product being migrated out of
func (r SolverRequest) SourceVersion() string {
	if r.InputVersion != "" {
		return r.InputVersion
	}
	return r.Version
}

// IsV3 returns true if version names a v3 (ERC-4626) product
func IsV3(version string) bool {
	version = strings.ToLower(strings.TrimSpace(version))
	return version == VersionV3 || strings.HasPrefix(version, "3")
}

// Vault returns the product side of the request: the output for deposits and
// the input for withdrawals.
func (r SolverRequest) Vault() Asset {
	if r.Direction == Withdraw {
		return r.Input
	}
	return r.Output
}

// HasNativeLeg returns true if either side of the request is the native coin
func (r SolverRequest) HasNativeLeg() bool {
	return r.Input.IsNative() || r.Output.IsNative()
}

// Touched returns the (asset, chain) pairs whose balances change when the
// request executes.
func (r SolverRequest) Touched() []AssetRef {
	refs := []AssetRef{r.Input.Ref(), r.Output.Ref()}
	if r.StakingPool != nil {
		refs = append(refs, AssetRef{Address: *r.StakingPool, ChainID: r.Output.ChainID})
	}
	return refs
}
