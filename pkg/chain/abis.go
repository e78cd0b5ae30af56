package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ABI fragments for the contracts the strategies talk to.
const (
	erc20ABI = `[
		{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
		{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
		{"name":"symbol","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
	]`

	vaultV3ABI = `[
		{"name":"deposit","type":"function","stateMutability":"nonpayable","inputs":[{"name":"assets","type":"uint256"},{"name":"receiver","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"redeem","type":"function","stateMutability":"nonpayable","inputs":[{"name":"shares","type":"uint256"},{"name":"receiver","type":"address"},{"name":"owner","type":"address"},{"name":"max_loss","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"previewDeposit","type":"function","stateMutability":"view","inputs":[{"name":"assets","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"previewRedeem","type":"function","stateMutability":"view","inputs":[{"name":"shares","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"asset","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
	]`

	vaultV2ABI = `[
		{"name":"deposit","type":"function","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"},{"name":"recipient","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"withdraw","type":"function","stateMutability":"nonpayable","inputs":[{"name":"maxShares","type":"uint256"},{"name":"recipient","type":"address"},{"name":"maxLoss","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"pricePerShare","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"token","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
	]`

	nativeRouterABI = `[
		{"name":"depositEth","type":"function","stateMutability":"payable","inputs":[{"name":"vault","type":"address"},{"name":"receiver","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"withdrawEth","type":"function","stateMutability":"nonpayable","inputs":[{"name":"vault","type":"address"},{"name":"shares","type":"uint256"},{"name":"receiver","type":"address"},{"name":"maxLoss","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}
	]`

	partnerABI = `[
		{"name":"deposit","type":"function","stateMutability":"nonpayable","inputs":[{"name":"vault","type":"address"},{"name":"partnerId","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}
	]`

	routerABI = `[
		{"name":"migrate","type":"function","stateMutability":"payable","inputs":[{"name":"fromVault","type":"address"},{"name":"toVault","type":"address"},{"name":"shares","type":"uint256"},{"name":"minSharesOut","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"approve","type":"function","stateMutability":"payable","inputs":[{"name":"token","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
		{"name":"multicall","type":"function","stateMutability":"payable","inputs":[{"name":"data","type":"bytes[]"}],"outputs":[{"name":"results","type":"bytes[]"}]}
	]`

	stakingZapABI = `[
		{"name":"zapIn","type":"function","stateMutability":"nonpayable","inputs":[{"name":"vault","type":"address"},{"name":"stakingPool","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}
	]`

	internalZapABI = `[
		{"name":"zap","type":"function","stateMutability":"nonpayable","inputs":[{"name":"input","type":"address"},{"name":"output","type":"address"},{"name":"amountIn","type":"uint256"},{"name":"minOut","type":"uint256"},{"name":"recipient","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"expectedMint","type":"function","stateMutability":"view","inputs":[{"name":"input","type":"address"},{"name":"output","type":"address"},{"name":"amountIn","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"expectedSwap","type":"function","stateMutability":"view","inputs":[{"name":"input","type":"address"},{"name":"output","type":"address"},{"name":"amountIn","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}
	]`
)

// Parsed ABIs
var (
	ERC20ABI        = mustParseABI("erc20", erc20ABI)
	VaultV3ABI      = mustParseABI("vault v3", vaultV3ABI)
	VaultV2ABI      = mustParseABI("vault v2", vaultV2ABI)
	NativeRouterABI = mustParseABI("native router", nativeRouterABI)
	PartnerABI      = mustParseABI("partner", partnerABI)
	RouterABI       = mustParseABI("router", routerABI)
	StakingZapABI   = mustParseABI("staking zap", stakingZapABI)
	InternalZapABI  = mustParseABI("internal zap", internalZapABI)
)

func mustParseABI(name, raw string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse %s ABI: %v", name, err))
	}
	return &parsed
}
