package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"vault-solver/config"
	"vault-solver/pkg/types"
)

const defaultGasLimit = uint64(300000)

// Client reads and writes contracts over JSON-RPC on every configured
// network, signing writes with a single key. It also acts as the wallet
// session: without a key there is no connected account.
type Client struct {
	networks       map[uint64]config.Network
	receiptTimeout time.Duration
	privateKey     *ecdsa.PrivateKey
	from           common.Address
	logger         *zap.Logger

	mu      sync.Mutex
	clients map[uint64]*ethclient.Client
}

// NewClient creates a client from the configuration. Connections are dialed
// lazily on first use.
func NewClient(cfg *config.Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		networks:       cfg.Networks,
		receiptTimeout: cfg.ReceiptTimeout,
		logger:         logger,
		clients:        make(map[uint64]*ethclient.Client),
	}

	if cfg.PrivateKey != "" {
		privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("failed to get public key")
		}
		c.privateKey = privateKey
		c.from = crypto.PubkeyToAddress(*publicKey)
	}

	return c, nil
}

// Account implements Session
func (c *Client) Account() (common.Address, bool) {
	if c.privateKey == nil {
		return common.Address{}, false
	}
	return c.from, true
}

func (c *Client) backend(ctx context.Context, chainID uint64) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[chainID]; ok {
		return client, nil
	}

	network, ok := c.networks[chainID]
	if !ok || network.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL not configured for chain %d", chainID)
	}

	client, err := ethclient.DialContext(ctx, network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	c.clients[chainID] = client
	return client, nil
}

// Read implements Reader
func (c *Client) Read(ctx context.Context, call Call) ([]interface{}, error) {
	client, err := c.backend(ctx, call.ChainID)
	if err != nil {
		return nil, err
	}

	data, err := call.Pack()
	if err != nil {
		return nil, err
	}

	to := call.To
	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", call, err)
	}

	out, err := call.ABI.Unpack(call.Method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", call.Method, err)
	}
	return out, nil
}

// Write implements Writer. It signs, submits and waits for the receipt.
func (c *Client) Write(ctx context.Context, call Call) (*Receipt, error) {
	if c.privateKey == nil {
		return nil, fmt.Errorf("no signer configured")
	}

	client, err := c.backend(ctx, call.ChainID)
	if err != nil {
		return nil, err
	}

	data, err := call.Pack()
	if err != nil {
		return nil, err
	}

	value := call.Value
	if value == nil {
		value = big.NewInt(0)
	}

	nonce, err := client.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := c.gasPrice(ctx, client, call.ChainID)
	if err != nil {
		return nil, err
	}

	gasLimit := c.gasLimit(ctx, client, call, data, value)

	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &call.To,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signedTx, err := gethtypes.SignTx(tx, gethtypes.NewEIP155Signer(new(big.Int).SetUint64(call.ChainID)), c.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.logger.Info("transaction submitted",
		zap.String("call", call.String()),
		zap.String("tx_hash", signedTx.Hash().Hex()))

	waitCtx := ctx
	if c.receiptTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.receiptTimeout)
		defer cancel()
	}

	receipt, err := bind.WaitMined(waitCtx, client, signedTx)
	if err != nil {
		return &Receipt{Hash: signedTx.Hash()}, fmt.Errorf("failed waiting for receipt: %w", err)
	}

	return &Receipt{
		Hash:        receipt.TxHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		Status:      receipt.Status,
	}, nil
}

// Decimals reads a token's decimals. The native coin always has 18.
func (c *Client) Decimals(ctx context.Context, chainID uint64, token common.Address) (uint8, error) {
	if token == types.NativeAddress {
		return 18, nil
	}
	out, err := c.Read(ctx, Call{ChainID: chainID, To: token, ABI: ERC20ABI, Method: "decimals"})
	if err != nil {
		return 0, err
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type %T", out[0])
	}
	return decimals, nil
}

// Symbol reads a token's symbol
func (c *Client) Symbol(ctx context.Context, chainID uint64, token common.Address) (string, error) {
	if token == types.NativeAddress {
		return "native", nil
	}
	out, err := c.Read(ctx, Call{ChainID: chainID, To: token, ABI: ERC20ABI, Method: "symbol"})
	if err != nil {
		return "", err
	}
	symbol, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected symbol type %T", out[0])
	}
	return symbol, nil
}

// Asset resolves a token's decimals and symbol. A missing symbol is not an
// error.
func (c *Client) Asset(ctx context.Context, chainID uint64, token common.Address) (types.Asset, error) {
	decimals, err := c.Decimals(ctx, chainID, token)
	if err != nil {
		return types.Asset{}, fmt.Errorf("failed to read decimals of %s: %w", token.Hex(), err)
	}
	symbol, err := c.Symbol(ctx, chainID, token)
	if err != nil {
		c.logger.Debug("symbol unavailable", zap.String("asset", token.Hex()), zap.Error(err))
		symbol = token.Hex()[:10]
	}
	return types.Asset{Address: token, ChainID: chainID, Decimals: decimals, Symbol: symbol}, nil
}

// Balance returns owner's balance of token, or of the native coin
func (c *Client) Balance(ctx context.Context, chainID uint64, token, owner common.Address) (*big.Int, error) {
	if token == types.NativeAddress {
		client, err := c.backend(ctx, chainID)
		if err != nil {
			return nil, err
		}
		balance, err := client.BalanceAt(ctx, owner, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get balance: %w", err)
		}
		return balance, nil
	}
	return ReadBig(ctx, c, Call{
		ChainID: chainID,
		To:      token,
		ABI:     ERC20ABI,
		Method:  "balanceOf",
		Args:    []interface{}{owner},
	})
}

func (c *Client) gasPrice(ctx context.Context, client *ethclient.Client, chainID uint64) (*big.Int, error) {
	if network := c.networks[chainID]; network.GasPrice != nil {
		return big.NewInt(*network.GasPrice), nil
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return gasPrice, nil
}

func (c *Client) gasLimit(ctx context.Context, client *ethclient.Client, call Call, data []byte, value *big.Int) uint64 {
	if network := c.networks[call.ChainID]; network.GasLimit != nil {
		return *network.GasLimit
	}

	to := call.To
	estimated, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From:  c.from,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		c.logger.Warn("gas estimation failed, using default",
			zap.String("call", call.String()),
			zap.Error(err))
		return defaultGasLimit
	}
	return estimated * 120 / 100 // 20% buffer
}

// Close closes every open connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, client := range c.clients {
		client.Close()
		delete(c.clients, id)
	}
}
