package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Receipt status values
const (
	ReceiptReverted uint64 = 0
	ReceiptSuccess  uint64 = 1
)

// Call describes one contract function invocation
type Call struct {
	ChainID uint64
	To      common.Address
	ABI     *abi.ABI
	Method  string
	Args    []interface{}
	Value   *big.Int // native value sent with a write
}

// String renders the call for logs
func (c Call) String() string {
	return fmt.Sprintf("%s.%s@%d", c.To.Hex(), c.Method, c.ChainID)
}

// Pack encodes the call data
func (c Call) Pack() ([]byte, error) {
	if c.ABI == nil {
		return nil, fmt.Errorf("no ABI for call %s", c)
	}
	data, err := c.ABI.Pack(c.Method, c.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", c.Method, err)
	}
	return data, nil
}

// Receipt is the outcome of a submitted write
type Receipt struct {
	Hash        common.Hash
	BlockNumber uint64
	Status      uint64
}

// Succeeded returns true only for an explicit success status
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == ReceiptSuccess
}

// Reader performs read-only contract calls
type Reader interface {
	Read(ctx context.Context, call Call) ([]interface{}, error)
}

// Writer submits signed contract calls and waits for their receipt
type Writer interface {
	Write(ctx context.Context, call Call) (*Receipt, error)
}

// Session supplies the acting address. ok is false when no wallet is connected.
type Session interface {
	Account() (addr common.Address, ok bool)
}

// ReadBig performs a read whose first output is a uint256
func ReadBig(ctx context.Context, r Reader, call Call) (*big.Int, error) {
	out, err := r.Read(ctx, call)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty result from %s", call)
	}
	value, ok := out[0].(*big.Int)
	if !ok || value == nil {
		return nil, fmt.Errorf("unexpected result type %T from %s", out[0], call)
	}
	return value, nil
}
