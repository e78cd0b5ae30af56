package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Quote is the expected (or guaranteed minimum) output of one request
// generation under one strategy. Quotes are never persisted.
type Quote struct {
	Amount     Amount `json:"amount"`
	Generation uint64 `json:"generation"`
	Strategy   string `json:"strategy"`

	// The pair actually estimated, which may differ from the request's
	// nominal pair (native coin quoted as its wrapped asset).
	From common.Address `json:"from"`
	To   common.Address `json:"to"`
}

// AllowanceKey identifies one spending authorization
type AllowanceKey struct {
	ChainID uint64         `json:"chain_id"`
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
	Asset   common.Address `json:"asset"`
}

// AllowanceRecord is the remaining authorization for a key
type AllowanceRecord struct {
	Key    AllowanceKey `json:"key"`
	Amount Amount       `json:"amount"`
}

// Covers returns true if the allowance is at least amount
func (r AllowanceRecord) Covers(amount *big.Int) bool {
	if amount == nil || amount.Sign() == 0 {
		return true
	}
	if r.Amount.Raw == nil {
		return false
	}
	return r.Amount.Raw.Cmp(amount) >= 0
}
