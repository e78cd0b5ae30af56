package types

import (
	"fmt"
	"math/big"
	"strings"
)

// Amount is a raw token amount together with the decimals needed to
// normalize it.
type Amount struct {
	Raw      *big.Int `json:"raw"`
	Decimals uint8    `json:"decimals"`
}

// NewAmount copies raw into a new Amount
func NewAmount(raw *big.Int, decimals uint8) Amount {
	if raw == nil {
		raw = new(big.Int)
	}
	return Amount{Raw: new(big.Int).Set(raw), Decimals: decimals}
}

// ZeroAmount returns an Amount of zero
func ZeroAmount(decimals uint8) Amount {
	return Amount{Raw: new(big.Int), Decimals: decimals}
}

// IsZero returns true if the amount is zero or unset
func (a Amount) IsZero() bool {
	return a.Raw == nil || a.Raw.Sign() == 0
}

// String renders the normalized decimal value without trailing zeros
func (a Amount) String() string {
	return FormatUnits(a.Raw, a.Decimals)
}

// FormatUnits renders raw as a decimal number with the given decimals
func FormatUnits(raw *big.Int, decimals uint8) string {
	if raw == nil {
		return "0"
	}
	neg := raw.Sign() < 0
	digits := new(big.Int).Abs(raw).String()

	if decimals > 0 {
		if len(digits) <= int(decimals) {
			digits = strings.Repeat("0", int(decimals)-len(digits)+1) + digits
		}
		point := len(digits) - int(decimals)
		whole, frac := digits[:point], strings.TrimRight(digits[point:], "0")
		digits = whole
		if frac != "" {
			digits = whole + "." + frac
		}
	}

	if neg {
		return "-" + digits
	}
	return digits
}

// ParseUnits converts a decimal string such as "1.5" into raw units
func ParseUnits(value string, decimals uint8) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}
	if strings.HasPrefix(value, "-") {
		return nil, fmt.Errorf("amount must not be negative: %s", value)
	}

	whole, frac, found := strings.Cut(value, ".")
	if found && strings.Contains(frac, ".") {
		return nil, fmt.Errorf("invalid amount format: %s", value)
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("amount %s has more than %d decimals", value, decimals)
	}
	if whole == "" {
		whole = "0"
	}

	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	raw, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount format: %s", value)
	}
	return raw, nil
}
