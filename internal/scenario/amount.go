package scenario

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a human amount such as "1.5" into base units of a
// token with the given decimals. With raw set the input is already in base
// units.
func ParseAmount(input string, decimals uint8, raw bool) (*big.Int, error) {
	input = strings.TrimSpace(strings.ReplaceAll(input, "_", ""))
	if input == "" {
		return nil, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(input)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", input, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount %q is negative", input)
	}
	if !raw {
		d = d.Shift(int32(decimals))
	}
	if !d.Equal(d.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", input, decimals)
	}
	return d.BigInt(), nil
}

// FormatAmount renders base units with the token's decimals.
func FormatAmount(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}
