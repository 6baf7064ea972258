// Package utils carries amount conversion and input validation helpers.
package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ToMinorUnits converts a human-readable decimal amount to an integer in
// the token's smallest unit. Conversion is exact: fractional digits beyond
// the declared decimal count are truncated, never rounded, and the result
// is always a non-negative integer. Amount comparison throughout the
// service happens on these integers, never on floats.
func ToMinorUnits(human string, decimals int) (*big.Int, error) {
	human = strings.TrimSpace(human)
	d, err := decimal.NewFromString(human)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", human, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount %q is negative", human)
	}

	shifted := d.Truncate(int32(decimals)).Shift(int32(decimals))
	if !shifted.IsInteger() {
		// unreachable after Truncate, kept as a guard
		return nil, fmt.Errorf("amount %q does not fit %d decimals", human, decimals)
	}
	return shifted.BigInt(), nil
}

// FromMinorUnits renders an integer minor-unit amount in human-readable
// form using the token's declared decimal count.
func FromMinorUnits(minor string, decimals int) (string, error) {
	d, err := decimal.NewFromString(minor)
	if err != nil {
		return "", fmt.Errorf("invalid minor amount %q: %w", minor, err)
	}
	if !d.IsInteger() {
		return "", fmt.Errorf("minor amount %q is not an integer", minor)
	}
	return d.Shift(-int32(decimals)).String(), nil
}

// ParseMinor parses an integer minor-unit string into a big.Int.
func ParseMinor(minor string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(minor), 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid minor amount %q", minor)
	}
	return n, nil
}
