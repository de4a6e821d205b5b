// Package amount converts between decimal BRL strings and integer minor units.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	ErrSyntax    = errors.New("invalid amount")
	ErrPrecision = errors.New("amount has more decimal places than the token")
	ErrRange     = errors.New("amount out of range")
)

// Parse converts a decimal string such as "100.50" into minor units for a
// token with the given number of decimals. Values are parsed exactly.
func Parse(s string, decimals uint8) (uint64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, fmt.Errorf("%w: %q", ErrSyntax, s)
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" && (!hasDot || frac == "") {
		return 0, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	if !digits(whole) || !digits(frac) {
		return 0, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	frac = strings.TrimRight(frac, "0")
	if len(frac) > int(decimals) {
		return 0, fmt.Errorf("%w: %q allows %d", ErrPrecision, s, decimals)
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))

	n, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("%w: %q", ErrRange, s)
	}
	return n.Uint64(), nil
}

// Format renders minor units as a decimal string with exactly decimals places.
func Format(v uint64, decimals uint8) string {
	if decimals == 0 {
		return fmt.Sprintf("%d", v)
	}
	s := fmt.Sprintf("%0*d", int(decimals)+1, v)
	cut := len(s) - int(decimals)
	return s[:cut] + "." + s[cut:]
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
