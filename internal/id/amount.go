package id

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/ggonzalez94/oftbridge/internal/errors"
	"github.com/shopspring/decimal"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$|^\.[0-9]+$`)

// ParseDecimalAmount validates a human-entered token amount. It needs no
// token metadata so callers can reject bad input before touching the chain.
func ParseDecimalAmount(raw string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return decimal.Decimal{}, clierr.New(clierr.CodeUsage, "invalid amount: amount is required")
	}
	if !decimalPattern.MatchString(clean) {
		return decimal.Decimal{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid amount %q: expected a positive decimal like 1.25", raw))
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Decimal{}, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("invalid amount %q", raw), err)
	}
	if d.Sign() <= 0 {
		return decimal.Decimal{}, clierr.New(clierr.CodeUsage, "invalid amount: must be greater than zero")
	}
	return d, nil
}

// ToBaseUnits scales d by 10^decimals. Precision finer than the token allows
// is rejected rather than rounded.
func ToBaseUnits(d decimal.Decimal, decimals int) (*big.Int, error) {
	if decimals < 0 || decimals > 77 {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported token decimals %d", decimals))
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid amount: precision exceeds token decimals (%d)", decimals))
	}
	return shifted.BigInt(), nil
}

// ParseAmount is ParseDecimalAmount followed by ToBaseUnits.
func ParseAmount(raw string, decimals int) (*big.Int, error) {
	d, err := ParseDecimalAmount(raw)
	if err != nil {
		return nil, err
	}
	return ToBaseUnits(d, decimals)
}

// FormatBaseUnits renders an integer amount in display units without
// trailing zeros.
func FormatBaseUnits(n *big.Int, decimals int) string {
	if n == nil {
		return "0"
	}
	return decimal.NewFromBigInt(n, -int32(decimals)).String()
}

// ParsePercent parses a percentage such as a slippage tolerance. Empty input
// means zero. Range checks are left to the caller, which may clamp.
func ParsePercent(raw string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Decimal{}, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("invalid percentage %q", raw), err)
	}
	return d, nil
}

// ParsePositiveInteger parses a strictly positive integer no wider than bits.
func ParsePositiveInteger(raw string, bits int) (*big.Int, error) {
	clean := strings.TrimSpace(raw)
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", raw)
	}
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("%q must be greater than zero", raw)
	}
	if !d.Equal(d.Truncate(0)) {
		return nil, fmt.Errorf("%q must be a whole number", raw)
	}
	n := d.BigInt()
	if n.BitLen() > bits {
		return nil, fmt.Errorf("%q exceeds %d bits", raw, bits)
	}
	return n, nil
}
