package util

import (
	"fmt"
	"math/big"
	"strings"
)

// MaxTokenDecimals bounds decimal precision accepted from any source. ERC-20
// tokens above 36 decimals do not exist in practice and a larger value is a
// sign of corrupt metadata.
const MaxTokenDecimals = 36

// ValidDecimals reports whether d is usable as a token precision.
func ValidDecimals(d int) bool {
	return d >= 0 && d <= MaxTokenDecimals
}

// ValidateAmount checks that amount is a plain positive decimal string,
// e.g. "0.01" or "100.5". Scientific notation, signs, and empty strings are
// rejected before any external call is made.
func ValidateAmount(amount string) error {
	if amount == "" {
		return fmt.Errorf("amount cannot be empty")
	}
	parts := strings.Split(amount, ".")
	if len(parts) > 2 {
		return fmt.Errorf("invalid amount format: %s", amount)
	}
	digits := 0
	for _, part := range parts {
		for _, r := range part {
			if r < '0' || r > '9' {
				return fmt.Errorf("invalid amount format: %s", amount)
			}
			digits++
		}
	}
	if digits == 0 {
		return fmt.Errorf("invalid amount format: %s", amount)
	}
	v, ok := new(big.Rat).SetString(amount)
	if !ok {
		return fmt.Errorf("invalid amount: %s", amount)
	}
	if v.Sign() <= 0 {
		return fmt.Errorf("amount must be positive: %s", amount)
	}
	return nil
}

// ToBaseUnits converts a human-readable amount to integer base units,
// e.g. "10" with 6 decimals -> 10000000. Fractional digits beyond the token's
// precision are truncated.
func ToBaseUnits(amount string, decimals int) (*big.Int, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}
	if !ValidDecimals(decimals) {
		return nil, fmt.Errorf("decimals out of range: %d", decimals)
	}

	parts := strings.Split(amount, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid amount format: %s", amount)
	}
	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}

	if len(frac) < decimals {
		frac += strings.Repeat("0", decimals-len(frac))
	} else if len(frac) > decimals {
		frac = frac[:decimals]
	}

	combined := strings.TrimLeft(whole+frac, "0")
	if combined == "" {
		combined = "0"
	}

	result, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}
	return result, nil
}

// FromBaseUnits renders base units as a human-readable amount for logs and
// error messages, e.g. 10000000 with 6 decimals -> "10".
func FromBaseUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}

	str := amount.String()
	negative := strings.HasPrefix(str, "-")
	if negative {
		str = str[1:]
	}

	if len(str) <= decimals {
		str = strings.Repeat("0", decimals-len(str)+1) + str
	}

	insertPos := len(str) - decimals
	whole := str[:insertPos]
	frac := strings.TrimRight(str[insertPos:], "0")

	result := whole
	if frac != "" {
		result = whole + "." + frac
	}
	if negative {
		result = "-" + result
	}
	return result
}
