package balance

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"unicode/utf8"

	clierr "github.com/ggonzalez94/contract-cli/internal/errors"
)

// TokenMetadata describes the chain's native token as reported by the node.
type TokenMetadata struct {
	Decimals int    `json:"decimals"`
	Symbol   string `json:"symbol"`
}

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// denominations maps SI prefixes accepted in front of the token symbol to the
// power of ten they shift by.
var denominations = map[rune]int{
	'G': 9,
	'M': 6,
	'k': 3,
	'm': -3,
	'u': -6,
	'μ': -6,
	'n': -9,
}

// Parse converts either a base-unit integer ("1000000") or an amount
// denominated in the token symbol ("1.5 UNIT", "2mUNIT") into base units.
func Parse(input string, token TokenMetadata) (*big.Int, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(input), "_", "")
	if clean == "" {
		return nil, clierr.New(clierr.CodeUsage, "balance is required")
	}
	if strings.HasPrefix(clean, "-") {
		return nil, clierr.New(clierr.CodeUsage, "balance must be non-negative")
	}
	if isDigits(clean) {
		v, ok := new(big.Int).SetString(clean, 10)
		if !ok {
			return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid balance %q", input))
		}
		return v, nil
	}

	symbol := strings.TrimSpace(token.Symbol)
	if symbol == "" || !strings.HasSuffix(clean, symbol) {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("balance %q must be in base units or denominated in %s", input, displaySymbol(symbol)))
	}
	rest := strings.TrimSpace(strings.TrimSuffix(clean, symbol))
	shift := 0
	if r, size := utf8.DecodeLastRuneInString(rest); size > 0 {
		if exp, ok := denominations[r]; ok {
			shift = exp
			rest = strings.TrimSpace(rest[:len(rest)-size])
		}
	}
	if !decimalPattern.MatchString(rest) {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("balance %q must be in decimal form like 1.5 %s", input, displaySymbol(symbol)))
	}
	decimals := token.Decimals + shift
	if decimals < 0 {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("denomination of %q is finer than the token precision", input))
	}
	base, err := decimalToBaseUnits(rest, decimals)
	if err != nil {
		return nil, err
	}
	v, _ := new(big.Int).SetString(base, 10)
	return v, nil
}

// Format renders base units as a decimal amount followed by the token symbol.
func Format(v *big.Int, token TokenMetadata) string {
	if v == nil {
		v = new(big.Int)
	}
	amount := formatDecimal(v.String(), token.Decimals)
	if strings.TrimSpace(token.Symbol) == "" {
		return amount
	}
	return amount + " " + token.Symbol
}

func isDigits(v string) bool {
	for _, r := range v {
		if r < '0' || r > '9' {
			return false
		}
	}
	return v != ""
}

func displaySymbol(symbol string) string {
	if symbol == "" {
		return "the token symbol"
	}
	return symbol
}

func formatDecimal(baseUnits string, decimals int) string {
	n := new(big.Int)
	n.SetString(baseUnits, 10)
	if decimals <= 0 {
		return n.String()
	}

	s := n.String()
	if len(s) <= decimals {
		pad := strings.Repeat("0", decimals-len(s)+1)
		s = pad + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}

func decimalToBaseUnits(decimal string, decimals int) (string, error) {
	parts := strings.SplitN(decimal, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > decimals {
		fracPart = strings.TrimRight(fracPart, "0")
		if len(fracPart) > decimals {
			return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("decimal precision exceeds token decimals (%d)", decimals))
		}
	}

	fracPart = fracPart + strings.Repeat("0", decimals-len(fracPart))
	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		return "0", nil
	}
	if _, ok := new(big.Int).SetString(combined, 10); !ok {
		return "", clierr.New(clierr.CodeUsage, "invalid decimal amount")
	}
	return combined, nil
}
