// Package core holds the domain model and money arithmetic.
//
// Contribution amounts travel as decimal strings and are converted to
// integer cents for every calculation, so sums stay exact regardless of
// how many values are added.
package core

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseCents converts a decimal string to integer cents.
//
// It is deliberately lenient for internal use: empty or blank input is
// zero, both "," and "." work as the fraction separator, a missing
// fraction is padded and anything past two fraction digits is truncated.
// Strict input checking happens at the validation boundary, see
// ValidateAmount.
//
// Examples:
//
//	ParseCents("94.38") -> 9438
//	ParseCents("94,5")  -> 9450
//	ParseCents("")      -> 0
func ParseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	// Pad to two digits, truncate the rest (never round here).
	fracPart = (fracPart + "00")[:2]

	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	frac, err := strconv.ParseInt(fracPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	// whole*100+frac must fit in int64 even with frac at 99.
	const maxWhole = (1<<63 - 1 - 99) / 100
	if whole > maxWhole {
		return 0, fmt.Errorf("amount %q out of range", s)
	}

	cents := whole*100 + frac
	if negative {
		cents = -cents
	}
	return cents, nil
}

// FormatCents renders cents in the display notation with a comma
// separator and an always-two-digit fraction ("9438" cents -> "94,38").
func FormatCents(cents int64) string {
	return formatCents(cents, ",")
}

// FormatCentsDot renders cents in the storage/wire notation with a dot
// separator ("9438" cents -> "94.38").
func FormatCentsDot(cents int64) string {
	return formatCents(cents, ".")
}

func formatCents(cents int64, sep string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d%s%02d", sign, cents/100, sep, cents%100)
}

// SumAmounts adds decimal strings as integer cents and returns the total
// in dot notation. The empty list sums to "0.00".
func SumAmounts(values []string) (string, error) {
	var total int64
	for _, v := range values {
		cents, err := ParseCents(v)
		if err != nil {
			return "", fmt.Errorf("sum amounts: %w", err)
		}
		total += cents
	}
	return FormatCentsDot(total), nil
}

// ValidateAmount is the strict boundary check for operator-entered money:
// it rejects non-numeric input, negative values and more than two
// fraction digits. Empty input is accepted and means zero.
func ValidateAmount(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "-") {
		return fmt.Errorf("amount cannot be negative")
	}
	dotted := strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(dotted, ".")
	if len(parts) > 2 {
		return fmt.Errorf("invalid amount %q", s)
	}
	intPart := parts[0]
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if r < '0' || r > '9' {
			return fmt.Errorf("invalid amount %q", s)
		}
	}
	if len(parts) == 2 {
		if len(parts[1]) > 2 {
			return fmt.Errorf("amount %q has more than two decimal places", s)
		}
		for _, r := range parts[1] {
			if r < '0' || r > '9' {
				return fmt.Errorf("invalid amount %q", s)
			}
		}
	}
	return nil
}
