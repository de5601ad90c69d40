package validation

import (
	"fmt"
	"strings"
)

var nipWeights = [9]int{6, 5, 7, 2, 3, 4, 5, 6, 7}

var (
	ErrNipFormat   = fmt.Errorf("NIP must be 10 digits")
	ErrNipChecksum = fmt.Errorf("invalid NIP checksum")
)

// ValidateNip checks the 10-digit NIP checksum. Separators such as
// dashes are stripped before validation. A computed check value of 10
// has no digit representation and is itself invalid.
func ValidateNip(nip string) error {
	digits, err := toDigits(stripNonDigits(nip), 10)
	if err != nil {
		return ErrNipFormat
	}

	sum := 0
	for i, w := range nipWeights {
		sum += digits[i] * w
	}
	check := sum % 11
	if check == 10 || check != digits[9] {
		return ErrNipChecksum
	}
	return nil
}

func stripNonDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r < '0' || r > '9' {
			return -1
		}
		return r
	}, s)
}
