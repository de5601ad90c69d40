package validation

import "fmt"

var regonWeights = [8]int{8, 9, 2, 3, 4, 5, 6, 7}

var (
	ErrRegonFormat   = fmt.Errorf("REGON must be 9 digits")
	ErrRegonChecksum = fmt.Errorf("invalid REGON checksum")
)

// ValidateRegon checks the 9-digit REGON checksum. Separators are
// stripped before validation. A computed check value of 10 folds to 0.
func ValidateRegon(regon string) error {
	digits, err := toDigits(stripNonDigits(regon), 9)
	if err != nil {
		return ErrRegonFormat
	}

	sum := 0
	for i, w := range regonWeights {
		sum += digits[i] * w
	}
	check := sum % 11
	if check == 10 {
		check = 0
	}
	if check != digits[8] {
		return ErrRegonChecksum
	}
	return nil
}
