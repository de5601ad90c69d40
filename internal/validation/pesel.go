// Package validation implements the checksum validators for the three
// national identifiers that gate record creation: PESEL (person), NIP
// (tax) and REGON (statistical registry). All validators are pure
// functions.
package validation

import "fmt"

var peselWeights = [10]int{1, 3, 7, 9, 1, 3, 7, 9, 1, 3}

// PeselInfo carries the data embedded in a valid PESEL.
type PeselInfo struct {
	DateOfBirth string // YYYY-MM-DD
	Gender      string // "M" or "K"
}

var (
	ErrPeselFormat   = fmt.Errorf("PESEL must be 11 digits")
	ErrPeselChecksum = fmt.Errorf("invalid PESEL checksum")
	ErrPeselMonth    = fmt.Errorf("invalid month in PESEL")
)

// ValidatePesel checks the 11-digit PESEL checksum and decodes the
// embedded date of birth and gender.
//
// The month field selects the century: 01-12 is the 1900s, 21-32 the
// 2000s, 41-52 the 2100s, 61-72 the 2200s and 81-92 the 1800s. The
// gender comes from the 10th digit, odd for male.
func ValidatePesel(pesel string) (PeselInfo, error) {
	digits, err := toDigits(pesel, 11)
	if err != nil {
		return PeselInfo{}, ErrPeselFormat
	}

	sum := 0
	for i, w := range peselWeights {
		sum += digits[i] * w
	}
	if (10-sum%10)%10 != digits[10] {
		return PeselInfo{}, ErrPeselChecksum
	}

	yearPart := digits[0]*10 + digits[1]
	monthPart := digits[2]*10 + digits[3]
	day := digits[4]*10 + digits[5]

	var year, month int
	switch {
	case monthPart >= 1 && monthPart <= 12:
		year, month = 1900+yearPart, monthPart
	case monthPart >= 21 && monthPart <= 32:
		year, month = 2000+yearPart, monthPart-20
	case monthPart >= 41 && monthPart <= 52:
		year, month = 2100+yearPart, monthPart-40
	case monthPart >= 61 && monthPart <= 72:
		year, month = 2200+yearPart, monthPart-60
	case monthPart >= 81 && monthPart <= 92:
		year, month = 1800+yearPart, monthPart-80
	default:
		return PeselInfo{}, ErrPeselMonth
	}

	gender := "K"
	if digits[9]%2 == 1 {
		gender = "M"
	}

	return PeselInfo{
		DateOfBirth: fmt.Sprintf("%04d-%02d-%02d", year, month, day),
		Gender:      gender,
	}, nil
}

// toDigits converts s to a digit slice, failing on any non-digit rune or
// a length other than want.
func toDigits(s string, want int) ([]int, error) {
	if len(s) != want {
		return nil, fmt.Errorf("want %d digits, got %d", want, len(s))
	}
	digits := make([]int, want)
	for i := 0; i < want; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("non-digit at position %d", i)
		}
		digits[i] = int(c - '0')
	}
	return digits, nil
}
