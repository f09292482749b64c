package verification

import "strings"

// GTIN is a normalised 14-digit Global Trade Item Number.
type GTIN string

const gtinLength = 14

// Normalize strips every non-digit character from raw and left-pads the result to
// 14 digits. Only GTIN-8, GTIN-12 (UPC-A), GTIN-13 (EAN-13) and GTIN-14 lengths are
// accepted. Check digits are not validated.
func Normalize(raw string) (GTIN, error) {
	var b strings.Builder
	b.Grow(gtinLength)
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch len(digits) {
	case 8, 12, 13, 14:
		return GTIN(strings.Repeat("0", gtinLength-len(digits)) + digits), nil
	default:
		return "", &InvalidGTINError{Raw: raw, Digits: len(digits)}
	}
}

func (g GTIN) String() string { return string(g) }
