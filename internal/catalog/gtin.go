package catalog

import "strings"

// NormalizeGTIN strips spaces and hyphens from a raw GTIN value.
func NormalizeGTIN(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if r == ' ' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ValidGTIN reports whether the value is an 8, 12, 13 or 14 digit GTIN
// with a correct GS1 modulo-10 check digit.
func ValidGTIN(gtin string) bool {
	switch len(gtin) {
	case 8, 12, 13, 14:
	default:
		return false
	}
	for _, r := range gtin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return gs1CheckDigit(gtin[:len(gtin)-1]) == int(gtin[len(gtin)-1]-'0')
}

// gs1CheckDigit computes the GS1 check digit for the payload digits.
// Weights alternate 3 and 1 starting from the rightmost payload digit
// with weight 3.
func gs1CheckDigit(payload string) int {
	sum := 0
	weight := 3
	for i := len(payload) - 1; i >= 0; i-- {
		sum += int(payload[i]-'0') * weight
		if weight == 3 {
			weight = 1
		} else {
			weight = 3
		}
	}
	return (10 - sum%10) % 10
}

// gtinKey zero-pads a validated GTIN to 14 digits so the same article
// coded as EAN-13 and GTIN-14 compares equal.
func gtinKey(gtin string) string {
	if len(gtin) >= 14 {
		return gtin
	}
	return strings.Repeat("0", 14-len(gtin)) + gtin
}
