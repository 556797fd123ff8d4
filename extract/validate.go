package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// eanPattern matches an EAN label followed by a standard-length barcode.
// Handles variations like "EAN:", "EAN ", "EAN-".
var eanPattern = regexp.MustCompile(`(?i)EAN[:\s\-]*(\d{8,14})`)

// eanFormat is the bare barcode shape: 8 to 14 digits.
var eanFormat = regexp.MustCompile(`^\d{8,14}$`)

var nonDigit = regexp.MustCompile(`[^\d]`)

// ValidEAN reports whether a candidate value has the expected barcode
// format. Values failing this are treated as not found, never emitted.
func ValidEAN(value string) bool {
	return eanFormat.MatchString(strings.TrimSpace(value))
}

// NormalizePrice assembles a whole-euros part and an optional two-digit
// fraction into a canonical "123.45" amount. The whole part may carry
// thousands separators or currency text; anything non-digit is dropped. A
// missing or malformed fraction becomes "00". Amounts that do not parse as a
// positive number are rejected.
func NormalizePrice(whole, fraction string) (string, bool) {
	digits := nonDigit.ReplaceAllString(whole, "")
	if digits == "" {
		return "", false
	}

	fraction = strings.TrimSpace(fraction)
	if len(fraction) != 2 || nonDigit.MatchString(fraction) {
		fraction = "00"
	}

	normalized := digits + "." + fraction
	amount, err := strconv.ParseFloat(normalized, 64)
	if err != nil || amount <= 0 {
		return "", false
	}
	return normalized, true
}
