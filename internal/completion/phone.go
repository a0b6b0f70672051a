package completion

import (
	"strings"

	"vendzz/internal/constants"
)

// SanitizePhone keeps only the digits of raw, rejects numbers shorter than
// ten digits and caps the rest at fifteen. Local numbers of ten or eleven
// digits get countryCode prepended.
func SanitizePhone(raw, countryCode string) (string, bool) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if len(digits) < constants.MinPhoneDigits {
		return "", false
	}
	if len(digits) <= 11 && countryCode != "" {
		digits = countryCode + digits
	}
	if len(digits) > constants.MaxPhoneDigits {
		digits = digits[:constants.MaxPhoneDigits]
	}
	return digits, true
}
