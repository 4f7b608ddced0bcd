// Package phone normalizes Brazilian lead phone numbers for storage,
// search and WhatsApp deep links.
package phone

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// defaultRegion is assumed when a number carries no country code.
const defaultRegion = "BR"

// Digits strips everything but decimal digits. Search input and stored
// numbers are compared through this.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize parses a phone number, assuming Brazil when no country code is
// present, and returns it in E.164 format.
func Normalize(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("phone number cannot be empty")
	}

	parsed, err := phonenumbers.Parse(raw, defaultRegion)
	if err != nil {
		return "", fmt.Errorf("failed to parse phone number: %w", err)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", fmt.Errorf("invalid phone number: %s", raw)
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// WhatsAppURL builds a wa.me deep link for the number. Invalid numbers
// fall back to the raw digits with the country code prefixed, so a typo in
// an imported sheet still produces a tappable link.
func WhatsAppURL(raw string) string {
	if e164, err := Normalize(raw); err == nil {
		return "https://wa.me/" + strings.TrimPrefix(e164, "+")
	}
	digits := Digits(raw)
	if digits == "" {
		return ""
	}
	if !strings.HasPrefix(digits, "55") {
		digits = "55" + digits
	}
	return "https://wa.me/" + digits
}
