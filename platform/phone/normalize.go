// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "KE"

// NormalizeE164 formats a phone number to E.164. Inputs such as
// "0712 345 678", "254712345678" and "whatsapp:+254712345678" all yield
// "+254712345678". If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	trimmed = strings.TrimPrefix(trimmed, "whatsapp:")
	if trimmed == "" {
		return trimmed
	}

	candidate := trimmed
	if !strings.HasPrefix(candidate, "+") && strings.HasPrefix(Digits(candidate), "254") {
		candidate = "+" + Digits(candidate)
	}

	number, err := phonenumbers.Parse(candidate, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// IsValid reports whether input parses to a valid number in E.164 form.
func IsValid(input string) bool {
	normalized := NormalizeE164(input)
	return strings.HasPrefix(normalized, "+") && len(Digits(normalized)) >= 8
}

// Digits strips everything except ASCII digits.
func Digits(input string) string {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
