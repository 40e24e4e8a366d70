package utils

import (
	"fmt"
	"strings"
)

// NormalizePhone reduces a phone number to digits only.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidPhone reports whether the number normalizes to 10-15 digits.
func ValidPhone(raw string) bool {
	n := len(NormalizePhone(raw))
	return n >= 10 && n <= 15
}

// ToJID converts a phone number to the transport addressing format.
func ToJID(raw string) (string, error) {
	digits := NormalizePhone(raw)
	if len(digits) < 10 || len(digits) > 15 {
		return "", fmt.Errorf("invalid phone number: %q", raw)
	}
	return digits + "@s.whatsapp.net", nil
}

// JIDToPhone extracts the digits from a transport address for comparison.
func JIDToPhone(jid string) string {
	if i := strings.IndexByte(jid, '@'); i >= 0 {
		jid = jid[:i]
	}
	return NormalizePhone(jid)
}
