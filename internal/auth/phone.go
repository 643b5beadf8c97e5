package auth

import (
	"fmt"
	"strings"
)

// NormalizePhone reduces a phone number to digits only. The normalized
// form is the member's stable identity; two inputs that differ only in
// formatting (spaces, dashes, parentheses, leading +) identify the same
// member.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() < 7 {
		return "", fmt.Errorf("phone number %q has fewer than 7 digits", raw)
	}
	return b.String(), nil
}
