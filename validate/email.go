package validate

import (
	"net/mail"
	"strings"
)

const maxEmailLength = 254

// IsEmail reports whether s is a bare addr-spec (no display name, no angle
// brackets) with a non-empty local part and a dotted domain.
func IsEmail(s string) bool {
	if s == "" || len(s) > maxEmailLength {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Name != "" || addr.Address != s {
		return false
	}

	at := strings.LastIndexByte(s, '@')
	if at <= 0 {
		return false
	}
	domain := s[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	if dot <= 0 || dot == len(domain)-1 || domain[0] == '.' {
		return false
	}
	return !strings.Contains(domain, "..")
}

// NormalizeEmail trims surrounding whitespace and lowercases the address.
// Addresses are compared and stored in this form.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeUsername trims surrounding whitespace. Case is preserved.
func NormalizeUsername(s string) string {
	return strings.TrimSpace(s)
}

// LooksLikeEmail reports whether a login selector should be treated as an
// email address rather than a username.
func LooksLikeEmail(s string) bool {
	return strings.Contains(s, "@")
}
