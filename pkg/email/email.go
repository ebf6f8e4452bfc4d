// Package email holds address helpers shared by the board and the audit log.
package email

import (
	"strings"
	"unicode"
)

// fallbackName is used when the local part has no usable word.
const fallbackName = "Member"

// Normalize lower-cases and trims an address so lookups are case-insensitive.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// DisplayName builds a human name from an address local part:
// "ada.lovelace+board@example.com" becomes "Ada Lovelace". Plus-tags are
// dropped.
func DisplayName(address string) string {
	local := address
	if at := strings.IndexByte(address, '@'); at >= 0 {
		local = address[:at]
	}
	if plus := strings.IndexByte(local, '+'); plus >= 0 {
		local = local[:plus]
	}

	words := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	for i, w := range words {
		words[i] = capitalize(w)
	}
	if len(words) == 0 {
		return fallbackName
	}
	return strings.Join(words, " ")
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
