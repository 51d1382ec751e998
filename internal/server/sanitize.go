package server

import (
	"strings"
	"unicode/utf8"
)

// SanitizeUserInput trims whitespace and removes control characters other
// than newline and tab. Invalid UTF-8 is dropped.
func SanitizeUserInput(input string) string {
	input = strings.TrimSpace(input)

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r == utf8.RuneError {
			continue
		}
		if (r >= 0x20 && r != 0x7f) || r == '\n' || r == '\t' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LimitStringLength truncates input to at most maxLength bytes without
// splitting a rune.
func LimitStringLength(input string, maxLength int) string {
	if len(input) <= maxLength {
		return input
	}
	cut := maxLength
	for cut > 0 && !utf8.RuneStart(input[cut]) {
		cut--
	}
	return input[:cut]
}

// ValidateContentType reports whether contentType's media type is one of
// allowed. Parameters such as charset are ignored.
func ValidateContentType(contentType string, allowed []string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.TrimSpace(mediaType)
	for _, a := range allowed {
		if strings.EqualFold(mediaType, a) {
			return true
		}
	}
	return false
}
