package strutil

import (
	"strings"
	"unicode/utf8"
)

// TruncateUTF8 returns the longest prefix of s that is at most maxBytes
// bytes and does not split a multi-byte UTF-8 character.
func TruncateUTF8(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}

// Preview collapses whitespace runs to single spaces and truncates the
// result to maxBytes, appending "..." when something was cut.
func Preview(s string, maxBytes int) string {
	flat := strings.Join(strings.Fields(s), " ")
	if len(flat) <= maxBytes {
		return flat
	}
	const ellipsis = "..."
	if maxBytes <= len(ellipsis) {
		return TruncateUTF8(flat, maxBytes)
	}
	return TruncateUTF8(flat, maxBytes-len(ellipsis)) + ellipsis
}

// FirstNonEmpty returns the first argument that is not blank, trimmed.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
