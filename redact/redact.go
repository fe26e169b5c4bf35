package redact

import (
	"strings"
)

// String masks the middle half of s, keeping the first and last quarter
// visible. Used when logging credential material.
func String(s string) string {
	l := len(s)
	if l < 8 {
		return strings.Repeat("*", l)
	}

	head := l / 4
	tail := l - l/4

	return s[:head] + strings.Repeat("*", tail-head) + s[tail:]
}
