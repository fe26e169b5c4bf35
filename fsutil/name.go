package fsutil

import "regexp"

const maxFilenameLen = 100

var (
	disallowedChars = regexp.MustCompile(`[^A-Za-z0-9_\s-]`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
)

// SanitizeFilename turns an arbitrary track title into a safe filename stem:
// disallowed characters become underscores, whitespace runs collapse to a
// single underscore, and the result is capped at 100 bytes. An empty title
// falls back to "audio".
func SanitizeFilename(title string) string {
	s := disallowedChars.ReplaceAllString(title, "_")
	s = whitespaceRuns.ReplaceAllString(s, "_")
	if len(s) > maxFilenameLen {
		s = s[:maxFilenameLen]
	}
	if s == "" {
		return "audio"
	}

	return s
}
