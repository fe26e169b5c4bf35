package fsutil_test

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stxfxno/listify/fsutil"
)

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		title    string
		expected string
	}{
		{
			name:     "plain title",
			title:    "Bohemian Rhapsody",
			expected: "Bohemian_Rhapsody",
		},
		{
			name:     "special characters",
			title:    "Song/Name: Feat. *Artist*",
			expected: "Song_Name__Feat___Artist_",
		},
		{
			name:     "whitespace run collapses to one underscore",
			title:    "a   b",
			expected: "a_b",
		},
		{
			name:     "empty falls back",
			title:    "",
			expected: "audio",
		},
		{
			name:     "hyphens and underscores survive",
			title:    "Track-01_final",
			expected: "Track-01_final",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, fsutil.SanitizeFilename(tt.title))
		})
	}
}

func TestSanitizeFilenameAlphabet(t *testing.T) {
	t.Parallel()

	allowed := regexp.MustCompile(`^[A-Za-z0-9_\s-]+$`)
	got := fsutil.SanitizeFilename(`Song/Name: Feat. *Artist* ÁÉ "quoted"`)
	assert.Regexp(t, allowed, got)
	assert.NotContains(t, got, " ")
}

func TestSanitizeFilenameTruncates(t *testing.T) {
	t.Parallel()

	got := fsutil.SanitizeFilename(strings.Repeat("a", 250))
	assert.Len(t, got, 100)
}
