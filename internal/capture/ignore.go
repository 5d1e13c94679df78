package capture

import (
	"path/filepath"
	"strings"
)

// defaultIgnorePatterns skip files a sync tool is still writing.
var defaultIgnorePatterns = []string{".*", "*.part", "*.crdownload", "~*"}

// frameFilter decides which files in the frame directory are ignored.
// Patterns are globs matched against the file name only.
type frameFilter struct {
	patterns []string
}

// newFrameFilter combines the default patterns with extra. Blank entries and
// entries starting with '#' are skipped.
func newFrameFilter(extra []string) *frameFilter {
	patterns := append([]string{}, defaultIgnorePatterns...)
	for _, raw := range extra {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		patterns = append(patterns, raw)
	}
	return &frameFilter{patterns: patterns}
}

// ignored reports whether name matches any pattern. Malformed patterns never
// match.
func (f *frameFilter) ignored(name string) bool {
	base := filepath.Base(name)
	for _, p := range f.patterns {
		if matched, err := filepath.Match(p, base); err == nil && matched {
			return true
		}
	}
	return false
}
