package config

import (
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchesExclude reports whether path matches any configured exclusion
// glob. Globs are tried against the full path and against the basename,
// so "*.tmp" excludes temp files anywhere without requiring "**/".
// Invalid patterns are skipped.
func MatchesExclude(path string, patterns []ExcludePattern) bool {
	full := filepath.ToSlash(path)
	base := filepath.Base(path)

	for _, pattern := range patterns {
		for _, glob := range pattern.Globs {
			if ok, err := doublestar.Match(glob, full); err == nil && ok {
				return true
			}
			if ok, err := doublestar.Match(glob, base); err == nil && ok {
				return true
			}
		}
	}
	return false
}
