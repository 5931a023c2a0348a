package source

import (
	"path"
	"strings"
)

// MatchPattern reports whether p, a forward-slash path, matches the glob
// pattern. Besides path.Match syntax it understands:
//   - "dir/*" matches everything below dir, at any depth
//   - "*.ext" matches files with that extension in any directory
//   - a pattern without "/" is also matched against the base name
func MatchPattern(pattern, p string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(p, prefix+"/") || p == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") && strings.HasSuffix(p, pattern[1:]) {
		return true
	}

	if matched, err := path.Match(pattern, p); err == nil && matched {
		return true
	}

	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := path.Match(pattern, path.Base(p)); err == nil && matched {
			return true
		}
	}

	return false
}

// MatchAny reports whether p matches any of patterns.
func MatchAny(patterns []string, p string) bool {
	for _, pattern := range patterns {
		if MatchPattern(pattern, p) {
			return true
		}
	}
	return false
}
