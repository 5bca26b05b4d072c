package core

import "strings"

// NormalizePath canonicalizes a file path for comparison: backslashes
// become forward slashes and one leading "./" is dropped.
func NormalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.TrimPrefix(path, "./")
	return path
}

// PathsMatch reports whether two file paths refer to the same file.
// Equality is checked first, then a mutual suffix match on path-segment
// boundaries, which tolerates one side being relative and the other
// repo-rooted or absolute.
func PathsMatch(a, b string) bool {
	a = NormalizePath(a)
	b = NormalizePath(b)
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	return strings.HasSuffix(a, "/"+b) || strings.HasSuffix(b, "/"+a)
}

// MatchesAny reports whether path matches any entry of files under
// PathsMatch semantics.
func MatchesAny(path string, files []string) bool {
	for _, f := range files {
		if PathsMatch(path, f) {
			return true
		}
	}
	return false
}

// FindMatch returns the first entry of files that matches path, or "".
func FindMatch(path string, files []string) string {
	for _, f := range files {
		if PathsMatch(path, f) {
			return f
		}
	}
	return ""
}
