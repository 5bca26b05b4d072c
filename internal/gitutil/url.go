// Package gitutil provides git-adjacent helpers: repository URL
// normalization and local diff derivation.
package gitutil

import (
	"regexp"
	"strings"
)

var schemeRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// NormalizeRepoURL canonicalizes a repository URL so that equality means
// same repository: scheme and host lowercase, no trailing slash, no .git
// suffix, ssh "git@host:path" rewritten to "host/path".
func NormalizeRepoURL(repoURL string) string {
	url := strings.TrimSpace(repoURL)
	if url == "" {
		return ""
	}

	// git@github.com:owner/repo.git -> github.com/owner/repo
	if strings.HasPrefix(url, "git@") {
		url = strings.TrimPrefix(url, "git@")
		url = strings.Replace(url, ":", "/", 1)
	}

	if m := schemeRegex.FindString(url); m != "" {
		url = strings.ToLower(m) + url[len(m):]
	}

	url = strings.TrimSuffix(url, "/")
	url = strings.TrimSuffix(url, ".git")

	// Lowercase the host segment only; path casing is significant.
	rest := url
	prefix := ""
	if m := schemeRegex.FindString(url); m != "" {
		prefix = m
		rest = url[len(m):]
	}
	if idx := strings.Index(rest, "/"); idx > 0 {
		rest = strings.ToLower(rest[:idx]) + rest[idx:]
	} else {
		rest = strings.ToLower(rest)
	}
	return prefix + rest
}
