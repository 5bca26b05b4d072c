package gitutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRepoURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain https", "https://github.com/owner/repo", "https://github.com/owner/repo"},
		{"git suffix", "https://github.com/owner/repo.git", "https://github.com/owner/repo"},
		{"trailing slash", "https://github.com/owner/repo/", "https://github.com/owner/repo"},
		{"scheme and host case", "HTTPS://GitHub.com/Owner/Repo", "https://github.com/Owner/Repo"},
		{"ssh form", "git@github.com:owner/repo.git", "github.com/owner/repo"},
		{"whitespace", "  https://github.com/owner/repo  ", "https://github.com/owner/repo"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeRepoURL(tt.in))
		})
	}
}

func TestNormalizeRepoURL_VariantsCollapse(t *testing.T) {
	variants := []string{
		"https://github.com/owner/repo",
		"https://github.com/owner/repo.git",
		"https://github.com/owner/repo/",
		"HTTPS://github.com/owner/repo.git",
	}
	want := NormalizeRepoURL(variants[0])
	for _, v := range variants {
		assert.Equal(t, want, NormalizeRepoURL(v), "variant %s", v)
	}
}
