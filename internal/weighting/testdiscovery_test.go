package weighting

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebernie/kode-context/internal/core"
	"github.com/ebernie/kode-context/internal/index/indextest"
	"github.com/ebernie/kode-context/internal/logger"
)

func TestTestCandidates_TypeScript(t *testing.T) {
	candidates := TestCandidates("src/utils/helpers.ts")

	for _, want := range []string{
		"src/utils/helpers.test.ts",
		"src/utils/helpers.spec.ts",
		"src/utils/__tests__/helpers.ts",
		"test/utils/helpers.ts",
		"tests/utils/helpers.ts",
	} {
		assert.Contains(t, candidates, want)
	}
}

func TestTestCandidates_Python(t *testing.T) {
	candidates := TestCandidates("src/utils/helpers.py")

	assert.Contains(t, candidates, "src/utils/helpers_test.py")
	assert.Contains(t, candidates, "src/utils/test_helpers.py")
}

func TestIsTestFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"src/utils/helpers.test.ts", true},
		{"src/utils/helpers.spec.ts", true},
		{"pkg/store/store_test.go", true},
		{"src/utils/test_helpers.py", true},
		{"src/__tests__/helpers.ts", true},
		{"tests/helpers.ts", true},
		{"test/utils/helpers.ts", true},
		{"spec/models/user.rb", true},
		{"src/utils/helpers.ts", false},
		{"src/testing_grounds/widget.ts", false}, // test_ applies to basename only
		{"src/latest.ts", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTestFile(tt.path))
		})
	}
}

func TestDiscover_ByCandidatePath(t *testing.T) {
	fake := indextest.New()
	fake.SearchResults["src/utils/helpers.test.ts"] = []core.CodeChunk{
		{Filename: "src/utils/helpers.test.ts", StartLine: 1, EndLine: 40, Code: "describe('helpers')", Score: 0.6},
	}

	weigher := NewWeigher(DefaultBoosts(), nil, logger.Discard())
	discovery := NewTestDiscovery(fake, weigher, logger.Discard())

	chunks := discovery.Discover(context.Background(), []string{"src/utils/helpers.ts"}, "repo", "")

	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].IsTestFile)
	assert.Equal(t, "src/utils/helpers.ts", chunks[0].RelatedSourceFile)
	// Test-file boost applied on retrieval.
	assert.InDelta(t, 0.6*1.5, chunks[0].Score, 1e-9)
}

func TestDiscover_SymbolFallback(t *testing.T) {
	fake := indextest.New()
	fake.SearchResults["helpers test"] = []core.CodeChunk{
		{Filename: "tests/unit/helpers_suite.test.ts", StartLine: 1, EndLine: 30, Code: "test('x')", Score: 0.5},
		{Filename: "src/utils/helpers.ts", StartLine: 1, EndLine: 30, Code: "not a test", Score: 0.9},
	}

	weigher := NewWeigher(DefaultBoosts(), nil, logger.Discard())
	discovery := NewTestDiscovery(fake, weigher, logger.Discard())

	chunks := discovery.Discover(context.Background(), []string{"src/utils/helpers.ts"}, "repo", "")

	require.Len(t, chunks, 1)
	assert.Equal(t, "tests/unit/helpers_suite.test.ts", chunks[0].Filename)
}

func TestDiscover_CapsPerSourceAndSkipsTestSources(t *testing.T) {
	fake := indextest.New()
	fake.SearchResults["src/utils/helpers.test.ts"] = []core.CodeChunk{
		{Filename: "src/utils/helpers.test.ts", StartLine: 1, EndLine: 10, Code: "a", Score: 0.9},
		{Filename: "src/utils/helpers.test.ts", StartLine: 11, EndLine: 20, Code: "b", Score: 0.8},
		{Filename: "src/utils/helpers.test.ts", StartLine: 21, EndLine: 30, Code: "c", Score: 0.7},
		{Filename: "src/utils/helpers.test.ts", StartLine: 31, EndLine: 40, Code: "d", Score: 0.6},
	}

	weigher := NewWeigher(DefaultBoosts(), nil, logger.Discard())
	discovery := NewTestDiscovery(fake, weigher, logger.Discard())

	chunks := discovery.Discover(context.Background(),
		[]string{"src/utils/helpers.ts", "src/utils/helpers.test.ts"}, "repo", "")

	// Capped at three per source file; the test file itself is skipped as
	// a discovery source.
	assert.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.Equal(t, "src/utils/helpers.ts", c.RelatedSourceFile)
	}
}
