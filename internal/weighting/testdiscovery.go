package weighting

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/ebernie/kode-context/internal/core"
	"github.com/ebernie/kode-context/internal/index"
)

const maxTestChunksPerSource = 3

var (
	testDirPatterns    = []string{"__tests__", "tests", "test", "spec"}
	sourceTreePrefixes = []string{"src/", "lib/", "pkg/", "packages/", "app/"}
)

// IsTestFile reports whether a path names a test file: it lives under a
// test directory, or its basename carries a test naming pattern. The
// test_ prefix is checked against the basename only, never the full path.
func IsTestFile(filePath string) bool {
	normalized := core.NormalizePath(filePath)
	for _, dir := range testDirPatterns {
		if strings.HasPrefix(normalized, dir+"/") || strings.Contains(normalized, "/"+dir+"/") {
			return true
		}
	}
	base := path.Base(normalized)
	return strings.Contains(base, ".test.") ||
		strings.Contains(base, ".spec.") ||
		strings.Contains(base, "_test.") ||
		strings.HasPrefix(base, "test_")
}

// TestCandidates generates the candidate test paths for one source file:
// sibling files under the naming patterns, a sibling __tests__ directory,
// and root-level test trees mirroring the source path with common source
// prefixes stripped.
func TestCandidates(sourceFile string) []string {
	normalized := core.NormalizePath(sourceFile)
	dir := path.Dir(normalized)
	base := path.Base(normalized)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	var candidates []string
	seen := make(map[string]struct{})
	add := func(p string) {
		p = path.Clean(p)
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		candidates = append(candidates, p)
	}

	// Naming patterns beside the source file.
	add(path.Join(dir, stem+".test"+ext))
	add(path.Join(dir, stem+".spec"+ext))
	add(path.Join(dir, stem+"_test"+ext))
	add(path.Join(dir, "test_"+base))

	// Sibling test directories.
	for _, td := range testDirPatterns {
		add(path.Join(dir, td, base))
	}

	// Root-level test trees mirroring the stripped source path.
	mirrored := normalized
	for _, prefix := range sourceTreePrefixes {
		if strings.HasPrefix(mirrored, prefix) {
			mirrored = strings.TrimPrefix(mirrored, prefix)
			break
		}
	}
	for _, td := range testDirPatterns {
		add(path.Join(td, mirrored))
	}

	return candidates
}

// TestDiscovery retrieves the test chunks covering modified source files.
type TestDiscovery struct {
	client  index.Client
	weigher *Weigher
	logger  *slog.Logger
}

// NewTestDiscovery creates a test discovery helper.
func NewTestDiscovery(client index.Client, weigher *Weigher, logger *slog.Logger) *TestDiscovery {
	return &TestDiscovery{client: client, weigher: weigher, logger: logger}
}

// Discover finds up to three test chunks per modified non-test source
// file. Candidate paths query the index directly; when none hit, symbol
// queries built from the basename take over. Chunks already seen under
// another source file are skipped.
func (t *TestDiscovery) Discover(ctx context.Context, modifiedFiles []string, repoURL, branch string) []core.WeightedChunk {
	var discovered []core.WeightedChunk
	seen := make(map[string]struct{})

	for _, source := range modifiedFiles {
		if IsTestFile(source) {
			continue
		}

		chunks := t.byCandidatePaths(ctx, source, repoURL, branch)
		if len(chunks) == 0 {
			chunks = t.bySymbolQueries(ctx, source, repoURL, branch)
		}

		taken := 0
		for _, chunk := range chunks {
			if taken >= maxTestChunksPerSource {
				break
			}
			key := chunk.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			taken++

			wc := core.NewWeightedChunk(chunk, chunk.Score)
			t.weigher.TestFileBoost(&wc, source)
			discovered = append(discovered, wc)
		}
	}

	if len(discovered) > 0 {
		t.logger.Debug("test discovery complete", "chunks", len(discovered))
	}
	return discovered
}

func (t *TestDiscovery) byCandidatePaths(ctx context.Context, source, repoURL, branch string) []core.CodeChunk {
	var chunks []core.CodeChunk
	for _, candidate := range TestCandidates(source) {
		results, err := t.client.Search(ctx, candidate, repoURL, maxTestChunksPerSource, branch)
		if err != nil {
			t.logger.Debug("test candidate search failed", "candidate", candidate, "error", err)
			continue
		}
		for _, chunk := range results {
			if core.PathsMatch(chunk.Filename, candidate) {
				chunks = append(chunks, chunk)
			}
		}
	}
	return chunks
}

func (t *TestDiscovery) bySymbolQueries(ctx context.Context, source, repoURL, branch string) []core.CodeChunk {
	base := path.Base(core.NormalizePath(source))
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	queries := []string{
		base + " test",
		"describe " + base,
		"test " + base,
	}

	var chunks []core.CodeChunk
	for _, query := range queries {
		results, err := t.client.Search(ctx, query, repoURL, maxTestChunksPerSource, branch)
		if err != nil {
			t.logger.Debug("test symbol search failed", "query", query, "error", err)
			continue
		}
		for _, chunk := range results {
			if IsTestFile(chunk.Filename) {
				chunks = append(chunks, chunk)
			}
		}
	}
	return chunks
}
