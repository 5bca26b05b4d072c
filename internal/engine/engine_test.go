package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebernie/kode-context/internal/config"
	"github.com/ebernie/kode-context/internal/core"
	"github.com/ebernie/kode-context/internal/index"
	"github.com/ebernie/kode-context/internal/index/indextest"
	"github.com/ebernie/kode-context/internal/logger"
	"github.com/ebernie/kode-context/internal/queue"
)

func testEngineConfig() *config.Config {
	return &config.Config{
		Retrieval: config.RetrievalConfig{
			MaxResults:                20,
			EarlyTerminationEnabled:   true,
			EarlyTerminationThreshold: 0.9,
			KeywordBudget:             100 * time.Millisecond,
			VectorBudget:              500 * time.Millisecond,
			StructuralBudget:          500 * time.Millisecond,
			RerankBudget:              100 * time.Millisecond,
		},
		Weights: config.WeightsConfig{
			ModifiedOverlap:  2.0,
			TestFile:         1.5,
			DescriptionMatch: 1.3,
		},
		Diversity: config.DiversityConfig{
			MaxChunksPerFile:      3,
			DiversityFactor:       0.3,
			MinResultsPerCategory: 2,
		},
		Queue: config.QueueConfig{
			AutoQueueThreshold: 2,
			LowPriorityAbove:   500,
		},
	}
}

func diffWithFiles(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		name := "src/file" + string(rune('a'+i)) + ".ts"
		b.WriteString("diff --git a/" + name + " b/" + name + "\n")
		b.WriteString("--- a/" + name + "\n+++ b/" + name + "\n")
		b.WriteString("@@ -1,1 +1,2 @@\n context\n+function added" + string(rune('A'+i)) + "() {}\n")
	}
	return b.String()
}

func TestBuildContext_ServiceUnavailableReturnsNil(t *testing.T) {
	fake := indextest.New()
	fake.Healthy = false

	eng := New(testEngineConfig(), fake, nil, nil, logger.Discard())
	bundle, err := eng.BuildContext(context.Background(), Request{DiffContent: diffWithFiles(1)})

	require.NoError(t, err)
	assert.Nil(t, bundle)
	assert.Equal(t, []indextest.Call{{Op: "health"}}, fake.Calls())
}

func TestBuildContext_EmptyDiffMakesNoRetrievalCalls(t *testing.T) {
	fake := indextest.New()

	eng := New(testEngineConfig(), fake, nil, nil, logger.Discard())
	bundle, err := eng.BuildContext(context.Background(), Request{DiffContent: ""})

	require.NoError(t, err)
	require.NotNil(t, bundle)
	assert.Empty(t, bundle.Chunks)
	assert.Empty(t, bundle.Warnings)
	// Only the health check went out.
	assert.Equal(t, []indextest.Call{{Op: "health"}}, fake.Calls())
}

func TestBuildContext_BundleHasUniqueSortedChunks(t *testing.T) {
	fake := indextest.New()
	fake.HybridResults["addedA"] = &index.HybridSearchResult{
		Matches: []index.HybridMatch{
			{FilePath: "src/filea.ts", LineStart: 1, LineEnd: 12, Content: "function addedA() {}", VectorScore: 0.7},
			{FilePath: "src/related.ts", LineStart: 5, LineEnd: 25, Content: "related body", VectorScore: 0.6},
		},
	}

	eng := New(testEngineConfig(), fake, nil, nil, logger.Discard())
	bundle, err := eng.BuildContext(context.Background(), Request{
		DiffContent: diffWithFiles(1),
		RepoURL:     "https://github.com/owner/repo",
		TopK:        10,
	})

	require.NoError(t, err)
	require.NotNil(t, bundle)
	require.NotEmpty(t, bundle.Chunks)

	seen := map[string]struct{}{}
	for i, c := range bundle.Chunks {
		if i > 0 {
			assert.GreaterOrEqual(t, bundle.Chunks[i-1].Score, c.Score)
		}
		_, dup := seen[c.Key()]
		require.False(t, dup, "duplicate chunk %s", c.Key())
		seen[c.Key()] = struct{}{}
		assert.InDelta(t, c.OriginalScore*c.WeightMultiplier, c.Score, 1e-9)
	}

	// The chunk overlapping the modified line carries the tag and the
	// separate 2.0 pass.
	var modified *core.WeightedChunk
	for i := range bundle.Chunks {
		if bundle.Chunks[i].Filename == "src/filea.ts" {
			modified = &bundle.Chunks[i]
		}
	}
	require.NotNil(t, modified)
	assert.True(t, modified.IsModifiedContext)
	assert.Equal(t, "src/filea.ts", bundle.Chunks[0].Filename)
}

func TestBuildContext_AutoEnqueuePolicy(t *testing.T) {
	fake := indextest.New()
	q := queue.NewQueue()

	eng := New(testEngineConfig(), fake, q, nil, logger.Discard())
	req := Request{
		DiffContent: diffWithFiles(3), // above the threshold of 2
		RepoURL:     "https://github.com/owner/repo",
		Branch:      "main",
	}

	bundle, err := eng.BuildContext(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, bundle.Metrics.AutoEnqueued)
	assert.Equal(t, 1, q.PendingCount())

	job := q.Snapshot()[0]
	assert.Equal(t, core.PriorityNormal, job.Priority)
	assert.Equal(t, 3, job.FileCount)

	// A second review for the same (repo, branch) while the job is
	// pending is a no-op.
	bundle, err = eng.BuildContext(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, bundle.Metrics.AutoEnqueued)
	assert.Equal(t, 1, q.PendingCount())
}

func TestBuildContext_NoAutoEnqueueAtOrBelowThreshold(t *testing.T) {
	fake := indextest.New()
	q := queue.NewQueue()

	eng := New(testEngineConfig(), fake, q, nil, logger.Discard())
	bundle, err := eng.BuildContext(context.Background(), Request{
		DiffContent: diffWithFiles(2),
		RepoURL:     "repo",
	})

	require.NoError(t, err)
	assert.False(t, bundle.Metrics.AutoEnqueued)
	assert.Equal(t, 0, q.PendingCount())
}

func TestTrimToTokenBudget(t *testing.T) {
	chunks := []core.WeightedChunk{
		core.NewWeightedChunk(core.CodeChunk{Filename: "a", StartLine: 1, EndLine: 2, Code: strings.Repeat("x", 400)}, 0.9),
		core.NewWeightedChunk(core.CodeChunk{Filename: "b", StartLine: 1, EndLine: 2, Code: strings.Repeat("x", 400)}, 0.8),
		core.NewWeightedChunk(core.CodeChunk{Filename: "c", StartLine: 1, EndLine: 2, Code: strings.Repeat("x", 400)}, 0.7),
	}

	// 150 tokens ~= 600 chars: the first chunk fits, the second crosses
	// the budget boundary.
	trimmed, dropped := trimToTokenBudget(chunks, 150)
	assert.Len(t, trimmed, 1)
	assert.Equal(t, 2, dropped)

	// Zero budget means unlimited.
	all, dropped := trimToTokenBudget(chunks, 0)
	assert.Len(t, all, 3)
	assert.Equal(t, 0, dropped)

	// The top chunk survives even when it alone exceeds the budget.
	one, _ := trimToTokenBudget(chunks, 10)
	assert.Len(t, one, 1)
}
