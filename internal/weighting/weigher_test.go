package weighting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebernie/kode-context/internal/core"
	"github.com/ebernie/kode-context/internal/diff"
	"github.com/ebernie/kode-context/internal/logger"
	"github.com/ebernie/kode-context/internal/strategy"
)

func result(file string, start, end int, weighted float64) core.PipelineResult {
	return core.PipelineResult{
		Chunk: core.CodeChunk{
			Filename:  file,
			StartLine: start,
			EndLine:   end,
			Code:      "body",
			Score:     weighted,
		},
		BaseScore:     weighted,
		WeightedScore: weighted,
	}
}

func TestWeigh_ModifiedLinePassFlipsRanking(t *testing.T) {
	// Completes the scenario started in the pipeline: after rerank the
	// modified chunk sits at 0.75 against 0.9. The separate 2.0 pass
	// lifts it to 1.5 and it must rank first.
	parsed := &core.ParsedDiff{
		PerFile: map[string]*core.FileChanges{
			"src/utils.ts": {Mods: []int{15, 15}},
		},
	}
	results := []core.PipelineResult{
		result("src/utils.ts", 10, 20, 0.75),
		result("src/other.ts", 100, 110, 0.9),
	}

	weigher := NewWeigher(DefaultBoosts(), nil, logger.Discard())
	chunks := weigher.Weigh(results, parsed, nil)
	require.Len(t, chunks, 2)

	utils := chunks[0]
	other := chunks[1]
	assert.True(t, utils.IsModifiedContext)
	assert.False(t, other.IsModifiedContext)
	assert.InDelta(t, 1.5, utils.Score, 1e-9)
	assert.InDelta(t, 0.9, other.Score, 1e-9)
	assert.Greater(t, utils.Score, other.Score)
}

func TestWeigh_ModifiedContextRequiresOverlap(t *testing.T) {
	parsed := &core.ParsedDiff{
		PerFile: map[string]*core.FileChanges{
			"src/utils.ts": {Adds: []int{50}},
		},
	}

	weigher := NewWeigher(DefaultBoosts(), nil, logger.Discard())

	// Same file, no line overlap: not modified context.
	chunks := weigher.Weigh([]core.PipelineResult{result("src/utils.ts", 1, 10, 0.5)}, parsed, nil)
	assert.False(t, chunks[0].IsModifiedContext)
	assert.InDelta(t, 0.5, chunks[0].Score, 1e-9)

	// Suffix-matched path with boundary-line overlap counts.
	chunks = weigher.Weigh([]core.PipelineResult{result("repo/src/utils.ts", 40, 50, 0.5)}, parsed, nil)
	assert.True(t, chunks[0].IsModifiedContext)
}

func TestWeigh_ScoreInvariantHolds(t *testing.T) {
	parsed := &core.ParsedDiff{
		PerFile: map[string]*core.FileChanges{
			"src/types.d.ts": {Adds: []int{5}},
		},
	}
	res := result("src/types.d.ts", 1, 10, 0.4)
	res.FromDescriptionQuery = true

	weigher := NewWeigher(DefaultBoosts(), strategy.NewRegistry(nil), logger.Discard())
	chunks := weigher.Weigh([]core.PipelineResult{res}, parsed, nil)
	require.Len(t, chunks, 1)

	c := chunks[0]
	// modified 2.0 * description 1.3 * typescript priority 1.2
	assert.InDelta(t, 2.0*1.3*1.2, c.WeightMultiplier, 1e-9)
	assert.InDelta(t, c.OriginalScore*c.WeightMultiplier, c.Score, 1e-9)
}

func TestWeigh_DescriptionIntentFromConceptsAndFiles(t *testing.T) {
	desc := diff.ExtractDescription("Refactors the `RetryPolicy` used by src/payments/gateway.ts for resilience.")

	weigher := NewWeigher(DefaultBoosts(), nil, logger.Discard())

	withSymbol := result("src/policy.ts", 1, 10, 0.5)
	withSymbol.Chunk.SymbolNames = []string{"RetryPolicy"}
	mentioned := result("src/payments/gateway.ts", 1, 10, 0.5)
	unrelated := result("src/unrelated.ts", 1, 10, 0.5)

	chunks := weigher.Weigh([]core.PipelineResult{withSymbol, mentioned, unrelated}, &core.ParsedDiff{PerFile: map[string]*core.FileChanges{}}, desc)

	assert.True(t, chunks[0].MatchesDescriptionIntent)
	assert.True(t, chunks[1].MatchesDescriptionIntent)
	assert.False(t, chunks[2].MatchesDescriptionIntent)
	assert.InDelta(t, 0.5*1.3, chunks[0].Score, 1e-9)
}
