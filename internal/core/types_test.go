package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWeightedChunk_ScoreInvariant(t *testing.T) {
	chunk := CodeChunk{Filename: "src/a.ts", StartLine: 1, EndLine: 10, Score: 0.5}
	wc := NewWeightedChunk(chunk, 0.5)

	assert.InDelta(t, 0.5, wc.Score, 1e-9)
	assert.InDelta(t, 1.0, wc.WeightMultiplier, 1e-9)

	wc.Boost(2.0)
	wc.Boost(1.3)

	assert.InDelta(t, 2.6, wc.WeightMultiplier, 1e-9)
	assert.InDelta(t, wc.OriginalScore*wc.WeightMultiplier, wc.Score, 1e-9)
}

func TestCodeChunk_Key(t *testing.T) {
	a := CodeChunk{Filename: "src/a.ts", StartLine: 5, EndLine: 20}
	b := CodeChunk{Filename: "src/a.ts", StartLine: 5, EndLine: 20, Code: "different"}
	c := CodeChunk{Filename: "src/a.ts", StartLine: 5, EndLine: 21}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestCodeChunk_ContainsLine_BoundariesInclusive(t *testing.T) {
	chunk := CodeChunk{StartLine: 10, EndLine: 20}

	assert.True(t, chunk.ContainsLine(10))
	assert.True(t, chunk.ContainsLine(20))
	assert.True(t, chunk.ContainsLine(15))
	assert.False(t, chunk.ContainsLine(9))
	assert.False(t, chunk.ContainsLine(21))
}

func TestSourceSet(t *testing.T) {
	var s SourceSet
	assert.Equal(t, 0, s.Count())

	s = s.Add(SourceKeyword).Add(SourceDefinition)
	assert.True(t, s.Has(SourceKeyword))
	assert.True(t, s.Has(SourceDefinition))
	assert.False(t, s.Has(SourceVector))
	assert.Equal(t, 2, s.Count())

	s = s.Union(SourceSet(0).Add(SourceKeyword).Add(SourceVector))
	assert.Equal(t, 3, s.Count())
	assert.Equal(t, []string{"keyword", "vector", "definition"}, s.Names())
}

func TestSeverityRank(t *testing.T) {
	assert.Less(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	assert.Less(t, SeverityHigh.Rank(), SeverityMedium.Rank())
}

func TestJobPriorityRank(t *testing.T) {
	assert.Less(t, PriorityHigh.Rank(), PriorityNormal.Rank())
	assert.Less(t, PriorityNormal.Rank(), PriorityLow.Rank())
}

func TestParsedDiff_ChangedLines(t *testing.T) {
	parsed := &ParsedDiff{
		PerFile: map[string]*FileChanges{
			"src/a.ts": {Adds: []int{3}, Dels: []int{7}, Mods: []int{11, 11}},
		},
	}
	assert.ElementsMatch(t, []int{3, 7, 11, 11}, parsed.ChangedLines("src/a.ts"))
	assert.Empty(t, parsed.ChangedLines("src/missing.ts"))
}
