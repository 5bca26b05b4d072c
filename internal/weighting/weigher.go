// Package weighting composes the multiplicative score boosts applied on
// top of pipeline scores: modified-line overlap, test-file retrieval,
// PR-description intent, and per-file-type strategy priorities. It also
// discovers the test files covering modified sources.
package weighting

import (
	"log/slog"

	"github.com/ebernie/kode-context/internal/core"
	"github.com/ebernie/kode-context/internal/diff"
	"github.com/ebernie/kode-context/internal/strategy"
)

// Boosts holds the configured multipliers.
type Boosts struct {
	ModifiedOverlap  float64
	TestFile         float64
	DescriptionMatch float64
}

// DefaultBoosts returns the standard multipliers.
func DefaultBoosts() Boosts {
	return Boosts{
		ModifiedOverlap:  2.0,
		TestFile:         1.5,
		DescriptionMatch: 1.3,
	}
}

// Weigher applies boost composition to pipeline results.
type Weigher struct {
	boosts     Boosts
	strategies *strategy.Registry
	logger     *slog.Logger
}

// NewWeigher creates a weigher. A nil registry disables strategy boosts.
func NewWeigher(boosts Boosts, strategies *strategy.Registry, logger *slog.Logger) *Weigher {
	if boosts == (Boosts{}) {
		boosts = DefaultBoosts()
	}
	return &Weigher{boosts: boosts, strategies: strategies, logger: logger}
}

// Weigh converts pipeline results into weighted chunks and applies the
// boost passes. The pipeline's weighted score becomes the original score;
// every boost composes multiplicatively on top of it.
func (w *Weigher) Weigh(results []core.PipelineResult, parsed *core.ParsedDiff, desc *diff.Description) []core.WeightedChunk {
	chunks := make([]core.WeightedChunk, 0, len(results))
	for _, res := range results {
		wc := core.NewWeightedChunk(res.Chunk, res.WeightedScore)
		wc.Sources = res.Sources

		// Modified-line overlap is applied here, in its own pass, so
		// chunks that only keyword or vector search produced still
		// inherit the boost.
		if filename, lines, ok := modifiedOverlap(res.Chunk, parsed); ok {
			wc.IsModifiedContext = true
			w.logger.Debug("modified context boost",
				"chunk", res.Chunk.Key(), "diff_file", filename, "changed_lines", lines)
			wc.Boost(w.boosts.ModifiedOverlap)
		}

		if matchesDescriptionIntent(res, desc) {
			wc.MatchesDescriptionIntent = true
			wc.Boost(w.boosts.DescriptionMatch)
		}

		if w.strategies != nil {
			if m := w.strategies.PriorityMultiplier(res.Chunk.Filename, res.Chunk.Code); m != 1.0 {
				wc.Boost(m)
			}
		}

		chunks = append(chunks, wc)
	}
	return chunks
}

// TestFileBoost tags a discovered test chunk and applies its multiplier.
func (w *Weigher) TestFileBoost(chunk *core.WeightedChunk, relatedSourceFile string) {
	chunk.IsTestFile = true
	chunk.RelatedSourceFile = relatedSourceFile
	chunk.Boost(w.boosts.TestFile)
}

// modifiedOverlap reports whether the chunk's range intersects the
// changed lines of a diff file, and which file that was.
func modifiedOverlap(chunk core.CodeChunk, parsed *core.ParsedDiff) (string, int, bool) {
	if parsed == nil {
		return "", 0, false
	}
	for filename := range parsed.PerFile {
		if !core.PathsMatch(chunk.Filename, filename) {
			continue
		}
		hits := 0
		for _, line := range parsed.ChangedLines(filename) {
			if chunk.ContainsLine(line) {
				hits++
			}
		}
		if hits > 0 {
			return filename, hits, true
		}
	}
	return "", 0, false
}

// matchesDescriptionIntent reports whether a chunk aligns with the
// author's stated intent: either a description-sourced query returned it,
// or its symbols appear among the description's concepts.
func matchesDescriptionIntent(res core.PipelineResult, desc *diff.Description) bool {
	if res.FromDescriptionQuery {
		return true
	}
	if desc == nil {
		return false
	}
	for _, concept := range desc.Concepts {
		for _, sym := range res.Chunk.SymbolNames {
			if sym == concept {
				return true
			}
		}
	}
	for _, mentioned := range desc.MentionedFiles {
		if core.PathsMatch(res.Chunk.Filename, mentioned) {
			return true
		}
	}
	return false
}
