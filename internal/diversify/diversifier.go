// Package diversify selects a relevance/variety balanced subset of
// weighted chunks: a per-file cap, maximal marginal relevance over a
// token/path/line-range similarity, and per-category minimum quotas.
package diversify

import (
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/ebernie/kode-context/internal/core"
	"github.com/ebernie/kode-context/internal/weighting"
)

// Category buckets a chunk for quota accounting. Priority order:
// modified > test > type_definition > similar.
type Category string

const (
	CategoryModified       Category = "modified"
	CategoryTest           Category = "test"
	CategoryTypeDefinition Category = "type_definition"
	CategorySimilar        Category = "similar"
)

// Options parameterizes one diversification pass.
type Options struct {
	MaxResults            int
	MaxChunksPerFile      int
	DiversityFactor       float64
	MinResultsPerCategory int
}

// DefaultOptions returns the standard settings for maxResults.
func DefaultOptions(maxResults int) Options {
	return Options{
		MaxResults:            maxResults,
		MaxChunksPerFile:      3,
		DiversityFactor:       0.3,
		MinResultsPerCategory: 2,
	}
}

// Metrics reports what the pass kept and dropped.
type Metrics struct {
	InputCount            int
	OutputCount           int
	RemovedByFileLimit    int
	RemovedByMMR          int
	CategoryCounts        map[Category]int
	DistinctFiles         int
	MeanConsecutiveSimilarity float64
}

// Result is the selected subset plus diagnostics.
type Result struct {
	Chunks  []core.WeightedChunk
	Metrics Metrics
}

var tokenRegex = regexp.MustCompile(`[A-Za-z_]\w{2,}`)

// Diversifier applies the selection pass.
type Diversifier struct {
	logger *slog.Logger
}

// New creates a diversifier.
func New(logger *slog.Logger) *Diversifier {
	return &Diversifier{logger: logger}
}

// Diversify balances relevance and variety over a ranked chunk list.
func (d *Diversifier) Diversify(chunks []core.WeightedChunk, opts Options) *Result {
	if opts.MaxResults <= 0 {
		opts.MaxResults = len(chunks)
	}
	if opts.MaxChunksPerFile <= 0 {
		opts.MaxChunksPerFile = 3
	}
	if opts.MinResultsPerCategory < 0 {
		opts.MinResultsPerCategory = 0
	}

	metrics := Metrics{
		InputCount:     len(chunks),
		CategoryCounts: make(map[Category]int),
	}

	capped := applyFileCap(chunks, opts.MaxChunksPerFile)
	metrics.RemovedByFileLimit = len(chunks) - len(capped)

	selected, leftovers := mmrSelect(capped, opts)
	metrics.RemovedByMMR = len(leftovers)

	selected = fillCategoryQuotas(selected, leftovers, opts)

	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].Score != selected[j].Score {
			return selected[i].Score > selected[j].Score
		}
		return selected[i].Key() < selected[j].Key()
	})

	files := make(map[string]struct{})
	for _, c := range selected {
		metrics.CategoryCounts[Categorize(c)]++
		files[core.NormalizePath(c.Filename)] = struct{}{}
	}
	metrics.DistinctFiles = len(files)
	metrics.OutputCount = len(selected)
	metrics.MeanConsecutiveSimilarity = meanConsecutiveSimilarity(selected)

	d.logger.Debug("diversification complete",
		"input", metrics.InputCount,
		"output", metrics.OutputCount,
		"removed_by_file_limit", metrics.RemovedByFileLimit,
		"removed_by_mmr", metrics.RemovedByMMR,
		"distinct_files", metrics.DistinctFiles,
	)

	return &Result{Chunks: selected, Metrics: metrics}
}

// Categorize buckets one chunk. A chunk qualifying for several buckets
// takes the highest-priority one.
func Categorize(c core.WeightedChunk) Category {
	if c.IsModifiedContext {
		return CategoryModified
	}
	if c.IsTestFile || weighting.IsTestFile(c.Filename) {
		return CategoryTest
	}
	if isTypeDefinition(c) {
		return CategoryTypeDefinition
	}
	return CategorySimilar
}

var typeMarkers = []string{"interface ", "type ", "class ", "struct ", "enum ", "typedef "}

func isTypeDefinition(c core.WeightedChunk) bool {
	if c.Sources.Has(core.SourceDefinition) {
		return true
	}
	for _, marker := range typeMarkers {
		if strings.Contains(c.Code, marker) {
			return true
		}
	}
	return false
}

// applyFileCap keeps the top maxPerFile chunks of each file by score,
// preserving the overall ranking otherwise.
func applyFileCap(chunks []core.WeightedChunk, maxPerFile int) []core.WeightedChunk {
	ranked := make([]core.WeightedChunk, len(chunks))
	copy(ranked, chunks)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	kept := make(map[string]struct{})
	perFile := make(map[string]int)
	for _, c := range ranked {
		file := core.NormalizePath(c.Filename)
		if perFile[file] >= maxPerFile {
			continue
		}
		perFile[file]++
		kept[c.Key()] = struct{}{}
	}

	out := make([]core.WeightedChunk, 0, len(kept))
	for _, c := range chunks {
		if _, ok := kept[c.Key()]; ok {
			out = append(out, c)
		}
	}
	return out
}

// mmrSelect picks up to MaxResults chunks by maximal marginal relevance:
// each step takes the candidate maximizing
// lambda*relevance - (1-lambda)*maxSimilarity(candidate, selected).
func mmrSelect(chunks []core.WeightedChunk, opts Options) (selected, leftovers []core.WeightedChunk) {
	if len(chunks) == 0 {
		return nil, nil
	}
	lambda := 1 - opts.DiversityFactor

	remaining := make([]core.WeightedChunk, len(chunks))
	copy(remaining, chunks)

	// Seed with the highest-scoring chunk.
	seedIdx := 0
	for i, c := range remaining {
		if c.Score > remaining[seedIdx].Score {
			seedIdx = i
		}
	}
	selected = append(selected, remaining[seedIdx])
	remaining = append(remaining[:seedIdx], remaining[seedIdx+1:]...)

	for len(selected) < opts.MaxResults && len(remaining) > 0 {
		bestIdx := -1
		bestValue := 0.0
		for i, cand := range remaining {
			maxSim := 0.0
			for _, sel := range selected {
				if sim := Similarity(cand, sel); sim > maxSim {
					maxSim = sim
				}
			}
			value := lambda*cand.Score - (1-lambda)*maxSim
			if bestIdx == -1 || value > bestValue {
				bestIdx = i
				bestValue = value
			}
		}
		// Every remaining candidate is more redundant than relevant;
		// stop and leave the room to the category quota pass.
		if bestValue < 0 {
			break
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected, remaining
}

// fillCategoryQuotas pulls the highest-scoring leftovers of any category
// below the minimum, while room remains.
func fillCategoryQuotas(selected, leftovers []core.WeightedChunk, opts Options) []core.WeightedChunk {
	if opts.MinResultsPerCategory == 0 || len(selected) >= opts.MaxResults {
		return selected
	}

	counts := make(map[Category]int)
	for _, c := range selected {
		counts[Categorize(c)]++
	}

	pool := make([]core.WeightedChunk, len(leftovers))
	copy(pool, leftovers)
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Score > pool[j].Score })

	for _, cat := range []Category{CategoryModified, CategoryTest, CategoryTypeDefinition, CategorySimilar} {
		for counts[cat] < opts.MinResultsPerCategory && len(selected) < opts.MaxResults {
			idx := -1
			for i, c := range pool {
				if Categorize(c) == cat {
					idx = i
					break
				}
			}
			if idx == -1 {
				break
			}
			selected = append(selected, pool[idx])
			pool = append(pool[:idx], pool[idx+1:]...)
			counts[cat]++
		}
	}
	return selected
}

// Similarity combines token overlap (0.4), path proximity (0.4), and
// line-range overlap for same-file chunks (0.2) into [0, 1].
func Similarity(a, b core.WeightedChunk) float64 {
	return 0.4*tokenJaccard(a.Code, b.Code) +
		0.4*pathSimilarity(a.Filename, b.Filename) +
		0.2*lineOverlapRatio(a, b)
}

func tokenJaccard(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	intersection := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(code string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenRegex.FindAllString(code, -1) {
		set[strings.ToLower(tok)] = struct{}{}
	}
	return set
}

func pathSimilarity(a, b string) float64 {
	a = core.NormalizePath(a)
	b = core.NormalizePath(b)
	if a == b {
		return 1.0
	}
	if path.Dir(a) == path.Dir(b) {
		return 0.7
	}

	partsA := strings.Split(path.Dir(a), "/")
	partsB := strings.Split(path.Dir(b), "/")
	maxDepth := len(partsA)
	if len(partsB) > maxDepth {
		maxDepth = len(partsB)
	}
	if maxDepth == 0 {
		return 0.3
	}
	common := 0
	for i := 0; i < len(partsA) && i < len(partsB); i++ {
		if partsA[i] != partsB[i] {
			break
		}
		common++
	}
	return 0.3 + 0.3*float64(common)/float64(maxDepth)
}

func lineOverlapRatio(a, b core.WeightedChunk) float64 {
	if !core.PathsMatch(a.Filename, b.Filename) {
		return 0
	}
	start := a.StartLine
	if b.StartLine > start {
		start = b.StartLine
	}
	end := a.EndLine
	if b.EndLine < end {
		end = b.EndLine
	}
	if end < start {
		return 0
	}
	overlap := end - start + 1
	lenA := a.EndLine - a.StartLine + 1
	lenB := b.EndLine - b.StartLine + 1
	shorter := lenA
	if lenB < shorter {
		shorter = lenB
	}
	if shorter <= 0 {
		return 0
	}
	return float64(overlap) / float64(shorter)
}

func meanConsecutiveSimilarity(chunks []core.WeightedChunk) float64 {
	if len(chunks) < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < len(chunks); i++ {
		total += Similarity(chunks[i-1], chunks[i])
	}
	return total / float64(len(chunks)-1)
}
