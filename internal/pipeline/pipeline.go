// Package pipeline implements the four-stage budgeted retrieval pipeline:
// keyword search, vector search, structural lookups, and an in-process
// rerank. Stages run strictly in order; each has a soft time budget that
// is checked between remote calls, and any remote failure degrades to an
// empty result for that query.
package pipeline

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ebernie/kode-context/internal/core"
	"github.com/ebernie/kode-context/internal/diff"
	"github.com/ebernie/kode-context/internal/index"
)

// Stage names, used in metrics and skip reasons.
const (
	StageKeyword    = "keyword"
	StageVector     = "vector"
	StageStructural = "structural"
	StageRerank     = "rerank"
)

const (
	maxKeywordSymbols   = 5
	maxKeywordQueries   = 5
	maxVectorQueries    = 8
	maxVectorDescQueries = 4
	maxStructuralSymbols = 8

	keywordSearchLimit = 10
	hybridSearchLimit  = 10
	definitionLimit    = 10
	usageLimit         = 15
	callGraphDepth     = 2
	maxCallers         = 5
	maxCallees         = 5

	earlyTerminationMinResults = 5
	earlyTerminationTopN       = 3
	earlyTerminationExactCount = 5

	multiSourceBoostStep = 0.15
	overlapBoost         = 1.5
)

// Source weights applied on top of stage base scores.
const (
	keywordExactWeight  = 1.5
	keywordStrongWeight = 1.2
	definitionWeight    = 1.3
	usageWeight         = 1.1
	callGraphWeight     = 1.2

	definitionBaseScore = 0.8
	usageBaseScore      = 0.7
	callerBaseScore     = 0.75
	calleeBaseScore     = 0.7
)

// functionVerbs are the prefixes that make a PascalCase symbol
// function-like enough to justify a call-graph traversal.
var functionVerbs = []string{
	"Get", "Set", "Create", "Delete", "Update", "Handle", "Process",
	"Validate", "Parse", "Build", "Send", "Fetch",
}

var pascalCaseRegex = regexp.MustCompile(`^[A-Z][a-zA-Z0-9]*$`)

// Input is everything one pipeline run consumes.
type Input struct {
	Queries            []string
	DescriptionQueries []string
	Symbols            []string
	Parsed             *core.ParsedDiff
	Config             core.PipelineConfig
}

// StageMetrics describes one stage's execution.
type StageMetrics struct {
	Stage      string
	Duration   time.Duration
	Queries    int
	Results    int
	Skipped    bool
	SkipReason string
}

// Metrics aggregates per-stage accounting for one run.
type Metrics struct {
	Stages            []StageMetrics
	TotalResults      int
	EarlyTerminated   bool
	TerminationReason string
}

// Output is the ranked result list plus metrics.
type Output struct {
	Results []core.PipelineResult
	Metrics Metrics
}

// Pipeline runs the retrieval stages against an index client.
type Pipeline struct {
	client index.Client
	logger *slog.Logger
}

// New creates a retrieval pipeline.
func New(client index.Client, logger *slog.Logger) *Pipeline {
	return &Pipeline{client: client, logger: logger}
}

// DefaultBudgets returns the stage budgets used when the config leaves
// them zero.
func DefaultBudgets() core.StageBudgets {
	return core.StageBudgets{
		Keyword:    100 * time.Millisecond,
		Vector:     500 * time.Millisecond,
		Structural: 500 * time.Millisecond,
		Rerank:     100 * time.Millisecond,
	}
}

// resultSet accumulates pipeline results keyed by chunk identity.
// First occurrence of a key owns the record; later occurrences merge in.
type resultSet struct {
	byKey map[string]*core.PipelineResult
	order []string
}

func newResultSet() *resultSet {
	return &resultSet{byKey: make(map[string]*core.PipelineResult)}
}

func (rs *resultSet) add(res core.PipelineResult) {
	key := res.Chunk.Key()
	existing, ok := rs.byKey[key]
	if !ok {
		r := res
		rs.byKey[key] = &r
		rs.order = append(rs.order, key)
		return
	}
	existing.Sources = existing.Sources.Union(res.Sources)
	existing.IsExactMatch = existing.IsExactMatch || res.IsExactMatch
	existing.FromDescriptionQuery = existing.FromDescriptionQuery || res.FromDescriptionQuery
	if res.WeightedScore > existing.WeightedScore {
		existing.WeightedScore = res.WeightedScore
		existing.BaseScore = res.BaseScore
	}
	if existing.MatchedSymbol == "" {
		existing.MatchedSymbol = res.MatchedSymbol
	}
	if existing.Relationship == "" {
		existing.Relationship = res.Relationship
	}
}

func (rs *resultSet) len() int { return len(rs.order) }

func (rs *resultSet) exactCount() int {
	n := 0
	for _, key := range rs.order {
		if rs.byKey[key].IsExactMatch {
			n++
		}
	}
	return n
}

// topScores returns the n highest weighted scores currently held.
func (rs *resultSet) topScores(n int) []float64 {
	scores := make([]float64, 0, len(rs.order))
	for _, key := range rs.order {
		scores = append(scores, rs.byKey[key].WeightedScore)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))
	if len(scores) > n {
		scores = scores[:n]
	}
	return scores
}

// Run executes the stages in order and returns ranked results. It never
// returns an error: remote failures shrink the result set instead.
func (p *Pipeline) Run(ctx context.Context, in Input) *Output {
	cfg := in.Config
	budgets := cfg.StageBudgets
	if budgets == (core.StageBudgets{}) {
		budgets = DefaultBudgets()
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}
	if cfg.EarlyTerminationThreshold == 0 {
		cfg.EarlyTerminationThreshold = 0.9
	}

	rs := newResultSet()
	out := &Output{}

	out.Metrics.Stages = append(out.Metrics.Stages, p.keywordStage(ctx, in, cfg, budgets.Keyword, rs))
	reason := p.terminationReason(rs, cfg)

	if reason == "" {
		out.Metrics.Stages = append(out.Metrics.Stages, p.vectorStage(ctx, in, cfg, budgets.Vector, rs))
		reason = p.terminationReason(rs, cfg)
		if reason == "" {
			out.Metrics.Stages = append(out.Metrics.Stages, p.structuralStage(ctx, in, cfg, budgets.Structural, rs))
		} else {
			out.Metrics.Stages = append(out.Metrics.Stages, skippedStage(StageStructural, reason))
		}
	} else {
		out.Metrics.Stages = append(out.Metrics.Stages,
			skippedStage(StageVector, reason),
			skippedStage(StageStructural, reason))
	}

	if reason != "" {
		out.Metrics.EarlyTerminated = true
		out.Metrics.TerminationReason = reason
		p.logger.Info("retrieval terminated early", "reason", reason, "results", rs.len())
	}

	out.Metrics.Stages = append(out.Metrics.Stages, p.rerankStage(in, cfg, rs, out))
	out.Metrics.TotalResults = len(out.Results)
	return out
}

func skippedStage(stage, reason string) StageMetrics {
	return StageMetrics{Stage: stage, Skipped: true, SkipReason: reason}
}

// terminationReason evaluates the early-termination triggers at a stage
// boundary. It returns "" when retrieval should continue.
func (p *Pipeline) terminationReason(rs *resultSet, cfg core.PipelineConfig) string {
	if !cfg.EarlyTerminationEnabled {
		return ""
	}
	if rs.len() >= earlyTerminationMinResults {
		top := rs.topScores(earlyTerminationTopN)
		if len(top) == earlyTerminationTopN {
			allAbove := true
			for _, s := range top {
				if s <= cfg.EarlyTerminationThreshold {
					allAbove = false
					break
				}
			}
			if allAbove {
				return "Early termination: top results exceed score threshold"
			}
		}
	}
	if rs.exactCount() >= earlyTerminationExactCount {
		return "Early termination: sufficient exact matches"
	}
	return ""
}

// keywordStage searches up to five symbols and five identifier-like diff
// queries through BM25 keyword search.
func (p *Pipeline) keywordStage(ctx context.Context, in Input, cfg core.PipelineConfig, budget time.Duration, rs *resultSet) StageMetrics {
	start := time.Now()
	deadline := start.Add(budget)
	before := rs.len()

	inputs := keywordInputs(in.Symbols, in.Queries)
	issued := 0
	for _, query := range inputs {
		if time.Now().After(deadline) {
			p.logger.Debug("keyword stage budget elapsed", "issued", issued, "planned", len(inputs))
			break
		}
		issued++

		resp, err := p.client.KeywordSearch(ctx, query, cfg.RepoURL, cfg.Branch, keywordSearchLimit)
		if err != nil {
			p.logger.Debug("keyword search failed", "query", query, "error", err)
			continue
		}
		for _, m := range resp.Matches {
			normalized := m.BM25Score / 10
			if normalized > 1 {
				normalized = 1
			}
			exact := m.ExactMatchBoost > 0 || containsFold(m.SymbolNames, query)
			weight := 1.0
			switch {
			case exact:
				weight = keywordExactWeight
			case normalized > 0.5:
				weight = keywordStrongWeight
			}
			rs.add(core.PipelineResult{
				Chunk: core.CodeChunk{
					Filename:    m.FilePath,
					StartLine:   m.LineStart,
					EndLine:     m.LineEnd,
					Code:        m.Content,
					Score:       normalized,
					RepoURL:     m.RepoURL,
					Branch:      m.Branch,
					ChunkType:   m.ChunkType,
					SymbolNames: m.SymbolNames,
				},
				Sources:       core.SourceSet(0).Add(core.SourceKeyword),
				BaseScore:     normalized,
				WeightedScore: normalized * weight,
				IsExactMatch:  exact,
			})
		}
	}

	return StageMetrics{
		Stage:    StageKeyword,
		Duration: time.Since(start),
		Queries:  issued,
		Results:  rs.len() - before,
	}
}

// keywordInputs merges symbols and identifier-like queries without
// case-insensitive duplicates.
func keywordInputs(symbols, queries []string) []string {
	var inputs []string
	seen := make(map[string]struct{})
	add := func(q string) {
		key := strings.ToLower(q)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		inputs = append(inputs, q)
	}

	for i := 0; i < len(symbols) && i < maxKeywordSymbols; i++ {
		add(symbols[i])
	}
	taken := 0
	for _, q := range queries {
		if taken >= maxKeywordQueries {
			break
		}
		if !diff.IsIdentifierQuery(q) {
			continue
		}
		add(q)
		taken++
	}
	return inputs
}

// vectorStage runs hybrid search over up to eight diff queries and four
// description queries; the base score is the vector component.
func (p *Pipeline) vectorStage(ctx context.Context, in Input, cfg core.PipelineConfig, budget time.Duration, rs *resultSet) StageMetrics {
	start := time.Now()
	deadline := start.Add(budget)
	before := rs.len()

	type vectorQuery struct {
		text            string
		fromDescription bool
	}
	var queries []vectorQuery
	for i := 0; i < len(in.Queries) && i < maxVectorQueries; i++ {
		queries = append(queries, vectorQuery{text: in.Queries[i]})
	}
	for i := 0; i < len(in.DescriptionQueries) && i < maxVectorDescQueries; i++ {
		queries = append(queries, vectorQuery{text: in.DescriptionQueries[i], fromDescription: true})
	}

	issued := 0
	for _, q := range queries {
		if time.Now().After(deadline) {
			p.logger.Debug("vector stage budget elapsed", "issued", issued, "planned", len(queries))
			break
		}
		issued++

		resp, err := p.client.HybridSearch(ctx, q.text, cfg.RepoURL, cfg.Branch, hybridSearchLimit)
		if err != nil {
			p.logger.Debug("hybrid search failed", "query", q.text, "error", err)
			continue
		}
		for _, m := range resp.Matches {
			rs.add(core.PipelineResult{
				Chunk: core.CodeChunk{
					Filename:    m.FilePath,
					StartLine:   m.LineStart,
					EndLine:     m.LineEnd,
					Code:        m.Content,
					Score:       m.VectorScore,
					RepoURL:     m.RepoURL,
					Branch:      m.Branch,
					ChunkType:   m.ChunkType,
					SymbolNames: m.SymbolNames,
				},
				Sources:              core.SourceSet(0).Add(core.SourceVector),
				BaseScore:            m.VectorScore,
				WeightedScore:        m.VectorScore,
				FromDescriptionQuery: q.fromDescription,
			})
		}
	}

	return StageMetrics{
		Stage:    StageVector,
		Duration: time.Since(start),
		Queries:  issued,
		Results:  rs.len() - before,
	}
}

// structuralStage resolves up to eight symbols through definition, usage
// and call-graph lookups. Symbols iterate serially so the budget check
// sits between every remote call.
func (p *Pipeline) structuralStage(ctx context.Context, in Input, cfg core.PipelineConfig, budget time.Duration, rs *resultSet) StageMetrics {
	start := time.Now()
	deadline := start.Add(budget)
	before := rs.len()

	symbols := in.Symbols
	if len(symbols) > maxStructuralSymbols {
		symbols = symbols[:maxStructuralSymbols]
	}

	issued := 0
	for _, symbol := range symbols {
		if time.Now().After(deadline) {
			p.logger.Debug("structural stage budget elapsed", "issued", issued, "planned", len(symbols))
			break
		}
		issued++

		p.lookupDefinitions(ctx, symbol, cfg, rs)
		if time.Now().After(deadline) {
			continue
		}
		p.lookupUsages(ctx, symbol, cfg, rs)
		if time.Now().After(deadline) {
			continue
		}
		if IsFunctionLike(symbol) {
			p.traverseCallGraph(ctx, symbol, cfg, rs)
		}
	}

	return StageMetrics{
		Stage:    StageStructural,
		Duration: time.Since(start),
		Queries:  issued,
		Results:  rs.len() - before,
	}
}

func (p *Pipeline) lookupDefinitions(ctx context.Context, symbol string, cfg core.PipelineConfig, rs *resultSet) {
	resp, err := p.client.LookupDefinitions(ctx, symbol, cfg.RepoURL, cfg.Branch, true, definitionLimit)
	if err != nil {
		p.logger.Debug("definition lookup failed", "symbol", symbol, "error", err)
		return
	}
	for _, d := range resp.Definitions {
		if strings.TrimSpace(d.Content) == "" {
			continue
		}
		rs.add(core.PipelineResult{
			Chunk: core.CodeChunk{
				Filename:  d.FilePath,
				StartLine: d.LineStart,
				EndLine:   d.LineEnd,
				Code:      d.Content,
				Score:     definitionBaseScore,
				ChunkType: d.ChunkType,
			},
			Sources:       core.SourceSet(0).Add(core.SourceDefinition),
			BaseScore:     definitionBaseScore,
			WeightedScore: definitionBaseScore * definitionWeight,
			IsExactMatch:  true,
			MatchedSymbol: symbol,
		})
	}
}

func (p *Pipeline) lookupUsages(ctx context.Context, symbol string, cfg core.PipelineConfig, rs *resultSet) {
	resp, err := p.client.LookupUsages(ctx, symbol, cfg.RepoURL, cfg.Branch, usageLimit)
	if err != nil {
		p.logger.Debug("usage lookup failed", "symbol", symbol, "error", err)
		return
	}
	for _, u := range resp.Usages {
		if strings.TrimSpace(u.Content) == "" {
			continue
		}
		rs.add(core.PipelineResult{
			Chunk: core.CodeChunk{
				Filename:  u.FilePath,
				StartLine: u.LineStart,
				EndLine:   u.LineEnd,
				Code:      u.Content,
				Score:     usageBaseScore,
				ChunkType: u.ChunkType,
			},
			Sources:       core.SourceSet(0).Add(core.SourceUsage),
			BaseScore:     usageBaseScore,
			WeightedScore: usageBaseScore * usageWeight,
			MatchedSymbol: symbol,
		})
	}
}

func (p *Pipeline) traverseCallGraph(ctx context.Context, symbol string, cfg core.PipelineConfig, rs *resultSet) {
	graph, err := p.client.GetCallGraph(ctx, symbol, cfg.RepoURL, cfg.Branch, index.DirectionBoth, callGraphDepth)
	if err != nil {
		p.logger.Debug("call graph lookup failed", "symbol", symbol, "error", err)
		return
	}

	addSites := func(sites []index.CallSite, limit int, base float64, rel core.Relationship) {
		taken := 0
		for _, site := range sites {
			if taken >= limit {
				break
			}
			if strings.TrimSpace(site.Content) == "" {
				continue
			}
			taken++
			rs.add(core.PipelineResult{
				Chunk: core.CodeChunk{
					Filename:  site.FilePath,
					StartLine: site.LineStart,
					EndLine:   site.LineEnd,
					Code:      site.Content,
					Score:     base,
				},
				Sources:       core.SourceSet(0).Add(core.SourceCallGraph),
				BaseScore:     base,
				WeightedScore: base * callGraphWeight,
				MatchedSymbol: symbol,
				Relationship:  rel,
			})
		}
	}
	addSites(graph.Callers, maxCallers, callerBaseScore, core.RelationshipCaller)
	addSites(graph.Callees, maxCallees, calleeBaseScore, core.RelationshipCallee)
}

// IsFunctionLike reports whether a symbol justifies a call-graph
// traversal. Bare PascalCase nouns are type names, not call targets,
// unless they start with a recognized verb.
func IsFunctionLike(symbol string) bool {
	if symbol == "" {
		return false
	}
	if strings.ToUpper(symbol) == symbol && strings.Contains(symbol, "_") {
		return false // CONSTANT_CASE
	}
	if !pascalCaseRegex.MatchString(symbol) {
		return true
	}
	for _, verb := range functionVerbs {
		if strings.HasPrefix(symbol, verb) {
			return true
		}
	}
	return false
}

// rerankStage runs in-process: multi-source boosts, modified-line overlap
// boosts, a deterministic sort, and truncation to maxResults.
func (p *Pipeline) rerankStage(in Input, cfg core.PipelineConfig, rs *resultSet, out *Output) StageMetrics {
	start := time.Now()

	results := make([]core.PipelineResult, 0, rs.len())
	for _, key := range rs.order {
		res := *rs.byKey[key]

		if n := res.Sources.Count(); n > 1 {
			res.WeightedScore *= 1 + multiSourceBoostStep*float64(n-1)
		}
		if overlapsModifiedLines(res.Chunk, in.Parsed) {
			res.WeightedScore *= overlapBoost
		}
		results = append(results, res)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].WeightedScore != results[j].WeightedScore {
			return results[i].WeightedScore > results[j].WeightedScore
		}
		return results[i].Chunk.Key() < results[j].Chunk.Key()
	})
	if len(results) > cfg.MaxResults {
		results = results[:cfg.MaxResults]
	}
	out.Results = results

	return StageMetrics{
		Stage:    StageRerank,
		Duration: time.Since(start),
		Results:  len(results),
	}
}

// overlapsModifiedLines reports whether the chunk's line range intersects
// any changed line of its file. Filenames tolerate relative/absolute
// mismatches via suffix matching.
func overlapsModifiedLines(chunk core.CodeChunk, parsed *core.ParsedDiff) bool {
	if parsed == nil {
		return false
	}
	for filename, fc := range parsed.PerFile {
		if !core.PathsMatch(chunk.Filename, filename) {
			continue
		}
		for _, lines := range [][]int{fc.Adds, fc.Dels, fc.Mods} {
			for _, line := range lines {
				if chunk.ContainsLine(line) {
					return true
				}
			}
		}
	}
	return false
}

func containsFold(names []string, target string) bool {
	for _, n := range names {
		if strings.EqualFold(n, target) {
			return true
		}
	}
	return false
}
