// Package engine orchestrates one review's context retrieval: parse the
// diff, mine queries and symbols, run the retrieval pipeline, compose
// weights, discover tests, diversify, and cross-reference impact — all
// against a single index service client. The engine never fails a review
// on remote errors; it returns whatever the successful stages produced.
package engine

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ebernie/kode-context/internal/config"
	"github.com/ebernie/kode-context/internal/core"
	"github.com/ebernie/kode-context/internal/diff"
	"github.com/ebernie/kode-context/internal/diversify"
	"github.com/ebernie/kode-context/internal/impact"
	"github.com/ebernie/kode-context/internal/index"
	"github.com/ebernie/kode-context/internal/pipeline"
	"github.com/ebernie/kode-context/internal/queue"
	"github.com/ebernie/kode-context/internal/strategy"
	"github.com/ebernie/kode-context/internal/weighting"
)

// charsPerToken is the rough LLM token estimation used for budget trims.
const charsPerToken = 4

// Request is one review's input.
type Request struct {
	DiffContent   string
	RepoURL       string
	Branch        string
	TopK          int
	MaxTokens     int
	PRDescription string
	Overrides     *core.StrategyOverrides
}

// Metrics reports what one review did, for debug logging by the caller.
type Metrics struct {
	Pipeline       pipeline.Metrics
	Diversity      diversify.Metrics
	QueryCount     int
	SymbolCount    int
	TestChunks     int
	TrimmedByTokens int
	AutoEnqueued   bool
	Duration       time.Duration
}

// Bundle is the ranked, annotated retrieval output for one review.
type Bundle struct {
	Chunks      []core.WeightedChunk
	Warnings    []core.ImpactWarning
	ImportTrees map[string]*index.ImportTree
	Metrics     Metrics
}

// Engine is the per-process retrieval engine. It is safe for concurrent
// reviews: all per-review state is local to BuildContext.
type Engine struct {
	cfg    *config.Config
	client index.Client
	queue  *queue.Queue
	worker *queue.Worker
	logger *slog.Logger
}

// New creates an engine. queue and worker may be nil to disable
// auto-enqueue.
func New(cfg *config.Config, client index.Client, q *queue.Queue, worker *queue.Worker, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		client: client,
		queue:  q,
		worker: worker,
		logger: logger,
	}
}

// BuildContext retrieves the context bundle for one review. A nil bundle
// with a nil error means the index service is unavailable and the caller
// should proceed without semantic context.
func (e *Engine) BuildContext(ctx context.Context, req Request) (*Bundle, error) {
	start := time.Now()

	if !e.client.Health(ctx) {
		e.logger.Warn("index service unavailable, proceeding without semantic context")
		return nil, nil
	}

	parsed := diff.Parse(req.DiffContent)
	bundle := &Bundle{ImportTrees: map[string]*index.ImportTree{}}
	if parsed.IsEmpty() {
		e.logger.Info("empty diff, returning empty context")
		bundle.Metrics.Duration = time.Since(start)
		return bundle, nil
	}

	queries := diff.ExtractQueries(req.DiffContent)
	symbols := diff.ExtractSymbols(req.DiffContent)
	desc := diff.ExtractDescription(req.PRDescription)

	bundle.Metrics.QueryCount = len(queries)
	bundle.Metrics.SymbolCount = len(symbols)

	modifiedFiles := parsed.ModifiedFiles()
	sort.Strings(modifiedFiles)

	registry := strategy.NewRegistry(req.Overrides)
	boosts := weighting.Boosts{
		ModifiedOverlap:  e.cfg.Weights.ModifiedOverlap,
		TestFile:         e.cfg.Weights.TestFile,
		DescriptionMatch: e.cfg.Weights.DescriptionMatch,
	}
	weigher := weighting.NewWeigher(boosts, registry, e.logger)

	var (
		weighted   []core.WeightedChunk
		testChunks []core.WeightedChunk
		report     *impact.Report
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out := pipeline.New(e.client, e.logger).Run(gctx, pipeline.Input{
			Queries:            queries,
			DescriptionQueries: desc.Queries,
			Symbols:            symbols,
			Parsed:             parsed,
			Config:             e.pipelineConfig(req),
		})
		bundle.Metrics.Pipeline = out.Metrics
		weighted = weigher.Weigh(out.Results, parsed, desc)

		discovery := weighting.NewTestDiscovery(e.client, weigher, e.logger)
		testChunks = discovery.Discover(gctx, modifiedFiles, req.RepoURL, req.Branch)
		return nil
	})
	g.Go(func() error {
		report = impact.New(e.client, e.logger).Analyze(gctx, modifiedFiles, req.RepoURL, req.Branch)
		return nil
	})
	_ = g.Wait() // both branches degrade internally instead of failing

	merged := mergeChunks(weighted, testChunks)
	bundle.Metrics.TestChunks = len(testChunks)

	merged, trimmed := trimToTokenBudget(merged, req.MaxTokens)
	bundle.Metrics.TrimmedByTokens = trimmed

	opts := diversify.Options{
		MaxResults:            req.TopK,
		MaxChunksPerFile:      e.cfg.Diversity.MaxChunksPerFile,
		DiversityFactor:       e.cfg.Diversity.DiversityFactor,
		MinResultsPerCategory: e.cfg.Diversity.MinResultsPerCategory,
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = e.cfg.Retrieval.MaxResults
	}
	diversified := diversify.New(e.logger).Diversify(merged, opts)
	bundle.Chunks = diversified.Chunks
	bundle.Metrics.Diversity = diversified.Metrics

	if report != nil {
		bundle.Warnings = report.Warnings
		bundle.ImportTrees = report.ImportTrees
	}

	bundle.Metrics.AutoEnqueued = e.maybeAutoEnqueue(req, len(modifiedFiles), modifiedFiles)
	bundle.Metrics.Duration = time.Since(start)

	e.logger.Info("context bundle built",
		"chunks", len(bundle.Chunks),
		"warnings", len(bundle.Warnings),
		"queries", bundle.Metrics.QueryCount,
		"symbols", bundle.Metrics.SymbolCount,
		"auto_enqueued", bundle.Metrics.AutoEnqueued,
		"duration", bundle.Metrics.Duration.Round(time.Millisecond),
	)
	return bundle, nil
}

func (e *Engine) pipelineConfig(req Request) core.PipelineConfig {
	return core.PipelineConfig{
		RepoURL:                   req.RepoURL,
		Branch:                    req.Branch,
		MaxResults:                e.cfg.Retrieval.MaxResults,
		EarlyTerminationEnabled:   e.cfg.Retrieval.EarlyTerminationEnabled,
		EarlyTerminationThreshold: e.cfg.Retrieval.EarlyTerminationThreshold,
		StageBudgets: core.StageBudgets{
			Keyword:    e.cfg.Retrieval.KeywordBudget,
			Vector:     e.cfg.Retrieval.VectorBudget,
			Structural: e.cfg.Retrieval.StructuralBudget,
			Rerank:     e.cfg.Retrieval.RerankBudget,
		},
	}
}

// mergeChunks combines pipeline and test-discovery chunks without key
// duplicates; pipeline chunks win ties because they carry richer source
// annotations.
func mergeChunks(weighted, testChunks []core.WeightedChunk) []core.WeightedChunk {
	merged := make([]core.WeightedChunk, 0, len(weighted)+len(testChunks))
	seen := make(map[string]struct{}, len(weighted))
	for _, c := range weighted {
		seen[c.Key()] = struct{}{}
		merged = append(merged, c)
	}
	for _, c := range testChunks {
		if _, dup := seen[c.Key()]; dup {
			continue
		}
		seen[c.Key()] = struct{}{}
		merged = append(merged, c)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].Key() < merged[j].Key()
	})
	return merged
}

// trimToTokenBudget drops the ranked tail once the estimated token total
// exceeds the caller's budget. A zero budget means unlimited.
func trimToTokenBudget(chunks []core.WeightedChunk, maxTokens int) ([]core.WeightedChunk, int) {
	if maxTokens <= 0 {
		return chunks, 0
	}
	budgetChars := maxTokens * charsPerToken
	used := 0
	for i, c := range chunks {
		used += len(c.Code)
		if used > budgetChars && i > 0 {
			return chunks[:i], len(chunks) - i
		}
	}
	return chunks, 0
}

// maybeAutoEnqueue applies the background indexing policy: a review
// touching more than the threshold enqueues one job per (repo, branch)
// unless one is already pending.
func (e *Engine) maybeAutoEnqueue(req Request, fileCount int, changedFiles []string) bool {
	if e.queue == nil || fileCount <= e.cfg.Queue.AutoQueueThreshold {
		return false
	}
	if e.queue.HasExistingPending(req.RepoURL, req.Branch) {
		e.logger.Debug("indexing job already pending", "repo", req.RepoURL, "branch", req.Branch)
		return false
	}

	priority := core.PriorityNormal
	if fileCount > e.cfg.Queue.LowPriorityAbove {
		priority = core.PriorityLow
	}
	job := e.queue.Enqueue(queue.JobRequest{
		RepoURL:      req.RepoURL,
		Branch:       req.Branch,
		ChangedFiles: changedFiles,
		FileCount:    fileCount,
		Priority:     priority,
	})
	if e.worker != nil {
		e.worker.Notify()
	}
	e.logger.Info("queued background indexing job",
		"job", job.ID, "repo", job.RepoURL, "branch", job.Branch,
		"files", fileCount, "priority", job.Priority,
	)
	return true
}
