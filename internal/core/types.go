// Package core defines the essential data structures shared across the
// retrieval engine: diff changes, code chunks, pipeline results, impact
// warnings, and background indexing jobs. These types are plain values;
// behavior lives in the packages that consume them.
package core

import (
	"fmt"
	"time"
)

// ChangeKind classifies a single changed line in a unified diff.
type ChangeKind string

const (
	ChangeAdd ChangeKind = "add"
	ChangeDel ChangeKind = "del"
	ChangeMod ChangeKind = "mod"
)

// DiffChange is one changed line. Line numbers are 1-indexed; add and mod
// changes refer to the new file, del changes to the old file.
type DiffChange struct {
	Filename string
	Line     int
	Content  string
	Kind     ChangeKind
}

// FileChanges aggregates the changed line numbers of a single file.
type FileChanges struct {
	Adds []int
	Dels []int
	Mods []int
}

// ParsedDiff is the result of parsing one unified diff. It is created once
// per review and never mutated afterwards.
type ParsedDiff struct {
	Changes []DiffChange
	PerFile map[string]*FileChanges
}

// IsEmpty reports whether the diff contained no changed lines.
func (p *ParsedDiff) IsEmpty() bool {
	return p == nil || len(p.Changes) == 0
}

// ModifiedFiles returns the distinct files touched by the diff.
func (p *ParsedDiff) ModifiedFiles() []string {
	if p == nil {
		return nil
	}
	files := make([]string, 0, len(p.PerFile))
	for f := range p.PerFile {
		files = append(files, f)
	}
	return files
}

// ChangedLines returns every changed line number recorded for a file,
// adds, dels and mods combined. The filename is matched exactly.
func (p *ParsedDiff) ChangedLines(filename string) []int {
	fc, ok := p.PerFile[filename]
	if !ok {
		return nil
	}
	lines := make([]int, 0, len(fc.Adds)+len(fc.Dels)+len(fc.Mods))
	lines = append(lines, fc.Adds...)
	lines = append(lines, fc.Dels...)
	lines = append(lines, fc.Mods...)
	return lines
}

// CodeChunk is a contiguous code region returned by the index service.
type CodeChunk struct {
	Filename    string
	StartLine   int
	EndLine     int
	Code        string
	Score       float64
	RepoURL     string
	Branch      string
	ChunkType   string
	SymbolNames []string
}

// Key returns the chunk's uniqueness key. Two chunks with the same key
// describe the same code region and must be merged, never duplicated.
func (c CodeChunk) Key() string {
	return fmt.Sprintf("%s:%d:%d", c.Filename, c.StartLine, c.EndLine)
}

// ContainsLine reports whether line falls inside the chunk's range,
// boundaries included.
func (c CodeChunk) ContainsLine(line int) bool {
	return line >= c.StartLine && line <= c.EndLine
}

// WeightedChunk is a CodeChunk annotated with the multiplier composition
// applied on top of the pipeline score. The invariant
// Score == OriginalScore * WeightMultiplier holds at all times; use Boost
// to apply further multipliers.
type WeightedChunk struct {
	CodeChunk

	OriginalScore            float64
	WeightMultiplier         float64
	IsModifiedContext        bool
	IsTestFile               bool
	RelatedSourceFile        string
	MatchesDescriptionIntent bool

	// Sources records which retrieval stages produced the chunk. Carried
	// through so downstream selection can recognize definition-sourced
	// chunks without re-querying.
	Sources SourceSet
}

// NewWeightedChunk wraps a chunk with a neutral multiplier.
func NewWeightedChunk(chunk CodeChunk, score float64) WeightedChunk {
	w := WeightedChunk{
		CodeChunk:        chunk,
		OriginalScore:    score,
		WeightMultiplier: 1.0,
	}
	w.Score = score
	return w
}

// Boost applies a multiplicative weight and keeps the score invariant.
func (w *WeightedChunk) Boost(multiplier float64) {
	w.WeightMultiplier *= multiplier
	w.Score = w.OriginalScore * w.WeightMultiplier
}

// Relationship tags a call-graph result relative to a changed symbol.
type Relationship string

const (
	RelationshipCaller Relationship = "caller"
	RelationshipCallee Relationship = "callee"
)

// PipelineResult is one retrieval pipeline entry for a unique chunk key.
type PipelineResult struct {
	Chunk         CodeChunk
	Sources       SourceSet
	BaseScore     float64
	WeightedScore float64
	IsExactMatch  bool
	MatchedSymbol string
	Relationship  Relationship

	// FromDescriptionQuery is set when any query that produced this chunk
	// came from the PR description rather than the diff.
	FromDescriptionQuery bool
}

// WarningKind classifies an impact warning.
type WarningKind string

const (
	WarningHubFile          WarningKind = "hub_file"
	WarningCircularDep      WarningKind = "circular_dependency"
	WarningHighImpactChange WarningKind = "high_impact_change"
)

// Severity orders impact warnings; critical sorts first.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

// Rank returns the sort rank of the severity, lower is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	default:
		return 2
	}
}

// WarningDetails carries the structured evidence behind a warning.
type WarningDetails struct {
	ImportCount   int
	AffectedFiles []string
	Cycle         []string
}

// ImpactWarning flags a modified file with architectural blast radius.
type ImpactWarning struct {
	Kind     WarningKind
	Severity Severity
	FilePath string
	Message  string
	Details  WarningDetails
}

// JobPriority orders background indexing jobs; high drains first.
type JobPriority string

const (
	PriorityHigh   JobPriority = "high"
	PriorityNormal JobPriority = "normal"
	PriorityLow    JobPriority = "low"
)

// Rank returns the queue ordering rank, lower drains first.
func (p JobPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityNormal:
		return 1
	default:
		return 2
	}
}

// JobStatus tracks the lifecycle of an indexing job. Completed and failed
// are terminal; a job never leaves a terminal state.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IndexingJob is a queued request to refresh the upstream index for a
// repository. Jobs are owned by the long-lived queue; snapshots handed to
// callers are copies.
type IndexingJob struct {
	ID           string
	RepoURL      string
	RepoPath     string
	Branch       string
	ChangedFiles []string
	FileCount    int
	Priority     JobPriority
	Status       JobStatus
	CreatedAt    time.Time
	StartedAt    time.Time
	CompletedAt  time.Time
	Result       string
	Error        string
}

// StageBudgets holds the soft per-stage time budgets of the pipeline.
type StageBudgets struct {
	Keyword    time.Duration
	Vector     time.Duration
	Structural time.Duration
	Rerank     time.Duration
}

// PipelineConfig parameterizes one pipeline run. All scalars are
// non-negative.
type PipelineConfig struct {
	RepoURL                   string
	Branch                    string
	MaxResults                int
	EarlyTerminationEnabled   bool
	EarlyTerminationThreshold float64
	StageBudgets              StageBudgets
}

// StrategyOverrides adjusts file-type strategies per repository. Loaded
// from a .kode-context.yml file or passed by the review caller.
type StrategyOverrides struct {
	PriorityWeights    map[string]float64 `yaml:"priority_weights"`
	DisabledStrategies []string           `yaml:"disabled_strategies"`
	ExtensionMappings  map[string]string  `yaml:"extension_mappings"`
}
