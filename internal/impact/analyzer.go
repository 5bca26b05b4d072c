// Package impact cross-references modified files against the dependency
// graph: import trees, hub files, and circular dependencies. All remote
// calls run in parallel under hard timeouts; any failure degrades to an
// empty result, never an error.
package impact

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ebernie/kode-context/internal/core"
	"github.com/ebernie/kode-context/internal/index"
)

const (
	maxImportTreeFiles = 10
	maxAffectedFiles   = 10
	hubFileThreshold   = 10
	hubFileLimit       = 20

	importerWarnMin     = 5
	importerHighMin     = 10
	hubCriticalMin      = 20
	hubHighMin          = 10
	directCycleFileCount = 2

	callTimeout = 5 * time.Second
)

// Report is the complete impact analysis output. Warnings may be empty;
// the shape is always fully populated.
type Report struct {
	Warnings    []core.ImpactWarning
	ImportTrees map[string]*index.ImportTree
}

// Analyzer runs impact analysis against the index service.
type Analyzer struct {
	client  index.Client
	logger  *slog.Logger
	timeout time.Duration
}

// New creates an impact analyzer.
func New(client index.Client, logger *slog.Logger) *Analyzer {
	return &Analyzer{client: client, logger: logger, timeout: callTimeout}
}

// Analyze issues the three call families in parallel and derives
// severity-tagged warnings, sorted critical-first.
func (a *Analyzer) Analyze(ctx context.Context, modifiedFiles []string, repoURL, branch string) *Report {
	report := &Report{ImportTrees: make(map[string]*index.ImportTree)}

	normalized := make([]string, 0, len(modifiedFiles))
	for _, f := range modifiedFiles {
		normalized = append(normalized, core.NormalizePath(f))
	}

	treeFiles := normalized
	if len(treeFiles) > maxImportTreeFiles {
		treeFiles = treeFiles[:maxImportTreeFiles]
	}

	trees := make([]*index.ImportTree, len(treeFiles))
	var hubs *index.HubFilesResult
	var cycles *index.CircularDependenciesResult

	g, gctx := errgroup.WithContext(ctx)
	for i, file := range treeFiles {
		g.Go(func() error {
			trees[i] = a.importTreeWithTimeout(gctx, file, repoURL, branch)
			return nil
		})
	}
	g.Go(func() error {
		hubs = a.hubFilesWithTimeout(gctx, repoURL, branch)
		return nil
	})
	g.Go(func() error {
		cycles = a.circularDepsWithTimeout(gctx, repoURL, branch)
		return nil
	})
	_ = g.Wait() // goroutines only report through their captures

	for i, tree := range trees {
		if tree == nil {
			continue
		}
		report.ImportTrees[treeFiles[i]] = tree
		if w, ok := importTreeWarning(tree, treeFiles[i]); ok {
			report.Warnings = append(report.Warnings, w)
		}
	}
	report.Warnings = append(report.Warnings, hubFileWarnings(hubs, normalized)...)
	report.Warnings = append(report.Warnings, cycleWarnings(cycles, normalized)...)

	sort.SliceStable(report.Warnings, func(i, j int) bool {
		return report.Warnings[i].Severity.Rank() < report.Warnings[j].Severity.Rank()
	})

	a.logger.Debug("impact analysis complete",
		"files", len(normalized),
		"warnings", len(report.Warnings),
		"trees", len(report.ImportTrees),
	)
	return report
}

// importTreeWithTimeout races the lookup against the hard timeout; both
// failure and timeout resolve to nil.
func (a *Analyzer) importTreeWithTimeout(ctx context.Context, file, repoURL, branch string) *index.ImportTree {
	return raceWithFallback(ctx, a.timeout, a.logger, "import tree", func(ctx context.Context) (*index.ImportTree, error) {
		return a.client.GetImportTree(ctx, file, repoURL, branch)
	})
}

func (a *Analyzer) hubFilesWithTimeout(ctx context.Context, repoURL, branch string) *index.HubFilesResult {
	return raceWithFallback(ctx, a.timeout, a.logger, "hub files", func(ctx context.Context) (*index.HubFilesResult, error) {
		return a.client.GetHubFiles(ctx, repoURL, branch, hubFileThreshold, hubFileLimit)
	})
}

func (a *Analyzer) circularDepsWithTimeout(ctx context.Context, repoURL, branch string) *index.CircularDependenciesResult {
	return raceWithFallback(ctx, a.timeout, a.logger, "circular dependencies", func(ctx context.Context) (*index.CircularDependenciesResult, error) {
		return a.client.GetCircularDependencies(ctx, repoURL, branch)
	})
}

// raceWithFallback runs one remote call with a hard timeout. The call is
// not cancelled forcibly beyond context cancellation; a late result is
// simply dropped.
func raceWithFallback[T any](ctx context.Context, timeout time.Duration, logger *slog.Logger, op string, call func(context.Context) (*T, error)) *T {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value *T
		err   error
	}
	resultCh := make(chan result, 1)

	go func() {
		value, err := call(ctx)
		select {
		case resultCh <- result{value, err}:
		case <-ctx.Done():
		}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			logger.Debug("impact call failed", "op", op, "error", res.err)
			return nil
		}
		return res.value
	case <-ctx.Done():
		logger.Debug("impact call timed out", "op", op)
		return nil
	}
}

// importTreeWarning flags files with enough direct importers to make the
// change high-impact.
func importTreeWarning(tree *index.ImportTree, file string) (core.ImpactWarning, bool) {
	importers := tree.DirectImporters
	if len(importers) < importerWarnMin {
		return core.ImpactWarning{}, false
	}

	severity := core.SeverityMedium
	if len(importers) >= importerHighMin {
		severity = core.SeverityHigh
	}
	affected := importers
	if len(affected) > maxAffectedFiles {
		affected = affected[:maxAffectedFiles]
	}
	normalizedAffected := make([]string, len(affected))
	for i, f := range affected {
		normalizedAffected[i] = core.NormalizePath(f)
	}

	return core.ImpactWarning{
		Kind:     core.WarningHighImpactChange,
		Severity: severity,
		FilePath: file,
		Message:  fmt.Sprintf("%s is imported by %d files; changes ripple widely", file, len(importers)),
		Details: core.WarningDetails{
			ImportCount:   len(importers),
			AffectedFiles: normalizedAffected,
		},
	}, true
}

// hubFileWarnings flags modified files that the index marks as hubs.
func hubFileWarnings(hubs *index.HubFilesResult, modifiedFiles []string) []core.ImpactWarning {
	if hubs == nil {
		return nil
	}
	var warnings []core.ImpactWarning
	for _, hub := range hubs.HubFiles {
		hubPath := core.NormalizePath(hub.FilePath)
		if !core.MatchesAny(hubPath, modifiedFiles) {
			continue
		}

		severity := core.SeverityMedium
		switch {
		case hub.ImportCount >= hubCriticalMin:
			severity = core.SeverityCritical
		case hub.ImportCount >= hubHighMin:
			severity = core.SeverityHigh
		}

		warnings = append(warnings, core.ImpactWarning{
			Kind:     core.WarningHubFile,
			Severity: severity,
			FilePath: hubPath,
			Message:  fmt.Sprintf("%s is a hub file with %d importers; review downstream effects", hubPath, hub.ImportCount),
			Details: core.WarningDetails{
				ImportCount:   hub.ImportCount,
				AffectedFiles: hub.Importers,
			},
		})
	}
	return warnings
}

// cycleWarnings flags cycles containing a modified file, one warning per
// file path.
func cycleWarnings(cycles *index.CircularDependenciesResult, modifiedFiles []string) []core.ImpactWarning {
	if cycles == nil {
		return nil
	}
	var warnings []core.ImpactWarning
	seen := make(map[string]struct{})
	for _, dep := range cycles.CircularDependencies {
		for _, member := range dep.Cycle {
			memberPath := core.NormalizePath(member)
			if !core.MatchesAny(memberPath, modifiedFiles) {
				continue
			}
			if _, dup := seen[memberPath]; dup {
				continue
			}
			seen[memberPath] = struct{}{}

			severity := core.SeverityMedium
			if isDirectCycle(dep.Cycle) {
				severity = core.SeverityHigh
			}
			warnings = append(warnings, core.ImpactWarning{
				Kind:     core.WarningCircularDep,
				Severity: severity,
				FilePath: memberPath,
				Message:  fmt.Sprintf("%s participates in a circular dependency of %d files", memberPath, uniqueCycleFiles(dep.Cycle)),
				Details: core.WarningDetails{
					Cycle: dep.Cycle,
				},
			})
		}
	}
	return warnings
}

func uniqueCycleFiles(cycle []string) int {
	set := make(map[string]struct{})
	for _, f := range cycle {
		set[core.NormalizePath(f)] = struct{}{}
	}
	return len(set)
}

func isDirectCycle(cycle []string) bool {
	return uniqueCycleFiles(cycle) == directCycleFileCount
}
