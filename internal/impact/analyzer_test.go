package impact

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebernie/kode-context/internal/core"
	"github.com/ebernie/kode-context/internal/index"
	"github.com/ebernie/kode-context/internal/index/indextest"
	"github.com/ebernie/kode-context/internal/logger"
)

func TestAnalyze_HubFileWarning(t *testing.T) {
	fake := indextest.New()
	fake.HubFiles = &index.HubFilesResult{
		HubFiles: []index.HubFile{
			{FilePath: "src/core/index.ts", ImportCount: 25, Importers: []string{"a.ts", "b.ts"}},
			{FilePath: "src/unrelated.ts", ImportCount: 40},
		},
	}

	report := New(fake, logger.Discard()).Analyze(context.Background(), []string{"src/core/index.ts"}, "repo", "")

	require.Len(t, report.Warnings, 1)
	w := report.Warnings[0]
	assert.Equal(t, core.WarningHubFile, w.Kind)
	assert.Equal(t, core.SeverityCritical, w.Severity)
	assert.Equal(t, "src/core/index.ts", w.FilePath)
	assert.Equal(t, 25, w.Details.ImportCount)
}

func TestAnalyze_HubSeverityTiers(t *testing.T) {
	tests := []struct {
		importCount int
		want        core.Severity
	}{
		{25, core.SeverityCritical},
		{20, core.SeverityCritical},
		{15, core.SeverityHigh},
		{10, core.SeverityHigh},
		{7, core.SeverityMedium},
	}
	for _, tt := range tests {
		fake := indextest.New()
		fake.HubFiles = &index.HubFilesResult{
			HubFiles: []index.HubFile{{FilePath: "src/a.ts", ImportCount: tt.importCount}},
		}
		report := New(fake, logger.Discard()).Analyze(context.Background(), []string{"src/a.ts"}, "repo", "")
		require.Len(t, report.Warnings, 1)
		assert.Equal(t, tt.want, report.Warnings[0].Severity, "importCount=%d", tt.importCount)
	}
}

func TestAnalyze_ImportTreeWarning(t *testing.T) {
	importers := []string{"a.ts", "b.ts", "c.ts", "d.ts", "e.ts", "f.ts", "g.ts", "h.ts", "i.ts", "j.ts", "k.ts", "l.ts"}
	fake := indextest.New()
	fake.ImportTrees["src/shared.ts"] = &index.ImportTree{
		TargetFile:      "src/shared.ts",
		DirectImporters: importers,
	}

	report := New(fake, logger.Discard()).Analyze(context.Background(), []string{"src/shared.ts"}, "repo", "")

	require.Len(t, report.Warnings, 1)
	w := report.Warnings[0]
	assert.Equal(t, core.WarningHighImpactChange, w.Kind)
	assert.Equal(t, core.SeverityHigh, w.Severity)
	assert.Equal(t, 12, w.Details.ImportCount)
	assert.Len(t, w.Details.AffectedFiles, 10)

	require.Contains(t, report.ImportTrees, "src/shared.ts")
}

func TestAnalyze_NoWarningBelowImporterFloor(t *testing.T) {
	fake := indextest.New()
	fake.ImportTrees["src/leaf.ts"] = &index.ImportTree{
		TargetFile:      "src/leaf.ts",
		DirectImporters: []string{"a.ts", "b.ts"},
	}

	report := New(fake, logger.Discard()).Analyze(context.Background(), []string{"src/leaf.ts"}, "repo", "")
	assert.Empty(t, report.Warnings)
}

func TestAnalyze_CircularDependencyWarnings(t *testing.T) {
	fake := indextest.New()
	fake.CircularDeps = &index.CircularDependenciesResult{
		CircularDependencies: []index.CircularDependency{
			{Cycle: []string{"src/a.ts", "src/b.ts", "src/a.ts"}, CycleType: "direct"},
			{Cycle: []string{"src/c.ts", "src/d.ts", "src/e.ts", "src/c.ts"}, CycleType: "indirect"},
			{Cycle: []string{"src/x.ts", "src/y.ts", "src/x.ts"}, CycleType: "direct"},
		},
	}

	report := New(fake, logger.Discard()).Analyze(context.Background(), []string{"src/a.ts", "src/c.ts"}, "repo", "")

	require.Len(t, report.Warnings, 2)
	bySeverity := map[core.Severity]core.ImpactWarning{}
	for _, w := range report.Warnings {
		assert.Equal(t, core.WarningCircularDep, w.Kind)
		bySeverity[w.Severity] = w
	}
	assert.Equal(t, "src/a.ts", bySeverity[core.SeverityHigh].FilePath)
	assert.Equal(t, "src/c.ts", bySeverity[core.SeverityMedium].FilePath)
}

func TestAnalyze_WarningsSortedBySeverity(t *testing.T) {
	fake := indextest.New()
	fake.HubFiles = &index.HubFilesResult{
		HubFiles: []index.HubFile{{FilePath: "src/hub.ts", ImportCount: 30}},
	}
	fake.ImportTrees["src/mid.ts"] = &index.ImportTree{
		TargetFile:      "src/mid.ts",
		DirectImporters: []string{"a", "b", "c", "d", "e"},
	}

	report := New(fake, logger.Discard()).Analyze(context.Background(), []string{"src/hub.ts", "src/mid.ts"}, "repo", "")

	require.Len(t, report.Warnings, 2)
	assert.Equal(t, core.SeverityCritical, report.Warnings[0].Severity)
	assert.Equal(t, core.SeverityMedium, report.Warnings[1].Severity)
}

func TestAnalyze_RemoteFailuresDegradeToEmpty(t *testing.T) {
	fake := indextest.New()
	fake.Errs["importtree"] = errors.New("boom")
	fake.Errs["hubfiles"] = errors.New("boom")
	fake.Errs["cycles"] = errors.New("boom")

	report := New(fake, logger.Discard()).Analyze(context.Background(), []string{"src/a.ts"}, "repo", "")

	require.NotNil(t, report)
	assert.Empty(t, report.Warnings)
	assert.Empty(t, report.ImportTrees)
}

func TestAnalyze_NormalizesBackslashPaths(t *testing.T) {
	fake := indextest.New()
	fake.HubFiles = &index.HubFilesResult{
		HubFiles: []index.HubFile{{FilePath: "src/core/index.ts", ImportCount: 12}},
	}

	report := New(fake, logger.Discard()).Analyze(context.Background(), []string{`src\core\index.ts`}, "repo", "")

	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "src/core/index.ts", report.Warnings[0].FilePath)
}

func TestAnalyze_CapsImportTreeLookups(t *testing.T) {
	fake := indextest.New()
	var files []string
	for i := 0; i < 15; i++ {
		files = append(files, "src/f"+string(rune('a'+i))+".ts")
	}

	New(fake, logger.Discard()).Analyze(context.Background(), files, "repo", "")

	assert.Len(t, fake.CallsFor("importtree"), 10)
}
