// Package indextest provides a scripted, recording implementation of
// index.Client for deterministic tests. Responses are keyed by operation
// and query; every call is recorded so tests can assert exactly which
// remote operations a component issued.
package indextest

import (
	"context"
	"sync"

	"github.com/ebernie/kode-context/internal/core"
	"github.com/ebernie/kode-context/internal/index"
)

// Call records one client invocation.
type Call struct {
	Op    string
	Query string
}

// Fake implements index.Client from scripted responses. The zero value is
// usable: every lookup returns an empty result, and Health reports false
// until Healthy is set.
type Fake struct {
	mu    sync.Mutex
	calls []Call

	Healthy          bool
	SearchResults    map[string][]core.CodeChunk
	KeywordResults   map[string]*index.KeywordSearchResult
	HybridResults    map[string]*index.HybridSearchResult
	Definitions      map[string]*index.DefinitionsResult
	Usages           map[string]*index.UsagesResult
	CallGraphs       map[string]*index.CallGraphResult
	ImportTrees      map[string]*index.ImportTree
	HubFiles         *index.HubFilesResult
	CircularDeps     *index.CircularDependenciesResult
	Errs             map[string]error
}

// New returns a healthy fake with empty response tables.
func New() *Fake {
	return &Fake{
		Healthy:        true,
		SearchResults:  map[string][]core.CodeChunk{},
		KeywordResults: map[string]*index.KeywordSearchResult{},
		HybridResults:  map[string]*index.HybridSearchResult{},
		Definitions:    map[string]*index.DefinitionsResult{},
		Usages:         map[string]*index.UsagesResult{},
		CallGraphs:     map[string]*index.CallGraphResult{},
		ImportTrees:    map[string]*index.ImportTree{},
		Errs:           map[string]error{},
	}
}

func (f *Fake) record(op, query string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: op, Query: query})
}

// Calls returns a copy of the recorded call sequence.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsFor returns the queries recorded for one operation.
func (f *Fake) CallsFor(op string) []string {
	var queries []string
	for _, c := range f.Calls() {
		if c.Op == op {
			queries = append(queries, c.Query)
		}
	}
	return queries
}

func (f *Fake) err(op string) error {
	if f.Errs == nil {
		return nil
	}
	return f.Errs[op]
}

func (f *Fake) Search(_ context.Context, query, _ string, _ int, _ string) ([]core.CodeChunk, error) {
	f.record("search", query)
	if err := f.err("search"); err != nil {
		return nil, err
	}
	return f.SearchResults[query], nil
}

func (f *Fake) KeywordSearch(_ context.Context, query, _, _ string, _ int) (*index.KeywordSearchResult, error) {
	f.record("keyword", query)
	if err := f.err("keyword"); err != nil {
		return nil, err
	}
	if r, ok := f.KeywordResults[query]; ok {
		return r, nil
	}
	return &index.KeywordSearchResult{}, nil
}

func (f *Fake) HybridSearch(_ context.Context, query, _, _ string, _ int) (*index.HybridSearchResult, error) {
	f.record("hybrid", query)
	if err := f.err("hybrid"); err != nil {
		return nil, err
	}
	if r, ok := f.HybridResults[query]; ok {
		return r, nil
	}
	return &index.HybridSearchResult{}, nil
}

func (f *Fake) LookupDefinitions(_ context.Context, symbol, _, _ string, _ bool, _ int) (*index.DefinitionsResult, error) {
	f.record("definitions", symbol)
	if err := f.err("definitions"); err != nil {
		return nil, err
	}
	if r, ok := f.Definitions[symbol]; ok {
		return r, nil
	}
	return &index.DefinitionsResult{}, nil
}

func (f *Fake) LookupUsages(_ context.Context, symbol, _, _ string, _ int) (*index.UsagesResult, error) {
	f.record("usages", symbol)
	if err := f.err("usages"); err != nil {
		return nil, err
	}
	if r, ok := f.Usages[symbol]; ok {
		return r, nil
	}
	return &index.UsagesResult{}, nil
}

func (f *Fake) GetCallGraph(_ context.Context, function, _, _ string, _ index.Direction, _ int) (*index.CallGraphResult, error) {
	f.record("callgraph", function)
	if err := f.err("callgraph"); err != nil {
		return nil, err
	}
	if r, ok := f.CallGraphs[function]; ok {
		return r, nil
	}
	return &index.CallGraphResult{}, nil
}

func (f *Fake) GetImportTree(_ context.Context, filePath, _, _ string) (*index.ImportTree, error) {
	f.record("importtree", filePath)
	if err := f.err("importtree"); err != nil {
		return nil, err
	}
	if r, ok := f.ImportTrees[filePath]; ok {
		return r, nil
	}
	return &index.ImportTree{TargetFile: filePath}, nil
}

func (f *Fake) GetHubFiles(_ context.Context, _, _ string, _, _ int) (*index.HubFilesResult, error) {
	f.record("hubfiles", "")
	if err := f.err("hubfiles"); err != nil {
		return nil, err
	}
	if f.HubFiles != nil {
		return f.HubFiles, nil
	}
	return &index.HubFilesResult{}, nil
}

func (f *Fake) GetCircularDependencies(_ context.Context, _, _ string) (*index.CircularDependenciesResult, error) {
	f.record("cycles", "")
	if err := f.err("cycles"); err != nil {
		return nil, err
	}
	if f.CircularDeps != nil {
		return f.CircularDeps, nil
	}
	return &index.CircularDependenciesResult{}, nil
}

func (f *Fake) Health(_ context.Context) bool {
	f.record("health", "")
	return f.Healthy
}
