// Package index provides a typed client for the external code index
// service: vector, keyword and hybrid search, symbol lookups, call graph
// traversal, and dependency-graph queries. The service owns all structural
// analysis; this package only shuttles typed requests and responses.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ebernie/kode-context/internal/core"
)

// Direction selects which side of the call graph to traverse.
type Direction string

const (
	DirectionCallers Direction = "callers"
	DirectionCallees Direction = "callees"
	DirectionBoth    Direction = "both"
)

// KeywordMatch is one BM25 search hit.
type KeywordMatch struct {
	FilePath       string   `json:"filePath"`
	Content        string   `json:"content"`
	LineStart      int      `json:"lineStart"`
	LineEnd        int      `json:"lineEnd"`
	ChunkType      string   `json:"chunkType"`
	SymbolNames    []string `json:"symbolNames"`
	BM25Score      float64  `json:"bm25Score"`
	ExactMatchBoost float64 `json:"exactMatchBoost"`
	FinalScore     float64  `json:"finalScore"`
	RepoURL        string   `json:"repoUrl,omitempty"`
	Branch         string   `json:"branch,omitempty"`
}

// KeywordSearchResult is the keyword search response.
type KeywordSearchResult struct {
	Matches []KeywordMatch `json:"matches"`
}

// HybridMatch is one fused vector+keyword hit.
type HybridMatch struct {
	FilePath     string   `json:"filePath"`
	Content      string   `json:"content"`
	LineStart    int      `json:"lineStart"`
	LineEnd      int      `json:"lineEnd"`
	ChunkType    string   `json:"chunkType"`
	SymbolNames  []string `json:"symbolNames"`
	VectorScore  float64  `json:"vectorScore"`
	VectorRank   int      `json:"vectorRank,omitempty"`
	KeywordScore float64  `json:"keywordScore"`
	KeywordRank  int      `json:"keywordRank,omitempty"`
	RRFScore     float64  `json:"rrfScore"`
	Sources      []string `json:"sources"`
	RepoURL      string   `json:"repoUrl,omitempty"`
	Branch       string   `json:"branch,omitempty"`
}

// HybridSearchResult is the hybrid search response.
type HybridSearchResult struct {
	Matches       []HybridMatch `json:"matches"`
	QuotedPhrases []string      `json:"quotedPhrases"`
	FallbackUsed  bool          `json:"fallbackUsed"`
}

// Definition is one symbol definition site.
type Definition struct {
	FilePath       string `json:"filePath"`
	LineStart      int    `json:"lineStart"`
	LineEnd        int    `json:"lineEnd"`
	Content        string `json:"content"`
	ChunkType      string `json:"chunkType"`
	IsReexport     bool   `json:"isReexport"`
	ReexportSource string `json:"reexportSource,omitempty"`
}

// DefinitionsResult is the definition lookup response.
type DefinitionsResult struct {
	Definitions []Definition `json:"definitions"`
}

// Usage is one symbol usage site.
type Usage struct {
	FilePath  string `json:"filePath"`
	LineStart int    `json:"lineStart"`
	LineEnd   int    `json:"lineEnd"`
	Content   string `json:"content"`
	ChunkType string `json:"chunkType"`
	UsageType string `json:"usageType"`
	IsDynamic bool   `json:"isDynamic"`
}

// UsagesResult is the usage lookup response.
type UsagesResult struct {
	Usages []Usage `json:"usages"`
}

// CallSite is one caller or callee in the call graph.
type CallSite struct {
	Function  string `json:"function"`
	FilePath  string `json:"filePath"`
	LineStart int    `json:"lineStart"`
	LineEnd   int    `json:"lineEnd"`
	Content   string `json:"content"`
	Depth     int    `json:"depth"`
}

// CallGraphResult is the call graph response.
type CallGraphResult struct {
	Nodes   []string   `json:"nodes"`
	Edges   [][2]string `json:"edges"`
	Callers []CallSite `json:"callers"`
	Callees []CallSite `json:"callees"`
}

// ImportTree describes the import neighborhood of one file.
type ImportTree struct {
	TargetFile        string   `json:"targetFile"`
	DirectImports     []string `json:"directImports"`
	DirectImporters   []string `json:"directImporters"`
	IndirectImports   []string `json:"indirectImports"`
	IndirectImporters []string `json:"indirectImporters"`
}

// HubFile is a file imported by at least a threshold number of others.
type HubFile struct {
	FilePath    string   `json:"filePath"`
	ImportCount int      `json:"importCount"`
	Importers   []string `json:"importers"`
}

// HubFilesResult is the hub file query response.
type HubFilesResult struct {
	HubFiles []HubFile `json:"hubFiles"`
}

// CircularDependency is one import cycle.
type CircularDependency struct {
	Cycle     []string `json:"cycle"`
	CycleType string   `json:"cycleType"`
}

// CircularDependenciesResult is the cycle query response.
type CircularDependenciesResult struct {
	CircularDependencies []CircularDependency `json:"circularDependencies"`
}

// Client defines the operations the retrieval engine needs from the index
// service. All methods are safe for concurrent use.
type Client interface {
	Search(ctx context.Context, query, repoURL string, topK int, branch string) ([]core.CodeChunk, error)
	KeywordSearch(ctx context.Context, query, repoURL, branch string, limit int) (*KeywordSearchResult, error)
	HybridSearch(ctx context.Context, query, repoURL, branch string, limit int) (*HybridSearchResult, error)
	LookupDefinitions(ctx context.Context, symbol, repoURL, branch string, includeReexports bool, limit int) (*DefinitionsResult, error)
	LookupUsages(ctx context.Context, symbol, repoURL, branch string, limit int) (*UsagesResult, error)
	GetCallGraph(ctx context.Context, function, repoURL, branch string, direction Direction, depth int) (*CallGraphResult, error)
	GetImportTree(ctx context.Context, filePath, repoURL, branch string) (*ImportTree, error)
	GetHubFiles(ctx context.Context, repoURL, branch string, threshold, limit int) (*HubFilesResult, error)
	GetCircularDependencies(ctx context.Context, repoURL, branch string) (*CircularDependenciesResult, error)
	Health(ctx context.Context) bool
}

type httpClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates an HTTP client for the index service at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &httpClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// post sends a JSON request body and decodes the JSON response into out.
func (c *httpClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("index service request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("index service returned %d for %s: %s", resp.StatusCode, path, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

type searchRequest struct {
	Query   string `json:"query"`
	RepoURL string `json:"repoUrl"`
	TopK    int    `json:"topK"`
	Branch  string `json:"branch,omitempty"`
}

type searchResponse struct {
	Chunks []struct {
		Filename    string   `json:"filename"`
		StartLine   int      `json:"startLine"`
		EndLine     int      `json:"endLine"`
		Code        string   `json:"code"`
		Score       float64  `json:"score"`
		RepoURL     string   `json:"repoUrl,omitempty"`
		Branch      string   `json:"branch,omitempty"`
		ChunkType   string   `json:"chunkType,omitempty"`
		SymbolNames []string `json:"symbolNames,omitempty"`
	} `json:"chunks"`
}

func (c *httpClient) Search(ctx context.Context, query, repoURL string, topK int, branch string) ([]core.CodeChunk, error) {
	var resp searchResponse
	err := c.post(ctx, "/search", searchRequest{Query: query, RepoURL: repoURL, TopK: topK, Branch: branch}, &resp)
	if err != nil {
		return nil, err
	}
	chunks := make([]core.CodeChunk, 0, len(resp.Chunks))
	for _, ch := range resp.Chunks {
		chunks = append(chunks, core.CodeChunk{
			Filename:    ch.Filename,
			StartLine:   ch.StartLine,
			EndLine:     ch.EndLine,
			Code:        ch.Code,
			Score:       ch.Score,
			RepoURL:     ch.RepoURL,
			Branch:      ch.Branch,
			ChunkType:   ch.ChunkType,
			SymbolNames: ch.SymbolNames,
		})
	}
	return chunks, nil
}

type keywordSearchRequest struct {
	Query   string `json:"query"`
	RepoURL string `json:"repoUrl"`
	Branch  string `json:"branch,omitempty"`
	Limit   int    `json:"limit"`
}

func (c *httpClient) KeywordSearch(ctx context.Context, query, repoURL, branch string, limit int) (*KeywordSearchResult, error) {
	var resp KeywordSearchResult
	err := c.post(ctx, "/search/keyword", keywordSearchRequest{Query: query, RepoURL: repoURL, Branch: branch, Limit: limit}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

type hybridSearchRequest struct {
	Query           string  `json:"query"`
	RepoURL         string  `json:"repoUrl,omitempty"`
	Branch          string  `json:"branch,omitempty"`
	Limit           int     `json:"limit"`
	VectorWeight    float64 `json:"vectorWeight"`
	KeywordWeight   float64 `json:"keywordWeight"`
	ExactMatchBoost float64 `json:"exactMatchBoost"`
}

func (c *httpClient) HybridSearch(ctx context.Context, query, repoURL, branch string, limit int) (*HybridSearchResult, error) {
	var resp HybridSearchResult
	err := c.post(ctx, "/search/hybrid", hybridSearchRequest{
		Query:           query,
		RepoURL:         repoURL,
		Branch:          branch,
		Limit:           limit,
		VectorWeight:    0.6,
		KeywordWeight:   0.4,
		ExactMatchBoost: 3.0,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

type definitionsRequest struct {
	Symbol           string `json:"symbol"`
	RepoURL          string `json:"repoUrl"`
	Branch           string `json:"branch,omitempty"`
	IncludeReexports bool   `json:"includeReexports"`
	Limit            int    `json:"limit"`
}

func (c *httpClient) LookupDefinitions(ctx context.Context, symbol, repoURL, branch string, includeReexports bool, limit int) (*DefinitionsResult, error) {
	var resp DefinitionsResult
	err := c.post(ctx, "/symbols/definitions", definitionsRequest{
		Symbol:           symbol,
		RepoURL:          repoURL,
		Branch:           branch,
		IncludeReexports: includeReexports,
		Limit:            limit,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

type usagesRequest struct {
	Symbol  string `json:"symbol"`
	RepoURL string `json:"repoUrl"`
	Branch  string `json:"branch,omitempty"`
	Limit   int    `json:"limit"`
}

func (c *httpClient) LookupUsages(ctx context.Context, symbol, repoURL, branch string, limit int) (*UsagesResult, error) {
	var resp UsagesResult
	err := c.post(ctx, "/symbols/usages", usagesRequest{Symbol: symbol, RepoURL: repoURL, Branch: branch, Limit: limit}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

type callGraphRequest struct {
	Function  string `json:"function"`
	RepoURL   string `json:"repoUrl"`
	Branch    string `json:"branch,omitempty"`
	Direction string `json:"direction"`
	Depth     int    `json:"depth"`
}

func (c *httpClient) GetCallGraph(ctx context.Context, function, repoURL, branch string, direction Direction, depth int) (*CallGraphResult, error) {
	if depth > 5 {
		depth = 5
	}
	var resp CallGraphResult
	err := c.post(ctx, "/graph/calls", callGraphRequest{
		Function:  function,
		RepoURL:   repoURL,
		Branch:    branch,
		Direction: string(direction),
		Depth:     depth,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

type importTreeRequest struct {
	FilePath string `json:"filePath"`
	RepoURL  string `json:"repoUrl"`
	Branch   string `json:"branch,omitempty"`
}

func (c *httpClient) GetImportTree(ctx context.Context, filePath, repoURL, branch string) (*ImportTree, error) {
	var resp ImportTree
	err := c.post(ctx, "/graph/imports", importTreeRequest{FilePath: filePath, RepoURL: repoURL, Branch: branch}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

type hubFilesRequest struct {
	RepoURL   string `json:"repoUrl"`
	Branch    string `json:"branch,omitempty"`
	Threshold int    `json:"threshold"`
	Limit     int    `json:"limit"`
}

func (c *httpClient) GetHubFiles(ctx context.Context, repoURL, branch string, threshold, limit int) (*HubFilesResult, error) {
	var resp HubFilesResult
	err := c.post(ctx, "/graph/hubs", hubFilesRequest{RepoURL: repoURL, Branch: branch, Threshold: threshold, Limit: limit}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

type circularDepsRequest struct {
	RepoURL string `json:"repoUrl"`
	Branch  string `json:"branch,omitempty"`
}

func (c *httpClient) GetCircularDependencies(ctx context.Context, repoURL, branch string) (*CircularDependenciesResult, error) {
	var resp CircularDependenciesResult
	err := c.post(ctx, "/graph/cycles", circularDepsRequest{RepoURL: repoURL, Branch: branch}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("index service health check failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
