// Package strategy assigns per-language retrieval priorities. A strategy
// recognizes the files of one file type and names the patterns whose
// chunks deserve a score boost, e.g. type declaration files for
// TypeScript or package initializers for Python.
package strategy

import (
	"path"
	"strings"

	"github.com/ebernie/kode-context/internal/core"
)

// Strategy describes one file type's retrieval priorities.
type Strategy struct {
	FileType       string
	Extensions     []string
	PriorityWeight float64

	// prioritySuffixes and priorityBasenames select the files whose
	// chunks receive the priority weight.
	prioritySuffixes  []string
	priorityBasenames []string
	// priorityContent marks chunks by code content when the path alone
	// is not conclusive (e.g. Go interface definitions).
	priorityContent []string
}

// defaults returns the built-in strategy set.
func defaults() []Strategy {
	return []Strategy{
		{
			FileType:         "typescript",
			Extensions:       []string{".ts", ".tsx"},
			PriorityWeight:   1.2,
			prioritySuffixes: []string{".d.ts", "types.ts", "interfaces.ts"},
		},
		{
			FileType:         "javascript",
			Extensions:       []string{".js", ".jsx", ".mjs", ".cjs"},
			PriorityWeight:   1.1,
			priorityBasenames: []string{"index.js"},
		},
		{
			FileType:          "python",
			Extensions:        []string{".py"},
			PriorityWeight:    1.2,
			priorityBasenames: []string{"__init__.py"},
		},
		{
			FileType:        "go",
			Extensions:      []string{".go"},
			PriorityWeight:  1.2,
			priorityContent: []string{"interface {", "interface{"},
		},
		{
			FileType:         "rust",
			Extensions:       []string{".rs"},
			PriorityWeight:   1.1,
			priorityBasenames: []string{"lib.rs", "mod.rs"},
		},
		{
			FileType:          "java",
			Extensions:        []string{".java", ".kt"},
			PriorityWeight:    1.1,
			prioritySuffixes:  []string{"Interface.java"},
			priorityContent:   []string{"interface "},
		},
		{
			FileType:          "scss",
			Extensions:        []string{".scss", ".sass", ".css"},
			PriorityWeight:    1.2,
			priorityBasenames: []string{"_variables.scss", "_mixins.scss"},
		},
	}
}

// Registry resolves file paths to strategies after override composition.
type Registry struct {
	byExtension map[string]*Strategy
}

// NewRegistry builds a registry from the built-in strategies with
// overrides applied. A nil overrides value keeps the defaults.
func NewRegistry(overrides *core.StrategyOverrides) *Registry {
	strategies := defaults()

	disabled := map[string]struct{}{}
	if overrides != nil {
		for _, ft := range overrides.DisabledStrategies {
			disabled[strings.ToLower(ft)] = struct{}{}
		}
	}

	reg := &Registry{byExtension: make(map[string]*Strategy)}
	for i := range strategies {
		s := &strategies[i]
		if _, off := disabled[strings.ToLower(s.FileType)]; off {
			continue
		}
		if overrides != nil {
			if w, ok := overrides.PriorityWeights[s.FileType]; ok && w > 0 {
				s.PriorityWeight = w
			}
		}
		for _, ext := range s.Extensions {
			reg.byExtension[ext] = s
		}
	}

	// Extension remaps point extra extensions at an existing file type.
	if overrides != nil {
		for ext, fileType := range overrides.ExtensionMappings {
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			for i := range strategies {
				if strategies[i].FileType == fileType {
					if _, off := disabled[strings.ToLower(fileType)]; !off {
						reg.byExtension[ext] = &strategies[i]
					}
					break
				}
			}
		}
	}
	return reg
}

// ForFile returns the strategy covering the file, or nil.
func (r *Registry) ForFile(filename string) *Strategy {
	ext := strings.ToLower(path.Ext(core.NormalizePath(filename)))
	return r.byExtension[ext]
}

// PriorityMultiplier returns the boost for a chunk, 1.0 when no strategy
// claims it or the chunk is not a priority file for its type.
func (r *Registry) PriorityMultiplier(filename, code string) float64 {
	s := r.ForFile(filename)
	if s == nil {
		return 1.0
	}
	if s.isPriority(filename, code) {
		return s.PriorityWeight
	}
	return 1.0
}

func (s *Strategy) isPriority(filename, code string) bool {
	normalized := core.NormalizePath(filename)
	base := path.Base(normalized)

	for _, suffix := range s.prioritySuffixes {
		if strings.HasSuffix(normalized, suffix) {
			return true
		}
	}
	for _, name := range s.priorityBasenames {
		if base == name {
			return true
		}
	}
	for _, marker := range s.priorityContent {
		if strings.Contains(code, marker) {
			return true
		}
	}
	return false
}
