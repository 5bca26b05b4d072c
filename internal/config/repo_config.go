package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ebernie/kode-context/internal/core"
)

var (
	ErrOverridesNotFound = errors.New("overrides file not found")
	ErrOverridesParsing  = errors.New("overrides parsing failed")
)

// LoadStrategyOverrides loads and parses the .kode-context.yml file from a
// repository path. A missing file is not an error for callers that treat
// overrides as optional; they get empty overrides plus ErrOverridesNotFound.
func LoadStrategyOverrides(repoPath string) (*core.StrategyOverrides, error) {
	overridesPath := filepath.Join(repoPath, ".kode-context.yml")
	data, err := os.ReadFile(overridesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &core.StrategyOverrides{}, ErrOverridesNotFound
		}
		return nil, fmt.Errorf("failed to read .kode-context.yml: %w", err)
	}

	overrides := &core.StrategyOverrides{}
	if err := yaml.Unmarshal(data, overrides); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOverridesParsing, err)
	}
	return overrides, nil
}
