package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebernie/kode-context/internal/core"
)

func TestRegistry_Defaults(t *testing.T) {
	reg := NewRegistry(nil)

	tests := []struct {
		name     string
		filename string
		code     string
		want     float64
	}{
		{"ts declaration file", "src/types.d.ts", "", 1.2},
		{"ts regular file", "src/app.ts", "", 1.0},
		{"python init", "pkg/__init__.py", "", 1.2},
		{"python module", "pkg/mod.py", "", 1.0},
		{"go interface content", "store/store.go", "type Store interface {\n}", 1.2},
		{"go plain content", "store/store.go", "func helper() {}", 1.0},
		{"scss variables", "styles/_variables.scss", "", 1.2},
		{"unknown extension", "README.md", "", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, reg.PriorityMultiplier(tt.filename, tt.code), 1e-9)
		})
	}
}

func TestRegistry_PriorityWeightOverride(t *testing.T) {
	reg := NewRegistry(&core.StrategyOverrides{
		PriorityWeights: map[string]float64{"python": 2.5},
	})
	assert.InDelta(t, 2.5, reg.PriorityMultiplier("pkg/__init__.py", ""), 1e-9)
}

func TestRegistry_DisabledStrategy(t *testing.T) {
	reg := NewRegistry(&core.StrategyOverrides{
		DisabledStrategies: []string{"python"},
	})
	assert.Nil(t, reg.ForFile("pkg/__init__.py"))
	assert.InDelta(t, 1.0, reg.PriorityMultiplier("pkg/__init__.py", ""), 1e-9)
}

func TestRegistry_ExtensionMapping(t *testing.T) {
	reg := NewRegistry(&core.StrategyOverrides{
		ExtensionMappings: map[string]string{".mts": "typescript", "pyi": "python"},
	})

	s := reg.ForFile("src/mod.mts")
	require.NotNil(t, s)
	assert.Equal(t, "typescript", s.FileType)

	s = reg.ForFile("src/stubs.pyi")
	require.NotNil(t, s)
	assert.Equal(t, "python", s.FileType)
}
