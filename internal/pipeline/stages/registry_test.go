package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-engine/internal/pipeline/core"
)

func TestDefaultRegistry_BuiltinsRegistered(t *testing.T) {
	r := NewDefaultRegistry()

	for _, stageType := range BuiltinTypes {
		if !r.IsRegistered(stageType) {
			t.Errorf("built-in stage type %q not registered", stageType)
		}
	}
	assert.Len(t, r.Types(), len(BuiltinTypes))
}

func TestRegistry_BuildUnknownType(t *testing.T) {
	r := NewRegistry()

	_, err := r.Build(core.StageConfig{ID: "s1", Type: "extract"}, core.Collaborators{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestRegistry_ReRegisterReplacesFactory(t *testing.T) {
	r := NewDefaultRegistry()

	r.Register("extract", func(cfg core.StageConfig, collab core.Collaborators) core.StageFunc {
		return func(ctx context.Context, dc *core.DataContext) error {
			dc.Output = "custom"
			dc.SetStat("recordsProcessed", 1)
			return nil
		}
	})

	fn, err := r.Build(core.StageConfig{ID: "s1", Type: "extract"}, core.Collaborators{})
	require.NoError(t, err)

	dc := core.NewDataContext("in", nil)
	require.NoError(t, fn(context.Background(), dc))
	assert.Equal(t, "custom", dc.Output)
	assert.Equal(t, float64(1), dc.Stats["recordsProcessed"])
}

func TestPassthrough_ForwardsDataUnchanged(t *testing.T) {
	r := NewDefaultRegistry()

	fn, err := r.Build(core.StageConfig{ID: "s1", Type: "transform"}, core.Collaborators{})
	require.NoError(t, err)

	dc := core.NewDataContext(map[string]interface{}{"k": "v"}, nil)
	require.NoError(t, fn(context.Background(), dc))

	assert.Equal(t, dc.Input, dc.Output)
	// the inert built-ins touch a zero-valued counter
	records, ok := dc.Stats["recordsProcessed"]
	assert.True(t, ok)
	assert.Equal(t, float64(0), records)
	assert.Empty(t, dc.Errors)
}
