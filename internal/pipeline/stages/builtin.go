package stages

import (
	"context"

	"workflow-engine/internal/pipeline/core"
)

// BuiltinTypes are the stage types registered by default. Their
// executors are intentionally inert pass-throughs: they forward data
// unchanged and touch a zero-valued recordsProcessed counter. Real
// behavior is supplied by re-registering the type with a custom factory
// before pipelines are constructed.
var BuiltinTypes = []string{
	"extract",
	"transform",
	"load",
	"validate",
	"filter",
	"enrich",
	"aggregate",
	"map",
}

// RegisterBuiltins adds the inert built-in factories to a registry
func RegisterBuiltins(r *Registry) {
	for _, stageType := range BuiltinTypes {
		r.Register(stageType, Passthrough())
	}
}

// Passthrough returns a factory whose stage forwards Input to Output
// unchanged and ensures the recordsProcessed stat exists.
func Passthrough() core.StageFactory {
	return func(cfg core.StageConfig, collab core.Collaborators) core.StageFunc {
		return func(ctx context.Context, dc *core.DataContext) error {
			dc.Output = dc.Input
			dc.AddStat("recordsProcessed", 0)
			return nil
		}
	}
}
