package core

import (
	"fmt"
	"strings"

	apperrors "workflow-engine/internal/common/errors"
)

type visitState int

const (
	stateUnvisited visitState = iota
	stateVisiting
	stateVisited
)

// ExecutionOrder computes the dependency-respecting order for the
// enabled stages of a pipeline. Every dependency precedes its
// dependents; ties are broken by declaration order because the
// traversal is seeded in slice order. A dependency cycle aborts the
// computation with an error naming the full cycle path, e.g.
// "a -> b -> c -> a".
func ExecutionOrder(stages []StageConfig) ([]StageConfig, error) {
	enabled := make([]StageConfig, 0, len(stages))
	byID := make(map[string]StageConfig, len(stages))
	for _, stage := range stages {
		if !stage.Enabled() {
			continue
		}
		if stage.ID == "" {
			return nil, apperrors.ValidationError("stage id must not be empty")
		}
		if _, dup := byID[stage.ID]; dup {
			return nil, apperrors.ValidationError(fmt.Sprintf("duplicate stage id %q", stage.ID))
		}
		byID[stage.ID] = stage
		enabled = append(enabled, stage)
	}

	states := make(map[string]visitState, len(enabled))
	order := make([]StageConfig, 0, len(enabled))
	var path []string

	var visit func(id string) error
	visit = func(id string) error {
		switch states[id] {
		case stateVisited:
			return nil
		case stateVisiting:
			// id is already on the recursion path: report the whole cycle
			start := 0
			for i, onPath := range path {
				if onPath == id {
					start = i
					break
				}
			}
			cycle := append(append([]string{}, path[start:]...), id)
			return apperrors.CycleError(strings.Join(cycle, " -> "))
		}

		states[id] = stateVisiting
		path = append(path, id)

		stage := byID[id]
		for _, dep := range stage.DependsOn {
			if _, ok := byID[dep]; !ok {
				return apperrors.ValidationError(
					fmt.Sprintf("stage %q depends on unknown or disabled stage %q", id, dep))
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		states[id] = stateVisited
		order = append(order, stage)
		return nil
	}

	for _, stage := range enabled {
		if err := visit(stage.ID); err != nil {
			return nil, err
		}
	}

	return order, nil
}
