package workflow

import (
	"fmt"
	"sort"

	apperrors "workflow-engine/internal/common/errors"
	"workflow-engine/internal/pipeline/core"
)

// appendHistoryLocked moves a finished execution into history, trimming
// the oldest entries when a retention bound is configured. Caller holds
// e.mu.
func (e *Engine) appendHistoryLocked(exec *WorkflowExecution) {
	entries := append(e.history[exec.WorkflowID], exec)
	if e.maxHistory > 0 && len(entries) > e.maxHistory {
		entries = entries[len(entries)-e.maxHistory:]
	}
	e.history[exec.WorkflowID] = entries
}

// snapshotLocked copies an execution so callers never share the record
// the run goroutine is still writing to. Pipeline results are immutable
// once appended, so the slice is copied shallowly. Caller holds e.mu.
func snapshotLocked(exec *WorkflowExecution) *WorkflowExecution {
	copied := *exec
	if len(exec.PipelineResults) > 0 {
		copied.PipelineResults = make([]*core.PipelineResult, len(exec.PipelineResults))
		copy(copied.PipelineResults, exec.PipelineResults)
	}
	return &copied
}

// GetWorkflow returns a registered workflow configuration
func (e *Engine) GetWorkflow(workflowID string) (*WorkflowConfig, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cfg, ok := e.workflows[workflowID]
	if !ok {
		return nil, apperrors.NotFoundError(fmt.Sprintf("workflow %q is not registered", workflowID))
	}
	return cfg, nil
}

// GetWorkflows returns all registered workflow configurations
func (e *Engine) GetWorkflows() []*WorkflowConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	configs := make([]*WorkflowConfig, 0, len(e.workflows))
	for _, cfg := range e.workflows {
		configs = append(configs, cfg)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].ID < configs[j].ID })
	return configs
}

// GetWorkflowExecutions returns copies of a workflow's most recent
// executions ordered by start time descending. A limit of zero returns
// everything.
func (e *Engine) GetWorkflowExecutions(workflowID string, limit int) []*WorkflowExecution {
	e.mu.RLock()
	entries := make([]*WorkflowExecution, len(e.history[workflowID]))
	for i, exec := range e.history[workflowID] {
		entries[i] = snapshotLocked(exec)
	}
	e.mu.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartedAt.After(entries[j].StartedAt)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// ActiveExecutions returns copies of the executions currently in flight
func (e *Engine) ActiveExecutions() []*WorkflowExecution {
	e.mu.RLock()
	defer e.mu.RUnlock()

	executions := make([]*WorkflowExecution, 0, len(e.active))
	for _, exec := range e.active {
		executions = append(executions, snapshotLocked(exec))
	}
	return executions
}

// GetExecution looks up an execution by id among active and historical
// executions. The returned record is a copy: an active execution keeps
// changing after the call.
func (e *Engine) GetExecution(executionID string) (*WorkflowExecution, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if exec, ok := e.active[executionID]; ok {
		return snapshotLocked(exec), nil
	}
	for _, entries := range e.history {
		for _, exec := range entries {
			if exec.ID == executionID {
				return snapshotLocked(exec), nil
			}
		}
	}
	return nil, apperrors.NotFoundError(fmt.Sprintf("execution %q not found", executionID))
}
