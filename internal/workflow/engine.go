package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"

	apperrors "workflow-engine/internal/common/errors"
	"workflow-engine/internal/common/logging"
	"workflow-engine/internal/lineage"
	"workflow-engine/internal/notify"
	"workflow-engine/internal/pipeline/core"
	"workflow-engine/internal/pipeline/stages"
	"workflow-engine/internal/storage"
)

// Engine registers named workflows, executes them, manages recurring
// schedules, enforces cross-workflow dependencies and retains execution
// history. It is an explicit object: multiple isolated engines can
// coexist in one process.
type Engine struct {
	logger     logging.Logger
	registry   core.StageRegistry
	collab     core.Collaborators
	notifier   notify.Notifier
	maxHistory int

	mu        sync.RWMutex
	workflows map[string]*WorkflowConfig
	active    map[string]*WorkflowExecution
	history   map[string][]*WorkflowExecution
	cancels   map[string]context.CancelFunc
	schedules map[string]*schedule
	cron      *cron.Cron
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger injects the logger used for every state transition
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithStageRegistry injects the stage executor registry
func WithStageRegistry(registry core.StageRegistry) Option {
	return func(e *Engine) { e.registry = registry }
}

// WithStorage injects the storage handle passed to stage executors
func WithStorage(store storage.Store) Option {
	return func(e *Engine) { e.collab.Storage = store }
}

// WithLineage injects the lineage tracker for successful tracked runs
func WithLineage(tracker lineage.Tracker) Option {
	return func(e *Engine) { e.collab.Lineage = tracker }
}

// WithNotifier injects the notification channel
func WithNotifier(notifier notify.Notifier) Option {
	return func(e *Engine) { e.notifier = notifier }
}

// WithMaxHistory bounds retained executions per workflow. Zero keeps
// everything.
func WithMaxHistory(max int) Option {
	return func(e *Engine) { e.maxHistory = max }
}

// NewEngine creates a workflow engine. Without options it logs to
// stdout, uses the built-in stage registry and log-based notification
// and lineage.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		workflows: make(map[string]*WorkflowConfig),
		active:    make(map[string]*WorkflowExecution),
		history:   make(map[string][]*WorkflowExecution),
		cancels:   make(map[string]context.CancelFunc),
		schedules: make(map[string]*schedule),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewDefaultLogger()
	}
	e.logger = e.logger.Named("workflow-engine")
	if e.registry == nil {
		e.registry = stages.NewDefaultRegistry()
	}
	if e.notifier == nil {
		e.notifier = notify.NewLogNotifier(e.logger)
	}
	if e.collab.Lineage == nil {
		e.collab.Lineage = lineage.NewLogTracker(e.logger)
	}
	e.collab.Logger = e.logger

	e.cron = cron.New()
	e.cron.Start()

	return e
}

// RegisterWorkflow validates and stores a workflow configuration.
// Re-registering an id replaces the prior configuration and its
// schedule.
func (e *Engine) RegisterWorkflow(cfg *WorkflowConfig) error {
	if err := validateWorkflow(cfg); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopScheduleLocked(cfg.ID)
	e.workflows[cfg.ID] = cfg

	e.logger.Info("workflow registered",
		logging.Field{Key: "workflow_id", Value: cfg.ID},
		logging.Field{Key: "pipelines", Value: len(cfg.Pipelines)},
		logging.Field{Key: "scheduled", Value: cfg.Schedule != nil},
	)

	if cfg.Schedule != nil {
		e.startScheduleLocked(cfg.ID, cfg.Schedule)
	}

	return nil
}

// UnregisterWorkflow removes a workflow and stops its schedule. History
// for the id is retained.
func (e *Engine) UnregisterWorkflow(workflowID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.workflows[workflowID]; !ok {
		return apperrors.NotFoundError(fmt.Sprintf("workflow %q is not registered", workflowID))
	}

	e.stopScheduleLocked(workflowID)
	delete(e.workflows, workflowID)

	e.logger.Info("workflow unregistered",
		logging.Field{Key: "workflow_id", Value: workflowID},
	)
	return nil
}

// ExecuteWorkflow runs a registered workflow. Run failures never
// surface as a returned error: the execution record carries the final
// status and error message. The only returned error is an unknown
// workflow id.
func (e *Engine) ExecuteWorkflow(ctx context.Context, workflowID string, metadata map[string]interface{}) (*WorkflowExecution, error) {
	e.mu.RLock()
	cfg, ok := e.workflows[workflowID]
	e.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFoundError(fmt.Sprintf("workflow %q is not registered", workflowID))
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	if cfg.Options.TimeoutSeconds > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, time.Duration(cfg.Options.TimeoutSeconds)*time.Second)
		defer cancelTimeout()
	}

	started := time.Now()

	e.mu.Lock()
	exec := &WorkflowExecution{
		ID:              e.nextExecutionIDLocked(workflowID, started),
		WorkflowID:      workflowID,
		WorkflowVersion: cfg.Version,
		Status:          StatusPending,
		StartedAt:       started,
		Metadata:        metadata,
	}
	e.active[exec.ID] = exec
	e.cancels[exec.ID] = cancelRun
	e.mu.Unlock()

	e.logger.Info("workflow execution created",
		logging.Field{Key: "workflow_id", Value: workflowID},
		logging.Field{Key: "execution_id", Value: exec.ID},
	)

	runErr := e.run(runCtx, cfg, exec, metadata)

	ended := time.Now()

	// The query surface hands out snapshots taken under e.mu, so every
	// field write on a live execution happens under the same lock.
	e.mu.Lock()
	exec.EndedAt = ended
	exec.Duration = ended.Sub(started)
	switch {
	case runErr == nil:
		exec.Status = StatusCompleted
	case runCtx.Err() == context.Canceled:
		exec.Status = StatusCancelled
		exec.Error = runErr.Error()
	case runCtx.Err() == context.DeadlineExceeded:
		exec.Status = StatusFailed
		exec.Error = apperrors.TimeoutError(
			fmt.Sprintf("workflow %q exceeded its %ds timeout", workflowID, cfg.Options.TimeoutSeconds),
			runErr).Error()
	default:
		exec.Status = StatusFailed
		exec.Error = runErr.Error()
	}
	delete(e.active, exec.ID)
	delete(e.cancels, exec.ID)
	e.appendHistoryLocked(exec)
	result := snapshotLocked(exec)
	e.mu.Unlock()

	if runErr != nil {
		e.logger.Error("workflow execution failed", runErr,
			logging.Field{Key: "workflow_id", Value: workflowID},
			logging.Field{Key: "execution_id", Value: result.ID},
			logging.Field{Key: "status", Value: string(result.Status)},
		)
		if cfg.Notifications.OnError {
			e.notifyEvent(cfg, result, notify.EventWorkflowError)
		}
	} else {
		e.logger.Info("workflow execution completed",
			logging.Field{Key: "workflow_id", Value: workflowID},
			logging.Field{Key: "execution_id", Value: result.ID},
			logging.Field{Key: "pipelines_run", Value: len(result.PipelineResults)},
			logging.Field{Key: "duration", Value: result.Duration.String()},
		)
	}

	// on-complete fires at the end regardless of final status
	if cfg.Notifications.OnComplete {
		e.notifyEvent(cfg, result, notify.EventWorkflowCompleted)
	}

	return result, nil
}

// nextExecutionIDLocked derives an execution id from the workflow id and
// the start epoch milliseconds, suffixing a counter when two triggers
// land inside the same millisecond. Caller holds e.mu.
func (e *Engine) nextExecutionIDLocked(workflowID string, started time.Time) string {
	base := fmt.Sprintf("%s-%d", workflowID, started.UnixMilli())
	id := base
	for suffix := 1; e.executionIDTakenLocked(workflowID, id); suffix++ {
		id = fmt.Sprintf("%s-%d", base, suffix)
	}
	return id
}

func (e *Engine) executionIDTakenLocked(workflowID, id string) bool {
	if _, ok := e.active[id]; ok {
		return true
	}
	for _, exec := range e.history[workflowID] {
		if exec.ID == id {
			return true
		}
	}
	return false
}

// run performs dependency gating and the sequential pipeline loop.
// Returned errors are orchestration-level: the caller records them on
// the execution rather than propagating them.
func (e *Engine) run(ctx context.Context, cfg *WorkflowConfig, exec *WorkflowExecution, metadata map[string]interface{}) error {
	if err := e.checkDependencies(cfg); err != nil {
		return err
	}

	if cfg.Notifications.OnStart {
		e.notifyEvent(cfg, exec, notify.EventWorkflowStarted)
	}

	e.mu.Lock()
	exec.Status = StatusRunning
	e.mu.Unlock()
	e.logger.Info("workflow execution running",
		logging.Field{Key: "workflow_id", Value: cfg.ID},
		logging.Field{Key: "execution_id", Value: exec.ID},
	)

	for _, pipelineCfg := range cfg.Pipelines {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("workflow run aborted: %w", err)
		}

		pipeline := core.NewPipeline(pipelineCfg, e.registry, e.collab)
		result := pipeline.Execute(ctx, nil, metadata)
		e.mu.Lock()
		exec.PipelineResults = append(exec.PipelineResults, result)
		e.mu.Unlock()

		if !result.Success && !cfg.Options.ContinueOnError {
			return apperrors.InternalError(
				fmt.Sprintf("pipeline %q failed: %s", pipelineCfg.ID, strings.Join(result.Errors, "; ")),
				nil)
		}
	}

	return nil
}

// checkDependencies verifies every declared dependency before any
// pipeline runs and reports all violations at once.
func (e *Engine) checkDependencies(cfg *WorkflowConfig) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var unsatisfied *multierror.Error
	for _, dep := range cfg.DependsOn {
		if _, ok := e.workflows[dep.WorkflowID]; !ok {
			unsatisfied = multierror.Append(unsatisfied,
				fmt.Errorf("workflow %q is not registered", dep.WorkflowID))
			continue
		}
		if dep.WaitForCompletion && !e.hasCompletedRunLocked(dep.WorkflowID) {
			unsatisfied = multierror.Append(unsatisfied,
				fmt.Errorf("workflow %q has no completed execution", dep.WorkflowID))
		}
	}

	if err := unsatisfied.ErrorOrNil(); err != nil {
		return apperrors.DependencyError(
			fmt.Sprintf("workflow %q has unsatisfied dependencies", cfg.ID), err)
	}
	return nil
}

func (e *Engine) hasCompletedRunLocked(workflowID string) bool {
	for _, exec := range e.history[workflowID] {
		if exec.Status == StatusCompleted {
			return true
		}
	}
	return false
}

// CancelExecution cancels an in-flight execution. The run finishes with
// status cancelled once the current suspension point observes the
// cancelled context.
func (e *Engine) CancelExecution(executionID string) error {
	e.mu.RLock()
	cancel, ok := e.cancels[executionID]
	e.mu.RUnlock()
	if !ok {
		return apperrors.NotFoundError(fmt.Sprintf("execution %q is not active", executionID))
	}
	cancel()
	return nil
}

// Stop halts all schedules. Registered workflows and history remain
// queryable; in-flight executions are not interrupted.
func (e *Engine) Stop() {
	e.mu.Lock()
	for id := range e.schedules {
		e.stopScheduleLocked(id)
	}
	e.mu.Unlock()

	// Wait for running cron jobs outside the lock: they take it to
	// record their executions.
	cronCtx := e.cron.Stop()
	<-cronCtx.Done()

	e.logger.Info("engine stopped")
}

func (e *Engine) notifyEvent(cfg *WorkflowConfig, exec *WorkflowExecution, eventType string) {
	event := notify.Event{
		Type:        eventType,
		WorkflowID:  cfg.ID,
		ExecutionID: exec.ID,
		Status:      string(exec.Status),
		Error:       exec.Error,
		Channels:    cfg.Notifications.Channels,
		At:          time.Now(),
	}
	if err := e.notifier.Notify(context.Background(), event); err != nil {
		e.logger.Warn("notification delivery failed",
			logging.Field{Key: "event", Value: eventType},
			logging.Field{Key: "workflow_id", Value: cfg.ID},
			logging.Err(err),
		)
	}
}

func validateWorkflow(cfg *WorkflowConfig) error {
	if cfg == nil || cfg.ID == "" {
		return apperrors.ValidationError("workflow id must not be empty")
	}
	if len(cfg.Pipelines) == 0 {
		return apperrors.ValidationError(fmt.Sprintf("workflow %q declares no pipelines", cfg.ID))
	}
	for i, p := range cfg.Pipelines {
		if p.ID == "" {
			return apperrors.ValidationError(fmt.Sprintf("workflow %q pipeline %d has no id", cfg.ID, i))
		}
	}
	if cfg.Schedule != nil {
		if cfg.Schedule.IntervalMs > 0 && cfg.Schedule.Cron != "" {
			return apperrors.ValidationError(fmt.Sprintf("workflow %q declares both interval and cron schedules", cfg.ID))
		}
		if cfg.Schedule.IntervalMs <= 0 && cfg.Schedule.Cron == "" {
			return apperrors.ValidationError(fmt.Sprintf("workflow %q declares an empty schedule", cfg.ID))
		}
		if cfg.Schedule.Cron != "" {
			if _, err := cron.ParseStandard(cfg.Schedule.Cron); err != nil {
				return apperrors.ValidationError(
					fmt.Sprintf("workflow %q has an invalid cron expression %q: %v", cfg.ID, cfg.Schedule.Cron, err))
			}
		}
	}
	return nil
}
