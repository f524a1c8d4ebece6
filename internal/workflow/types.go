// Package workflow sequences pipelines as named workflows: registration,
// dependency gating, recurring schedules, notifications and execution
// history.
package workflow

import (
	"time"

	"workflow-engine/internal/pipeline/core"
)

// ExecutionStatus is the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	// StatusPending marks an execution record that has been created but
	// not yet started.
	StatusPending ExecutionStatus = "pending"
	// StatusRunning marks an execution whose first pipeline has started.
	StatusRunning ExecutionStatus = "running"
	// StatusCompleted is the terminal state of a successful execution.
	StatusCompleted ExecutionStatus = "completed"
	// StatusFailed is the terminal state of a failed execution.
	StatusFailed ExecutionStatus = "failed"
	// StatusCancelled is the terminal state of an externally cancelled
	// execution.
	StatusCancelled ExecutionStatus = "cancelled"
)

// SchedulePolicy configures recurring execution. Exactly one of
// IntervalMs or Cron may be set. Interval schedules re-arm from the
// completion time of the previous run, so drift under load is expected.
type SchedulePolicy struct {
	IntervalMs int64  `json:"intervalMs,omitempty"`
	Cron       string `json:"cron,omitempty"`
}

// Interval returns the interval as a duration
func (s *SchedulePolicy) Interval() time.Duration {
	return time.Duration(s.IntervalMs) * time.Millisecond
}

// WorkflowDependency gates execution on another workflow.
type WorkflowDependency struct {
	WorkflowID        string `json:"workflowId"`
	WaitForCompletion bool   `json:"waitForCompletion,omitempty"`
}

// NotificationPolicy selects which lifecycle events are delivered and
// to which channels.
type NotificationPolicy struct {
	OnStart    bool     `json:"onStart,omitempty"`
	OnComplete bool     `json:"onComplete,omitempty"`
	OnError    bool     `json:"onError,omitempty"`
	Channels   []string `json:"channels,omitempty"`
}

// WorkflowOptions controls workflow-level behavior. MaxRetries and
// LogLevel are accepted for configuration compatibility but not acted
// on by the engine.
type WorkflowOptions struct {
	TimeoutSeconds  int    `json:"timeoutSeconds,omitempty"`
	ContinueOnError bool   `json:"continueOnError,omitempty"`
	MaxRetries      int    `json:"maxRetries,omitempty"`
	LogLevel        string `json:"logLevel,omitempty"`
}

// WorkflowConfig is an ordered sequence of pipeline configurations plus
// schedule, dependency and notification policy.
type WorkflowConfig struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Version       string                `json:"version,omitempty"`
	Pipelines     []core.PipelineConfig `json:"pipelines"`
	Schedule      *SchedulePolicy       `json:"schedule,omitempty"`
	DependsOn     []WorkflowDependency  `json:"dependsOn,omitempty"`
	Notifications NotificationPolicy    `json:"notifications,omitempty"`
	Options       WorkflowOptions       `json:"options,omitempty"`
}

// WorkflowExecution records one run of a workflow. Its ID is the
// workflow id joined with the start epoch milliseconds. Pipeline results
// appear in declaration order.
type WorkflowExecution struct {
	ID              string                 `json:"id"`
	WorkflowID      string                 `json:"workflowId"`
	WorkflowVersion string                 `json:"workflowVersion,omitempty"`
	Status          ExecutionStatus        `json:"status"`
	PipelineResults []*core.PipelineResult `json:"pipelineResults"`
	StartedAt       time.Time              `json:"startedAt"`
	EndedAt         time.Time              `json:"endedAt,omitempty"`
	Duration        time.Duration          `json:"duration,omitempty"`
	Error           string                 `json:"error,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}
