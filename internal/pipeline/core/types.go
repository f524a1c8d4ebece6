// Package core implements the pipeline execution engine: stage
// configuration, the data context threaded through a run, dependency
// ordering, retry, and the sequential run loop.
package core

import (
	"context"
	"time"

	"workflow-engine/internal/common/logging"
	"workflow-engine/internal/lineage"
	"workflow-engine/internal/storage"
)

// RetryPolicy bounds the exponential backoff applied to a stage.
// The delay before retry n is InitialDelay * BackoffFactor^n.
type RetryPolicy struct {
	MaxRetries    int           `json:"maxRetries"`
	InitialDelay  time.Duration `json:"initialDelay"`
	BackoffFactor float64       `json:"backoffFactor"`
}

// DefaultRetryPolicy returns the policy applied when a stage declares none:
// 3 retries, 1 second initial delay, factor 2, no jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		BackoffFactor: 2.0,
	}
}

// StageConfig represents a single stage of a pipeline. A stage with
// Disabled set is excluded from the execution order entirely.
type StageConfig struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Disabled  bool                   `json:"disabled,omitempty"`
	Options   map[string]interface{} `json:"options,omitempty"`
	DependsOn []string               `json:"dependsOn,omitempty"`
	Retry     *RetryPolicy           `json:"retry,omitempty"`
}

// Enabled reports whether the stage participates in execution
func (s *StageConfig) Enabled() bool {
	return !s.Disabled
}

// RetryOrDefault returns the stage's retry policy, falling back to the
// default for unset fields.
func (s *StageConfig) RetryOrDefault() RetryPolicy {
	if s.Retry == nil {
		return DefaultRetryPolicy()
	}
	policy := *s.Retry
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = DefaultRetryPolicy().InitialDelay
	}
	if policy.BackoffFactor <= 0 {
		policy.BackoffFactor = DefaultRetryPolicy().BackoffFactor
	}
	return policy
}

// PipelineOptions controls pipeline-level behavior.
// MaxParallelStages is accepted for configuration compatibility but
// stages always run sequentially: one data context is mutated in place.
type PipelineOptions struct {
	ContinueOnStageError bool `json:"continueOnStageError,omitempty"`
	MaxParallelStages    int  `json:"maxParallelStages,omitempty"`
	TimeoutSeconds       int  `json:"timeoutSeconds,omitempty"`
	TrackLineage         bool `json:"trackLineage,omitempty"`
}

// PipelineConfig holds the ordered stage set executed against one data
// context.
type PipelineConfig struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Version string          `json:"version,omitempty"`
	Stages  []StageConfig   `json:"stages"`
	Options PipelineOptions `json:"options,omitempty"`
}

// StageResult records the outcome of one stage invocation. Errors and
// Warnings hold only the entries produced by that stage, not the
// cumulative context content.
type StageResult struct {
	StageID          string        `json:"stageId"`
	Success          bool          `json:"success"`
	Duration         time.Duration `json:"duration"`
	Attempts         int           `json:"attempts"`
	Errors           []string      `json:"errors,omitempty"`
	Warnings         []string      `json:"warnings,omitempty"`
	RecordsProcessed float64       `json:"recordsProcessed"`
}

// PipelineResult is the immutable outcome of one Pipeline.Execute call.
// Success is true iff no stage reported an error and no fault escaped a
// stage executor.
type PipelineResult struct {
	PipelineID   string                 `json:"pipelineId"`
	Success      bool                   `json:"success"`
	Duration     time.Duration          `json:"duration"`
	StageResults []StageResult          `json:"stageResults"`
	Errors       []string               `json:"errors,omitempty"`
	Warnings     []string               `json:"warnings,omitempty"`
	Stats        map[string]float64     `json:"stats,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	StartedAt    time.Time              `json:"startedAt"`
	EndedAt      time.Time              `json:"endedAt"`
}

// StageFunc is the unit of work produced by a stage factory. It reads
// the context's Input, writes Output, and may append errors, warnings
// and stats. A non-nil return is a stage execution failure subject to
// the stage's retry policy.
type StageFunc func(ctx context.Context, dc *DataContext) error

// StageFactory builds a StageFunc from a stage's configuration and the
// injected collaborators.
type StageFactory func(cfg StageConfig, collab Collaborators) StageFunc

// StageRegistry resolves a stage type tag to an executable StageFunc.
type StageRegistry interface {
	Build(cfg StageConfig, collab Collaborators) (StageFunc, error)
}

// Collaborators are the external handles available to stage executors
// and the pipeline itself.
type Collaborators struct {
	Storage storage.Store
	Lineage lineage.Tracker
	Logger  logging.Logger
}
