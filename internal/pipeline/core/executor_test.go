package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-engine/internal/common/logging"
	"workflow-engine/internal/lineage"
)

// funcRegistry resolves stage types straight to functions for tests.
type funcRegistry map[string]StageFunc

func (r funcRegistry) Build(cfg StageConfig, collab Collaborators) (StageFunc, error) {
	fn, ok := r[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("stage type %q not registered", cfg.Type)
	}
	return fn, nil
}

type recordingTracker struct {
	records []lineage.Record
	err     error
}

func (t *recordingTracker) Report(ctx context.Context, record lineage.Record) error {
	t.records = append(t.records, record)
	return t.err
}

func testCollab() Collaborators {
	return Collaborators{Logger: logging.NewNopLogger()}
}

func okStage(ctx context.Context, dc *DataContext) error {
	dc.Output = dc.Input
	return nil
}

func failStage(ctx context.Context, dc *DataContext) error {
	return errors.New("stage blew up")
}

func fastRetry(maxRetries int) *RetryPolicy {
	return &RetryPolicy{MaxRetries: maxRetries, InitialDelay: time.Millisecond, BackoffFactor: 1.0}
}

func threeStageConfig(continueOnError bool) PipelineConfig {
	return PipelineConfig{
		ID:   "p1",
		Name: "test pipeline",
		Stages: []StageConfig{
			{ID: "s1", Type: "ok", Retry: fastRetry(0)},
			{ID: "s2", Type: "fail", Retry: fastRetry(2), DependsOn: []string{"s1"}},
			{ID: "s3", Type: "ok", Retry: fastRetry(0), DependsOn: []string{"s2"}},
		},
		Options: PipelineOptions{ContinueOnStageError: continueOnError},
	}
}

func TestPipeline_StopsOnStageFailureByDefault(t *testing.T) {
	registry := funcRegistry{"ok": okStage, "fail": failStage}
	pipeline := NewPipeline(threeStageConfig(false), registry, testCollab())

	result := pipeline.Execute(context.Background(), nil, nil)

	assert.False(t, result.Success)
	require.Len(t, result.StageResults, 2, "stage 3 must not run after stage 2 fails")
	assert.True(t, result.StageResults[0].Success)
	assert.False(t, result.StageResults[1].Success)
	// maxRetries=2: the failing executor was invoked 3 times
	assert.Equal(t, 3, result.StageResults[1].Attempts)
	assert.NotEmpty(t, result.Errors)
}

func TestPipeline_ContinueOnStageError(t *testing.T) {
	registry := funcRegistry{"ok": okStage, "fail": failStage}
	pipeline := NewPipeline(threeStageConfig(true), registry, testCollab())

	result := pipeline.Execute(context.Background(), nil, nil)

	assert.False(t, result.Success)
	require.Len(t, result.StageResults, 3, "stage 3 executes despite stage 2's failure")
	assert.True(t, result.StageResults[2].Success)
}

func TestPipeline_DeterministicAcrossRuns(t *testing.T) {
	registry := funcRegistry{"ok": okStage, "fail": failStage}
	config := threeStageConfig(true)

	first := NewPipeline(config, registry, testCollab()).Execute(context.Background(), nil, nil)
	second := NewPipeline(config, registry, testCollab()).Execute(context.Background(), nil, nil)

	require.Len(t, second.StageResults, len(first.StageResults))
	for i := range first.StageResults {
		assert.Equal(t, first.StageResults[i].StageID, second.StageResults[i].StageID)
		assert.Equal(t, first.StageResults[i].Success, second.StageResults[i].Success)
		assert.Equal(t, first.StageResults[i].Errors, second.StageResults[i].Errors)
	}
	assert.Equal(t, first.Success, second.Success)
	assert.Equal(t, first.Errors, second.Errors)
}

func TestPipeline_DataHandoffBetweenStages(t *testing.T) {
	var seenInput interface{}
	registry := funcRegistry{
		"produce": func(ctx context.Context, dc *DataContext) error {
			dc.Output = "payload"
			return nil
		},
		"consume": func(ctx context.Context, dc *DataContext) error {
			seenInput = dc.Input
			return nil
		},
	}
	config := PipelineConfig{
		ID: "p1",
		Stages: []StageConfig{
			{ID: "s1", Type: "produce", Retry: fastRetry(0)},
			{ID: "s2", Type: "consume", Retry: fastRetry(0), DependsOn: []string{"s1"}},
		},
	}

	result := NewPipeline(config, registry, testCollab()).Execute(context.Background(), "original", nil)

	assert.True(t, result.Success)
	assert.Equal(t, "payload", seenInput, "stage 2 input must be stage 1 output")
}

func TestPipeline_PanicBecomesFailedStageResult(t *testing.T) {
	registry := funcRegistry{
		"panic": func(ctx context.Context, dc *DataContext) error {
			panic("executor defect")
		},
	}
	config := PipelineConfig{
		ID:     "p1",
		Stages: []StageConfig{{ID: "s1", Type: "panic", Retry: fastRetry(0)}},
	}

	result := NewPipeline(config, registry, testCollab()).Execute(context.Background(), nil, nil)

	assert.False(t, result.Success)
	require.Len(t, result.StageResults, 1)
	assert.False(t, result.StageResults[0].Success)
	assert.Contains(t, result.StageResults[0].Errors[0], "executor defect")
}

func TestPipeline_UnknownStageTypeFailsStage(t *testing.T) {
	registry := funcRegistry{}
	config := PipelineConfig{
		ID:     "p1",
		Stages: []StageConfig{{ID: "s1", Type: "nope", Retry: fastRetry(0)}},
	}

	result := NewPipeline(config, registry, testCollab()).Execute(context.Background(), nil, nil)

	assert.False(t, result.Success)
	require.Len(t, result.StageResults, 1)
	assert.Contains(t, result.StageResults[0].Errors[0], "not registered")
}

func TestPipeline_CycleExecutesNothing(t *testing.T) {
	executed := 0
	registry := funcRegistry{
		"count": func(ctx context.Context, dc *DataContext) error {
			executed++
			return nil
		},
	}
	config := PipelineConfig{
		ID: "p1",
		Stages: []StageConfig{
			{ID: "a", Type: "count", DependsOn: []string{"b"}},
			{ID: "b", Type: "count", DependsOn: []string{"a"}},
		},
	}

	result := NewPipeline(config, registry, testCollab()).Execute(context.Background(), nil, nil)

	assert.False(t, result.Success)
	assert.Empty(t, result.StageResults)
	assert.Equal(t, 0, executed)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "circular")
}

func TestPipeline_StageResultCarriesIncrementalWarningsAndStats(t *testing.T) {
	registry := funcRegistry{
		"warn": func(ctx context.Context, dc *DataContext) error {
			dc.AddWarning("first warning")
			dc.SetStat("recordsProcessed", 10)
			return nil
		},
		"quiet": func(ctx context.Context, dc *DataContext) error {
			return nil
		},
	}
	config := PipelineConfig{
		ID: "p1",
		Stages: []StageConfig{
			{ID: "s1", Type: "warn", Retry: fastRetry(0)},
			{ID: "s2", Type: "quiet", Retry: fastRetry(0), DependsOn: []string{"s1"}},
		},
	}

	result := NewPipeline(config, registry, testCollab()).Execute(context.Background(), nil, nil)

	require.True(t, result.Success)
	assert.Equal(t, []string{"first warning"}, result.StageResults[0].Warnings)
	assert.Empty(t, result.StageResults[1].Warnings, "warnings are incremental, not cumulative")
	assert.Equal(t, float64(10), result.StageResults[0].RecordsProcessed)
	assert.Equal(t, float64(10), result.Stats["recordsProcessed"])
}

func TestPipeline_LineageReportedOncePerSuccessfulRun(t *testing.T) {
	tracker := &recordingTracker{}
	collab := testCollab()
	collab.Lineage = tracker

	registry := funcRegistry{"ok": okStage}
	config := PipelineConfig{
		ID:      "p1",
		Stages:  []StageConfig{{ID: "s1", Type: "ok", Retry: fastRetry(0)}},
		Options: PipelineOptions{TrackLineage: true},
	}

	result := NewPipeline(config, registry, collab).Execute(context.Background(), nil, nil)

	require.True(t, result.Success)
	require.Len(t, tracker.records, 1)
	assert.Equal(t, "pipeline", tracker.records[0].EntityType)
	assert.Equal(t, "p1", tracker.records[0].EntityID)
	assert.Equal(t, "execute", tracker.records[0].OperationType)
}

func TestPipeline_NoLineageOnFailure(t *testing.T) {
	tracker := &recordingTracker{}
	collab := testCollab()
	collab.Lineage = tracker

	registry := funcRegistry{"fail": failStage}
	config := PipelineConfig{
		ID:      "p1",
		Stages:  []StageConfig{{ID: "s1", Type: "fail", Retry: fastRetry(0)}},
		Options: PipelineOptions{TrackLineage: true},
	}

	result := NewPipeline(config, registry, collab).Execute(context.Background(), nil, nil)

	assert.False(t, result.Success)
	assert.Empty(t, tracker.records)
}

func TestPipeline_LineageFailureDoesNotFailPipeline(t *testing.T) {
	tracker := &recordingTracker{err: errors.New("lineage store down")}
	collab := testCollab()
	collab.Lineage = tracker

	registry := funcRegistry{"ok": okStage}
	config := PipelineConfig{
		ID:      "p1",
		Stages:  []StageConfig{{ID: "s1", Type: "ok", Retry: fastRetry(0)}},
		Options: PipelineOptions{TrackLineage: true},
	}

	result := NewPipeline(config, registry, collab).Execute(context.Background(), nil, nil)

	assert.True(t, result.Success)
	assert.Len(t, tracker.records, 1)
}

func TestPipeline_TimeoutStopsRun(t *testing.T) {
	registry := funcRegistry{
		"block": func(ctx context.Context, dc *DataContext) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	config := PipelineConfig{
		ID:      "p1",
		Stages:  []StageConfig{{ID: "s1", Type: "block", Retry: fastRetry(0)}},
		Options: PipelineOptions{TimeoutSeconds: 1},
	}

	start := time.Now()
	result := NewPipeline(config, registry, testCollab()).Execute(context.Background(), nil, nil)

	assert.False(t, result.Success)
	assert.Less(t, time.Since(start), 5*time.Second)
}
