package core

import (
	"context"
	"fmt"
	"time"

	"workflow-engine/internal/common/logging"
	"workflow-engine/internal/lineage"
)

// recordsProcessedStat is the stat key surfaced into per-stage results.
const recordsProcessedStat = "recordsProcessed"

// Pipeline executes one configured stage set against a single data
// context and produces a PipelineResult. Construct one per configuration;
// Execute may be called repeatedly, each call owning a fresh context.
type Pipeline struct {
	config   PipelineConfig
	registry StageRegistry
	collab   Collaborators
	logger   logging.Logger
}

// NewPipeline creates a pipeline from its configuration. The registry
// resolves stage type tags; collaborators are handed to stage factories.
func NewPipeline(config PipelineConfig, registry StageRegistry, collab Collaborators) *Pipeline {
	logger := collab.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
		collab.Logger = logger
	}
	return &Pipeline{
		config:   config,
		registry: registry,
		collab:   collab,
		logger:   logger.Named("pipeline").WithFields(logging.Field{Key: "pipeline_id", Value: config.ID}),
	}
}

// Execute runs the pipeline. It never returns an error for in-pipeline
// failures: the result's Success flag and error lists reflect the
// outcome, including dependency-cycle errors raised before any stage
// runs.
func (p *Pipeline) Execute(ctx context.Context, input interface{}, metadata map[string]interface{}) *PipelineResult {
	started := time.Now()
	result := &PipelineResult{
		PipelineID: p.config.ID,
		Metadata:   metadata,
		StartedAt:  started,
	}

	if p.config.Options.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.config.Options.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	order, err := ExecutionOrder(p.config.Stages)
	if err != nil {
		p.logger.Error("execution order computation failed", err)
		result.Errors = append(result.Errors, err.Error())
		return p.finalize(result, nil, false)
	}

	p.logger.Info("pipeline started",
		logging.Field{Key: "stages", Value: len(order)},
	)

	dc := NewDataContext(input, metadata)
	failed := false

	for _, stage := range order {
		stageResult := p.executeStage(ctx, stage, dc)
		result.StageResults = append(result.StageResults, stageResult)
		dc.Advance()

		if !stageResult.Success {
			failed = true
			if !p.config.Options.ContinueOnStageError {
				p.logger.Warn("stopping pipeline on stage failure",
					logging.Field{Key: "stage_id", Value: stage.ID},
				)
				break
			}
		}
	}

	dc.EndedAt = time.Now()
	return p.finalize(result, dc, !failed)
}

// executeStage resolves, wraps and runs one stage, returning its result.
// Errors and warnings in the result are the increment produced by this
// stage only.
func (p *Pipeline) executeStage(ctx context.Context, stage StageConfig, dc *DataContext) StageResult {
	stageStarted := time.Now()
	prevErrors := len(dc.Errors)
	prevWarnings := len(dc.Warnings)

	outcome := p.runStage(ctx, stage, dc)
	if outcome.Err != nil {
		// Failure becomes context data rather than a propagated error.
		dc.AddError(fmt.Sprintf("stage %q failed: %v", stage.ID, outcome.Err))
	}

	incErrors := copyStrings(dc.Errors[prevErrors:])
	incWarnings := copyStrings(dc.Warnings[prevWarnings:])
	success := outcome.Err == nil && len(incErrors) == 0

	stageResult := StageResult{
		StageID:          stage.ID,
		Success:          success,
		Duration:         time.Since(stageStarted),
		Attempts:         outcome.Attempts,
		Errors:           incErrors,
		Warnings:         incWarnings,
		RecordsProcessed: dc.Stats[recordsProcessedStat],
	}

	if success {
		p.logger.Debug("stage completed",
			logging.Field{Key: "stage_id", Value: stage.ID},
			logging.Field{Key: "attempts", Value: outcome.Attempts},
		)
	} else {
		p.logger.Error("stage failed", outcome.Err,
			logging.Field{Key: "stage_id", Value: stage.ID},
			logging.Field{Key: "attempts", Value: outcome.Attempts},
		)
	}

	return stageResult
}

// runStage invokes the retry-wrapped executor, converting a fault that
// escapes a custom executor (a panic, not a declared failure) into a
// failed outcome.
func (p *Pipeline) runStage(ctx context.Context, stage StageConfig, dc *DataContext) (outcome StageOutcome) {
	fn, err := p.registry.Build(stage, p.collab)
	if err != nil {
		return StageOutcome{Err: err, Attempts: 0}
	}

	defer func() {
		if r := recover(); r != nil {
			outcome = StageOutcome{
				Err:      fmt.Errorf("stage executor fault: %v", r),
				Attempts: outcome.Attempts,
			}
		}
	}()

	return WithRetry(stage.ID, stage.RetryOrDefault(), fn, p.logger)(ctx, dc)
}

func (p *Pipeline) finalize(result *PipelineResult, dc *DataContext, success bool) *PipelineResult {
	if dc != nil {
		result.Errors = append(result.Errors, dc.Errors...)
		result.Warnings = append(result.Warnings, dc.Warnings...)
		result.Stats = dc.Stats
	}
	result.Success = success
	result.EndedAt = time.Now()
	result.Duration = result.EndedAt.Sub(result.StartedAt)

	p.logger.Info("pipeline finished",
		logging.Field{Key: "success", Value: result.Success},
		logging.Field{Key: "stages_run", Value: len(result.StageResults)},
		logging.Field{Key: "duration", Value: result.Duration.String()},
	)

	if success && p.config.Options.TrackLineage {
		p.reportLineage(result)
	}

	return result
}

// reportLineage emits exactly one audit record for a successful run.
// Reporting failures are logged and never fail the pipeline.
func (p *Pipeline) reportLineage(result *PipelineResult) {
	if p.collab.Lineage == nil {
		return
	}

	stats := make(map[string]interface{}, len(result.Stats))
	for k, v := range result.Stats {
		stats[k] = v
	}

	record := lineage.Record{
		EntityType:    "pipeline",
		EntityID:      p.config.ID,
		After:         stats,
		SourceType:    "pipeline",
		SourceID:      p.config.ID,
		OperationType: "execute",
		Metadata: map[string]interface{}{
			"executionTimeMs": result.Duration.Milliseconds(),
			"stages":          len(result.StageResults),
		},
		CreatedAt: result.EndedAt,
	}

	if err := p.collab.Lineage.Report(context.Background(), record); err != nil {
		p.logger.Error("lineage report failed", err)
	}
}

func copyStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
