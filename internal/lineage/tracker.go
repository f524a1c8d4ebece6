// Package lineage records what changed, by which process, for audit
// purposes. The engine reports at most one record per successful tracked
// pipeline run; reporting failures are logged by the caller and never
// surface into pipeline results.
package lineage

import (
	"context"
	"time"

	"workflow-engine/internal/common/logging"
)

// Record describes one audited operation.
type Record struct {
	EntityType    string                 `json:"entityType"`
	EntityID      string                 `json:"entityId"`
	Before        interface{}            `json:"before,omitempty"`
	After         interface{}            `json:"after,omitempty"`
	SourceType    string                 `json:"sourceType"`
	SourceID      string                 `json:"sourceId"`
	OperationType string                 `json:"operationType"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
}

// Tracker receives post-hoc audit records.
type Tracker interface {
	Report(ctx context.Context, record Record) error
}

// LogTracker writes lineage records to the structured log. It is the
// default tracker when no persistent backend is configured.
type LogTracker struct {
	logger logging.Logger
}

// NewLogTracker creates a tracker that logs every record
func NewLogTracker(logger logging.Logger) *LogTracker {
	return &LogTracker{logger: logger.Named("lineage")}
}

func (t *LogTracker) Report(ctx context.Context, record Record) error {
	t.logger.Info("lineage record",
		logging.Field{Key: "entity_type", Value: record.EntityType},
		logging.Field{Key: "entity_id", Value: record.EntityID},
		logging.Field{Key: "source_type", Value: record.SourceType},
		logging.Field{Key: "source_id", Value: record.SourceID},
		logging.Field{Key: "operation_type", Value: record.OperationType},
		logging.Field{Key: "metadata", Value: record.Metadata},
	)
	return nil
}
