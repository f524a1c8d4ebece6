// Package notify delivers workflow lifecycle notifications. The engine
// treats delivery as best-effort: a failing notifier is logged and never
// affects a run.
package notify

import (
	"context"
	"time"

	"workflow-engine/internal/common/logging"
)

// Event types emitted by the engine.
const (
	EventWorkflowStarted   = "workflow.started"
	EventWorkflowCompleted = "workflow.completed"
	EventWorkflowError     = "workflow.error"
)

// Event describes one workflow lifecycle transition.
type Event struct {
	Type        string    `json:"type"`
	WorkflowID  string    `json:"workflowId"`
	ExecutionID string    `json:"executionId"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Channels    []string  `json:"channels,omitempty"`
	At          time.Time `json:"at"`
}

// Notifier delivers lifecycle events to the configured channels.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier emits notifications as structured log entries. It is the
// default channel; deployments wiring real channels replace it.
type LogNotifier struct {
	logger logging.Logger
}

// NewLogNotifier creates a notifier that logs every event
func NewLogNotifier(logger logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) Notify(ctx context.Context, event Event) error {
	n.logger.Info("workflow notification",
		logging.Field{Key: "event", Value: event.Type},
		logging.Field{Key: "workflow_id", Value: event.WorkflowID},
		logging.Field{Key: "execution_id", Value: event.ExecutionID},
		logging.Field{Key: "status", Value: event.Status},
		logging.Field{Key: "error", Value: event.Error},
	)
	return nil
}
