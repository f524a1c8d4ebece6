package workflow

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"workflow-engine/internal/common/logging"
)

// schedule tracks one workflow's recurring trigger so re-registration
// and unregistration can stop it.
type schedule struct {
	stop    chan struct{}
	entryID cron.EntryID
	isCron  bool
}

// startScheduleLocked starts the interval or cron trigger for a
// workflow. The policy has already been validated. Caller holds e.mu.
func (e *Engine) startScheduleLocked(workflowID string, policy *SchedulePolicy) {
	logger := e.logger.Named("scheduler").WithFields(
		logging.Field{Key: "workflow_id", Value: workflowID},
	)

	if policy.Cron != "" {
		entryID, err := e.cron.AddFunc(policy.Cron, func() {
			e.runScheduled(workflowID, "cron")
		})
		if err != nil {
			// Validation parses the expression first, so AddFunc cannot
			// reject it; log rather than drop the registration silently.
			logger.Error("failed to schedule cron workflow", err)
			return
		}
		e.schedules[workflowID] = &schedule{entryID: entryID, isCron: true}
		logger.Info("cron schedule started",
			logging.Field{Key: "cron", Value: policy.Cron},
		)
		return
	}

	stop := make(chan struct{})
	e.schedules[workflowID] = &schedule{stop: stop}
	go e.runIntervalSchedule(workflowID, policy.Interval(), stop, logger)
	logger.Info("interval schedule started",
		logging.Field{Key: "interval", Value: policy.Interval().String()},
	)
}

// stopScheduleLocked stops a workflow's schedule if one is running.
// Caller holds e.mu.
func (e *Engine) stopScheduleLocked(workflowID string) {
	sched, ok := e.schedules[workflowID]
	if !ok {
		return
	}
	if sched.isCron {
		e.cron.Remove(sched.entryID)
	} else {
		close(sched.stop)
	}
	delete(e.schedules, workflowID)
}

// runIntervalSchedule fires a workflow on an interval, re-arming the
// timer only after the previous run returns. The next run is therefore
// measured from completion time, not a fixed wall-clock cadence.
func (e *Engine) runIntervalSchedule(workflowID string, interval time.Duration, stop chan struct{}, logger logging.Logger) {
	for {
		timer := time.NewTimer(interval)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
		e.runScheduled(workflowID, "interval")
	}
}

// runScheduled executes one scheduled run. Failures are logged and the
// schedule cycle continues.
func (e *Engine) runScheduled(workflowID, trigger string) {
	exec, err := e.ExecuteWorkflow(context.Background(), workflowID,
		map[string]interface{}{"trigger": trigger})
	if err != nil {
		// The workflow was unregistered between trigger and run.
		e.logger.Warn("scheduled run skipped",
			logging.Field{Key: "workflow_id", Value: workflowID},
			logging.Err(err),
		)
		return
	}
	if exec.Status != StatusCompleted {
		e.logger.Warn("scheduled run did not complete",
			logging.Field{Key: "workflow_id", Value: workflowID},
			logging.Field{Key: "execution_id", Value: exec.ID},
			logging.Field{Key: "status", Value: string(exec.Status)},
			logging.Field{Key: "error", Value: exec.Error},
		)
	}
}
