package core

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"workflow-engine/internal/common/logging"
)

// StageOutcome is the value a retry-wrapped stage resolves to. A failed
// stage is data the pipeline inspects, never an error the caller must
// handle: Err aggregates every attempt's failure when retries are
// exhausted and is nil on success.
type StageOutcome struct {
	Err      error
	Attempts int
}

// RetryFunc is a stage function decorated with retry behavior.
type RetryFunc func(ctx context.Context, dc *DataContext) StageOutcome

// WithRetry decorates fn with bounded exponential backoff. Attempts run
// from 0 through MaxRetries inclusive; after a failed attempt with
// attempts remaining, the wrapper waits InitialDelay*BackoffFactor^attempt,
// honoring context cancellation. No jitter is applied at this layer.
func WithRetry(stageID string, policy RetryPolicy, fn StageFunc, logger logging.Logger) RetryFunc {
	return func(ctx context.Context, dc *DataContext) StageOutcome {
		var attemptErrs *multierror.Error

		for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
			err := fn(ctx, dc)
			if err == nil {
				return StageOutcome{Attempts: attempt + 1}
			}

			attemptErrs = multierror.Append(attemptErrs,
				fmt.Errorf("attempt %d: %w", attempt+1, err))

			if attempt == policy.MaxRetries {
				break
			}

			delay := backoffDelay(policy, attempt)
			logger.Warn("stage attempt failed, retrying",
				logging.Field{Key: "stage_id", Value: stageID},
				logging.Field{Key: "attempt", Value: attempt + 1},
				logging.Field{Key: "delay", Value: delay.String()},
				logging.Err(err),
			)

			select {
			case <-ctx.Done():
				attemptErrs = multierror.Append(attemptErrs,
					fmt.Errorf("retry wait aborted: %w", ctx.Err()))
				return StageOutcome{Err: attemptErrs.ErrorOrNil(), Attempts: attempt + 1}
			case <-time.After(delay):
			}
		}

		return StageOutcome{Err: attemptErrs.ErrorOrNil(), Attempts: policy.MaxRetries + 1}
	}
}

func backoffDelay(policy RetryPolicy, attempt int) time.Duration {
	delay := float64(policy.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= policy.BackoffFactor
	}
	return time.Duration(delay)
}
