package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/videoflow/types"
)

// WaitForCompletion polls GetStatus until the job reaches a terminal
// state. A zero timeout waits indefinitely (bounded only by ctx). The
// deadline elapsing surfaces a TIMEOUT error, a failed job surfaces a
// GENERATION_FAILED error carrying the backend's message.
func WaitForCompletion(ctx context.Context, a Adapter, jobID string, timeout, pollInterval time.Duration) (*types.GenerationResult, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		result, err := a.GetStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if result.IsCompleted() {
			return result, nil
		}
		if result.IsFailed() {
			msg := result.ErrorMessage
			if msg == "" {
				msg = "generation failed"
			}
			return result, types.NewError(types.ErrGenerationFailed,
				fmt.Sprintf("job %s failed: %s", jobID, msg)).
				WithModel(a.Name()).WithJobID(jobID)
		}
		if result.Status == types.JobCancelled {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return nil, types.NewError(types.ErrTimeout,
				fmt.Sprintf("job %s did not complete in time", jobID)).
				WithModel(a.Name()).WithJobID(jobID).WithCause(ctx.Err())
		case <-ticker.C:
		}
	}
}
