package types

import "time"

// GenerationResult is a snapshot of one backend job's state. Adapters
// return a fresh value on every call; callers never mutate a result they
// received.
type GenerationResult struct {
	JobID               string         `json:"job_id"`
	Status              JobStatus      `json:"status"`
	VideoURL            string         `json:"video_url,omitempty"`
	ThumbnailURL        string         `json:"thumbnail_url,omitempty"`
	Progress            float64        `json:"progress"`
	EstimatedCompletion *time.Time     `json:"estimated_completion,omitempty"`
	ErrorMessage        string         `json:"error_message,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

// IsCompleted reports whether the job finished successfully. A completed
// status without a video URL is not considered done.
func (r *GenerationResult) IsCompleted() bool {
	return r.Status == JobCompleted && r.VideoURL != ""
}

// IsFailed reports whether the job reached the failed state.
func (r *GenerationResult) IsFailed() bool {
	return r.Status == JobFailed
}

// IsProcessing reports whether the job is still in flight.
func (r *GenerationResult) IsProcessing() bool {
	switch r.Status {
	case JobPending, JobQueued, JobProcessing:
		return true
	}
	return false
}

// StatusProgress is the fallback progress estimate used when a backend
// does not report a progress figure of its own.
func StatusProgress(s JobStatus) float64 {
	switch s {
	case JobQueued:
		return 0.1
	case JobProcessing:
		return 0.5
	case JobCompleted:
		return 1.0
	default:
		return 0.0
	}
}
