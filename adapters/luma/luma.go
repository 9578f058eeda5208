// Package luma adapts the Luma Dream Machine API to the uniform adapter
// contract. Luma handles image-to-video and text-to-video generation with
// camera movement expressed through prompt phrasing.
package luma

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/videoflow/adapter"
	"github.com/BaSui01/videoflow/adapter/transport"
	"github.com/BaSui01/videoflow/types"
)

const defaultBaseURL = "https://api.lumalabs.ai/dream-machine/v1"

// cameraPhrases maps the uniform camera movement vocabulary onto the
// phrasing Luma understands; movements are appended to the prompt because
// the API has no dedicated camera parameter.
var cameraPhrases = map[string]string{
	"zoom_in":     "zoom in",
	"zoom_out":    "zoom out",
	"pan_left":    "pan left",
	"pan_right":   "pan right",
	"tilt_up":     "tilt up",
	"tilt_down":   "tilt down",
	"orbit_left":  "orbit left",
	"orbit_right": "orbit right",
}

var statusMap = map[string]types.JobStatus{
	"pending":   types.JobPending,
	"queued":    types.JobQueued,
	"dreaming":  types.JobProcessing,
	"completed": types.JobCompleted,
	"failed":    types.JobFailed,
	"cancelled": types.JobCancelled,
}

// Adapter implements adapter.Adapter for Luma Dream Machine.
type Adapter struct {
	cfg    types.ModelConfig
	caps   adapter.Caps
	client *transport.Client
	logger *zap.Logger
}

// New creates a Luma adapter from its model configuration.
func New(cfg types.ModelConfig, logger *zap.Logger) (*Adapter, error) {
	if !cfg.Validate() {
		return nil, types.NewError(types.ErrInvalidConfig,
			fmt.Sprintf("invalid configuration for model %q", cfg.Name))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		cfg: cfg,
		caps: adapter.Caps{
			Capabilities: []types.ModelCapability{
				types.CapImageToVideo,
				types.CapTextToVideo,
				types.CapCameraControl,
				types.CapMotionControl,
			},
			AspectRatios: []string{"16:9", "9:16", "1:1"},
			Qualities:    []string{"720p", "1080p"},
			MaxDuration:  5.0,
		},
		client: transport.NewClient(transport.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    baseURL,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			RateLimit:  cfg.RateLimit,
		}, logger.Named("luma")),
		logger: logger.Named("luma"),
	}, nil
}

func (a *Adapter) Name() string                          { return a.cfg.Name }
func (a *Adapter) Enabled() bool                         { return a.cfg.Enabled }
func (a *Adapter) Capabilities() []types.ModelCapability { return a.caps.Capabilities }
func (a *Adapter) SupportedAspectRatios() []string       { return a.caps.AspectRatios }
func (a *Adapter) SupportedQualities() []string          { return a.caps.Qualities }
func (a *Adapter) MaxDuration() float64                  { return a.caps.MaxDuration }

// ValidateConfig implements adapter.Adapter.
func (a *Adapter) ValidateConfig(cfg *types.GenerationConfig) (bool, string) {
	return adapter.Validate(a, cfg)
}

// generation is the wire shape of a Luma generation object.
type generation struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	FailureReason string `json:"failure_reason"`
	Assets        struct {
		Video     string `json:"video"`
		Thumbnail string `json:"thumbnail"`
	} `json:"assets"`
}

func (a *Adapter) params(cfg *types.GenerationConfig) map[string]any {
	prompt := cfg.Prompt
	if phrase, ok := cameraPhrases[cfg.CameraMovement]; ok {
		prompt = prompt + ", " + phrase
	}
	params := map[string]any{
		"prompt":       prompt,
		"aspect_ratio": cfg.AspectRatio,
		"loop":         false,
	}
	if cfg.ReferenceImage != "" {
		params["keyframes"] = map[string]any{
			"frame0": map[string]any{"type": "image", "url": cfg.ReferenceImage},
		}
	}
	for k, v := range cfg.CustomParams {
		params[k] = v
	}
	return params
}

// Generate implements adapter.Adapter.
func (a *Adapter) Generate(ctx context.Context, cfg *types.GenerationConfig) (*types.GenerationResult, error) {
	if ok, reason := a.ValidateConfig(cfg); !ok {
		return nil, types.NewError(types.ErrInvalidConfig, reason).WithModel(a.Name())
	}

	var resp generation
	if err := a.client.DoJSON(ctx, "POST", "/generations", a.params(cfg), &resp); err != nil {
		a.logger.Warn("generation start failed", zap.Error(err))
		return nil, err
	}
	if resp.ID == "" {
		return nil, types.NewError(types.ErrUpstream, "no job id returned").WithModel(a.Name())
	}

	eta := time.Now().Add(3 * time.Minute) // Luma typically takes 2-5 minutes
	return &types.GenerationResult{
		JobID:               resp.ID,
		Status:              convertStatus(resp.State),
		Progress:            0.0,
		EstimatedCompletion: &eta,
		Metadata: map[string]any{
			"model":        "luma-dream-machine",
			"created_at":   resp.CreatedAt,
			"aspect_ratio": cfg.AspectRatio,
			"prompt":       cfg.Prompt,
		},
	}, nil
}

// GetStatus implements adapter.Adapter.
func (a *Adapter) GetStatus(ctx context.Context, jobID string) (*types.GenerationResult, error) {
	var resp generation
	if err := a.client.DoJSON(ctx, "GET", "/generations/"+jobID, nil, &resp); err != nil {
		return nil, err
	}

	status := convertStatus(resp.State)
	result := &types.GenerationResult{
		JobID:    jobID,
		Status:   status,
		Progress: types.StatusProgress(status),
		Metadata: map[string]any{
			"model":      "luma-dream-machine",
			"state":      resp.State,
			"created_at": resp.CreatedAt,
			"updated_at": resp.UpdatedAt,
		},
	}
	if status == types.JobCompleted {
		result.VideoURL = resp.Assets.Video
		result.ThumbnailURL = resp.Assets.Thumbnail
	}
	if status == types.JobFailed {
		result.ErrorMessage = resp.FailureReason
		if result.ErrorMessage == "" {
			result.ErrorMessage = "generation failed"
		}
	}
	return result, nil
}

// CancelJob implements adapter.Adapter. The Dream Machine API has no
// cancel endpoint; a non-terminal job is reported as not cancellable with
// an explicit CANCEL_UNSUPPORTED error so callers can tell the two apart.
func (a *Adapter) CancelJob(ctx context.Context, jobID string) (bool, error) {
	result, err := a.GetStatus(ctx, jobID)
	if err != nil {
		return false, err
	}
	if result.Status.Terminal() {
		return false, nil
	}
	return false, types.NewError(types.ErrCancelUnsupported,
		"luma does not expose a cancel endpoint").WithModel(a.Name()).WithJobID(jobID)
}

// Close implements adapter.Adapter.
func (a *Adapter) Close(ctx context.Context) error {
	a.client.Close()
	return nil
}

func convertStatus(s string) types.JobStatus {
	if mapped, ok := statusMap[s]; ok {
		return mapped
	}
	return types.JobPending
}
