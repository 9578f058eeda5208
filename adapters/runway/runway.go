// Package runway adapts the Runway ML Gen-2 API to the uniform adapter
// contract. Runway carries the widest capability surface of the built-in
// backends, including style transfer, video extension and numeric camera
// control.
package runway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/videoflow/adapter"
	"github.com/BaSui01/videoflow/adapter/transport"
	"github.com/BaSui01/videoflow/types"
)

const (
	defaultBaseURL = "https://api.runwayml.com/v1"
	apiVersion     = "2024-09-13"
)

// resolutionMap translates aspect ratios to the pixel resolutions Runway
// expects.
var resolutionMap = map[string]string{
	"16:9": "1920:1080",
	"9:16": "1080:1920",
	"1:1":  "1080:1080",
	"4:3":  "1440:1080",
	"3:4":  "1080:1440",
}

// cameraControls maps the uniform camera movement vocabulary to Runway's
// numeric camera motion parameters.
var cameraControls = map[string]map[string]float64{
	"zoom_in":    {"zoom": 1.2},
	"zoom_out":   {"zoom": 0.8},
	"pan_left":   {"pan": -0.3},
	"pan_right":  {"pan": 0.3},
	"tilt_up":    {"tilt": 0.3},
	"tilt_down":  {"tilt": -0.3},
}

// THROTTLED means the task is queued behind the account's concurrency
// limit, so it maps to queued rather than failed.
var statusMap = map[string]types.JobStatus{
	"PENDING":   types.JobPending,
	"RUNNING":   types.JobProcessing,
	"SUCCEEDED": types.JobCompleted,
	"FAILED":    types.JobFailed,
	"CANCELLED": types.JobCancelled,
	"THROTTLED": types.JobQueued,
}

// Adapter implements adapter.Adapter for Runway ML.
type Adapter struct {
	cfg    types.ModelConfig
	caps   adapter.Caps
	client *transport.Client
	logger *zap.Logger
}

// AccountInfo is the credit and plan snapshot returned by the account
// endpoint.
type AccountInfo struct {
	CreditsRemaining int    `json:"credits_remaining"`
	CreditsUsed      int    `json:"credits_used"`
	Plan             string `json:"plan"`
	UsageLimit       int    `json:"usage_limit"`
}

// New creates a Runway adapter from its model configuration.
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
				types.CapVideoExtension,
				types.CapStyleTransfer,
				types.CapCameraControl,
				types.CapMotionControl,
			},
			AspectRatios: []string{"16:9", "9:16", "1:1", "4:3", "3:4"},
			Qualities:    []string{"720p", "1080p", "4k"},
			MaxDuration:  18.0,
		},
		client: transport.NewClient(transport.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    baseURL,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			RateLimit:  cfg.RateLimit,
			Headers:    map[string]string{"X-Runway-Version": apiVersion},
		}, logger.Named("runway")),
		logger: logger.Named("runway"),
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

// task is the wire shape of a Runway task object. Output is either a list
// of urls or absent.
type task struct {
	ID           string   `json:"id"`
	Status       string   `json:"status"`
	Progress     *float64 `json:"progress"`
	ProgressText string   `json:"progressText"`
	CreatedAt    string   `json:"createdAt"`
	UpdatedAt    string   `json:"updatedAt"`
	Output       []string `json:"output"`
	ThumbnailURL string   `json:"thumbnailUrl"`
	Failure      struct {
		Reason string `json:"reason"`
	} `json:"failure"`
}

func (a *Adapter) params(cfg *types.GenerationConfig) map[string]any {
	params := map[string]any{
		"model":        "gen2",
		"promptText":   cfg.Prompt,
		"motion_score": int(cfg.MotionStrength * 10),
		"duration":     min(cfg.Duration, a.caps.MaxDuration),
	}
	if cfg.ReferenceImage != "" {
		params["init_image"] = cfg.ReferenceImage
	}
	if res, ok := resolutionMap[cfg.AspectRatio]; ok {
		params["resolution"] = res
	} else {
		params["resolution"] = "1920:1080"
	}
	if cfg.Quality == "4k" {
		params["upscale"] = true
	}
	if motion, ok := cameraControls[cfg.CameraMovement]; ok {
		params["camera_motion"] = motion
	}
	if cfg.Seed != nil {
		params["seed"] = *cfg.Seed
	}
	if cfg.Style != "" {
		params["style"] = cfg.Style
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

	var resp task
	if err := a.client.DoJSON(ctx, "POST", "/image-to-video", a.params(cfg), &resp); err != nil {
		a.logger.Warn("generation start failed", zap.Error(err))
		return nil, err
	}
	if resp.ID == "" {
		return nil, types.NewError(types.ErrUpstream, "no job id returned").WithModel(a.Name())
	}

	eta := time.Now().Add(2 * time.Minute)
	return &types.GenerationResult{
		JobID:               resp.ID,
		Status:              convertStatus(resp.Status),
		Progress:            0.0,
		EstimatedCompletion: &eta,
		Metadata: map[string]any{
			"model":        "runway-gen2",
			"created_at":   resp.CreatedAt,
			"aspect_ratio": cfg.AspectRatio,
			"duration":     cfg.Duration,
			"prompt":       cfg.Prompt,
		},
	}, nil
}

// GetStatus implements adapter.Adapter.
func (a *Adapter) GetStatus(ctx context.Context, jobID string) (*types.GenerationResult, error) {
	var resp task
	if err := a.client.DoJSON(ctx, "GET", "/tasks/"+jobID, nil, &resp); err != nil {
		return nil, err
	}

	status := convertStatus(resp.Status)
	progress := types.StatusProgress(status)
	if resp.Progress != nil {
		progress = *resp.Progress / 100.0
	}

	result := &types.GenerationResult{
		JobID:    jobID,
		Status:   status,
		Progress: progress,
		Metadata: map[string]any{
			"model":           "runway-gen2",
			"status":          resp.Status,
			"created_at":      resp.CreatedAt,
			"updated_at":      resp.UpdatedAt,
			"progress_detail": resp.ProgressText,
		},
	}
	if status == types.JobCompleted {
		if len(resp.Output) > 0 {
			result.VideoURL = resp.Output[0]
		}
		result.ThumbnailURL = resp.ThumbnailURL
	}
	if status == types.JobFailed {
		result.ErrorMessage = resp.Failure.Reason
		if result.ErrorMessage == "" {
			result.ErrorMessage = "generation failed"
		}
	}
	return result, nil
}

// CancelJob implements adapter.Adapter. Terminal jobs report false with no
// error; for everything else the cancel endpoint is called.
func (a *Adapter) CancelJob(ctx context.Context, jobID string) (bool, error) {
	result, err := a.GetStatus(ctx, jobID)
	if err != nil {
		return false, err
	}
	if result.Status.Terminal() {
		return false, nil
	}
	if err := a.client.DoJSON(ctx, "POST", "/tasks/"+jobID+"/cancel", nil, nil); err != nil {
		return false, err
	}
	return true, nil
}

// AccountInfo fetches the account's credit balance and plan.
func (a *Adapter) AccountInfo(ctx context.Context) (*AccountInfo, error) {
	var resp struct {
		CreditsRemaining int    `json:"creditsRemaining"`
		CreditsUsed      int    `json:"creditsUsed"`
		Plan             string `json:"plan"`
		UsageLimit       int    `json:"usageLimit"`
	}
	if err := a.client.DoJSON(ctx, "GET", "/account", nil, &resp); err != nil {
		return nil, err
	}
	info := &AccountInfo{
		CreditsRemaining: resp.CreditsRemaining,
		CreditsUsed:      resp.CreditsUsed,
		Plan:             resp.Plan,
		UsageLimit:       resp.UsageLimit,
	}
	if info.Plan == "" {
		info.Plan = "unknown"
	}
	return info, nil
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
