package types

import (
	"strings"
	"time"
)

// JobStatus represents the lifecycle state of a backend generation job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// ModelCapability identifies a generation feature a backend may support.
type ModelCapability string

const (
	CapImageToVideo   ModelCapability = "image_to_video"
	CapTextToVideo    ModelCapability = "text_to_video"
	CapVideoExtension ModelCapability = "video_extension"
	CapStyleTransfer  ModelCapability = "style_transfer"
	CapCameraControl  ModelCapability = "camera_control"
	CapMotionControl  ModelCapability = "motion_control"
)

// Bounds shared by every backend. Adapters may narrow them further via
// their declared capability metadata, never widen them.
const (
	MaxDurationSeconds = 300.0
)

// SupportedAspectRatios is the closed set of aspect ratios accepted by
// GenerationConfig.Validate.
var SupportedAspectRatios = []string{"16:9", "9:16", "1:1"}

// SupportedQualities is the closed set of quality tiers accepted by
// GenerationConfig.Validate.
var SupportedQualities = []string{"720p", "1080p", "4k"}

// GenerationConfig describes a single video generation request. It is
// treated as immutable once handed to the engine; per-scene variants are
// built by copying.
type GenerationConfig struct {
	Prompt         string         `json:"prompt"`
	ReferenceImage string         `json:"reference_image,omitempty"`
	Duration       float64        `json:"duration"`
	AspectRatio    string         `json:"aspect_ratio"`
	Quality        string         `json:"quality"`
	Style          string         `json:"style,omitempty"`
	CameraMovement string         `json:"camera_movement,omitempty"`
	MotionStrength float64        `json:"motion_strength"`
	Seed           *int64         `json:"seed,omitempty"`
	CustomParams   map[string]any `json:"custom_parameters,omitempty"`
}

// DefaultGenerationConfig returns a config with the backend-neutral
// defaults (5s, 16:9, 1080p, motion 0.5).
func DefaultGenerationConfig(prompt string) GenerationConfig {
	return GenerationConfig{
		Prompt:         prompt,
		Duration:       5.0,
		AspectRatio:    "16:9",
		Quality:        "1080p",
		MotionStrength: 0.5,
	}
}

// Validate checks the generic bounds every backend shares: non-empty
// prompt, duration in (0, 300], a known aspect ratio and quality, and
// motion strength within [0, 1]. Adapter-specific constraints are layered
// on top by adapter.Validate.
func (c *GenerationConfig) Validate() bool {
	if strings.TrimSpace(c.Prompt) == "" {
		return false
	}
	if c.Duration <= 0 || c.Duration > MaxDurationSeconds {
		return false
	}
	if !contains(SupportedAspectRatios, c.AspectRatio) {
		return false
	}
	if !contains(SupportedQualities, c.Quality) {
		return false
	}
	if c.MotionStrength < 0.0 || c.MotionStrength > 1.0 {
		return false
	}
	return true
}

// ToParams flattens the config into a parameter map, custom parameters
// last so they can override the standard fields on backends that allow it.
func (c *GenerationConfig) ToParams() map[string]any {
	params := map[string]any{
		"prompt":          c.Prompt,
		"duration":        c.Duration,
		"aspect_ratio":    c.AspectRatio,
		"quality":         c.Quality,
		"motion_strength": c.MotionStrength,
	}
	if c.ReferenceImage != "" {
		params["reference_image"] = c.ReferenceImage
	}
	if c.Style != "" {
		params["style"] = c.Style
	}
	if c.CameraMovement != "" {
		params["camera_movement"] = c.CameraMovement
	}
	if c.Seed != nil {
		params["seed"] = *c.Seed
	}
	for k, v := range c.CustomParams {
		params[k] = v
	}
	return params
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// ModelConfig is the external configuration shape for one backend adapter,
// supplied by the config loader.
type ModelConfig struct {
	Name       string        `json:"name" yaml:"name"`
	APIKey     string        `json:"api_key" yaml:"api_key"`
	BaseURL    string        `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxRetries int           `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	// RateLimit is the request budget per second against the backend.
	// Zero means unlimited.
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	Enabled   bool    `json:"enabled" yaml:"enabled"`
}

// Validate reports whether the adapter config is usable.
func (c *ModelConfig) Validate() bool {
	return c.Name != "" && c.APIKey != "" && c.MaxRetries >= 0 && c.RateLimit >= 0
}
