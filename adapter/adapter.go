// Package adapter defines the uniform contract every video generation
// backend implements, the registry that indexes live adapters, and the
// shared polling helper built on top of the contract.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/videoflow/types"
)

// Adapter is the uniform surface of one video generation backend.
// Implementations translate the shared request/response shapes into the
// backend's wire protocol and own exactly one reusable network session.
type Adapter interface {
	// Generate starts a job and returns its id and initial status. It
	// fails with INVALID_CONFIG when the config does not pass Validate
	// for this adapter, and with a transport-level code when the backend
	// rejects the call.
	Generate(ctx context.Context, cfg *types.GenerationConfig) (*types.GenerationResult, error)

	// GetStatus fetches the current state of a job. Unknown job ids fail
	// with JOB_NOT_FOUND or the backend's error code.
	GetStatus(ctx context.Context, jobID string) (*types.GenerationResult, error)

	// CancelJob attempts to cancel a non-terminal job. It returns true
	// only when the backend accepted the cancellation. Backends without a
	// cancel endpoint return false with a CANCEL_UNSUPPORTED error.
	CancelJob(ctx context.Context, jobID string) (bool, error)

	// ValidateConfig is a pure check combining the generic config bounds
	// with this adapter's declared constraints. It never touches the
	// network or mutates state.
	ValidateConfig(cfg *types.GenerationConfig) (bool, string)

	// Name returns the unique adapter name used for registration.
	Name() string

	// Enabled reports whether the adapter accepts new work.
	Enabled() bool

	// Capability metadata, fixed per adapter instance.
	Capabilities() []types.ModelCapability
	SupportedAspectRatios() []string
	SupportedQualities() []string
	MaxDuration() float64

	// Close releases the adapter's network session. The adapter may be
	// used again afterwards; the session is recreated on demand.
	Close(ctx context.Context) error
}

// Caps is the declarative capability surface concrete adapters embed.
// It is fixed at construction and drives both validation and engine-side
// candidate filtering.
type Caps struct {
	Capabilities []types.ModelCapability
	AspectRatios []string
	Qualities    []string
	MaxDuration  float64
}

// Has reports whether the capability set includes cap.
func (c Caps) Has(cap types.ModelCapability) bool {
	for _, have := range c.Capabilities {
		if have == cap {
			return true
		}
	}
	return false
}

// Validate combines the generic GenerationConfig bounds with an adapter's
// declared constraints. The returned reason is empty on success.
func Validate(a Adapter, cfg *types.GenerationConfig) (bool, string) {
	if !cfg.Validate() {
		return false, "basic configuration validation failed"
	}
	if !containsString(a.SupportedAspectRatios(), cfg.AspectRatio) {
		return false, fmt.Sprintf("aspect ratio %q not supported by %s", cfg.AspectRatio, a.Name())
	}
	if !containsString(a.SupportedQualities(), cfg.Quality) {
		return false, fmt.Sprintf("quality %q not supported by %s", cfg.Quality, a.Name())
	}
	if cfg.Duration > a.MaxDuration() {
		return false, fmt.Sprintf("duration %.1fs exceeds maximum %.1fs for %s", cfg.Duration, a.MaxDuration(), a.Name())
	}
	return true, ""
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Info is a read-only snapshot describing one adapter, suitable for
// surfacing to a UI or stats endpoint.
type Info struct {
	Name         string                  `json:"name"`
	Enabled      bool                    `json:"enabled"`
	Capabilities []types.ModelCapability `json:"capabilities"`
	AspectRatios []string                `json:"supported_aspect_ratios"`
	Qualities    []string                `json:"supported_qualities"`
	MaxDuration  float64                 `json:"max_duration"`
}

// Describe builds the Info snapshot for an adapter.
func Describe(a Adapter) Info {
	return Info{
		Name:         a.Name(),
		Enabled:      a.Enabled(),
		Capabilities: a.Capabilities(),
		AspectRatios: a.SupportedAspectRatios(),
		Qualities:    a.SupportedQualities(),
		MaxDuration:  a.MaxDuration(),
	}
}

// DefaultPollInterval is the status polling cadence used by
// WaitForCompletion when the caller does not override it.
const DefaultPollInterval = 5 * time.Second
