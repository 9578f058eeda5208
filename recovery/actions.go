package recovery

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Action is one named recovery step a caller can run after a failure.
// Actions flagged RequiresUserInput must not run without explicit
// confirmation and are skipped by auto-recovery.
type Action struct {
	Name              string
	Description       string
	RequiresUserInput bool
	Run               func(ctx context.Context) error
}

// retryDelays is the backoff schedule used by the retry-style actions;
// the last entry repeats once exhausted.
var retryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 5 * time.Second}

func (h *Handler) backoff(attempt int) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		idx := attempt
		if idx >= len(retryDelays) {
			idx = len(retryDelays) - 1
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelays[idx]):
			return nil
		}
	}
}

func (h *Handler) guidance(text string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		h.logger.Info("recovery guidance", zap.String("guidance", text))
		return nil
	}
}

// defaultActions builds the per-category recovery catalogue. Order
// matters: auto-recovery uses the first action that does not require user
// input.
func (h *Handler) defaultActions() map[Category][]*Action {
	return map[Category][]*Action{
		CategoryModelAdapter: {
			{Name: "retry_model_call", Description: "Retry the model API call", Run: h.backoff(0)},
			{Name: "switch_model", Description: "Switch to a different AI model", RequiresUserInput: true,
				Run: h.guidance("try a different model; the current one may be unavailable or overloaded")},
			{Name: "check_model_config", Description: "Verify model configuration", RequiresUserInput: true,
				Run: h.guidance("check that the API key is set, valid and has the required permissions")},
		},
		CategoryGeneration: {
			{Name: "retry_generation", Description: "Retry video generation", Run: h.backoff(0)},
			{Name: "adjust_parameters", Description: "Adjust generation parameters", RequiresUserInput: true,
				Run: h.guidance("reduce duration, lower quality or simplify the prompt")},
			{Name: "fallback_model", Description: "Use fallback model", Run: h.backoff(1)},
		},
		CategoryAssetManagement: {
			{Name: "retry_asset_operation", Description: "Retry asset operation", Run: h.backoff(0)},
			{Name: "check_storage_space", Description: "Check available storage space",
				Run: h.guidance("verify there is enough free storage and the path is writable")},
			{Name: "cleanup_temp_files", Description: "Clean up temporary files", Run: h.backoff(0)},
		},
		CategoryWorkflow: {
			{Name: "restart_workflow", Description: "Restart the workflow", Run: h.backoff(0)},
			{Name: "resume_from_checkpoint", Description: "Resume from last checkpoint", Run: h.backoff(0)},
		},
		CategoryConfiguration: {
			{Name: "validate_config", Description: "Validate configuration",
				Run: h.guidance("re-run configuration validation and fix the reported fields")},
			{Name: "reset_to_defaults", Description: "Reset to default configuration", RequiresUserInput: true,
				Run: h.guidance("reset generation settings to their defaults and retry")},
		},
		CategoryRendering: {
			{Name: "retry_rendering", Description: "Retry video rendering", Run: h.backoff(0)},
			{Name: "reduce_quality", Description: "Reduce output quality", RequiresUserInput: true,
				Run: h.guidance("lower the output quality to reduce resource pressure")},
		},
		CategoryNetwork: {
			{Name: "retry_connection", Description: "Retry network connection", Run: h.backoff(0)},
			{Name: "check_connection", Description: "Check internet connection", RequiresUserInput: true,
				Run: h.guidance("verify network connectivity and proxy settings")},
		},
	}
}

// Actions returns the recovery actions registered for a category, in
// priority order.
func (h *Handler) Actions(category Category) []*Action {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Action(nil), h.actions[category]...)
}

// Action looks up one action by category and name.
func (h *Handler) Action(category Category, name string) (*Action, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, a := range h.actions[category] {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// RegisterAction appends a custom recovery action to a category's list.
func (h *Handler) RegisterAction(category Category, action *Action) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.actions[category] = append(h.actions[category], action)
}

// ExecuteAction runs a named recovery action on the caller's behalf. This
// is the manual recovery path; it runs actions regardless of the user
// input flag because the caller has already confirmed.
func (h *Handler) ExecuteAction(ctx context.Context, category Category, name string) error {
	action, ok := h.Action(category, name)
	if !ok {
		return errUnknownAction(category, name)
	}
	err := action.Run(ctx)
	if err != nil {
		h.logger.Warn("recovery action failed",
			zap.String("category", string(category)),
			zap.String("action", name),
			zap.Error(err),
		)
		return err
	}
	h.logger.Info("recovery action completed",
		zap.String("category", string(category)),
		zap.String("action", name),
	)
	return nil
}
