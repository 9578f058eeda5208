package recovery

import (
	"strings"
	"time"
)

const (
	// breakerThreshold failures within breakerCooldown open the breaker
	// for that key.
	breakerThreshold = 5
	breakerCooldown  = 5 * time.Minute
)

type breakerState struct {
	failures    int
	lastFailure time.Time
}

// breakerKey scopes circuit breaker state to a category plus the model and
// task that produced the failure, so one misbehaving backend does not trip
// the breaker for its siblings.
func breakerKey(category Category, model, taskID string) string {
	parts := []string{string(category)}
	if model != "" {
		parts = append(parts, model)
	}
	if taskID != "" {
		parts = append(parts, taskID)
	}
	return strings.Join(parts, "_")
}

// breakerOpen reports whether the key's breaker is currently open. An
// expired cooldown clears the counter so normal attempts resume.
// Callers must hold h.mu.
func (h *Handler) breakerOpen(key string) bool {
	state, ok := h.breakers[key]
	if !ok {
		return false
	}
	if state.failures < breakerThreshold {
		return false
	}
	if h.clock().Sub(state.lastFailure) < breakerCooldown {
		return true
	}
	state.failures = 0
	return false
}

// recordFailure increments the key's counter. Callers must hold h.mu.
func (h *Handler) recordFailure(key string) {
	state, ok := h.breakers[key]
	if !ok {
		state = &breakerState{}
		h.breakers[key] = state
	}
	state.failures++
	state.lastFailure = h.clock()
}

// RecordSuccess resets the circuit breaker for the category/model/task
// key. A single success closes the breaker regardless of prior failures.
func (h *Handler) RecordSuccess(category Category, model, taskID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if state, ok := h.breakers[breakerKey(category, model, taskID)]; ok {
		state.failures = 0
	}
}
