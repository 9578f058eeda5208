// Package recovery classifies failures by category and severity, guards
// repeatedly failing resources with keyed circuit breakers, and exposes a
// named recovery action catalogue with optional automatic recovery for
// transient failures.
package recovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/videoflow/types"
)

// defaultMaxHistory bounds the error history; eviction keeps the most
// recent records.
const defaultMaxHistory = 500

// Info is the record produced for one handled failure.
type Info struct {
	Category        Category  `json:"category"`
	Severity        Severity  `json:"severity"`
	Message         string    `json:"message"`
	Details         string    `json:"details,omitempty"`
	UserMessage     string    `json:"user_message"`
	RecoveryOptions []string  `json:"recovery_options"`
	Model           string    `json:"model,omitempty"`
	TaskID          string    `json:"task_id,omitempty"`
	RequestID       string    `json:"request_id,omitempty"`
	RetryCount      int       `json:"retry_count"`
	Timestamp       time.Time `json:"timestamp"`
	// CircuitOpen marks records produced by a short-circuited call rather
	// than a fresh failure of the underlying operation.
	CircuitOpen bool `json:"circuit_open,omitempty"`
}

// Context carries the failure's origin. Model and TaskID scope the circuit
// breaker; RequestID is reporting-only, so per-request identifiers never
// fragment the breaker counter.
type Context struct {
	Model      string
	TaskID     string
	RequestID  string
	RetryCount int
}

// Task is the handle of an in-flight automatic recovery attempt. Callers
// may wait on it or ignore it; the attempt is never silently orphaned
// without a handle.
type Task struct {
	done      chan struct{}
	action    string
	recovered bool
}

// Wait blocks until the recovery attempt finishes or ctx is cancelled and
// reports whether recovery succeeded.
func (t *Task) Wait(ctx context.Context) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-t.done:
		return t.recovered, nil
	}
}

// Action returns the name of the recovery action being attempted.
func (t *Task) Action() string { return t.action }

// Handler is the central error classification and recovery coordinator.
// All methods are safe for concurrent use.
type Handler struct {
	logger *zap.Logger
	clock  func() time.Time

	mu         sync.Mutex
	history    []*Info
	maxHistory int
	actions    map[Category][]*Action
	breakers   map[string]*breakerState
}

// NewHandler creates a Handler with the default recovery action
// catalogue. A nil logger falls back to a nop logger.
func NewHandler(logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		logger:     logger.Named("recovery"),
		clock:      time.Now,
		maxHistory: defaultMaxHistory,
		breakers:   make(map[string]*breakerState),
	}
	h.actions = h.defaultActions()
	return h
}

// Handle classifies a failure, records it, updates the circuit breaker
// and, for low-severity failures, kicks off automatic recovery. The
// returned Task is non-nil only when auto-recovery was started.
//
// When the breaker for the failure's key is already open, the underlying
// failure is not re-counted; the caller receives a short-circuit record
// telling it to back off.
func (h *Handler) Handle(ctx context.Context, category Category, err error, c Context) (*Info, *Task) {
	h.mu.Lock()

	key := breakerKey(category, c.Model, c.TaskID)
	if h.breakerOpen(key) {
		info := &Info{
			Category:        category,
			Severity:        SeverityHigh,
			Message:         "service temporarily unavailable due to repeated failures",
			UserMessage:     "This service is temporarily unavailable due to repeated failures. Please try again in a few minutes.",
			RecoveryOptions: []string{"wait_and_retry"},
			Model:           c.Model,
			TaskID:          c.TaskID,
			RequestID:       c.RequestID,
			RetryCount:      c.RetryCount,
			Timestamp:       h.clock(),
			CircuitOpen:     true,
		}
		h.appendHistory(info)
		h.mu.Unlock()
		h.log(info, err)
		return info, nil
	}

	severity := determineSeverity(category, err)
	info := &Info{
		Category:        category,
		Severity:        severity,
		UserMessage:     UserMessage(category, err),
		RecoveryOptions: actionNames(h.actions[category]),
		Model:           c.Model,
		TaskID:          c.TaskID,
		RequestID:       c.RequestID,
		RetryCount:      c.RetryCount,
		Timestamp:       h.clock(),
	}
	if err != nil {
		info.Message = err.Error()
		if severity >= SeverityHigh {
			info.Details = fmt.Sprintf("%+v", err)
		}
	}

	h.appendHistory(info)
	h.recordFailure(key)
	auto := h.autoAction(category, severity)
	h.mu.Unlock()

	h.log(info, err)

	if auto == nil {
		return info, nil
	}
	return info, h.startRecovery(category, auto)
}

// autoAction picks the first action not requiring user input, for
// low-severity failures only. Callers must hold h.mu.
func (h *Handler) autoAction(category Category, severity Severity) *Action {
	if severity != SeverityLow {
		return nil
	}
	for _, a := range h.actions[category] {
		if !a.RequiresUserInput {
			return a
		}
	}
	return nil
}

// startRecovery runs one action in the background. A failed attempt is
// logged and swallowed; manual recovery remains available.
func (h *Handler) startRecovery(category Category, action *Action) *Task {
	task := &Task{done: make(chan struct{}), action: action.Name}
	go func() {
		defer close(task.done)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := action.Run(ctx); err != nil {
			h.logger.Warn("auto-recovery failed",
				zap.String("category", string(category)),
				zap.String("action", action.Name),
				zap.Error(err),
			)
			return
		}
		task.recovered = true
		h.logger.Info("auto-recovery succeeded",
			zap.String("category", string(category)),
			zap.String("action", action.Name),
		)
	}()
	return task
}

func (h *Handler) appendHistory(info *Info) {
	h.history = append(h.history, info)
	if len(h.history) > h.maxHistory {
		h.history = h.history[len(h.history)-h.maxHistory:]
	}
}

func (h *Handler) log(info *Info, err error) {
	h.logger.Log(info.Severity.logLevel(), "handled failure",
		zap.String("category", string(info.Category)),
		zap.String("severity", info.Severity.String()),
		zap.String("model", info.Model),
		zap.String("task_id", info.TaskID),
		zap.String("request_id", info.RequestID),
		zap.Int("retry_count", info.RetryCount),
		zap.Bool("circuit_open", info.CircuitOpen),
		zap.Error(err),
	)
}

// Stats summarizes the bounded error history.
type Stats struct {
	Total      int              `json:"total"`
	ByCategory map[Category]int `json:"by_category"`
	BySeverity map[string]int   `json:"by_severity"`
}

// Stats returns aggregate counts over the retained history.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	stats := Stats{
		Total:      len(h.history),
		ByCategory: make(map[Category]int),
		BySeverity: make(map[string]int),
	}
	for _, info := range h.history {
		stats.ByCategory[info.Category]++
		stats.BySeverity[info.Severity.String()]++
	}
	return stats
}

// Recent returns the most recent n records, newest last.
func (h *Handler) Recent(n int) []*Info {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n <= 0 || n > len(h.history) {
		n = len(h.history)
	}
	out := make([]*Info, n)
	copy(out, h.history[len(h.history)-n:])
	return out
}

// ClearHistory drops all retained records.
func (h *Handler) ClearHistory() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = nil
}

func actionNames(actions []*Action) []string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.Name
	}
	return names
}

func errUnknownAction(category Category, name string) error {
	return types.NewError(types.ErrInvalidRequest,
		fmt.Sprintf("no recovery action %q for category %s", name, category))
}
