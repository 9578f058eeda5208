// Package engine orchestrates video generation across registered
// adapters: model selection with pluggable load balancing, cross-adapter
// fallback on failure, bounded-concurrency batch generation, and
// per-model performance metrics.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/BaSui01/videoflow/adapter"
	"github.com/BaSui01/videoflow/recovery"
	"github.com/BaSui01/videoflow/types"
)

const (
	defaultMaxRetries    = 3
	defaultMaxConcurrent = 3
	// fallbackDelay is the pause before retrying on an alternate adapter.
	fallbackDelay = 1 * time.Second
)

// Options tune a new Engine. Zero values fall back to defaults.
type Options struct {
	Strategy      Strategy
	MaxRetries    int
	MaxConcurrent int64
}

// GenerateOptions carry per-request overrides.
type GenerateOptions struct {
	// PreferredModel is used directly when it is registered, enabled and
	// passes validation; otherwise selection falls through to the
	// load balancing strategy.
	PreferredModel string
	// Priority is carried on the request for observability; higher means
	// more important.
	Priority int
	// MaxRetries overrides the engine-wide fallback budget when positive.
	MaxRetries int
}

// request is the engine's internal view of one generation call.
type request struct {
	id         string
	config     *types.GenerationConfig
	priority   int
	maxRetries int
	retryCount int
	createdAt  time.Time
}

// Engine coordinates generation across the adapters in its registry.
// All methods are safe for concurrent use.
type Engine struct {
	logger   *zap.Logger
	registry *adapter.Registry
	errors   *recovery.Handler
	tracer   trace.Tracer

	promReg *prometheus.Registry
	prom    *promMetrics

	maxRetries    int
	maxConcurrent int64

	// sleep is swapped out in tests to avoid real fallback delays.
	sleep func(ctx context.Context, d time.Duration) error

	mu                    sync.Mutex
	strategy              Strategy
	rrIndex               int
	metrics               map[string]*ModelMetrics
	activeRequests        map[string]*request
	totalGenerations      int64
	successfulGenerations int64
	closed                bool
}

// New creates an Engine over the given registry and error handler. Nil
// logger and handler fall back to nop implementations.
func New(registry *adapter.Registry, errHandler *recovery.Handler, logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if errHandler == nil {
		errHandler = recovery.NewHandler(logger)
	}
	if opts.Strategy == "" || !opts.Strategy.Valid() {
		opts.Strategy = StrategyLeastLoaded
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}
	promReg := prometheus.NewRegistry()
	return &Engine{
		logger:         logger.Named("engine"),
		registry:       registry,
		errors:         errHandler,
		tracer:         otel.Tracer("videoflow/engine"),
		promReg:        promReg,
		prom:           newPromMetrics(promReg),
		maxRetries:     opts.MaxRetries,
		maxConcurrent:  opts.MaxConcurrent,
		sleep:          sleepCtx,
		strategy:       opts.Strategy,
		metrics:        make(map[string]*ModelMetrics),
		activeRequests: make(map[string]*request),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// MetricsRegistry exposes the engine's Prometheus registry for scraping.
func (e *Engine) MetricsRegistry() *prometheus.Registry { return e.promReg }

// SetStrategy switches the load balancing strategy. Unknown strategies
// are rejected.
func (e *Engine) SetStrategy(s Strategy) error {
	if !s.Valid() {
		return types.NewError(types.ErrInvalidRequest, fmt.Sprintf("unknown strategy %q", s))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategy = s
	return nil
}

// Strategy returns the active load balancing strategy.
func (e *Engine) Strategy() Strategy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.strategy
}

// metricsFor returns (creating if needed) the metrics slot for a model.
// Callers must hold e.mu.
func (e *Engine) metricsFor(name string) *ModelMetrics {
	m, ok := e.metrics[name]
	if !ok {
		m = &ModelMetrics{}
		e.metrics[name] = m
	}
	return m
}

// selectModel picks the adapter for a request. The preferred model wins
// when it is registered, enabled, not excluded and validates; otherwise
// the strategy ranks the suitable candidates.
func (e *Engine) selectModel(cfg *types.GenerationConfig, preferred string, exclude map[string]bool) (string, bool) {
	if preferred != "" && !exclude[preferred] {
		if a, ok := e.registry.Get(preferred); ok && a.Enabled() {
			if ok, _ := a.ValidateConfig(cfg); ok {
				return preferred, true
			}
		}
	}

	var candidates []string
	for _, name := range e.registry.List(true) {
		if exclude[name] {
			continue
		}
		a, ok := e.registry.Get(name)
		if !ok {
			continue
		}
		if ok, _ := a.ValidateConfig(cfg); ok {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.applyStrategy(candidates), true
}

// Generate runs one generation with automatic model selection.
func (e *Engine) Generate(ctx context.Context, cfg *types.GenerationConfig) (*types.GenerationResult, error) {
	return e.GenerateWith(ctx, cfg, GenerateOptions{})
}

// GenerateWith runs one generation with per-request overrides. On
// failure it falls back across distinct suitable adapters, up to the
// retry budget, pausing briefly between attempts. Exhaustion surfaces a
// GENERATION_FAILED error carrying the retry count and underlying cause.
func (e *Engine) GenerateWith(ctx context.Context, cfg *types.GenerationConfig, opts GenerateOptions) (*types.GenerationResult, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, types.NewError(types.ErrInvalidRequest, "engine is shut down")
	}
	if cfg == nil || !cfg.Validate() {
		return nil, types.NewError(types.ErrInvalidConfig, "invalid generation configuration")
	}

	model, ok := e.selectModel(cfg, opts.PreferredModel, nil)
	if !ok {
		return nil, types.NewError(types.ErrNoSuitableModel,
			"no suitable model available for this configuration")
	}

	maxRetries := e.maxRetries
	if opts.MaxRetries > 0 {
		maxRetries = opts.MaxRetries
	}
	req := &request{
		id:         "gen_" + uuid.NewString(),
		config:     cfg,
		priority:   opts.Priority,
		maxRetries: maxRetries,
		createdAt:  time.Now(),
	}

	tried := make(map[string]bool)
	var lastErr error
	for {
		tried[model] = true
		result, err := e.executeOnce(ctx, model, req)
		if err == nil {
			e.errors.RecordSuccess(recovery.CategoryGeneration, model, "")
			return result, nil
		}
		lastErr = err

		if req.retryCount >= req.maxRetries {
			break
		}
		next, ok := e.selectModel(cfg, "", tried)
		if !ok {
			break
		}
		req.retryCount++
		e.logger.Warn("generation failed, falling back",
			zap.String("request_id", req.id),
			zap.String("failed_model", model),
			zap.String("next_model", next),
			zap.Int("retry_count", req.retryCount),
			zap.Error(err),
		)
		if serr := e.sleep(ctx, fallbackDelay); serr != nil {
			lastErr = serr
			break
		}
		model = next
	}

	// Breaker state accumulates per model across requests; the request id
	// is reporting-only so it never fragments the failure counter.
	e.errors.Handle(ctx, recovery.CategoryGeneration, lastErr, recovery.Context{
		Model:      model,
		RequestID:  req.id,
		RetryCount: req.retryCount,
	})
	return nil, types.NewError(types.ErrGenerationFailed,
		fmt.Sprintf("generation failed after %d retries: %v", req.retryCount, lastErr)).
		WithModel(model).WithRetryCount(req.retryCount).WithCause(lastErr)
}

// executeOnce dispatches one attempt to one adapter, maintaining load
// counters and metrics on both the success and failure paths.
func (e *Engine) executeOnce(ctx context.Context, model string, req *request) (*types.GenerationResult, error) {
	a, ok := e.registry.Get(model)
	if !ok {
		return nil, types.NewError(types.ErrNoSuitableModel,
			fmt.Sprintf("model %q is no longer registered", model))
	}

	e.mu.Lock()
	metrics := e.metricsFor(model)
	e.activeRequests[req.id] = req
	e.mu.Unlock()

	metrics.IncrementLoad()
	e.prom.inFlight.WithLabelValues(model).Inc()
	defer func() {
		metrics.DecrementLoad()
		e.prom.inFlight.WithLabelValues(model).Dec()
		e.mu.Lock()
		delete(e.activeRequests, req.id)
		e.mu.Unlock()
	}()

	ctx, span := e.tracer.Start(ctx, "engine.generate", trace.WithAttributes(
		attribute.String("model", model),
		attribute.String("request_id", req.id),
		attribute.Int("retry_count", req.retryCount),
	))
	defer span.End()

	start := time.Now()
	result, err := a.Generate(ctx, req.config)
	elapsed := time.Since(start)
	e.prom.responseSeconds.WithLabelValues(model).Observe(elapsed.Seconds())

	e.mu.Lock()
	e.totalGenerations++
	if err == nil {
		e.successfulGenerations++
	}
	e.mu.Unlock()

	if err != nil {
		metrics.UpdateFailure()
		e.prom.generations.WithLabelValues(model, "failure").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, err
	}
	metrics.UpdateSuccess(elapsed)
	e.prom.generations.WithLabelValues(model, "success").Inc()
	span.SetAttributes(attribute.String("job_id", result.JobID))
	return result, nil
}

// BatchGenerate runs one generation per scene under a bounded concurrency
// semaphore. It always returns exactly len(scenes) results in input
// order; an individual failure becomes a synthetic FAILED result instead
// of aborting the batch.
func (e *Engine) BatchGenerate(ctx context.Context, scenes []types.Scene, base types.GenerationConfig, maxConcurrent int64) []*types.GenerationResult {
	if len(scenes) == 0 {
		return []*types.GenerationResult{}
	}
	if maxConcurrent <= 0 {
		maxConcurrent = e.maxConcurrent
	}

	sem := semaphore.NewWeighted(maxConcurrent)
	results := make([]*types.GenerationResult, len(scenes))
	var wg sync.WaitGroup
	for i := range scenes {
		wg.Add(1)
		go func(i int, scene types.Scene) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = syntheticFailure(i, err)
				return
			}
			defer sem.Release(1)

			cfg := scene.Config(base)
			result, err := e.Generate(ctx, &cfg)
			if err != nil {
				results[i] = syntheticFailure(i, err)
				return
			}
			results[i] = result
		}(i, scenes[i])
	}
	wg.Wait()
	return results
}

func syntheticFailure(index int, err error) *types.GenerationResult {
	return &types.GenerationResult{
		JobID:        fmt.Sprintf("failed_%d", index),
		Status:       types.JobFailed,
		ErrorMessage: err.Error(),
	}
}

// JobStatus fetches a job's status. With a model name it goes straight to
// that adapter; otherwise it probes all registered adapters in
// registration order and returns the first meaningful answer.
func (e *Engine) JobStatus(ctx context.Context, jobID, modelName string) (*types.GenerationResult, error) {
	if modelName != "" {
		if a, ok := e.registry.Get(modelName); ok {
			return a.GetStatus(ctx, jobID)
		}
	}
	for _, a := range e.registry.All() {
		if result, err := a.GetStatus(ctx, jobID); err == nil {
			return result, nil
		}
	}
	return nil, types.NewError(types.ErrJobNotFound,
		fmt.Sprintf("job %s not found in any model", jobID)).WithJobID(jobID)
}

// CancelJob cancels a job. With a model name it goes straight to that
// adapter; otherwise it probes all registered adapters and reports true
// on the first accepted cancellation, false when nobody accepted.
func (e *Engine) CancelJob(ctx context.Context, jobID, modelName string) (bool, error) {
	if modelName != "" {
		if a, ok := e.registry.Get(modelName); ok {
			return a.CancelJob(ctx, jobID)
		}
	}
	for _, a := range e.registry.All() {
		cancelled, err := a.CancelJob(ctx, jobID)
		if err != nil {
			continue
		}
		if cancelled {
			return true, nil
		}
	}
	return false, nil
}

// AvailableModels returns the names of enabled adapters.
func (e *Engine) AvailableModels() []string {
	return e.registry.List(true)
}

// ModelInfo combines an adapter's capability snapshot with its metrics.
type ModelInfo struct {
	adapter.Info
	Metrics MetricsSnapshot `json:"metrics"`
}

// ModelInfo returns capability and performance data for one model.
func (e *Engine) ModelInfo(name string) (*ModelInfo, bool) {
	a, ok := e.registry.Get(name)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	snapshot := e.metricsFor(name).Snapshot()
	e.mu.Unlock()
	return &ModelInfo{Info: adapter.Describe(a), Metrics: snapshot}, true
}

// Stats is the engine-level performance summary.
type Stats struct {
	TotalGenerations      int64                      `json:"total_generations"`
	SuccessfulGenerations int64                      `json:"successful_generations"`
	SuccessRate           float64                    `json:"success_rate"`
	ActiveRequests        int                        `json:"active_requests"`
	AvailableModels       int                        `json:"available_models"`
	LoadBalancingStrategy Strategy                   `json:"load_balancing_strategy"`
	ModelMetrics          map[string]MetricsSnapshot `json:"model_metrics"`
}

// Stats returns a snapshot of the engine's counters and per-model
// metrics.
func (e *Engine) Stats() Stats {
	available := len(e.registry.List(true))

	e.mu.Lock()
	defer e.mu.Unlock()
	successRate := 0.0
	if e.totalGenerations > 0 {
		successRate = float64(e.successfulGenerations) / float64(e.totalGenerations)
	}
	modelMetrics := make(map[string]MetricsSnapshot, len(e.metrics))
	for name, m := range e.metrics {
		modelMetrics[name] = m.Snapshot()
	}
	return Stats{
		TotalGenerations:      e.totalGenerations,
		SuccessfulGenerations: e.successfulGenerations,
		SuccessRate:           successRate,
		ActiveRequests:        len(e.activeRequests),
		AvailableModels:       available,
		LoadBalancingStrategy: e.strategy,
		ModelMetrics:          modelMetrics,
	}
}

// Shutdown closes every registered adapter and stops accepting new work.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.metrics = make(map[string]*ModelMetrics)
	e.activeRequests = make(map[string]*request)
	e.mu.Unlock()

	var errs []error
	for _, a := range e.registry.All() {
		if err := a.Close(ctx); err != nil {
			e.logger.Warn("adapter close failed", zap.String("model", a.Name()), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
