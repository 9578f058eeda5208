package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/videoflow/adapter"
	"github.com/BaSui01/videoflow/types"
)

// fakeAdapter is an in-memory Adapter for engine tests.
type fakeAdapter struct {
	name    string
	enabled bool
	caps    adapter.Caps
	calls   atomic.Int32
	closed  bool

	generate  func(ctx context.Context, cfg *types.GenerationConfig) (*types.GenerationResult, error)
	getStatus func(ctx context.Context, jobID string) (*types.GenerationResult, error)
	cancel    func(ctx context.Context, jobID string) (bool, error)
}

func newFake(name string) *fakeAdapter {
	return &fakeAdapter{
		name:    name,
		enabled: true,
		caps: adapter.Caps{
			Capabilities: []types.ModelCapability{types.CapTextToVideo},
			AspectRatios: []string{"16:9", "9:16", "1:1"},
			Qualities:    []string{"720p", "1080p", "4k"},
			MaxDuration:  300,
		},
	}
}

func (f *fakeAdapter) Generate(ctx context.Context, cfg *types.GenerationConfig) (*types.GenerationResult, error) {
	f.calls.Add(1)
	if f.generate != nil {
		return f.generate(ctx, cfg)
	}
	return &types.GenerationResult{JobID: f.name + "-job", Status: types.JobQueued}, nil
}

func (f *fakeAdapter) GetStatus(ctx context.Context, jobID string) (*types.GenerationResult, error) {
	if f.getStatus != nil {
		return f.getStatus(ctx, jobID)
	}
	return nil, types.NewError(types.ErrJobNotFound, "unknown job")
}

func (f *fakeAdapter) CancelJob(ctx context.Context, jobID string) (bool, error) {
	if f.cancel != nil {
		return f.cancel(ctx, jobID)
	}
	return false, nil
}

func (f *fakeAdapter) ValidateConfig(cfg *types.GenerationConfig) (bool, string) {
	return adapter.Validate(f, cfg)
}

func (f *fakeAdapter) Name() string                          { return f.name }
func (f *fakeAdapter) Enabled() bool                         { return f.enabled }
func (f *fakeAdapter) Capabilities() []types.ModelCapability { return f.caps.Capabilities }
func (f *fakeAdapter) SupportedAspectRatios() []string       { return f.caps.AspectRatios }
func (f *fakeAdapter) SupportedQualities() []string          { return f.caps.Qualities }
func (f *fakeAdapter) MaxDuration() float64                  { return f.caps.MaxDuration }
func (f *fakeAdapter) Close(ctx context.Context) error       { f.closed = true; return nil }

func failing(name string) *fakeAdapter {
	f := newFake(name)
	f.generate = func(ctx context.Context, cfg *types.GenerationConfig) (*types.GenerationResult, error) {
		return nil, types.NewError(types.ErrUpstream, name+" is down")
	}
	return f
}

func newTestEngine(t *testing.T, opts Options, adapters ...*fakeAdapter) *Engine {
	t.Helper()
	r := adapter.NewRegistry()
	for _, a := range adapters {
		require.NoError(t, r.Register(a))
	}
	e := New(r, nil, nil, opts)
	// fallback pauses would slow the suite down
	e.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return e
}

// ---------------------------------------------------------------------------
// Generate
// ---------------------------------------------------------------------------

func TestGenerateSuccess(t *testing.T) {
	a := newFake("luma")
	e := newTestEngine(t, Options{}, a)

	cfg := types.DefaultGenerationConfig("a red car")
	result, err := e.Generate(context.Background(), &cfg)
	require.NoError(t, err)
	assert.Equal(t, "luma-job", result.JobID)
	assert.Equal(t, int32(1), a.calls.Load())

	stats := e.Stats()
	assert.Equal(t, int64(1), stats.TotalGenerations)
	assert.Equal(t, int64(1), stats.SuccessfulGenerations)
	assert.Equal(t, 1.0, stats.SuccessRate)
}

func TestGenerateRejectsInvalidConfig(t *testing.T) {
	e := newTestEngine(t, Options{}, newFake("luma"))

	cfg := types.DefaultGenerationConfig("")
	_, err := e.Generate(context.Background(), &cfg)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidConfig, types.CodeOf(err))

	_, err = e.Generate(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidConfig, types.CodeOf(err))
}

func TestGenerateNoSuitableModel(t *testing.T) {
	short := newFake("short")
	short.caps.MaxDuration = 3
	e := newTestEngine(t, Options{}, short)

	cfg := types.DefaultGenerationConfig("a red car")
	cfg.Duration = 10
	_, err := e.Generate(context.Background(), &cfg)
	require.Error(t, err)
	assert.Equal(t, types.ErrNoSuitableModel, types.CodeOf(err))
}

func TestGenerateFallsBackToNextAdapter(t *testing.T) {
	broken := failing("broken")
	healthy := newFake("healthy")
	e := newTestEngine(t, Options{}, broken, healthy)

	var slept []time.Duration
	e.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	cfg := types.DefaultGenerationConfig("a red car")
	result, err := e.Generate(context.Background(), &cfg)
	require.NoError(t, err)
	assert.Equal(t, "healthy-job", result.JobID)
	assert.Equal(t, int32(1), broken.calls.Load())
	assert.Equal(t, int32(1), healthy.calls.Load())
	// one pause between the failed attempt and the fallback
	require.Len(t, slept, 1)
	assert.Equal(t, fallbackDelay, slept[0])

	// the failure and the success land on their own models' counters
	brokenInfo, ok := e.ModelInfo("broken")
	require.True(t, ok)
	assert.Equal(t, int64(1), brokenInfo.Metrics.TotalRequests)
	assert.Equal(t, 0.0, brokenInfo.Metrics.SuccessRate)

	healthyInfo, ok := e.ModelInfo("healthy")
	require.True(t, ok)
	assert.Equal(t, int64(1), healthyInfo.Metrics.TotalRequests)
	assert.Equal(t, 1.0, healthyInfo.Metrics.SuccessRate)
}

func TestGenerateNeverRetriesSameAdapter(t *testing.T) {
	a := failing("a")
	b := failing("b")
	c := failing("c")
	e := newTestEngine(t, Options{MaxRetries: 10}, a, b, c)

	cfg := types.DefaultGenerationConfig("a red car")
	_, err := e.Generate(context.Background(), &cfg)
	require.Error(t, err)
	assert.Equal(t, types.ErrGenerationFailed, types.CodeOf(err))

	// each adapter is tried exactly once even with budget to spare
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int32(1), b.calls.Load())
	assert.Equal(t, int32(1), c.calls.Load())

	var te *types.Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 2, te.RetryCount)
	assert.Contains(t, err.Error(), "generation failed after 2 retries")
}

func TestRepeatedModelFailuresTripBreaker(t *testing.T) {
	a := failing("luma")
	e := newTestEngine(t, Options{}, a)

	cfg := types.DefaultGenerationConfig("a red car")
	for i := 0; i < 5; i++ {
		_, err := e.Generate(context.Background(), &cfg)
		require.Error(t, err)
	}
	recent := e.errors.Recent(1)
	require.Len(t, recent, 1)
	assert.False(t, recent[0].CircuitOpen, "counter still accumulating")

	// failures accumulate under the model, not the per-request id, so the
	// next report short-circuits
	_, err := e.Generate(context.Background(), &cfg)
	require.Error(t, err)
	recent = e.errors.Recent(1)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].CircuitOpen)
	assert.Equal(t, "luma", recent[0].Model)
	assert.NotEmpty(t, recent[0].RequestID)
}

func TestGenerateSuccessResetsBreaker(t *testing.T) {
	a := newFake("luma")
	fail := true
	a.generate = func(ctx context.Context, cfg *types.GenerationConfig) (*types.GenerationResult, error) {
		if fail {
			return nil, types.NewError(types.ErrUpstream, "luma is down")
		}
		return &types.GenerationResult{JobID: "luma-job", Status: types.JobQueued}, nil
	}
	e := newTestEngine(t, Options{}, a)

	cfg := types.DefaultGenerationConfig("a red car")
	for i := 0; i < 4; i++ {
		_, err := e.Generate(context.Background(), &cfg)
		require.Error(t, err)
	}

	fail = false
	_, err := e.Generate(context.Background(), &cfg)
	require.NoError(t, err)

	// the success reset the counter for the same key the failures used
	fail = true
	for i := 0; i < 4; i++ {
		_, err := e.Generate(context.Background(), &cfg)
		require.Error(t, err)
	}
	recent := e.errors.Recent(1)
	require.Len(t, recent, 1)
	assert.False(t, recent[0].CircuitOpen)
}

func TestGenerateRespectsRetryBudget(t *testing.T) {
	a := failing("a")
	b := failing("b")
	c := failing("c")
	e := newTestEngine(t, Options{MaxRetries: 1}, a, b, c)

	cfg := types.DefaultGenerationConfig("a red car")
	_, err := e.Generate(context.Background(), &cfg)
	require.Error(t, err)

	total := a.calls.Load() + b.calls.Load() + c.calls.Load()
	assert.Equal(t, int32(2), total, "budget of 1 retry allows 2 attempts")
}

func TestGenerateWithPreferredModel(t *testing.T) {
	a := newFake("a")
	b := newFake("b")
	e := newTestEngine(t, Options{}, a, b)

	cfg := types.DefaultGenerationConfig("a red car")
	result, err := e.GenerateWith(context.Background(), &cfg, GenerateOptions{PreferredModel: "b"})
	require.NoError(t, err)
	assert.Equal(t, "b-job", result.JobID)
	assert.Equal(t, int32(0), a.calls.Load())
}

func TestGenerateWithUnsuitablePreferredFallsThrough(t *testing.T) {
	short := newFake("short")
	short.caps.MaxDuration = 3
	long := newFake("long")
	e := newTestEngine(t, Options{}, short, long)

	cfg := types.DefaultGenerationConfig("a red car")
	cfg.Duration = 10
	result, err := e.GenerateWith(context.Background(), &cfg, GenerateOptions{PreferredModel: "short"})
	require.NoError(t, err)
	assert.Equal(t, "long-job", result.JobID)
}

func TestGenerateAfterShutdown(t *testing.T) {
	a := newFake("a")
	e := newTestEngine(t, Options{}, a)
	require.NoError(t, e.Shutdown(context.Background()))

	cfg := types.DefaultGenerationConfig("a red car")
	_, err := e.Generate(context.Background(), &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shut down")
}

// ---------------------------------------------------------------------------
// Strategies
// ---------------------------------------------------------------------------

func TestRoundRobinRotates(t *testing.T) {
	a := newFake("a")
	b := newFake("b")
	e := newTestEngine(t, Options{Strategy: StrategyRoundRobin}, a, b)

	cfg := types.DefaultGenerationConfig("a red car")
	for i := 0; i < 4; i++ {
		_, err := e.Generate(context.Background(), &cfg)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), a.calls.Load())
	assert.Equal(t, int32(2), b.calls.Load())
}

func TestLeastLoadedAvoidsBusyAdapter(t *testing.T) {
	a := newFake("a")
	b := newFake("b")
	e := newTestEngine(t, Options{Strategy: StrategyLeastLoaded}, a, b)

	e.mu.Lock()
	e.metricsFor("a").IncrementLoad()
	e.mu.Unlock()

	cfg := types.DefaultGenerationConfig("a red car")
	result, err := e.Generate(context.Background(), &cfg)
	require.NoError(t, err)
	assert.Equal(t, "b-job", result.JobID)
}

func TestFastestResponsePrefersLowerAverage(t *testing.T) {
	a := newFake("a")
	b := newFake("b")
	e := newTestEngine(t, Options{Strategy: StrategyFastestResponse}, a, b)

	e.mu.Lock()
	e.metricsFor("a").UpdateSuccess(8 * time.Second)
	e.metricsFor("b").UpdateSuccess(2 * time.Second)
	e.mu.Unlock()

	cfg := types.DefaultGenerationConfig("a red car")
	result, err := e.Generate(context.Background(), &cfg)
	require.NoError(t, err)
	assert.Equal(t, "b-job", result.JobID)
}

func TestFastestResponseWithoutSamplesTakesFirst(t *testing.T) {
	a := newFake("a")
	b := newFake("b")
	e := newTestEngine(t, Options{Strategy: StrategyFastestResponse}, a, b)

	cfg := types.DefaultGenerationConfig("a red car")
	result, err := e.Generate(context.Background(), &cfg)
	require.NoError(t, err)
	assert.Equal(t, "a-job", result.JobID)
}

func TestSetStrategy(t *testing.T) {
	e := newTestEngine(t, Options{}, newFake("a"))
	assert.Equal(t, StrategyLeastLoaded, e.Strategy())

	require.NoError(t, e.SetStrategy(StrategyRandom))
	assert.Equal(t, StrategyRandom, e.Strategy())

	err := e.SetStrategy(Strategy("weighted_dice"))
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.CodeOf(err))
}

// ---------------------------------------------------------------------------
// Batch
// ---------------------------------------------------------------------------

func TestBatchGeneratePreservesOrderAndIsolatesFailures(t *testing.T) {
	a := newFake("a")
	a.generate = func(ctx context.Context, cfg *types.GenerationConfig) (*types.GenerationResult, error) {
		if cfg.Prompt == "bad scene" {
			return nil, types.NewError(types.ErrUpstream, "rejected")
		}
		return &types.GenerationResult{JobID: "job-" + cfg.Prompt, Status: types.JobQueued}, nil
	}
	e := newTestEngine(t, Options{}, a)

	scenes := []types.Scene{
		{SceneID: "s0", VisualPrompt: "opening shot", Duration: 5},
		{SceneID: "s1", VisualPrompt: "bad scene", Duration: 5},
		{SceneID: "s2", VisualPrompt: "closing shot", Duration: 5},
	}
	results := e.BatchGenerate(context.Background(), scenes, types.DefaultGenerationConfig("ignored"), 2)

	require.Len(t, results, 3)
	assert.Equal(t, "job-opening shot", results[0].JobID)
	assert.Equal(t, "failed_1", results[1].JobID)
	assert.Equal(t, types.JobFailed, results[1].Status)
	assert.NotEmpty(t, results[1].ErrorMessage)
	assert.Equal(t, "job-closing shot", results[2].JobID)
}

func TestBatchGenerateEmptyInput(t *testing.T) {
	e := newTestEngine(t, Options{}, newFake("a"))
	results := e.BatchGenerate(context.Background(), nil, types.DefaultGenerationConfig("x"), 0)
	assert.Empty(t, results)
}

func TestBatchGenerateBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	a := newFake("a")
	a.generate = func(ctx context.Context, cfg *types.GenerationConfig) (*types.GenerationResult, error) {
		current := inFlight.Add(1)
		for {
			p := peak.Load()
			if current <= p || peak.CompareAndSwap(p, current) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return &types.GenerationResult{JobID: "job", Status: types.JobQueued}, nil
	}
	e := newTestEngine(t, Options{}, a)

	scenes := make([]types.Scene, 8)
	for i := range scenes {
		scenes[i] = types.Scene{SceneID: string(rune('a' + i)), VisualPrompt: "shot", Duration: 5}
	}
	e.BatchGenerate(context.Background(), scenes, types.DefaultGenerationConfig("ignored"), 2)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

// ---------------------------------------------------------------------------
// Status, cancel, introspection
// ---------------------------------------------------------------------------

func TestJobStatusFanOut(t *testing.T) {
	a := newFake("a")
	b := newFake("b")
	b.getStatus = func(ctx context.Context, jobID string) (*types.GenerationResult, error) {
		return &types.GenerationResult{JobID: jobID, Status: types.JobProcessing}, nil
	}
	e := newTestEngine(t, Options{}, a, b)

	result, err := e.JobStatus(context.Background(), "job-1", "")
	require.NoError(t, err)
	assert.Equal(t, types.JobProcessing, result.Status)
}

func TestJobStatusNotFound(t *testing.T) {
	e := newTestEngine(t, Options{}, newFake("a"))
	_, err := e.JobStatus(context.Background(), "ghost", "")
	require.Error(t, err)
	assert.Equal(t, types.ErrJobNotFound, types.CodeOf(err))
}

func TestJobStatusDirectModel(t *testing.T) {
	a := newFake("a")
	a.getStatus = func(ctx context.Context, jobID string) (*types.GenerationResult, error) {
		return &types.GenerationResult{JobID: jobID, Status: types.JobCompleted, VideoURL: "https://cdn/v.mp4"}, nil
	}
	e := newTestEngine(t, Options{}, a, newFake("b"))

	result, err := e.JobStatus(context.Background(), "job-1", "a")
	require.NoError(t, err)
	assert.True(t, result.IsCompleted())
}

func TestCancelJobFanOut(t *testing.T) {
	a := newFake("a")
	a.cancel = func(ctx context.Context, jobID string) (bool, error) {
		return false, types.NewError(types.ErrJobNotFound, "not mine")
	}
	b := newFake("b")
	b.cancel = func(ctx context.Context, jobID string) (bool, error) { return true, nil }
	e := newTestEngine(t, Options{}, a, b)

	cancelled, err := e.CancelJob(context.Background(), "job-1", "")
	require.NoError(t, err)
	assert.True(t, cancelled)
}

func TestCancelJobNobodyAccepts(t *testing.T) {
	e := newTestEngine(t, Options{}, newFake("a"), newFake("b"))
	cancelled, err := e.CancelJob(context.Background(), "job-1", "")
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestModelInfoAndAvailableModels(t *testing.T) {
	a := newFake("a")
	disabled := newFake("off")
	disabled.enabled = false
	e := newTestEngine(t, Options{}, a, disabled)

	assert.Equal(t, []string{"a"}, e.AvailableModels())

	info, ok := e.ModelInfo("a")
	require.True(t, ok)
	assert.Equal(t, "a", info.Name)
	assert.Equal(t, 1.0, info.Metrics.SuccessRate)

	_, ok = e.ModelInfo("ghost")
	assert.False(t, ok)
}

func TestStatsAggregates(t *testing.T) {
	a := newFake("good")
	b := failing("bad")
	b.enabled = false // keep selection deterministic
	e := newTestEngine(t, Options{}, a, b)

	cfg := types.DefaultGenerationConfig("a red car")
	_, err := e.Generate(context.Background(), &cfg)
	require.NoError(t, err)

	stats := e.Stats()
	assert.Equal(t, int64(1), stats.TotalGenerations)
	assert.Equal(t, 1, stats.AvailableModels)
	assert.Equal(t, StrategyLeastLoaded, stats.LoadBalancingStrategy)
	assert.Equal(t, 0, stats.ActiveRequests)
	assert.Contains(t, stats.ModelMetrics, "good")
}

func TestShutdownClosesAdaptersOnce(t *testing.T) {
	a := newFake("a")
	b := newFake("b")
	e := newTestEngine(t, Options{}, a, b)

	require.NoError(t, e.Shutdown(context.Background()))
	assert.True(t, a.closed)
	assert.True(t, b.closed)
	require.NoError(t, e.Shutdown(context.Background()))
}

func TestMetricsRegistryIsPerEngine(t *testing.T) {
	e1 := newTestEngine(t, Options{}, newFake("a"))
	e2 := newTestEngine(t, Options{}, newFake("a"))
	assert.NotSame(t, e1.MetricsRegistry(), e2.MetricsRegistry())
}
