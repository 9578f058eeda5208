package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/videoflow/types"
)

// stubAdapter is a minimal in-memory Adapter for registry and polling
// tests.
type stubAdapter struct {
	name    string
	enabled bool
	caps    Caps

	generate  func(ctx context.Context, cfg *types.GenerationConfig) (*types.GenerationResult, error)
	getStatus func(ctx context.Context, jobID string) (*types.GenerationResult, error)
	cancel    func(ctx context.Context, jobID string) (bool, error)
	closed    bool
}

func newStub(name string) *stubAdapter {
	return &stubAdapter{
		name:    name,
		enabled: true,
		caps: Caps{
			Capabilities: []types.ModelCapability{types.CapTextToVideo},
			AspectRatios: []string{"16:9", "9:16", "1:1"},
			Qualities:    []string{"720p", "1080p", "4k"},
			MaxDuration:  300,
		},
	}
}

func (s *stubAdapter) Generate(ctx context.Context, cfg *types.GenerationConfig) (*types.GenerationResult, error) {
	if s.generate != nil {
		return s.generate(ctx, cfg)
	}
	return &types.GenerationResult{JobID: s.name + "-job", Status: types.JobQueued}, nil
}

func (s *stubAdapter) GetStatus(ctx context.Context, jobID string) (*types.GenerationResult, error) {
	if s.getStatus != nil {
		return s.getStatus(ctx, jobID)
	}
	return &types.GenerationResult{JobID: jobID, Status: types.JobProcessing}, nil
}

func (s *stubAdapter) CancelJob(ctx context.Context, jobID string) (bool, error) {
	if s.cancel != nil {
		return s.cancel(ctx, jobID)
	}
	return false, nil
}

func (s *stubAdapter) ValidateConfig(cfg *types.GenerationConfig) (bool, string) {
	return Validate(s, cfg)
}

func (s *stubAdapter) Name() string                          { return s.name }
func (s *stubAdapter) Enabled() bool                         { return s.enabled }
func (s *stubAdapter) Capabilities() []types.ModelCapability { return s.caps.Capabilities }
func (s *stubAdapter) SupportedAspectRatios() []string       { return s.caps.AspectRatios }
func (s *stubAdapter) SupportedQualities() []string          { return s.caps.Qualities }
func (s *stubAdapter) MaxDuration() float64                  { return s.caps.MaxDuration }
func (s *stubAdapter) Close(ctx context.Context) error       { s.closed = true; return nil }

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func TestRegistryRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newStub("luma")))

	err := r.Register(newStub("luma"))
	require.Error(t, err)
	assert.Equal(t, types.ErrAlreadyRegistered, types.CodeOf(err))
	assert.Equal(t, 1, r.Len())
}

func TestRegistryUnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newStub("pika")))

	assert.True(t, r.Unregister("pika"))
	assert.False(t, r.Unregister("pika"))
	assert.Equal(t, 0, r.Len())
}

func TestRegistryListPreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"runway", "luma", "pika"} {
		require.NoError(t, r.Register(newStub(name)))
	}
	assert.Equal(t, []string{"runway", "luma", "pika"}, r.List(false))

	disabled := newStub("extra")
	disabled.enabled = false
	require.NoError(t, r.Register(disabled))
	assert.Equal(t, []string{"runway", "luma", "pika"}, r.List(true))
	assert.Len(t, r.List(false), 4)
}

func TestRegistryByCapability(t *testing.T) {
	r := NewRegistry()
	i2v := newStub("i2v-only")
	i2v.caps.Capabilities = []types.ModelCapability{types.CapImageToVideo}
	require.NoError(t, r.Register(i2v))
	require.NoError(t, r.Register(newStub("t2v")))

	matches := r.ByCapability(types.CapTextToVideo)
	require.Len(t, matches, 1)
	assert.Equal(t, "t2v", matches[0].Name())
}

func TestRegistryBestForSkipsNonValidating(t *testing.T) {
	r := NewRegistry()
	short := newStub("short")
	short.caps.MaxDuration = 3
	require.NoError(t, r.Register(short))
	require.NoError(t, r.Register(newStub("long")))

	cfg := types.DefaultGenerationConfig("a red car")
	cfg.Duration = 10

	best, ok := r.BestFor(&cfg)
	require.True(t, ok)
	assert.Equal(t, "long", best.Name())
}

func TestRegistryBestForNoneSuitable(t *testing.T) {
	r := NewRegistry()
	short := newStub("short")
	short.caps.MaxDuration = 3
	require.NoError(t, r.Register(short))

	cfg := types.DefaultGenerationConfig("a red car")
	cfg.Duration = 10

	_, ok := r.BestFor(&cfg)
	assert.False(t, ok)
}

// ---------------------------------------------------------------------------
// Validate
// ---------------------------------------------------------------------------

func TestValidateReasons(t *testing.T) {
	a := newStub("narrow")
	a.caps.AspectRatios = []string{"16:9"}
	a.caps.Qualities = []string{"720p"}
	a.caps.MaxDuration = 5

	tests := []struct {
		name       string
		mutate     func(*types.GenerationConfig)
		wantOK     bool
		wantReason string
	}{
		{"fits", func(c *types.GenerationConfig) { c.Quality = "720p" }, true, ""},
		{"bad ratio", func(c *types.GenerationConfig) { c.Quality = "720p"; c.AspectRatio = "9:16" }, false, `aspect ratio "9:16" not supported by narrow`},
		{"bad quality", func(c *types.GenerationConfig) {}, false, `quality "1080p" not supported by narrow`},
		{"too long", func(c *types.GenerationConfig) { c.Quality = "720p"; c.Duration = 8 }, false, "duration 8.0s exceeds maximum 5.0s for narrow"},
		{"generic failure", func(c *types.GenerationConfig) { c.Prompt = "" }, false, "basic configuration validation failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := types.DefaultGenerationConfig("a red car")
			tt.mutate(&cfg)
			ok, reason := Validate(a, &cfg)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestDescribe(t *testing.T) {
	a := newStub("luma")
	info := Describe(a)
	assert.Equal(t, "luma", info.Name)
	assert.True(t, info.Enabled)
	assert.Equal(t, a.caps.AspectRatios, info.AspectRatios)
	assert.Equal(t, 300.0, info.MaxDuration)
}
