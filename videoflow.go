// Package videoflow provides the top-level entry point for the video
// generation studio: it wires the adapter registry, the generation
// engine, the error and recovery handler, and the script validator into
// one explicitly constructed context.
//
// Usage:
//
//	import "github.com/BaSui01/videoflow"
//
//	cfg, err := config.NewLoader().WithConfigPath("videoflow.yaml").Load()
//	studio, err := videoflow.New(cfg, logger)
//	defer studio.Close(context.Background())
//
//	cfg := types.DefaultGenerationConfig("a red car")
//	result, err := studio.Engine.Generate(ctx, &cfg)
package videoflow

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/BaSui01/videoflow/adapter"
	"github.com/BaSui01/videoflow/adapters/luma"
	"github.com/BaSui01/videoflow/adapters/pika"
	"github.com/BaSui01/videoflow/adapters/runway"
	"github.com/BaSui01/videoflow/config"
	"github.com/BaSui01/videoflow/engine"
	"github.com/BaSui01/videoflow/recovery"
	"github.com/BaSui01/videoflow/script"
	"github.com/BaSui01/videoflow/types"
)

// Studio owns the wired components. Construct one per configuration; no
// global instances exist.
type Studio struct {
	Registry  *adapter.Registry
	Engine    *engine.Engine
	Errors    *recovery.Handler
	Validator *script.Validator

	logger *zap.Logger
}

// adapterBuilder constructs one known backend from its settings.
type adapterBuilder func(types.ModelConfig, *zap.Logger) (adapter.Adapter, error)

var builders = map[string]adapterBuilder{
	"luma": func(cfg types.ModelConfig, l *zap.Logger) (adapter.Adapter, error) {
		return luma.New(cfg, l)
	},
	"runway": func(cfg types.ModelConfig, l *zap.Logger) (adapter.Adapter, error) {
		return runway.New(cfg, l)
	},
	"pika": func(cfg types.ModelConfig, l *zap.Logger) (adapter.Adapter, error) {
		return pika.New(cfg, l)
	},
}

// New builds a Studio from configuration. Enabled models with a known
// builder are constructed and registered; disabled or unconfigured models
// are skipped. A nil logger falls back to a nop logger.
func New(cfg *config.Config, logger *zap.Logger) (*Studio, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := adapter.NewRegistry()
	errHandler := recovery.NewHandler(logger)

	if err := registerModels(registry, cfg, logger); err != nil {
		return nil, err
	}

	eng := engine.New(registry, errHandler, logger, engine.Options{
		Strategy:      engine.Strategy(cfg.Workflow.Strategy),
		MaxRetries:    cfg.Workflow.MaxRetries,
		MaxConcurrent: int64(cfg.Workflow.MaxConcurrentTasks),
	})

	return &Studio{
		Registry:  registry,
		Engine:    eng,
		Errors:    errHandler,
		Validator: script.NewValidator(logger),
		logger:    logger,
	}, nil
}

// registerModels builds and registers adapters for the enabled models in
// cfg, in deterministic name order.
func registerModels(registry *adapter.Registry, cfg *config.Config, logger *zap.Logger) error {
	names := make([]string, 0, len(cfg.Models))
	for name := range cfg.Models {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		settings := cfg.Models[name]
		if !settings.Enabled {
			continue
		}
		build, ok := builders[name]
		if !ok {
			logger.Warn("no adapter implementation for configured model", zap.String("model", name))
			continue
		}
		a, err := build(settings, logger)
		if err != nil {
			return fmt.Errorf("failed to build adapter %q: %w", name, err)
		}
		if err := registry.Register(a); err != nil {
			return err
		}
		logger.Info("registered adapter", zap.String("model", name))
	}
	return nil
}

// Reload replaces the registered adapters with the set enabled in cfg and
// applies the new workflow strategy. Work already in flight on an old
// adapter finishes on the reference its caller holds; only discoverability
// changes.
func (s *Studio) Reload(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("reload requires a configuration")
	}

	for _, a := range s.Registry.All() {
		s.Registry.Unregister(a.Name())
		if err := a.Close(ctx); err != nil {
			s.logger.Warn("adapter close failed during reload",
				zap.String("model", a.Name()), zap.Error(err))
		}
	}

	if err := registerModels(s.Registry, cfg, s.logger); err != nil {
		return err
	}

	if strategy := engine.Strategy(cfg.Workflow.Strategy); strategy.Valid() {
		if err := s.Engine.SetStrategy(strategy); err != nil {
			return err
		}
	}
	s.logger.Info("configuration reloaded", zap.Strings("models", s.Registry.List(true)))
	return nil
}

// Close shuts the engine down and releases all adapter sessions.
func (s *Studio) Close(ctx context.Context) error {
	return s.Engine.Shutdown(ctx)
}
