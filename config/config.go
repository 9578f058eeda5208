// Package config loads the studio configuration from defaults, an
// optional YAML file and environment variable overrides, in that order of
// precedence. It also provides a polling file watcher for configuration
// hot reload.
package config

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/videoflow/types"
)

// Config is the complete studio configuration.
type Config struct {
	// Models maps adapter names to their backend settings.
	Models map[string]types.ModelConfig `yaml:"models"`

	// Workflow tunes orchestration-level behavior.
	Workflow WorkflowConfig `yaml:"workflow" env:"WORKFLOW"`

	// Log configures the zap logger built by NewLogger.
	Log LogConfig `yaml:"log" env:"LOG"`
}

// WorkflowConfig tunes the generation engine.
type WorkflowConfig struct {
	// MaxConcurrentTasks bounds batch generation concurrency.
	MaxConcurrentTasks int `yaml:"max_concurrent_tasks" env:"MAX_CONCURRENT_TASKS"`
	// TaskTimeout bounds one end-to-end generation wait.
	TaskTimeout time.Duration `yaml:"task_timeout" env:"TASK_TIMEOUT"`
	// MaxRetries is the cross-adapter fallback budget per request.
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// Strategy names the load balancing policy.
	Strategy string `yaml:"strategy" env:"STRATEGY"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
	Encoding    string `yaml:"encoding" env:"ENCODING"`
}

// DefaultConfig returns the baseline configuration. Model entries exist
// for all known backends but start disabled; the env override pass
// enables a model when its API key is found.
func DefaultConfig() *Config {
	return &Config{
		Models: map[string]types.ModelConfig{
			"luma": {
				Name:       "luma",
				BaseURL:    "https://api.lumalabs.ai/dream-machine/v1",
				Timeout:    300 * time.Second,
				MaxRetries: 3,
			},
			"runway": {
				Name:       "runway",
				BaseURL:    "https://api.runwayml.com/v1",
				Timeout:    300 * time.Second,
				MaxRetries: 3,
			},
			"pika": {
				Name:       "pika",
				BaseURL:    "https://api.pika.art/v1",
				Timeout:    300 * time.Second,
				MaxRetries: 3,
			},
		},
		Workflow: WorkflowConfig{
			MaxConcurrentTasks: 5,
			TaskTimeout:        30 * time.Minute,
			MaxRetries:         3,
			Strategy:           "least_loaded",
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Validate checks the loaded configuration for internal consistency.
// Disabled models are allowed to be incomplete; enabled ones are not.
func (c *Config) Validate() error {
	if c.Workflow.MaxConcurrentTasks <= 0 {
		return fmt.Errorf("workflow.max_concurrent_tasks must be positive, got %d", c.Workflow.MaxConcurrentTasks)
	}
	if c.Workflow.TaskTimeout <= 0 {
		return fmt.Errorf("workflow.task_timeout must be positive, got %s", c.Workflow.TaskTimeout)
	}
	if c.Workflow.MaxRetries < 0 {
		return fmt.Errorf("workflow.max_retries must not be negative, got %d", c.Workflow.MaxRetries)
	}
	for name, m := range c.Models {
		if !m.Enabled {
			continue
		}
		if !m.Validate() {
			return fmt.Errorf("model %q is enabled but its configuration is invalid", name)
		}
	}
	return nil
}

// EnabledModels returns the names of models that are enabled and valid.
func (c *Config) EnabledModels() []string {
	var names []string
	for name, m := range c.Models {
		if m.Enabled && m.Validate() {
			names = append(names, name)
		}
	}
	return names
}

// NewLogger builds a zap logger from the log section.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if cfg.Encoding != "" {
		zapCfg.Encoding = cfg.Encoding
	}
	return zapCfg.Build()
}
