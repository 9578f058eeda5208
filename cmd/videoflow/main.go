// Command videoflow is the command line entry point for the video
// generation studio.
//
// Usage:
//
//	videoflow validate <script.json>          # validate a generation script
//	videoflow validate --config cfg.yaml s.json
//	videoflow models                          # list configured models
//	videoflow sample                          # print a sample script
//	videoflow version                         # show version information
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/BaSui01/videoflow"
	"github.com/BaSui01/videoflow/config"
	"github.com/BaSui01/videoflow/script"
)

// Version info, injected at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		runValidate(os.Args[2:])
	case "models":
		runModels(os.Args[2:])
	case "sample":
		runSample(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func loadConfig(configPath string) *config.Config {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func buildLogger(cfg *config.Config) *zap.Logger {
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "validate: missing script file argument")
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	logger := buildLogger(cfg)
	defer logger.Sync()

	validator := script.NewValidator(logger)
	result := validator.ParseFile(fs.Arg(0))
	if !result.Valid {
		fmt.Fprintln(os.Stderr, result.ErrorSummary())
		os.Exit(1)
	}

	fmt.Printf("Script is valid: %d scene(s)\n", len(result.Scenes))
	for _, w := range result.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}

func runModels(args []string) {
	fs := flag.NewFlagSet("models", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := buildLogger(cfg)
	defer logger.Sync()

	studio, err := videoflow.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize studio: %v\n", err)
		os.Exit(1)
	}
	defer studio.Close(context.Background())

	models := studio.Engine.AvailableModels()
	if len(models) == 0 {
		fmt.Println("No models enabled. Set an API key, e.g. export LUMA_API_KEY=...")
		return
	}
	for _, name := range models {
		info, ok := studio.Engine.ModelInfo(name)
		if !ok {
			continue
		}
		fmt.Printf("%-10s max %.0fs  ratios %v  qualities %v\n",
			info.Name, info.MaxDuration, info.AspectRatios, info.Qualities)
	}
}

func runSample(args []string) {
	fs := flag.NewFlagSet("sample", flag.ExitOnError)
	scenes := fs.Int("scenes", 3, "Number of scenes to generate")
	fs.Parse(args)

	data, err := json.MarshalIndent(script.SampleScript(*scenes), "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode sample script: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func printVersion() {
	fmt.Printf("videoflow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`videoflow - AI video generation studio

Usage:
  videoflow <command> [options]

Commands:
  validate  Validate a generation script file
  models    List configured and enabled models
  sample    Print a sample generation script
  version   Show version information
  help      Show this help message

Options for 'validate' and 'models':
  --config <path>   Path to configuration file (YAML)

Examples:
  videoflow validate script.json
  videoflow models --config /etc/videoflow/config.yaml
  videoflow sample --scenes 5 > script.json`)
}
