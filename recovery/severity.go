package recovery

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category classifies a failure by the subsystem it originated in.
type Category string

const (
	CategoryModelAdapter    Category = "model_adapter_error"
	CategoryGeneration      Category = "generation_error"
	CategoryAssetManagement Category = "asset_management_error"
	CategoryWorkflow        Category = "workflow_error"
	CategoryConfiguration   Category = "configuration_error"
	CategoryRendering       Category = "rendering_error"
	CategoryTemplate        Category = "template_error"
	CategorySceneProcessing Category = "scene_processing_error"
	CategoryNetwork         Category = "network_error"
	CategoryTimeout         Category = "timeout_error"
	CategoryRateLimit       Category = "rate_limit_error"
	CategoryValidation      Category = "validation_error"
)

// Severity ranks how badly a failure impacts the caller.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

func (s Severity) logLevel() zapcore.Level {
	switch s {
	case SeverityCritical, SeverityHigh:
		return zap.ErrorLevel
	case SeverityMedium:
		return zap.WarnLevel
	default:
		return zap.InfoLevel
	}
}

// determineSeverity maps a category plus keyword cues in the error text to
// a severity. The mapping is a deterministic lookup.
func determineSeverity(category Category, err error) Severity {
	msg := ""
	if err != nil {
		msg = strings.ToLower(err.Error())
	}

	if category == CategoryWorkflow && strings.Contains(msg, "task_manager") {
		return SeverityCritical
	}
	if category == CategoryConfiguration && strings.Contains(msg, "invalid") {
		return SeverityCritical
	}

	if category == CategoryModelAdapter || category == CategoryGeneration {
		for _, kw := range []string{"authentication", "unauthorized", "api key"} {
			if strings.Contains(msg, kw) {
				return SeverityHigh
			}
		}
	}
	if category == CategoryRendering {
		return SeverityHigh
	}

	switch category {
	case CategoryAssetManagement, CategoryTemplate, CategorySceneProcessing, CategoryValidation:
		return SeverityMedium
	case CategoryNetwork, CategoryTimeout, CategoryRateLimit:
		// usually transient
		return SeverityLow
	}

	return SeverityMedium
}

var baseMessages = map[Category]string{
	CategoryModelAdapter:    "There was an issue connecting to the AI video generation service. This might be due to network issues or API configuration.",
	CategoryGeneration:      "Video generation failed. This could be due to invalid parameters or service issues.",
	CategoryAssetManagement: "Asset management operation failed. Please check file permissions and available storage space.",
	CategoryWorkflow:        "The video generation workflow encountered an issue. The task may need to be restarted.",
	CategoryConfiguration:   "Configuration validation failed. Please check your video generation settings.",
	CategoryRendering:       "Video rendering failed. This might be due to insufficient resources or invalid scene data.",
	CategoryTemplate:        "Template processing failed. The selected template may be corrupted or incompatible.",
	CategorySceneProcessing: "Scene processing failed. Please check your scene configuration and input data.",
	CategoryNetwork:         "Network connection issue detected. Please check your internet connection.",
	CategoryTimeout:         "The operation took too long to complete. This might be due to high server load.",
	CategoryRateLimit:       "Too many requests have been made. Please wait a moment before trying again.",
	CategoryValidation:      "The input provided doesn't meet the required format or constraints.",
}

// UserMessage builds the human-readable message for a failure, appending
// targeted guidance when the error text matches a known pattern.
func UserMessage(category Category, err error) string {
	msg, ok := baseMessages[category]
	if !ok {
		msg = "An unexpected error occurred in the video generation system."
	}

	text := ""
	if err != nil {
		text = strings.ToLower(err.Error())
	}
	switch {
	case strings.Contains(text, "api key") || strings.Contains(text, "authentication"):
		msg += " Please check your API key configuration."
	case strings.Contains(text, "file size") || strings.Contains(text, "too large"):
		msg += " The file may be too large. Try a smaller file or different format."
	case strings.Contains(text, "timeout") || strings.Contains(text, "connection"):
		msg += " This is usually temporary. Please try again in a moment."
	case strings.Contains(text, "memory") || strings.Contains(text, "resource"):
		msg += " The system may be running low on resources. Try reducing the complexity of your request."
	}
	return msg
}
