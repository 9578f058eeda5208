// Package script parses structured generation scripts (a JSON object with
// a scenes array) into validated Scene objects with field-level error
// reporting and advisory warnings.
package script

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/videoflow/types"
)

// Script-level advisory limits. Exceeding them is a warning, not an
// error.
const (
	TotalDurationWarnBeyond = 300.0
	SceneCountWarnBeyond    = 50
)

// ValidationError is one field-level failure, addressed by a dotted field
// path like "scenes[2].duration".
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// Result is the outcome of validating one script. Scenes holds only the
// scenes that validated cleanly, so an invalid script may still yield a
// partial scene list; callers must treat that as a partial result.
type Result struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []string          `json:"warnings"`
	Scenes   []types.Scene     `json:"scenes"`
}

// ErrorSummary formats all errors and warnings into one readable block.
func (r *Result) ErrorSummary() string {
	if len(r.Errors) == 0 {
		return "No errors found"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d validation error(s):\n", len(r.Errors))
	for i, e := range r.Errors {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, e.Field, e.Message)
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintf(&b, "\nWarnings (%d):\n", len(r.Warnings))
		for i, w := range r.Warnings {
			fmt.Fprintf(&b, "%d. %s\n", i+1, w)
		}
	}
	return b.String()
}

// Validator parses and validates generation scripts.
type Validator struct {
	logger *zap.Logger
}

// NewValidator creates a Validator. A nil logger falls back to a nop
// logger.
func NewValidator(logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{logger: logger.Named("script")}
}

// Parse decodes raw JSON and validates it as a script.
func (v *Validator) Parse(data []byte) *Result {
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return &Result{Errors: []ValidationError{{
			Field:   "json_format",
			Message: fmt.Sprintf("invalid JSON format: %v", err),
		}}}
	}
	return v.ParseValue(root)
}

// ParseFile reads and validates a script file.
func (v *Validator) ParseFile(path string) *Result {
	data, err := os.ReadFile(path)
	if err != nil {
		v.logger.Error("failed to read script file", zap.String("path", path), zap.Error(err))
		return &Result{Errors: []ValidationError{{
			Field:   "file",
			Message: fmt.Sprintf("error reading file: %v", err),
		}}}
	}
	return v.Parse(data)
}

// ParseValue validates an already-decoded script value. Root-level fields
// other than "scenes" (title, description and the like) are ignored.
func (v *Validator) ParseValue(value any) *Result {
	result := &Result{}

	obj, ok := value.(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Field: "root", Message: "script must be a JSON object",
		})
		return result
	}

	scenesRaw, ok := obj["scenes"]
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Field: "scenes", Message: "script must contain a 'scenes' array",
		})
		return result
	}
	list, ok := scenesRaw.([]any)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Field: "scenes", Message: "'scenes' must be an array",
		})
		return result
	}
	if len(list) == 0 {
		result.Valid = true
		result.Warnings = append(result.Warnings, "script contains no scenes")
		return result
	}

	seen := make(map[string]bool)
	for i, elem := range list {
		errs, warns, scene := v.validateScene(i, elem)
		result.Errors = append(result.Errors, errs...)
		result.Warnings = append(result.Warnings, warns...)
		if scene == nil {
			continue
		}
		// duplicates are attributed to the later occurrence
		if seen[scene.SceneID] {
			result.Errors = append(result.Errors, ValidationError{
				Field:   fmt.Sprintf("scenes[%d].scene_id", i),
				Message: fmt.Sprintf("duplicate scene ID: %s", scene.SceneID),
			})
			continue
		}
		seen[scene.SceneID] = true
		result.Scenes = append(result.Scenes, *scene)
	}

	if len(result.Scenes) > 0 {
		total := 0.0
		for _, s := range result.Scenes {
			total += s.Duration
		}
		if total > TotalDurationWarnBeyond {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("total script duration (%.1fs) exceeds recommended maximum (%.0fs)", total, TotalDurationWarnBeyond))
		}
		if len(result.Scenes) > SceneCountWarnBeyond {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("script contains %d scenes, which exceeds recommended maximum (%d)", len(result.Scenes), SceneCountWarnBeyond))
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

var optionalFields = []string{"camera_movement", "lighting", "reference_image"}

func knownFields() map[string]bool {
	known := map[string]bool{"scene_id": true, "visual_prompt": true, "duration": true}
	for _, f := range optionalFields {
		known[f] = true
	}
	return known
}

func (v *Validator) validateScene(index int, elem any) ([]ValidationError, []string, *types.Scene) {
	var errs []ValidationError
	var warns []string
	path := func(field string) string { return fmt.Sprintf("scenes[%d].%s", index, field) }

	obj, ok := elem.(map[string]any)
	if !ok {
		errs = append(errs, ValidationError{
			Field: fmt.Sprintf("scenes[%d]", index), Message: "scene must be an object",
		})
		return errs, warns, nil
	}

	scene := &types.Scene{}

	if id, ok, err := requireString(obj, "scene_id", path("scene_id")); err != nil {
		errs = append(errs, *err)
	} else if ok {
		switch {
		case strings.TrimSpace(id) == "":
			errs = append(errs, ValidationError{Field: path("scene_id"), Message: "Scene ID cannot be empty"})
		case len(id) > types.MaxSceneIDLength:
			errs = append(errs, ValidationError{
				Field:   path("scene_id"),
				Message: fmt.Sprintf("Scene ID cannot exceed %d characters", types.MaxSceneIDLength),
			})
		default:
			scene.SceneID = id
		}
	}

	if prompt, ok, err := requireString(obj, "visual_prompt", path("visual_prompt")); err != nil {
		errs = append(errs, *err)
	} else if ok {
		switch {
		case strings.TrimSpace(prompt) == "":
			errs = append(errs, ValidationError{Field: path("visual_prompt"), Message: "Visual prompt cannot be empty"})
		case len(prompt) > types.MaxVisualPromptLength:
			errs = append(errs, ValidationError{
				Field:   path("visual_prompt"),
				Message: fmt.Sprintf("Visual prompt cannot exceed %d characters", types.MaxVisualPromptLength),
			})
		default:
			scene.VisualPrompt = prompt
		}
	}

	durationRaw, present := obj["duration"]
	if !present {
		errs = append(errs, ValidationError{Field: path("duration"), Message: "Required field 'duration' is missing"})
	} else if duration, ok := asNumber(durationRaw); !ok {
		errs = append(errs, ValidationError{
			Field: path("duration"), Message: "Field 'duration' must be a number", Value: durationRaw,
		})
	} else if duration <= 0 {
		errs = append(errs, ValidationError{Field: path("duration"), Message: "Duration must be positive", Value: duration})
	} else {
		if duration > types.SceneDurationWarnBeyond {
			warns = append(warns, fmt.Sprintf("Scene %d: Duration (%.1fs) exceeds recommended maximum (%.0fs)",
				index, duration, types.SceneDurationWarnBeyond))
		}
		scene.Duration = duration
	}

	for _, field := range optionalFields {
		raw, present := obj[field]
		if !present || raw == nil {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			errs = append(errs, ValidationError{
				Field: path(field), Message: fmt.Sprintf("Field '%s' must be of type string", field), Value: raw,
			})
			continue
		}
		switch field {
		case "camera_movement":
			scene.CameraMovement = s
		case "lighting":
			scene.Lighting = s
		case "reference_image":
			scene.ReferenceImage = s
		}
	}

	known := knownFields()
	var unknown []string
	for field := range obj {
		if !known[field] {
			unknown = append(unknown, field)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		warns = append(warns, fmt.Sprintf("Scene %d: Unknown fields ignored: %s", index, strings.Join(unknown, ", ")))
	}

	if len(errs) > 0 {
		return errs, warns, nil
	}
	if !scene.Validate() {
		errs = append(errs, ValidationError{
			Field: fmt.Sprintf("scenes[%d]", index), Message: "scene failed internal validation",
		})
		return errs, warns, nil
	}
	return errs, warns, scene
}

func requireString(obj map[string]any, field, path string) (string, bool, *ValidationError) {
	raw, present := obj[field]
	if !present {
		return "", false, &ValidationError{
			Field: path, Message: fmt.Sprintf("Required field '%s' is missing", field),
		}
	}
	s, ok := raw.(string)
	if !ok {
		return "", false, &ValidationError{
			Field: path, Message: fmt.Sprintf("Field '%s' must be of type string", field), Value: raw,
		}
	}
	return s, true, nil
}

func asNumber(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
