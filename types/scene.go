package types

// Scene is one shot within a multi-shot generation script. Scenes are
// built by the script validator and immutable afterwards; batch generation
// turns each scene into a per-scene GenerationConfig.
type Scene struct {
	SceneID        string  `json:"scene_id"`
	VisualPrompt   string  `json:"visual_prompt"`
	Duration       float64 `json:"duration"`
	CameraMovement string  `json:"camera_movement,omitempty"`
	Lighting       string  `json:"lighting,omitempty"`
	ReferenceImage string  `json:"reference_image,omitempty"`
}

// Scene field limits enforced by the script validator.
const (
	MaxSceneIDLength        = 100
	MaxVisualPromptLength   = 1000
	SceneDurationWarnBeyond = 60.0
)

// Validate checks the hard constraints on a scene. The script validator
// reports field-level errors with more detail; this is the final guard
// before a scene is accepted.
func (s *Scene) Validate() bool {
	if s.SceneID == "" || len(s.SceneID) > MaxSceneIDLength {
		return false
	}
	if s.VisualPrompt == "" || len(s.VisualPrompt) > MaxVisualPromptLength {
		return false
	}
	return s.Duration > 0
}

// Config builds the per-scene generation config, inheriting the shared
// fields from base and substituting the scene-specific ones.
func (s *Scene) Config(base GenerationConfig) GenerationConfig {
	cfg := base
	cfg.Prompt = s.VisualPrompt
	cfg.Duration = s.Duration
	cfg.CameraMovement = s.CameraMovement
	cfg.ReferenceImage = s.ReferenceImage
	return cfg
}
