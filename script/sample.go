package script

import (
	"fmt"
	"time"
)

// SampleScript builds a valid demonstration script with n scenes, handy
// for docs and smoke tests.
func SampleScript(n int) map[string]any {
	if n <= 0 {
		n = 3
	}
	scenes := make([]any, 0, n)
	for i := 0; i < n; i++ {
		movement := "zoom_in"
		if i%2 == 1 {
			movement = "pan_left"
		}
		scene := map[string]any{
			"scene_id":        fmt.Sprintf("scene_%d", i+1),
			"visual_prompt":   fmt.Sprintf("A beautiful product showcase scene %d with professional lighting", i+1),
			"duration":        5.0,
			"camera_movement": movement,
			"lighting":        "soft_studio_lighting",
		}
		if i < 2 {
			scene["reference_image"] = fmt.Sprintf("asset_id_%d", i+1)
		}
		scenes = append(scenes, scene)
	}
	return map[string]any{
		"title":       "Sample Video Script",
		"description": "A sample script for product video generation",
		"created_at":  time.Now().Format(time.RFC3339),
		"scenes":      scenes,
	}
}
