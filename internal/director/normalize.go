package director

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/director/internal/models"
)

// normalize implements spec §4.2 step 6: trim strings, round durations to
// 0.1, renumber ids sequentially, default missing transitionOut to cut,
// recompute totalDuration as the rounded sum. Idempotent by construction
// (spec §8): re-running it on its own output is a no-op because trimming,
// rounding, and sequential renumbering are all already-fixed-point
// operations.
func normalize(raw *rawPlan, projectID uuid.UUID) *models.Plan {
	plan := &models.Plan{
		ProjectID: projectID,
		Version:   1,
		Title:     strings.TrimSpace(raw.Title),
		Narrative: strings.TrimSpace(raw.Narrative),
		CreatedAt: time.Time{},
	}

	var total float64
	for sceneIdx, rs := range raw.Scenes {
		scene := models.Scene{
			ID:          sceneIdx + 1,
			Name:        strings.TrimSpace(rs.Name),
			Description: strings.TrimSpace(rs.Description),
			Mood:        strings.TrimSpace(rs.Mood),
		}
		for shotIdx, rsh := range rs.Shots {
			transition := models.TransitionOut(strings.TrimSpace(rsh.TransitionOut))
			if transition == "" {
				transition = models.DefaultTransition
			}
			duration := roundTo(rsh.Duration, 0.1)
			total += duration
			scene.Shots = append(scene.Shots, models.Shot{
				ID:            shotIdx + 1,
				Duration:      duration,
				StartPrompt:   strings.TrimSpace(rsh.StartPrompt),
				EndPrompt:     strings.TrimSpace(rsh.EndPrompt),
				MotionPrompt:  strings.TrimSpace(rsh.MotionPrompt),
				CameraMove:    models.CameraMove(strings.TrimSpace(rsh.CameraMove)),
				Lighting:      strings.TrimSpace(rsh.Lighting),
				ColorPalette:  strings.TrimSpace(rsh.ColorPalette),
				TransitionOut: transition,
			})
		}
		plan.Scenes = append(plan.Scenes, scene)
	}
	plan.TotalDuration = roundTo(total, 0.1)
	return plan
}

func roundTo(v, step float64) float64 {
	return math.Round(v/step) * step
}

func mustMarshalPlan(plan *models.Plan) string {
	b, err := json.Marshal(plan)
	if err != nil {
		return ""
	}
	return string(b)
}
