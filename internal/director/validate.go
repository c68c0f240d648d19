package director

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/bobarin/director/internal/models"
)

var compiledPlanSchema = mustCompileSchema(planSchema)

func mustCompileSchema(text string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(text))
	if err != nil {
		panic(fmt.Sprintf("director: invalid plan schema: %v", err))
	}
	return schema
}

// rawPlan/rawScene/rawShot mirror planSchema exactly, for a single
// json.Unmarshal pass; normalize converts a rawPlan into the model layer's
// Plan, renumbering scene and shot ids sequentially from 1.
type rawPlan struct {
	Title         string    `json:"title"`
	Narrative     string    `json:"narrative"`
	TotalDuration float64   `json:"totalDuration"`
	Scenes        []rawScene `json:"scenes"`
}

type rawScene struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Mood        string   `json:"mood"`
	Shots       []rawShot `json:"shots"`
}

type rawShot struct {
	ID            int     `json:"id"`
	Duration      float64 `json:"duration"`
	StartPrompt   string  `json:"startPrompt"`
	EndPrompt     string  `json:"endPrompt"`
	MotionPrompt  string  `json:"motionPrompt"`
	CameraMove    string  `json:"cameraMove"`
	Lighting      string  `json:"lighting"`
	ColorPalette  string  `json:"colorPalette"`
	TransitionOut string  `json:"transitionOut"`
}

// parseAndValidate runs spec §4.2 steps 4-5: parse, then strict
// fail-on-first-violation semantic validation against targetDuration
// with the given tolerance fraction (0.1 for direct, also 0.1 for
// refine but anchored to the prior plan's total per spec).
func parseAndValidate(raw string, targetDuration float64, tolerance float64, constraints models.PlanConstraints) (*rawPlan, error) {
	result, err := compiledPlanSchema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, &ValidationError{Kind: ValidationMalformed, Message: fmt.Sprintf("schema validation error: %v", err)}
	}
	if !result.Valid() {
		var issues []string
		for _, e := range result.Errors() {
			issues = append(issues, e.String())
		}
		return nil, &ValidationError{Kind: ValidationMalformed, Message: strings.Join(issues, "; ")}
	}

	var plan rawPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, &ValidationError{Kind: ValidationMalformed, Message: fmt.Sprintf("json parse failed: %v", err)}
	}

	if err := validateSemantics(&plan, targetDuration, tolerance, constraints); err != nil {
		return nil, err
	}
	return &plan, nil
}

func validateSemantics(plan *rawPlan, targetDuration, tolerance float64, constraints models.PlanConstraints) error {
	if constraints.MaxScenes > 0 && len(plan.Scenes) > constraints.MaxScenes {
		return &ValidationError{Kind: ValidationRule, Message: fmt.Sprintf("scene count %d exceeds max %d", len(plan.Scenes), constraints.MaxScenes)}
	}

	var total float64
	for sceneIdx, scene := range plan.Scenes {
		expectedSceneID := sceneIdx + 1
		if scene.ID != expectedSceneID {
			return &ValidationError{Kind: ValidationRule, SceneID: scene.ID, Message: fmt.Sprintf("scene id %d is not sequential (expected %d)", scene.ID, expectedSceneID)}
		}
		if constraints.MaxShotsPerScene > 0 && len(scene.Shots) > constraints.MaxShotsPerScene {
			return &ValidationError{Kind: ValidationRule, SceneID: scene.ID, Message: fmt.Sprintf("shot count %d exceeds max %d", len(scene.Shots), constraints.MaxShotsPerScene)}
		}
		for shotIdx, shot := range scene.Shots {
			expectedShotID := shotIdx + 1
			if shot.ID != expectedShotID {
				return &ValidationError{Kind: ValidationRule, SceneID: scene.ID, ShotID: shot.ID, Message: fmt.Sprintf("shot id %d is not sequential within scene (expected %d)", shot.ID, expectedShotID)}
			}
			if shot.Duration < 5 || shot.Duration > 10 {
				return &ValidationError{Kind: ValidationRule, SceneID: scene.ID, ShotID: shot.ID, Message: fmt.Sprintf("duration %.1f outside [5, 10]", shot.Duration)}
			}
			if err := requireMinTokens(scene.ID, shot.ID, "startPrompt", shot.StartPrompt); err != nil {
				return err
			}
			if err := requireMinTokens(scene.ID, shot.ID, "endPrompt", shot.EndPrompt); err != nil {
				return err
			}
			if err := requireMinTokens(scene.ID, shot.ID, "motionPrompt", shot.MotionPrompt); err != nil {
				return err
			}
			if !models.CameraMove(shot.CameraMove).Valid() {
				return &ValidationError{Kind: ValidationRule, SceneID: scene.ID, ShotID: shot.ID, Message: fmt.Sprintf("cameraMove %q not in closed enumeration", shot.CameraMove)}
			}
			if strings.TrimSpace(shot.Lighting) == "" {
				return &ValidationError{Kind: ValidationRule, SceneID: scene.ID, ShotID: shot.ID, Message: "lighting is empty"}
			}
			if shot.TransitionOut != "" && !models.TransitionOut(shot.TransitionOut).Valid() {
				return &ValidationError{Kind: ValidationRule, SceneID: scene.ID, ShotID: shot.ID, Message: fmt.Sprintf("transitionOut %q not in closed enumeration", shot.TransitionOut)}
			}
			total += shot.Duration
		}
	}

	lower := targetDuration * (1 - tolerance)
	upper := targetDuration * (1 + tolerance)
	if total < lower || total > upper {
		return &ValidationError{Kind: ValidationRule, Message: fmt.Sprintf("total duration %.1f outside [%.1f, %.1f]", total, lower, upper)}
	}
	return nil
}

func requireMinTokens(sceneID, shotID int, field, value string) error {
	const minTokens = 20
	if len(strings.Fields(value)) < minTokens {
		return &ValidationError{Kind: ValidationRule, SceneID: sceneID, ShotID: shotID, Message: fmt.Sprintf("%s has fewer than %d tokens", field, minTokens)}
	}
	return nil
}
