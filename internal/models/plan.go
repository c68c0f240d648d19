package models

import (
	"time"

	"github.com/google/uuid"
)

// CameraMove is the closed set of camera movements a Shot may declare.
type CameraMove string

const (
	CameraStatic    CameraMove = "static"
	CameraPushIn    CameraMove = "push_in"
	CameraPullOut   CameraMove = "pull_out"
	CameraPanLeft   CameraMove = "pan_left"
	CameraPanRight  CameraMove = "pan_right"
	CameraTiltUp    CameraMove = "tilt_up"
	CameraTiltDown  CameraMove = "tilt_down"
	CameraCraneUp   CameraMove = "crane_up"
	CameraCraneDown CameraMove = "crane_down"
	CameraDollyLeft CameraMove = "dolly_left"
	CameraDollyRight CameraMove = "dolly_right"
)

// ValidCameraMoves is the full enumeration, in prompt/presentation order.
var ValidCameraMoves = []CameraMove{
	CameraStatic, CameraPushIn, CameraPullOut, CameraPanLeft, CameraPanRight,
	CameraTiltUp, CameraTiltDown, CameraCraneUp, CameraCraneDown,
	CameraDollyLeft, CameraDollyRight,
}

func (c CameraMove) Valid() bool {
	for _, v := range ValidCameraMoves {
		if v == c {
			return true
		}
	}
	return false
}

// TransitionOut is the closed set of transitions out of a Shot.
type TransitionOut string

const (
	TransitionCut        TransitionOut = "cut"
	TransitionCrossfade  TransitionOut = "crossfade"
	TransitionFadeBlack  TransitionOut = "fade_black"
	TransitionFadeWhite  TransitionOut = "fade_white"
	TransitionWipeLeft   TransitionOut = "wipe_left"
	TransitionWipeRight  TransitionOut = "wipe_right"
)

var ValidTransitions = []TransitionOut{
	TransitionCut, TransitionCrossfade, TransitionFadeBlack,
	TransitionFadeWhite, TransitionWipeLeft, TransitionWipeRight,
}

func (t TransitionOut) Valid() bool {
	for _, v := range ValidTransitions {
		if v == t {
			return true
		}
	}
	return false
}

// DefaultTransition is what a missing transition_out normalizes to.
const DefaultTransition = TransitionCut

// Shot is an atomic 5-10 second unit of a Scene.
type Shot struct {
	ID            int           `json:"id"`
	Duration      float64       `json:"duration"`
	StartPrompt   string        `json:"start_prompt"`
	EndPrompt     string        `json:"end_prompt"`
	MotionPrompt  string        `json:"motion_prompt"`
	CameraMove    CameraMove    `json:"camera_move"`
	Lighting      string        `json:"lighting"`
	ColorPalette  string        `json:"color_palette,omitempty"`
	TransitionOut TransitionOut `json:"transition_out,omitempty"`
}

// Scene is a narrative unit of a Plan, containing one or more Shots.
type Scene struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Mood        string `json:"mood"`
	Shots       []Shot `json:"shots"`
}

// Plan is the validated, normalized shot decomposition of a concept.
// Immutable once approved (Project.ApprovedVersion freezes the version).
type Plan struct {
	ProjectID     uuid.UUID `json:"project_id"`
	Version       int       `json:"version"`
	Title         string    `json:"title"`
	Narrative     string    `json:"narrative"`
	TotalDuration float64   `json:"total_duration"`
	Scenes        []Scene   `json:"scenes"`
	CreatedAt     time.Time `json:"created_at"`
}

// ShotCount returns the total number of shots across all scenes, in
// scene-then-shot order.
func (p *Plan) ShotCount() int {
	n := 0
	for _, s := range p.Scenes {
		n += len(s.Shots)
	}
	return n
}

// Shots flattens the plan's scenes into a single ordered slice, tagging
// each shot with its owning scene ID. Order is scene-then-shot, matching
// the submission order the Orchestrator must use (spec §4.5 Ordering).
func (p *Plan) Shots() []FlatShot {
	flat := make([]FlatShot, 0, p.ShotCount())
	for _, scene := range p.Scenes {
		for _, shot := range scene.Shots {
			flat = append(flat, FlatShot{SceneID: scene.ID, Shot: shot})
		}
	}
	return flat
}

// FlatShot pairs a Shot with its owning Scene ID for scene-then-shot
// iteration without re-walking the nested Plan structure.
type FlatShot struct {
	SceneID int
	Shot    Shot
}
