package models

import (
	"time"

	"github.com/google/uuid"
)

// JobPhase is the coarse state of a Job (spec §4.5 state machine).
type JobPhase string

const (
	PhasePending           JobPhase = "pending"
	PhaseGeneratingImages  JobPhase = "generating_images"
	PhaseImagesComplete    JobPhase = "images_complete"
	PhaseGeneratingVideos  JobPhase = "generating_videos"
	PhaseVideosComplete    JobPhase = "videos_complete"
	PhaseCompiling         JobPhase = "compiling"
	PhaseComplete          JobPhase = "complete"
	PhaseFailed            JobPhase = "failed"
)

// Terminal reports whether the phase is one a Job never leaves.
func (p JobPhase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// phaseOrder gives each non-terminal phase a rank so callers can assert
// monotonicity (spec §8: "no observed Job snapshot shows phase regression").
var phaseOrder = map[JobPhase]int{
	PhasePending:          0,
	PhaseGeneratingImages: 1,
	PhaseImagesComplete:   2,
	PhaseGeneratingVideos: 3,
	PhaseVideosComplete:   4,
	PhaseCompiling:        5,
	PhaseComplete:         6,
	PhaseFailed:           6,
}

// Before reports whether p is strictly earlier than other in the state
// machine's declared order. Failed is treated as comparable-terminal to
// every phase (it can be reached from any non-terminal phase).
func (p JobPhase) Before(other JobPhase) bool {
	return phaseOrder[p] < phaseOrder[other]
}

// ShotPhase is the per-shot runtime state within a Job.
type ShotPhase string

const (
	ShotPending         ShotPhase = "pending"
	ShotGeneratingStart ShotPhase = "generating_start"
	ShotGeneratingEnd   ShotPhase = "generating_end"
	ShotSubmittingVideo ShotPhase = "submitting_video"
	ShotPollingVideo    ShotPhase = "polling_video"
	ShotComplete        ShotPhase = "complete"
	ShotFailed          ShotPhase = "failed"
)

func (p ShotPhase) Terminal() bool {
	return p == ShotComplete || p == ShotFailed
}

// JobShot is the durable per-shot runtime state carried in a Job record. It
// freezes the prompts needed to resume independent of the Plan, so a later
// Plan edit can never corrupt an in-flight Job (spec §3 Ownership).
type JobShot struct {
	SceneID      int        `json:"scene_id"`
	ShotIndex    int        `json:"shot_index"`
	Phase        ShotPhase  `json:"phase"`
	Duration     float64    `json:"duration"`
	StartPrompt  string     `json:"start_prompt"`
	EndPrompt    string     `json:"end_prompt"`
	MotionPrompt string     `json:"motion_prompt"`

	StartImageURL     string `json:"start_image_url,omitempty"`
	EndImageURL       string `json:"end_image_url,omitempty"`
	VideoRequestHandle string `json:"video_request_handle,omitempty"`
	VideoURL          string `json:"video_url,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
}

// Job is the durable, mutable, single-writer instance of running a Plan
// through the generation pipeline (spec §3).
type Job struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	OwnerID   uuid.UUID `json:"owner_id"`

	AspectRatio string `json:"aspect_ratio"`

	Phase    JobPhase  `json:"phase"`
	Progress int       `json:"progress"`
	Shots    []JobShot `json:"shots"`

	FinalArtifactURL string `json:"final_artifact_url,omitempty"`
	ErrorMessage     string `json:"error_message,omitempty"`

	PollAttempts     int    `json:"poll_attempts"`
	CompileRequestID string `json:"compile_request_id,omitempty"`
	CancelRequested  bool   `json:"cancel_requested"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AllShotsTerminal reports whether every shot has reached Complete or Failed.
func (j *Job) AllShotsTerminal() bool {
	for _, s := range j.Shots {
		if !s.Phase.Terminal() {
			return false
		}
	}
	return true
}

// AnyShotComplete reports whether at least one shot reached Complete.
func (j *Job) AnyShotComplete() bool {
	for _, s := range j.Shots {
		if s.Phase == ShotComplete {
			return true
		}
	}
	return false
}

// CompletedShots returns the shots in Complete state, in declared
// (scene-then-shot) order — the order the Plan's Shots() method produced
// them in, which is how they were appended to Job.Shots at creation time.
func (j *Job) CompletedShots() []JobShot {
	out := make([]JobShot, 0, len(j.Shots))
	for _, s := range j.Shots {
		if s.Phase == ShotComplete {
			out = append(out, s)
		}
	}
	return out
}
