package models

import (
	"time"

	"github.com/google/uuid"
)

// ProjectStatus tracks a Project through the Direct -> Approve -> Generate
// flow (spec §6 External Interfaces). Distinct from JobPhase, which only
// exists once a Job has been created by /generate.
type ProjectStatus string

const (
	ProjectStatusCreated   ProjectStatus = "created"
	ProjectStatusDirected  ProjectStatus = "directed"
	ProjectStatusApproved  ProjectStatus = "approved"
	ProjectStatusRunning   ProjectStatus = "running"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusFailed    ProjectStatus = "failed"
)

// PlanConstraints are the optional shaping knobs a caller may pass to the
// Director (spec §4.2 step 2).
type PlanConstraints struct {
	MaxScenes        int      `json:"max_scenes,omitempty"`
	MaxShotsPerScene int      `json:"max_shots_per_scene,omitempty"`
	Include          []string `json:"include,omitempty"`
	Avoid            []string `json:"avoid,omitempty"`
}

// Project is the owning entity for a Plan and its Jobs.
type Project struct {
	ID      uuid.UUID `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`

	Name           string          `json:"name"`
	Concept        string          `json:"concept"`
	Style          string          `json:"style,omitempty"`
	TargetDuration int             `json:"target_duration_seconds"`
	AspectRatio    string          `json:"aspect_ratio"`
	Constraints    PlanConstraints `json:"config"`

	Status          ProjectStatus `json:"status"`
	ApprovedVersion int           `json:"approved_version,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
