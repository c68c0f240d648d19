package models

import "github.com/google/uuid"

// Request/response DTOs for internal/api, following the teacher's
// Create*Request/Create*Response naming (models.go's
// CreateProjectRequest/CreateProjectResponse).

type CreateProjectRequest struct {
	Name           string          `json:"name"`
	Concept        string          `json:"concept"`
	Style          string          `json:"style,omitempty"`
	TargetDuration int             `json:"target_duration"`
	AspectRatio    string          `json:"aspect_ratio"`
	Config         PlanConstraints `json:"config"`
}

type DirectRequest struct {
	// Reserved for future direct-time overrides; direct() otherwise reads
	// the Project's own concept/duration/aspect/config.
}

type RefineRequest struct {
	Feedback string `json:"feedback"`
}

type CostBreakdown struct {
	TextCostUSD    float64  `json:"text_cost_usd"`
	ImageCostUSD   float64  `json:"image_cost_usd"`
	VideoCostUSD   float64  `json:"video_cost_usd"`
	CompileCostUSD float64  `json:"compile_cost_usd"`
	TotalUSD       float64  `json:"total_usd"`
	Assumptions    []string `json:"assumptions,omitempty"`
}

type DirectResponse struct {
	Plan          *Plan          `json:"plan"`
	CostEstimate  *CostBreakdown `json:"cost_estimate"`
}

type GenerateResponse struct {
	JobID uuid.UUID `json:"job_id"`
}

// ShotSummary is the per-shot view returned by GET /api/jobs/{id}.
type ShotSummary struct {
	SceneID  int       `json:"scene_id"`
	ShotID   int       `json:"shot_index"`
	Status   ShotPhase `json:"status"`
	VideoURL string    `json:"url,omitempty"`
	Error    string    `json:"error,omitempty"`
}

type JobSnapshot struct {
	ID               uuid.UUID     `json:"id"`
	ProjectID        uuid.UUID     `json:"project_id"`
	Phase            JobPhase      `json:"phase"`
	Progress         int           `json:"progress"`
	Shots            []ShotSummary `json:"shots"`
	FinalArtifactURL string        `json:"final_artifact_url,omitempty"`
	ErrorMessage     string        `json:"error_message,omitempty"`
}

// Envelope is the common response wrapper spec §6 requires on every
// mutating response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}
