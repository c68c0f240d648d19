package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bobarin/director/internal/credentials"
	"github.com/bobarin/director/internal/db"
	"github.com/bobarin/director/internal/director"
	"github.com/bobarin/director/internal/jobstore"
	"github.com/bobarin/director/internal/models"
	"github.com/bobarin/director/internal/orchestrator"
	"github.com/bobarin/director/internal/providers"
)

// Handler wires the six endpoints of spec §6 to the Director, Job Store,
// Orchestrator and credential Store collaborators, following the
// teacher's Handler shape (handlers.go: one struct holding every
// collaborator, methods as http.HandlerFunc).
type Handler struct {
	projects *db.DB
	jobs     jobstore.Store
	creds    credentials.Store
	orch     *orchestrator.Orchestrator
}

func NewHandler(projects *db.DB, jobs jobstore.Store, creds credentials.Store, orch *orchestrator.Orchestrator) *Handler {
	return &Handler{projects: projects, jobs: jobs, creds: creds, orch: orch}
}

// ownerIDFromRequest implements spec §6's "ownerId extraction contract":
// authentication itself is out of scope, but every handler still needs an
// owner to scope credential lookups and Job/Project rows to. The backend
// API key (APIKeyAuth) authenticates the caller; X-Owner-ID identifies
// which owner's projects and credentials the call acts on.
func ownerIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get("X-Owner-ID")
	if raw == "" {
		return uuid.UUID{}, errors.New("missing X-Owner-ID header")
	}
	return uuid.Parse(raw)
}

// CreateProject handles POST /api/projects.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	ownerID, err := ownerIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req models.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Concept == "" || req.TargetDuration <= 0 || req.AspectRatio == "" {
		respondError(w, http.StatusBadRequest, "name, concept, target_duration and aspect_ratio are required")
		return
	}

	project := &models.Project{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		Name:           req.Name,
		Concept:        req.Concept,
		Style:          req.Style,
		TargetDuration: req.TargetDuration,
		AspectRatio:    req.AspectRatio,
		Constraints:    req.Config,
		Status:         models.ProjectStatusCreated,
	}
	if err := h.projects.CreateProject(r.Context(), project); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create project")
		return
	}

	respondJSON(w, http.StatusCreated, project)
}

// Direct handles POST /api/projects/{id}/direct.
func (h *Handler) Direct(w http.ResponseWriter, r *http.Request) {
	project, ownerID, ok := h.loadOwnedProject(w, r)
	if !ok {
		return
	}

	textAdapter, ok := h.requireTextAdapter(w, r, ownerID)
	if !ok {
		return
	}

	d := director.New(textAdapter)
	plan, err := d.Direct(r.Context(), project.ID, project.Concept, project.TargetDuration, project.AspectRatio, project.Style, project.Constraints)
	if err != nil {
		respondDirectorError(w, err)
		return
	}
	// direct() may be re-invoked (e.g. after a rejected Plan); each call
	// produces a new, independent version rather than overwriting the
	// prior draft, same as refine() (spec §6 "Persisted state layout").
	plan.Version = h.nextPlanVersion(r.Context(), project.ID)

	if err := h.projects.SavePlan(r.Context(), plan); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to persist plan")
		return
	}
	if err := h.projects.UpdateProjectStatus(r.Context(), project.ID, models.ProjectStatusDirected); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update project status")
		return
	}

	cost := director.EstimateCost(plan, h.bestEffortBundle(r.Context(), ownerID))
	respondJSON(w, http.StatusOK, models.DirectResponse{Plan: plan, CostEstimate: &cost})
}

// Refine handles POST /api/projects/{id}/refine.
func (h *Handler) Refine(w http.ResponseWriter, r *http.Request) {
	project, ownerID, ok := h.loadOwnedProject(w, r)
	if !ok {
		return
	}

	var req models.RefineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Feedback == "" {
		respondError(w, http.StatusBadRequest, "feedback is required")
		return
	}

	existing, err := h.projects.GetLatestPlan(r.Context(), project.ID)
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, "no plan to refine; call direct first")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load plan")
		return
	}

	textAdapter, ok := h.requireTextAdapter(w, r, ownerID)
	if !ok {
		return
	}

	d := director.New(textAdapter)
	refined, err := d.Refine(r.Context(), existing, req.Feedback)
	if err != nil {
		respondDirectorError(w, err)
		return
	}

	if err := h.projects.SavePlan(r.Context(), refined); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to persist plan")
		return
	}
	// A refine after approval produces a new, unapproved draft; the prior
	// approved_version is left untouched until the caller approves again.
	if project.Status == models.ProjectStatusApproved {
		if err := h.projects.UpdateProjectStatus(r.Context(), project.ID, models.ProjectStatusDirected); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to update project status")
			return
		}
	}

	cost := director.EstimateCost(refined, h.bestEffortBundle(r.Context(), ownerID))
	respondJSON(w, http.StatusOK, models.DirectResponse{Plan: refined, CostEstimate: &cost})
}

// Approve handles POST /api/projects/{id}/approve: freezes the latest
// Plan version against the Project (spec §6).
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	project, _, ok := h.loadOwnedProject(w, r)
	if !ok {
		return
	}

	plan, err := h.projects.GetLatestPlan(r.Context(), project.ID)
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, "no plan to approve; call direct first")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load plan")
		return
	}

	if err := h.projects.ApproveProject(r.Context(), project.ID, plan.Version); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to approve project")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{"approved_version": plan.Version})
}

// Generate handles POST /api/projects/{id}/generate: builds a Job from
// the approved Plan and hands it to the Orchestrator (spec §4.5 Entry).
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	project, ownerID, ok := h.loadOwnedProject(w, r)
	if !ok {
		return
	}
	if project.Status != models.ProjectStatusApproved || project.ApprovedVersion == 0 {
		respondError(w, http.StatusBadRequest, "project has no approved plan")
		return
	}

	plan, err := h.projects.GetPlan(r.Context(), project.ID, project.ApprovedVersion)
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, "approved plan not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load approved plan")
		return
	}

	job := orchestrator.NewJobFromPlan(plan, ownerID, project.AspectRatio)
	if err := h.jobs.Create(r.Context(), job); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	if err := h.projects.UpdateProjectStatus(r.Context(), project.ID, models.ProjectStatusRunning); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update project status")
		return
	}

	if err := h.orch.Start(r.Context(), job.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to start job")
		return
	}

	respondJSON(w, http.StatusAccepted, models.GenerateResponse{JobID: job.ID})
}

// GetJob handles GET /api/jobs/{id}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	ownerID, err := ownerIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := h.jobs.Get(r.Context(), jobID)
	if errors.Is(err, jobstore.ErrNotFound) {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	// Per-owner isolation (spec §6): the Orchestrator and this endpoint
	// both refuse to act on or expose a job belonging to another owner.
	if job.OwnerID != ownerID {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	respondJSON(w, http.StatusOK, jobSnapshot(job))
}

func jobSnapshot(job *models.Job) models.JobSnapshot {
	shots := make([]models.ShotSummary, 0, len(job.Shots))
	for _, s := range job.Shots {
		shots = append(shots, models.ShotSummary{
			SceneID:  s.SceneID,
			ShotID:   s.ShotIndex,
			Status:   s.Phase,
			VideoURL: s.VideoURL,
			Error:    s.ErrorMessage,
		})
	}
	return models.JobSnapshot{
		ID:               job.ID,
		ProjectID:        job.ProjectID,
		Phase:            job.Phase,
		Progress:         job.Progress,
		Shots:            shots,
		FinalArtifactURL: job.FinalArtifactURL,
		ErrorMessage:     job.ErrorMessage,
	}
}

// ListCameraMoves handles GET /api/camera-moves — supplemented
// discoverability endpoint (spec §6 "in the teacher's spirit of cheap
// discoverability endpoints").
func (h *Handler) ListCameraMoves(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.ValidCameraMoves)
}

// ListTransitions handles GET /api/transitions.
func (h *Handler) ListTransitions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.ValidTransitions)
}

// Health is the public, unauthenticated liveness check.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// loadOwnedProject extracts the owner, parses the {id} URL param, loads
// the Project, and enforces per-owner isolation, writing an error
// response and returning ok=false on any failure.
func (h *Handler) loadOwnedProject(w http.ResponseWriter, r *http.Request) (*models.Project, uuid.UUID, bool) {
	ownerID, err := ownerIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return nil, uuid.UUID{}, false
	}
	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid project id")
		return nil, uuid.UUID{}, false
	}
	project, err := h.projects.GetProject(r.Context(), projectID)
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, "project not found")
		return nil, uuid.UUID{}, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load project")
		return nil, uuid.UUID{}, false
	}
	if project.OwnerID != ownerID {
		respondError(w, http.StatusNotFound, "project not found")
		return nil, uuid.UUID{}, false
	}
	return project, ownerID, true
}

// requireTextAdapter resolves the caller's text credentials into a
// TextCompletion adapter, writing the appropriate error response and
// returning ok=false on any failure.
func (h *Handler) requireTextAdapter(w http.ResponseWriter, r *http.Request, ownerID uuid.UUID) (providers.TextCompletion, bool) {
	creds, err := h.creds.Lookup(r.Context(), ownerID, credentials.CapabilityText)
	if errors.Is(err, credentials.ErrNotFound) {
		respondError(w, http.StatusUnauthorized, "no text credentials configured")
		return nil, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "credential lookup failed")
		return nil, false
	}
	adapter, err := providers.NewTextAdapter(providers.TextProviderKind(creds.ProviderTag), creds)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return nil, false
	}
	return adapter, true
}

// nextPlanVersion returns 1 for a project with no prior draft, or one
// past the latest existing draft's version otherwise.
func (h *Handler) nextPlanVersion(ctx context.Context, projectID uuid.UUID) int {
	existing, err := h.projects.GetLatestPlan(ctx, projectID)
	if err != nil {
		return 1
	}
	return existing.Version + 1
}

// bestEffortBundle resolves whatever capabilities have credentials on
// file for a cost estimate; a missing or unconstructable adapter is left
// nil rather than failing the whole estimate, since EstimateCost only
// type-asserts each slot against providers.CostEstimator.
func (h *Handler) bestEffortBundle(ctx context.Context, ownerID uuid.UUID) providers.Bundle {
	var bundle providers.Bundle
	if c, err := h.creds.Lookup(ctx, ownerID, credentials.CapabilityImage); err == nil {
		bundle.Image, _ = providers.NewImageAdapter(providers.ImageProviderKind(c.ProviderTag), c)
	}
	if c, err := h.creds.Lookup(ctx, ownerID, credentials.CapabilityVideo); err == nil {
		bundle.Video, _ = providers.NewVideoAdapter(providers.VideoProviderKind(c.ProviderTag), c)
	}
	if c, err := h.creds.Lookup(ctx, ownerID, credentials.CapabilityCompile); err == nil && c.ProviderTag != "" {
		bundle.Compile, _ = providers.NewCompileAdapter(providers.CompileProviderKind(c.ProviderTag), c)
	}
	return bundle
}

// respondDirectorError maps Director failures to HTTP status per spec §7:
// validation errors are caller-facing 400s, a retryable/permanent
// ProviderError surfaces its own classification.
func respondDirectorError(w http.ResponseWriter, err error) {
	var verr *director.ValidationError
	if errors.As(err, &verr) {
		respondError(w, http.StatusBadRequest, verr.Error())
		return
	}
	var perr *providers.ProviderError
	if errors.As(err, &perr) {
		status := http.StatusInternalServerError
		if perr.HTTPStatus == http.StatusTooManyRequests {
			status = http.StatusTooManyRequests
		}
		respondError(w, status, perr.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, "director failed")
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.Envelope{Success: status < 400, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.Envelope{Success: false, Error: message})
}
