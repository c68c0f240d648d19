// Package orchestrator implements the Job Orchestrator state machine of
// spec §4.5: per-shot image and video generation, optional compilation,
// driven by Scheduler wake-ups and resumed idempotently from persisted
// Job state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/bobarin/director/internal/credentials"
	"github.com/bobarin/director/internal/jobstore"
	"github.com/bobarin/director/internal/models"
	"github.com/bobarin/director/internal/providers"
)

const (
	videoPollInterval   = 30 * time.Second
	compilePollInterval = 30 * time.Second
	maxVideoPollTicks   = 40 // > 20 minutes at 30s/tick
	maxCompilePollTicks = 60 // ~30 min ceiling

	// advanceDelay is the wake-up armed when a phase completes or a shot
	// is left awaiting an image retry, so the Scheduler resumes the job.
	advanceDelay = time.Second

	// defaultMaxConcurrentShots is used when New is given a non-positive
	// value, so a zero-value Orchestrator (or a misconfigured
	// MAX_CONCURRENT_SHOTS) doesn't size a semaphore down to zero and
	// deadlock every fan-out phase.
	defaultMaxConcurrentShots = 4
)

// timerArmer is the narrow Scheduler slice the Orchestrator depends on.
type timerArmer interface {
	ArmAt(ctx context.Context, jobID uuid.UUID, absoluteTime time.Time) error
}

// Orchestrator drives Jobs through the state machine of spec §4.5.
// Grounded on the teacher's Worker (worker.go): same bounded-concurrency
// fan-out per shot via errgroup+semaphore, generalized from the
// teacher's fixed per-service channel semaphores to one
// semaphore.Weighted sized per phase call, and from a single
// Redis-queue-driven handler per clip to an explicit, persisted
// multi-phase state machine.
type Orchestrator struct {
	store              jobstore.Store
	timer              timerArmer
	creds              credentials.Store
	maxConcurrentShots int
}

// New wires maxConcurrentShots (config's MaxConcurrentShots, spec §4.5's
// min(len(shots), MaxConcurrentShots) fan-out bound) into the semaphore
// sizing used by both the image and video generation phases. A
// non-positive value falls back to defaultMaxConcurrentShots.
func New(store jobstore.Store, timer timerArmer, creds credentials.Store, maxConcurrentShots int) *Orchestrator {
	if maxConcurrentShots <= 0 {
		maxConcurrentShots = defaultMaxConcurrentShots
	}
	return &Orchestrator{store: store, timer: timer, creds: creds, maxConcurrentShots: maxConcurrentShots}
}

// NewJobFromPlan builds the durable Job record for an approved Plan,
// freezing each shot's prompts so a later Plan edit never corrupts an
// in-flight Job (spec §3 Ownership).
func NewJobFromPlan(plan *models.Plan, ownerID uuid.UUID, aspectRatio string) *models.Job {
	job := &models.Job{
		ID:          uuid.New(),
		ProjectID:   plan.ProjectID,
		OwnerID:     ownerID,
		AspectRatio: aspectRatio,
		Phase:       models.PhasePending,
	}
	for _, fs := range plan.Shots() {
		job.Shots = append(job.Shots, models.JobShot{
			SceneID:      fs.SceneID,
			ShotIndex:    fs.Shot.ID,
			Phase:        models.ShotPending,
			Duration:     fs.Shot.Duration,
			StartPrompt:  fs.Shot.StartPrompt,
			EndPrompt:    fs.Shot.EndPrompt,
			MotionPrompt: fs.Shot.MotionPrompt,
		})
	}
	return job
}

// Start is invoked once after Plan approval (spec §4.5 Entry).
func (o *Orchestrator) Start(ctx context.Context, jobID uuid.UUID) error {
	return o.Resume(ctx, jobID)
}

// ResumeAll scans the Job Store for every non-terminal job and resumes
// each, for process start (spec §4.5 Entry).
func (o *Orchestrator) ResumeAll(ctx context.Context) error {
	ids, err := o.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: list active jobs: %w", err)
	}
	for _, id := range ids {
		if err := o.Resume(ctx, id); err != nil {
			log.Printf("[orchestrator] resume %s on startup: %v", id, err)
		}
	}
	return nil
}

// Resume is invoked by the Scheduler, by Start, or on process start for
// any non-terminal job. It is idempotent: every call re-reads Job state
// and only acts on what is not yet terminal (spec §4.5/§8).
func (o *Orchestrator) Resume(ctx context.Context, jobID uuid.UUID) error {
	err := o.store.WithLease(ctx, jobID, func(job *models.Job) (*models.Job, error) {
		return o.step(ctx, job)
	})
	if errors.Is(err, jobstore.ErrLeaseHeld) {
		// Another worker already holds this job's lease; quietly exit
		// (spec §5).
		return nil
	}
	return err
}

func (o *Orchestrator) step(ctx context.Context, job *models.Job) (*models.Job, error) {
	if job.Phase.Terminal() {
		return job, nil
	}
	if job.CancelRequested {
		job.Phase = models.PhaseFailed
		job.ErrorMessage = (&CancelledError{}).Error()
		return job, nil
	}

	var err error
	switch job.Phase {
	case models.PhasePending, models.PhaseGeneratingImages:
		err = o.runGeneratingImages(ctx, job)
	case models.PhaseImagesComplete, models.PhaseGeneratingVideos:
		err = o.runGeneratingVideos(ctx, job)
	case models.PhaseVideosComplete:
		err = o.enterCompileOrComplete(ctx, job)
	case models.PhaseCompiling:
		err = o.pollCompile(ctx, job)
	}

	if err != nil {
		var perm *PermanentError
		var to *TimeoutError
		if errors.As(err, &perm) || errors.As(err, &to) {
			job.Phase = models.PhaseFailed
			job.ErrorMessage = err.Error()
			return job, nil
		}
		// Unexpected internal error: fail the job with a redacted
		// message, never the raw error text (spec §7).
		job.Phase = models.PhaseFailed
		job.ErrorMessage = (&InternalError{cause: err}).Error()
		log.Printf("[orchestrator] job %s internal error: %v", job.ID, err)
		return job, nil
	}

	job.Progress = computeProgress(job, job.Phase == models.PhaseCompiling || job.Phase == models.PhaseVideosComplete)
	if job.Phase == models.PhaseComplete {
		job.Progress = 100
	}
	return job, nil
}

// ---------------------------------------------------------------------
// GeneratingImages
// ---------------------------------------------------------------------

func (o *Orchestrator) runGeneratingImages(ctx context.Context, job *models.Job) error {
	job.Phase = models.PhaseGeneratingImages

	creds, err := o.creds.Lookup(ctx, job.OwnerID, credentials.CapabilityImage)
	if errors.Is(err, credentials.ErrNotFound) {
		return &PermanentError{Message: "no image credentials configured"}
	}
	if err != nil {
		return fmt.Errorf("lookup image credentials: %w", err)
	}
	adapter, err := providers.NewImageAdapter(providers.ImageProviderKind(creds.ProviderTag), creds)
	if err != nil {
		return &PermanentError{Message: err.Error()}
	}

	width, height := resolveAspectDimensions(job.AspectRatio)

	sem := semaphore.NewWeighted(int64(o.maxConcurrentShots))
	g, gctx := errgroup.WithContext(ctx)

	for i := range job.Shots {
		i := i
		shot := &job.Shots[i]
		if !shotNeedsImages(shot) {
			continue
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			processShotImages(gctx, adapter, shot, width, height)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("image generation fan-out: %w", err)
	}

	switch {
	case allShotsFailed(job):
		return &PermanentError{Message: "all shots failed image generation"}
	case allShotsImageReady(job):
		job.Phase = models.PhaseImagesComplete
	}
	// Otherwise some shots are still mid-retry and the job stays in
	// GeneratingImages. Either way a wake-up is armed so the Scheduler
	// re-invokes Resume (retrying those shots, or starting the video phase).
	return o.arm(ctx, job.ID, advanceDelay)
}

// shotNeedsImages reports whether a shot still has image work to do:
// either it is mid-flight (GeneratingStart/GeneratingEnd, from a crashed
// resume) or it has not yet produced both images.
func shotNeedsImages(shot *models.JobShot) bool {
	if shot.Phase == models.ShotFailed || shot.Phase == models.ShotComplete {
		return false
	}
	if shot.Phase == models.ShotGeneratingStart || shot.Phase == models.ShotGeneratingEnd {
		return true
	}
	return shot.Phase == models.ShotPending && (shot.StartImageURL == "" || shot.EndImageURL == "")
}

// processShotImages runs spec §4.5 GeneratingImages steps 2-7 for one
// shot in place. A retryable ProviderError leaves the shot's state
// unchanged (picked up again on the next Resume); a permanent error
// marks the shot Failed without aborting sibling shots.
func processShotImages(ctx context.Context, adapter providers.ImageSynthesis, shot *models.JobShot, width, height int) {
	if shot.StartImageURL == "" {
		shot.Phase = models.ShotGeneratingStart
		result, err := adapter.Synthesize(ctx, shot.StartPrompt, width, height, 0)
		if err != nil {
			recordShotImageError(shot, err)
			return
		}
		shot.StartImageURL = result.URL
	}

	shot.Phase = models.ShotGeneratingEnd
	result, err := adapter.Synthesize(ctx, shot.EndPrompt, width, height, 0)
	if err != nil {
		recordShotImageError(shot, err)
		return
	}
	shot.EndImageURL = result.URL
	shot.Phase = models.ShotPending // awaiting video, per spec §4.5 step 5
}

func recordShotImageError(shot *models.JobShot, err error) {
	var perr *providers.ProviderError
	if errors.As(err, &perr) && perr.Retryable {
		// Leave shot state as-is; the next Resume retries this step.
		return
	}
	shot.Phase = models.ShotFailed
	shot.ErrorMessage = err.Error()
}

func allShotsFailed(job *models.Job) bool {
	for _, s := range job.Shots {
		if s.Phase != models.ShotFailed {
			return false
		}
	}
	return len(job.Shots) > 0
}

// shotNeedsVideoSubmit reports whether a shot has both images, is not
// terminal, and has no in-flight or completed video request yet —
// covering both the initial submission and a resubmission after a
// transient Submit failure left the shot back at ShotPending.
func shotNeedsVideoSubmit(shot *models.JobShot) bool {
	if shot.Phase.Terminal() || shot.Phase == models.ShotPollingVideo {
		return false
	}
	if shot.VideoRequestHandle != "" {
		return false
	}
	return shot.StartImageURL != "" && shot.EndImageURL != ""
}

// allShotsImageReady reports whether every shot is either Failed or has
// both images and is awaiting video (spec §4.5: "if every shot has both
// image URLs" / partial-success policy continues with succeeded shots).
func allShotsImageReady(job *models.Job) bool {
	for _, s := range job.Shots {
		if s.Phase == models.ShotFailed {
			continue
		}
		if s.StartImageURL == "" || s.EndImageURL == "" {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------
// GeneratingVideos: submit, then poll loop
// ---------------------------------------------------------------------

// submitShotVideo submits one shot's video request. A retryable failure
// puts the shot back to ShotPending so the next tick resubmits it; a
// permanent failure marks the shot Failed.
func submitShotVideo(ctx context.Context, adapter providers.VideoSynthesis, shot *models.JobShot, aspectRatio string) {
	shot.Phase = models.ShotSubmittingVideo
	endURL := shot.EndImageURL
	if !adapter.SupportsEndFrame() {
		endURL = ""
	}
	handle, err := adapter.Submit(ctx, shot.MotionPrompt, shot.StartImageURL, endURL, shot.Duration, aspectRatio)
	if err != nil {
		var perr *providers.ProviderError
		if errors.As(err, &perr) && perr.Retryable {
			shot.Phase = models.ShotPending
			return
		}
		shot.Phase = models.ShotFailed
		shot.ErrorMessage = err.Error()
		return
	}
	shot.VideoRequestHandle = handle
	shot.Phase = models.ShotPollingVideo
}

// runGeneratingVideos handles both the one-time submission step (entered
// from ImagesComplete) and every subsequent poll tick (entered from
// GeneratingVideos) in one pass: each call first (re)submits any shot
// that has images but no in-flight request — covering both the initial
// submission and a retry after a transient submit failure — then polls
// every shot already awaiting a result. Merging submit and poll into one
// handler is what makes a submit-side retryable failure resumable: a
// split submit/poll pair would strand such a shot in PhaseGeneratingVideos
// with no code path left to resubmit it.
func (o *Orchestrator) runGeneratingVideos(ctx context.Context, job *models.Job) error {
	creds, err := o.creds.Lookup(ctx, job.OwnerID, credentials.CapabilityVideo)
	if errors.Is(err, credentials.ErrNotFound) {
		return &PermanentError{Message: "no video credentials configured"}
	}
	if err != nil {
		return fmt.Errorf("lookup video credentials: %w", err)
	}
	adapter, err := providers.NewVideoAdapter(providers.VideoProviderKind(creds.ProviderTag), creds)
	if err != nil {
		return &PermanentError{Message: err.Error()}
	}

	if job.Phase == models.PhaseImagesComplete {
		job.PollAttempts = 0
	}
	job.Phase = models.PhaseGeneratingVideos

	sem := semaphore.NewWeighted(int64(o.maxConcurrentShots))
	g, gctx := errgroup.WithContext(ctx)
	for i := range job.Shots {
		shot := &job.Shots[i]
		if !shotNeedsVideoSubmit(shot) {
			continue
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			submitShotVideo(gctx, adapter, shot, job.AspectRatio)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("video submission fan-out: %w", err)
	}

	for i := range job.Shots {
		shot := &job.Shots[i]
		if shot.Phase != models.ShotPollingVideo {
			continue
		}
		result, err := adapter.Poll(ctx, shot.VideoRequestHandle)
		if err != nil {
			// Transient poll errors are swallowed and retried on the
			// next tick (spec §4.5: "do not count as permanent").
			continue
		}
		switch result.Status {
		case providers.VideoDone:
			shot.VideoURL = result.URL
			shot.Phase = models.ShotComplete
		case providers.VideoFailed:
			shot.Phase = models.ShotFailed
			shot.ErrorMessage = result.Error
		}
	}

	job.PollAttempts++
	allTerminal := job.AllShotsTerminal()
	if job.PollAttempts > maxVideoPollTicks && !allTerminal {
		return &TimeoutError{Phase: "GeneratingVideos"}
	}
	if allTerminal {
		if job.AnyShotComplete() {
			job.Phase = models.PhaseVideosComplete
			return o.arm(ctx, job.ID, advanceDelay)
		}
		return &PermanentError{Message: "all shots failed video generation"}
	}
	return o.arm(ctx, job.ID, videoPollInterval)
}

// ---------------------------------------------------------------------
// Compiling (optional)
// ---------------------------------------------------------------------

func (o *Orchestrator) enterCompileOrComplete(ctx context.Context, job *models.Job) error {
	creds, err := o.creds.Lookup(ctx, job.OwnerID, credentials.CapabilityCompile)
	if errors.Is(err, credentials.ErrNotFound) || creds.ProviderTag == "" || creds.ProviderTag == string(providers.CompileProviderNone) {
		job.Phase = models.PhaseComplete
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup compile credentials: %w", err)
	}
	adapter, err := providers.NewCompileAdapter(providers.CompileProviderKind(creds.ProviderTag), creds)
	if err != nil {
		return &PermanentError{Message: err.Error()}
	}
	if adapter == nil {
		job.Phase = models.PhaseComplete
		return nil
	}

	var urls []string
	for _, s := range job.CompletedShots() {
		urls = append(urls, s.VideoURL)
	}
	handle, err := adapter.Submit(ctx, urls, providers.CompileOptions{AspectRatio: job.AspectRatio})
	if err != nil {
		return &PermanentError{Message: fmt.Sprintf("compile submit failed: %v", err)}
	}
	job.CompileRequestID = handle
	job.Phase = models.PhaseCompiling
	job.PollAttempts = 0
	return o.arm(ctx, job.ID, compilePollInterval)
}

func (o *Orchestrator) pollCompile(ctx context.Context, job *models.Job) error {
	creds, err := o.creds.Lookup(ctx, job.OwnerID, credentials.CapabilityCompile)
	if err != nil {
		return fmt.Errorf("lookup compile credentials: %w", err)
	}
	adapter, err := providers.NewCompileAdapter(providers.CompileProviderKind(creds.ProviderTag), creds)
	if err != nil {
		return &PermanentError{Message: err.Error()}
	}

	result, err := adapter.Poll(ctx, job.CompileRequestID)
	job.PollAttempts++
	if err != nil {
		if job.PollAttempts > maxCompilePollTicks {
			return &TimeoutError{Phase: "Compiling"}
		}
		return o.arm(ctx, job.ID, compilePollInterval)
	}

	switch result.Status {
	case providers.VideoDone:
		job.FinalArtifactURL = result.URL
		job.Phase = models.PhaseComplete
		return nil
	case providers.VideoFailed:
		return &PermanentError{Message: fmt.Sprintf("compile failed: %s", result.Error)}
	default:
		if job.PollAttempts > maxCompilePollTicks {
			return &TimeoutError{Phase: "Compiling"}
		}
		return o.arm(ctx, job.ID, compilePollInterval)
	}
}

func (o *Orchestrator) arm(ctx context.Context, jobID uuid.UUID, in time.Duration) error {
	if o.timer == nil {
		return nil
	}
	return o.timer.ArmAt(ctx, jobID, time.Now().Add(in))
}

// resolveAspectDimensions implements spec §4.5 step 3's table, plus 4:5
// recovered from the teacher's Project.AspectRatio comment listing it as
// a supported ratio the distilled spec dropped.
func resolveAspectDimensions(aspectRatio string) (width, height int) {
	switch aspectRatio {
	case "16:9":
		return 1920, 1080
	case "1:1":
		return 1024, 1024
	case "4:5":
		return 1080, 1350
	default: // "9:16"
		return 1080, 1920
	}
}
