package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/director/internal/credentials"
	"github.com/bobarin/director/internal/jobstore"
	"github.com/bobarin/director/internal/models"
)

// noopTimer discards every arm request — these tests drive Resume
// directly in a loop rather than through a real Scheduler tick.
type noopTimer struct{}

func (noopTimer) ArmAt(context.Context, uuid.UUID, time.Time) error { return nil }

func newTestPlan(shotCount int) *models.Plan {
	plan := &models.Plan{ProjectID: uuid.New(), Version: 1, Title: "t", TotalDuration: float64(shotCount * 6)}
	scene := models.Scene{ID: 1, Name: "s1", Description: "d", Mood: "m"}
	for i := 1; i <= shotCount; i++ {
		scene.Shots = append(scene.Shots, models.Shot{
			ID:           i,
			Duration:     6,
			StartPrompt:  "start prompt for a reasonably long shot description used only in tests",
			EndPrompt:    "end prompt for a reasonably long shot description used only in tests",
			MotionPrompt: "slow camera drift across the scene",
			CameraMove:   models.CameraStatic,
			Lighting:     "soft daylight",
		})
	}
	plan.Scenes = []models.Scene{scene}
	return plan
}

// geminiStub serves a single-image response shaped like the real Gemini
// generateContent endpoint.
func geminiStub(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{
					"content": map[string]interface{}{
						"parts": []map[string]interface{}{
							{"inlineData": map[string]string{"mimeType": "image/png", "data": "aGVsbG8="}},
						},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

// xaiStub serves Submit (always a fresh request_id) and Poll (always
// immediately done) against the real xaiVideo adapter's REST shape.
func xaiStub(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/videos/generations", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]string{"request_id": uuid.New().String()}))
	})
	mux.HandleFunc("/videos/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
			"video": map[string]string{"url": "https://example.com/clip.mp4"},
		}))
	})
	return httptest.NewServer(mux)
}

func setupBundleCreds(t *testing.T, store *credentials.StaticStore, ownerID uuid.UUID, imageURL, videoURL string) {
	store.Set(ownerID, credentials.CapabilityImage, credentials.Credentials{ProviderTag: "gemini", Token: "k", Endpoint: imageURL})
	store.Set(ownerID, credentials.CapabilityVideo, credentials.Credentials{ProviderTag: "xai", Token: "k", Endpoint: videoURL})
	// No compile credentials set: Compiling phase is skipped (spec §4.1).
}

// runToTerminal drives Resume until the Job reaches a terminal phase or
// the tick budget is exhausted, mirroring how the Scheduler would
// repeatedly wake a real job without ever blocking on wall-clock time.
func runToTerminal(t *testing.T, o *Orchestrator, store jobstore.Store, jobID uuid.UUID, maxTicks int) *models.Job {
	t.Helper()
	var job *models.Job
	for i := 0; i < maxTicks; i++ {
		require.NoError(t, o.Resume(context.Background(), jobID))
		var err error
		job, err = store.Get(context.Background(), jobID)
		require.NoError(t, err)
		if job.Phase.Terminal() {
			return job
		}
	}
	return job
}

func TestHappyPathNoCompile(t *testing.T) {
	gemini := geminiStub(t)
	defer gemini.Close()
	xai := xaiStub(t)
	defer xai.Close()

	store := jobstore.NewMemStore()
	creds := credentials.NewStaticStore()
	ownerID := uuid.New()
	setupBundleCreds(t, creds, ownerID, gemini.URL, xai.URL)

	plan := newTestPlan(2)
	job := NewJobFromPlan(plan, ownerID, "16:9")
	require.NoError(t, store.Create(context.Background(), job))

	o := New(store, noopTimer{}, creds, 4)
	final := runToTerminal(t, o, store, job.ID, 10)

	require.Equal(t, models.PhaseComplete, final.Phase)
	require.Equal(t, 100, final.Progress)
	for _, s := range final.Shots {
		require.Equal(t, models.ShotComplete, s.Phase)
		require.NotEmpty(t, s.VideoURL)
	}
}

func TestAllShotsPermanentImageFailureFailsJob(t *testing.T) {
	gemini := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer gemini.Close()
	xai := xaiStub(t)
	defer xai.Close()

	store := jobstore.NewMemStore()
	creds := credentials.NewStaticStore()
	ownerID := uuid.New()
	setupBundleCreds(t, creds, ownerID, gemini.URL, xai.URL)

	plan := newTestPlan(1)
	job := NewJobFromPlan(plan, ownerID, "16:9")
	require.NoError(t, store.Create(context.Background(), job))

	o := New(store, noopTimer{}, creds, 4)
	final := runToTerminal(t, o, store, job.ID, 5)

	// A 400 from Gemini is non-retryable; with the only shot failing
	// image generation, the whole Job fails (spec §4.5: all-shots-failed
	// collapses to a permanent Job failure).
	require.Equal(t, models.PhaseFailed, final.Phase)
	require.Equal(t, models.ShotFailed, final.Shots[0].Phase)
}

func TestVideoPollTimeout(t *testing.T) {
	gemini := geminiStub(t)
	defer gemini.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/videos/generations", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"request_id": uuid.New().String()})
	})
	mux.HandleFunc("/videos/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "pending"})
	})
	xai := httptest.NewServer(mux)
	defer xai.Close()

	store := jobstore.NewMemStore()
	creds := credentials.NewStaticStore()
	ownerID := uuid.New()
	setupBundleCreds(t, creds, ownerID, gemini.URL, xai.URL)

	plan := newTestPlan(1)
	job := NewJobFromPlan(plan, ownerID, "16:9")
	require.NoError(t, store.Create(context.Background(), job))

	o := New(store, noopTimer{}, creds, 4)
	final := runToTerminal(t, o, store, job.ID, maxVideoPollTicks+5)

	require.Equal(t, models.PhaseFailed, final.Phase)
	require.Contains(t, final.ErrorMessage, "Timeout in GeneratingVideos")
}

func TestResumeIsIdempotentOnTerminalJob(t *testing.T) {
	gemini := geminiStub(t)
	defer gemini.Close()
	xai := xaiStub(t)
	defer xai.Close()

	store := jobstore.NewMemStore()
	creds := credentials.NewStaticStore()
	ownerID := uuid.New()
	setupBundleCreds(t, creds, ownerID, gemini.URL, xai.URL)

	plan := newTestPlan(1)
	job := NewJobFromPlan(plan, ownerID, "16:9")
	require.NoError(t, store.Create(context.Background(), job))

	o := New(store, noopTimer{}, creds, 4)
	first := runToTerminal(t, o, store, job.ID, 10)
	require.Equal(t, models.PhaseComplete, first.Phase)

	require.NoError(t, o.Resume(context.Background(), job.ID))
	second, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestResolveAspectDimensions(t *testing.T) {
	cases := map[string][2]int{
		"16:9": {1920, 1080},
		"9:16": {1080, 1920},
		"1:1":  {1024, 1024},
		"4:5":  {1080, 1350},
	}
	for ratio, wh := range cases {
		w, h := resolveAspectDimensions(ratio)
		require.Equal(t, wh[0], w, ratio)
		require.Equal(t, wh[1], h, ratio)
	}
}
