package jobstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/director/internal/models"
)

var errTestWithLease = errors.New("jobstore_test: induced failure")

func newJob() *models.Job {
	return &models.Job{ID: uuid.New(), Phase: models.PhasePending}
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	store := NewMemStore()
	job := newJob()
	require.NoError(t, store.Create(context.Background(), job))

	got, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, job.ID, got.ID)
	require.Equal(t, models.PhasePending, got.Phase)
}

func TestGetUnknownJobReturnsNotFound(t *testing.T) {
	store := NewMemStore()
	_, err := store.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetReturnsASnapshotNotALiveReference(t *testing.T) {
	store := NewMemStore()
	job := newJob()
	require.NoError(t, store.Create(context.Background(), job))

	snapshot, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	snapshot.Phase = models.PhaseComplete

	reread, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, models.PhasePending, reread.Phase, "mutating a Get snapshot must not affect the store")
}

// Atomic phase transition (spec §4.3): WithLease either commits every
// field fn touched, or (on error) none of them.
func TestWithLeaseCommitsAtomically(t *testing.T) {
	store := NewMemStore()
	job := newJob()
	require.NoError(t, store.Create(context.Background(), job))

	err := store.WithLease(context.Background(), job.ID, func(j *models.Job) (*models.Job, error) {
		j.Phase = models.PhaseGeneratingImages
		j.Progress = 10
		return j, nil
	})
	require.NoError(t, err)

	got, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, models.PhaseGeneratingImages, got.Phase)
	require.Equal(t, 10, got.Progress)
}

func TestWithLeaseErrorDiscardsChanges(t *testing.T) {
	store := NewMemStore()
	job := newJob()
	require.NoError(t, store.Create(context.Background(), job))

	err := store.WithLease(context.Background(), job.ID, func(j *models.Job) (*models.Job, error) {
		return nil, errTestWithLease
	})
	require.ErrorIs(t, err, errTestWithLease)

	got, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, models.PhasePending, got.Phase)
}

// Single-writer (spec §4.3/§5): a concurrent WithLease call on the same
// job while one is already in flight observes ErrLeaseHeld and exits
// quietly rather than blocking or corrupting state.
func TestWithLeaseSingleWriterExcludesConcurrentCaller(t *testing.T) {
	store := NewMemStore()
	job := newJob()
	require.NoError(t, store.Create(context.Background(), job))

	holding := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = store.WithLease(context.Background(), job.ID, func(j *models.Job) (*models.Job, error) {
			close(holding)
			<-release
			j.Phase = models.PhaseGeneratingImages
			return j, nil
		})
	}()

	<-holding
	err := store.WithLease(context.Background(), job.ID, func(j *models.Job) (*models.Job, error) {
		t.Fatal("fn must not run while another caller holds the lease")
		return j, nil
	})
	require.ErrorIs(t, err, ErrLeaseHeld)

	close(release)
	wg.Wait()

	got, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, models.PhaseGeneratingImages, got.Phase)
}

func TestListActiveExcludesTerminalJobs(t *testing.T) {
	store := NewMemStore()
	pending := newJob()
	complete := newJob()
	complete.Phase = models.PhaseComplete
	failed := newJob()
	failed.Phase = models.PhaseFailed

	require.NoError(t, store.Create(context.Background(), pending))
	require.NoError(t, store.Create(context.Background(), complete))
	require.NoError(t, store.Create(context.Background(), failed))

	ids, err := store.ListActive(context.Background())
	require.NoError(t, err)
	require.ElementsMatch(t, []uuid.UUID{pending.ID}, ids)
}
