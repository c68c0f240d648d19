// Package jobstore implements the Job Store of spec §4.3: a persistent
// map of Jobs with single-writer and atomic phase-transition guarantees.
// Jobs are keyed by job id alone; the owner is a field of the Job, not
// part of the key, and the store itself does not check it.
package jobstore

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/bobarin/director/internal/models"
)

// ErrLeaseHeld is returned by WithLease when another caller already holds
// the write lease for the job (spec §4.3/§5: "quietly exits").
var ErrLeaseHeld = errors.New("jobstore: lease already held")

// ErrNotFound is returned by Get when no job exists for the given id.
var ErrNotFound = errors.New("jobstore: job not found")

// Store is the Job Store contract. WithLease is the single-writer
// primitive: it acquires the write lease for jobID, invokes fn with the
// current Job snapshot, persists the Job fn returns (if any), and
// releases the lease — all within one transaction where
// the backing store supports it.
type Store interface {
	Get(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
	Create(ctx context.Context, job *models.Job) error
	// ListActive returns every job not in a terminal phase, for
	// Orchestrator.ResumeAll on process start (spec §4.5 Entry).
	ListActive(ctx context.Context) ([]uuid.UUID, error)
	// WithLease holds the per-job write lease for the duration of fn.
	// fn receives the current Job and returns the Job to persist (or nil
	// to leave it unchanged) plus any error; a non-nil returned Job is
	// written atomically before the lease releases.
	WithLease(ctx context.Context, jobID uuid.UUID, fn func(job *models.Job) (*models.Job, error)) error
}

// memStore is an in-memory Store for tests — single-writer enforced with
// a per-job mutex rather than a database advisory lock.
type memStore struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
	jobs  map[uuid.UUID]*models.Job
}

func NewMemStore() Store {
	return &memStore{
		locks: make(map[uuid.UUID]*sync.Mutex),
		jobs:  make(map[uuid.UUID]*models.Job),
	}
}

func (m *memStore) lockFor(jobID uuid.UUID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[jobID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[jobID] = l
	}
	return l
}

func (m *memStore) Get(_ context.Context, jobID uuid.UUID) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *memStore) Create(_ context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memStore) ListActive(_ context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, job := range m.jobs {
		if !job.Phase.Terminal() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) WithLease(_ context.Context, jobID uuid.UUID, fn func(*models.Job) (*models.Job, error)) error {
	lock := m.lockFor(jobID)
	if !lock.TryLock() {
		return ErrLeaseHeld
	}
	defer lock.Unlock()

	m.mu.Lock()
	current, ok := m.jobs[jobID]
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	cp := *current

	updated, err := fn(&cp)
	if err != nil {
		return err
	}
	if updated != nil {
		m.mu.Lock()
		m.jobs[jobID] = updated
		m.mu.Unlock()
	}
	return nil
}
