package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bobarin/director/internal/models"
)

// PostgresStore is the production Store, grounded on the teacher's
// internal/db package (db/jobs.go, db/projects.go): plain `lib/pq` +
// hand-written SQL, no ORM. Single-writer (spec §4.3) is realized as a
// Postgres advisory transaction lock — `pg_try_advisory_xact_lock` held for
// the lifetime of one WithLease call — rather than a row lock with a
// lease TTL; it auto-releases on transaction end, which covers the
// crash-recovery case without a TTL sweep.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (
			id, project_id, owner_id, aspect_ratio, phase, progress, shots,
			final_artifact_url, error_message, poll_attempts, compile_request_id,
			cancel_requested
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	return s.db.QueryRowContext(ctx, query,
		job.ID, job.ProjectID, job.OwnerID, job.AspectRatio, job.Phase, job.Progress, models.JSONB[[]models.JobShot]{Data: job.Shots},
		nullableString(job.FinalArtifactURL), nullableString(job.ErrorMessage), job.PollAttempts,
		nullableString(job.CompileRequestID), job.CancelRequested,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
}

func (s *PostgresStore) Get(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx, selectJobQuery+` WHERE id = $1`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM jobs WHERE phase NOT IN ($1, $2)`,
		models.PhaseComplete, models.PhaseFailed)
	if err != nil {
		return nil, fmt.Errorf("jobstore: list active: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("jobstore: scan active id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// WithLease acquires `pg_advisory_xact_lock(hashtext(job_id))` inside a
// transaction, re-reads the current Job row, invokes fn, and — if fn
// returns a non-nil Job — writes the full (phase, progress, shots,
// finalArtifactUrl, errorMessage, updatedAt) tuple in one UPDATE before
// committing, satisfying the atomic-phase-transition guarantee of spec
// §4.3. `pg_try_advisory_xact_lock` is used instead of the blocking
// variant so a held lease surfaces as ErrLeaseHeld immediately rather
// than queuing the caller (spec §5: "quietly exits").
func (s *PostgresStore) WithLease(ctx context.Context, jobID uuid.UUID, fn func(job *models.Job) (*models.Job, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("jobstore: begin tx: %w", err)
	}
	defer tx.Rollback()

	var acquired bool
	if err := tx.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock(hashtext($1))`, jobID.String()).Scan(&acquired); err != nil {
		return fmt.Errorf("jobstore: acquire lease: %w", err)
	}
	if !acquired {
		return ErrLeaseHeld
	}

	row := tx.QueryRowContext(ctx, selectJobQuery+` WHERE id = $1 FOR UPDATE`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("jobstore: read job under lease: %w", err)
	}

	updated, err := fn(job)
	if err != nil {
		return err
	}
	if updated != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE jobs SET
				phase = $1, progress = $2, shots = $3, final_artifact_url = $4,
				error_message = $5, poll_attempts = $6, compile_request_id = $7,
				cancel_requested = $8, updated_at = now()
			WHERE id = $9
		`, updated.Phase, updated.Progress, models.JSONB[[]models.JobShot]{Data: updated.Shots}, nullableString(updated.FinalArtifactURL),
			nullableString(updated.ErrorMessage), updated.PollAttempts, nullableString(updated.CompileRequestID),
			updated.CancelRequested, jobID)
		if err != nil {
			return fmt.Errorf("jobstore: persist job: %w", err)
		}
	}

	return tx.Commit()
}

const selectJobQuery = `
	SELECT id, project_id, owner_id, aspect_ratio, phase, progress, shots,
		final_artifact_url, error_message, poll_attempts, compile_request_id,
		cancel_requested, created_at, updated_at
	FROM jobs
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	var shots models.JSONB[[]models.JobShot]
	var finalArtifactURL, errorMessage, compileRequestID sql.NullString

	err := row.Scan(
		&job.ID, &job.ProjectID, &job.OwnerID, &job.AspectRatio, &job.Phase, &job.Progress, &shots,
		&finalArtifactURL, &errorMessage, &job.PollAttempts, &compileRequestID,
		&job.CancelRequested, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Shots = shots.Data
	job.FinalArtifactURL = finalArtifactURL.String
	job.ErrorMessage = errorMessage.String
	job.CompileRequestID = compileRequestID.String
	return &job, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
