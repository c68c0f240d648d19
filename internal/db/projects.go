package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/bobarin/director/internal/models"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows, matching the
// teacher's scan-helper shape in jobstore/postgres.go.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (db *DB) CreateProject(ctx context.Context, project *models.Project) error {
	constraintsJSON, err := json.Marshal(project.Constraints)
	if err != nil {
		return fmt.Errorf("db: marshal constraints: %w", err)
	}
	query := `
		INSERT INTO projects (
			id, owner_id, name, concept, style, target_duration, aspect_ratio,
			constraints, status, approved_version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	return db.QueryRowContext(ctx, query,
		project.ID, project.OwnerID, project.Name, project.Concept, nullableString(project.Style),
		project.TargetDuration, project.AspectRatio, constraintsJSON, project.Status, project.ApprovedVersion,
	).Scan(&project.CreatedAt, &project.UpdatedAt)
}

const selectProjectQuery = `
	SELECT id, owner_id, name, concept, style, target_duration, aspect_ratio,
		constraints, status, approved_version, created_at, updated_at
	FROM projects
`

func (db *DB) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	row := db.QueryRowContext(ctx, selectProjectQuery+` WHERE id = $1`, id)
	return scanProject(row)
}

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	var style sql.NullString
	var constraintsJSON []byte

	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Name, &p.Concept, &style, &p.TargetDuration, &p.AspectRatio,
		&constraintsJSON, &p.Status, &p.ApprovedVersion, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db: scan project: %w", err)
	}
	p.Style = style.String
	if len(constraintsJSON) > 0 {
		if err := json.Unmarshal(constraintsJSON, &p.Constraints); err != nil {
			return nil, fmt.Errorf("db: unmarshal constraints: %w", err)
		}
	}
	return &p, nil
}

// UpdateProjectStatus advances a Project's status without touching its
// approved version, e.g. created -> directed after a successful direct().
func (db *DB) UpdateProjectStatus(ctx context.Context, id uuid.UUID, status models.ProjectStatus) error {
	_, err := db.ExecContext(ctx, `UPDATE projects SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	return err
}

// ApproveProject freezes a Plan version against its Project (spec §6:
// "Freeze the Plan").
func (db *DB) ApproveProject(ctx context.Context, id uuid.UUID, version int) error {
	_, err := db.ExecContext(ctx, `
		UPDATE projects SET status = $1, approved_version = $2, updated_at = now() WHERE id = $3
	`, models.ProjectStatusApproved, version, id)
	return err
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
