package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/bobarin/director/internal/models"
)

// SavePlan inserts a new immutable Plan version row (spec §6 "Persisted
// state layout": a single JSON blob per project, one row per version so
// refine() never loses a prior draft).
func (db *DB) SavePlan(ctx context.Context, plan *models.Plan) error {
	scenesJSON, err := json.Marshal(plan.Scenes)
	if err != nil {
		return fmt.Errorf("db: marshal scenes: %w", err)
	}
	query := `
		INSERT INTO plans (project_id, version, title, narrative, total_duration, scenes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	return db.QueryRowContext(ctx, query,
		plan.ProjectID, plan.Version, plan.Title, plan.Narrative, plan.TotalDuration, scenesJSON,
	).Scan(&plan.CreatedAt)
}

const selectPlanQuery = `
	SELECT project_id, version, title, narrative, total_duration, scenes, created_at
	FROM plans
`

func (db *DB) GetPlan(ctx context.Context, projectID uuid.UUID, version int) (*models.Plan, error) {
	row := db.QueryRowContext(ctx, selectPlanQuery+` WHERE project_id = $1 AND version = $2`, projectID, version)
	return scanPlan(row)
}

// GetLatestPlan returns the highest-version Plan for a project — the
// draft that direct()/refine() last produced, not necessarily the
// approved one.
func (db *DB) GetLatestPlan(ctx context.Context, projectID uuid.UUID) (*models.Plan, error) {
	row := db.QueryRowContext(ctx, selectPlanQuery+` WHERE project_id = $1 ORDER BY version DESC LIMIT 1`, projectID)
	return scanPlan(row)
}

func scanPlan(row rowScanner) (*models.Plan, error) {
	var plan models.Plan
	var scenesJSON []byte

	err := row.Scan(&plan.ProjectID, &plan.Version, &plan.Title, &plan.Narrative, &plan.TotalDuration, &scenesJSON, &plan.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db: scan plan: %w", err)
	}
	if len(scenesJSON) > 0 {
		if err := json.Unmarshal(scenesJSON, &plan.Scenes); err != nil {
			return nil, fmt.Errorf("db: unmarshal scenes: %w", err)
		}
	}
	return &plan, nil
}
