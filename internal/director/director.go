// Package director implements the AI Director (spec §4.2): composing
// prompts, invoking a TextCompletion adapter, and parsing/validating/
// normalizing the result into a Plan.
package director

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bobarin/director/internal/models"
	"github.com/bobarin/director/internal/providers"
)

const directTolerance = 0.10

// Director turns a concept into a validated, normalized Plan.
type Director struct {
	text providers.TextCompletion
}

func New(text providers.TextCompletion) *Director {
	return &Director{text: text}
}

// Direct implements spec §4.2's six-step direct() algorithm.
func (d *Director) Direct(ctx context.Context, projectID uuid.UUID, concept string, targetDuration int, aspectRatio, style string, constraints models.PlanConstraints) (*models.Plan, error) {
	system := buildSystemPrompt(targetDuration, aspectRatio, style, constraints)
	user := buildUserPrompt(concept, targetDuration, aspectRatio)

	result, err := d.text.Chat(ctx, system, user, providers.ChatOptions{Temperature: 1.0, JSONMode: true})
	if err != nil {
		return nil, err
	}

	raw, err := parseAndValidate(result.Content, float64(targetDuration), directTolerance, constraints)
	if err != nil {
		return nil, err
	}
	return normalize(raw, projectID), nil
}

// Refine implements spec §4.2's refine() algorithm: resubmit the prior
// plan and feedback, validate against the prior plan's own totalDuration.
func (d *Director) Refine(ctx context.Context, existing *models.Plan, feedback string) (*models.Plan, error) {
	system, user := buildRefinePrompt(existing, feedback)

	result, err := d.text.Chat(ctx, system, user, providers.ChatOptions{Temperature: 1.0, JSONMode: true})
	if err != nil {
		return nil, err
	}

	raw, err := parseAndValidate(result.Content, existing.TotalDuration, directTolerance, models.PlanConstraints{})
	if err != nil {
		return nil, err
	}
	refined := normalize(raw, existing.ProjectID)
	refined.Version = existing.Version + 1
	return refined, nil
}

const textEstimateInputTokens = 2000
const textEstimateOutputTokens = 2000
const textEstimateUSDPer1kTokens = 0.002

// EstimateCost implements spec §4.2's estimateCost(): 2 images + 1 video
// per shot, optional compile, plus a fixed text-generation estimate.
func EstimateCost(plan *models.Plan, bundle providers.Bundle) models.CostBreakdown {
	shotCount := plan.ShotCount()

	textCost := (textEstimateInputTokens + textEstimateOutputTokens) / 1000.0 * textEstimateUSDPer1kTokens
	imageCost := 0.0
	if est, ok := bundle.Image.(providers.CostEstimator); ok {
		imageCost = est.EstimateCostUSD() * float64(shotCount) * 2
	}
	videoCost := 0.0
	if est, ok := bundle.Video.(providers.CostEstimator); ok {
		videoCost = est.EstimateCostUSD() * float64(shotCount)
	}
	compileCost := 0.0
	assumptions := []string{
		fmt.Sprintf("%d shots × 2 images", shotCount),
		fmt.Sprintf("%d shots × 1 video", shotCount),
		"text estimate assumes ~2000 input / ~2000 output tokens",
	}
	if bundle.Compile != nil {
		if est, ok := bundle.Compile.(providers.CostEstimator); ok {
			compileCost = est.EstimateCostUSD()
			assumptions = append(assumptions, "includes one compile job")
		}
	} else {
		assumptions = append(assumptions, "no compile provider configured; final artifact is per-shot clips only")
	}

	total := textCost + imageCost + videoCost + compileCost
	return models.CostBreakdown{
		TextCostUSD:    round2(textCost),
		ImageCostUSD:   round2(imageCost),
		VideoCostUSD:   round2(videoCost),
		CompileCostUSD: round2(compileCost),
		TotalUSD:       round2(total),
		Assumptions:    assumptions,
	}
}

func round2(v float64) float64 {
	return roundTo(v, 0.01)
}
