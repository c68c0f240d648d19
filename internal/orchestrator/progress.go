package orchestrator

import (
	"math"

	"github.com/bobarin/director/internal/models"
)

// computeProgress implements spec §4.5's weighted progress formula: each
// generated image and each generated video counts as 1 unit, a
// successful compile counts as 1 unit; denominator = 2·N_shots +
// N_shots + (1 if compiling else 0). Forced to 100 on Complete by the
// caller, never here, so this function alone is pure and testable.
func computeProgress(job *models.Job, compiling bool) int {
	n := len(job.Shots)
	if n == 0 {
		return 0
	}

	var completed int
	for _, shot := range job.Shots {
		if shot.StartImageURL != "" {
			completed++
		}
		if shot.EndImageURL != "" {
			completed++
		}
		if shot.Phase == models.ShotComplete {
			completed++
		}
	}

	total := 2*n + n
	if compiling {
		total++
		if job.FinalArtifactURL != "" {
			completed++
		}
	}

	progress := int(math.Round(100 * float64(completed) / float64(total)))
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return progress
}
