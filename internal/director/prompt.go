package director

import (
	"fmt"
	"strings"

	"github.com/bobarin/director/internal/models"
)

// buildSystemPrompt follows the structure of the teacher's
// buildPlanSystemPrompt (services/openai.go): a tone/style/aspect-ratio
// preamble followed by an "ALL FIELDS REQUIRED" closing reminder.
// Generalized from the teacher's clip/script/TTS vocabulary to
// scene/shot vocabulary, and extended with the camera-move/transition
// enumerations, the 20-token minimum, and the shot-to-shot continuity
// rule spec §4.2 step 1 requires, none of which the teacher's prompt
// needed (it only ever emitted a flat clip list, no scenes, no camera
// grammar).
func buildSystemPrompt(targetDuration int, aspectRatio, style string, constraints models.PlanConstraints) string {
	orientation := "portrait-format viewing (like TikTok/Reels/Shorts)"
	switch aspectRatio {
	case "16:9":
		orientation = "landscape-format viewing (like YouTube)"
	case "1:1":
		orientation = "square-format viewing (like Instagram feed)"
	case "4:5":
		orientation = "tall rectangular viewing (like Instagram portrait)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert film director decomposing a concept into a shot-by-shot production Plan for %s (%s aspect ratio).\n\n", orientation, aspectRatio)
	if style != "" {
		fmt.Fprintf(&b, "VISUAL STYLE: %s\nEvery startPrompt/endPrompt/motionPrompt must describe the scene in this aesthetic.\n\n", style)
	}
	fmt.Fprintf(&b, "Your task is to produce a Plan for a %d-second video, broken into scenes and, within each scene, shots.\n\n", targetDuration)

	b.WriteString(`Each shot is 5 to 10 seconds long and produces exactly two frames (startPrompt, endPrompt) plus a motionPrompt describing how the camera and subject move between them. Think in terms of continuity: the scene described by a shot's endPrompt must be the visual premise the NEXT shot's startPrompt picks up from — the viewer should never perceive a jump cut unless transitionOut says so.

Every scene and shot must be numbered sequentially starting at 1 within its parent (scene ids 1..N, shot ids 1..M within each scene).

cameraMove must be exactly one of: static, push_in, pull_out, pan_left, pan_right, tilt_up, tilt_down, crane_up, crane_down, dolly_left, dolly_right.

transitionOut, if present, must be exactly one of: cut, crossfade, fade_black, fade_white, wipe_left, wipe_right. Omit it to default to a cut.

startPrompt, endPrompt, and motionPrompt must each be a complete, vivid, single-paragraph description of at least 20 words. Do not abbreviate or leave any of the three blank.

The sum of all shot durations must land within 10% of the target duration.

`)

	if constraints.MaxScenes > 0 {
		fmt.Fprintf(&b, "Use at most %d scenes.\n", constraints.MaxScenes)
	}
	if constraints.MaxShotsPerScene > 0 {
		fmt.Fprintf(&b, "Use at most %d shots per scene.\n", constraints.MaxShotsPerScene)
	}
	if len(constraints.Include) > 0 {
		fmt.Fprintf(&b, "The plan must incorporate: %s.\n", strings.Join(constraints.Include, ", "))
	}
	if len(constraints.Avoid) > 0 {
		fmt.Fprintf(&b, "The plan must avoid: %s.\n", strings.Join(constraints.Avoid, ", "))
	}

	b.WriteString(`
ALL FIELDS ARE REQUIRED — do not leave any field empty or zero. Respond with a single JSON object matching this shape exactly:
{"title": string, "narrative": string, "totalDuration": number, "scenes": [{"id": int, "name": string, "description": string, "mood": string, "shots": [{"id": int, "duration": number, "startPrompt": string, "endPrompt": string, "motionPrompt": string, "cameraMove": string, "lighting": string, "colorPalette": string, "transitionOut": string}]}]}`)

	return b.String()
}

func buildUserPrompt(concept string, targetDuration int, aspectRatio string) string {
	return fmt.Sprintf("Generate a Plan for the concept: %q\n\nTarget duration: %d seconds\nAspect ratio: %s", concept, targetDuration, aspectRatio)
}

// buildRefinePrompt follows spec §4.2's refine algorithm: resubmit the
// prior plan plus feedback, target the prior plan's own totalDuration.
func buildRefinePrompt(plan *models.Plan, feedback string) (string, string) {
	system := fmt.Sprintf(`You are revising an existing shot-by-shot Plan in response to user feedback. Keep the same JSON shape and the same closed cameraMove/transitionOut enumerations. Preserve everything the feedback does not ask you to change. The sum of shot durations must remain within 10%% of %.1f seconds (the prior plan's total) unless the feedback explicitly asks for a different length.`, plan.TotalDuration)

	user := fmt.Sprintf("Prior plan (JSON):\n%s\n\nFeedback to apply:\n%s\n\nReturn the complete revised Plan as JSON in the same shape.", mustMarshalPlan(plan), feedback)
	return system, user
}
