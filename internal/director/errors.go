package director

import "fmt"

// ValidationErrorKind distinguishes a JSON parse failure from a semantic
// rule violation (spec §4.2 step 4/5).
type ValidationErrorKind string

const (
	ValidationMalformed ValidationErrorKind = "malformed"
	ValidationRule      ValidationErrorKind = "rule"
)

// ValidationError is returned by Direct/Refine when the model's response
// fails to parse or fails a Plan invariant. SceneID/ShotID are 0 when the
// violation is not localized to one shot (e.g. total-duration tolerance).
type ValidationError struct {
	Kind    ValidationErrorKind
	SceneID int
	ShotID  int
	Message string
}

func (e *ValidationError) Error() string {
	if e.SceneID != 0 || e.ShotID != 0 {
		return fmt.Sprintf("validation failed (scene %d, shot %d): %s", e.SceneID, e.ShotID, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}
