package orchestrator

import "fmt"

// PermanentError marks a Job-terminating failure that is never retried —
// missing credentials, a permanent ProviderError with no remaining
// sibling shots, or an internal invariant violation (spec §7).
type PermanentError struct {
	Message string
}

func (e *PermanentError) Error() string { return e.Message }

// TimeoutError marks a phase ceiling exceeded (spec §7: "Timeout in
// <phase>").
type TimeoutError struct {
	Phase string
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("Timeout in %s", e.Phase) }

// CancelledError marks a Job whose CancelRequested flag was observed at
// the top of Resume (spec §5/§7).
type CancelledError struct{}

func (e *CancelledError) Error() string { return "Cancelled" }

// InternalError wraps an unexpected failure from the Orchestrator itself;
// its message is redacted before being persisted to Job.ErrorMessage
// (spec §7: "never expose raw exception text to the external interface").
type InternalError struct {
	cause error
}

func (e *InternalError) Error() string { return "internal error" }
func (e *InternalError) Unwrap() error { return e.cause }
