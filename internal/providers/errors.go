package providers

import "fmt"

// ProviderError is the uniform error shape every adapter returns (spec
// §4.1). Retryable distinguishes network/5xx/429 failures from permanent
// 4xx/malformed-response failures; the Orchestrator and Director branch on
// it via errors.As.
type ProviderError struct {
	Retryable  bool
	HTTPStatus int // 0 when there was no HTTP response (network error, timeout)
	Message    string
}

func (e *ProviderError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("provider error (status %d): %s", e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

// ClassifyHTTPError is the single shared retryability classifier every
// adapter uses, replacing the teacher's per-service ad hoc
// isRetryableStatus/isRetryableError duplication (storage.go had its own
// copy; here it happens exactly once).
func ClassifyHTTPError(status int, err error) *ProviderError {
	if err != nil && status == 0 {
		return &ProviderError{Retryable: true, Message: err.Error()}
	}
	switch {
	case status == 429, status == 408, status >= 500:
		return &ProviderError{Retryable: true, HTTPStatus: status, Message: fmt.Sprintf("status %d", status)}
	case status >= 400:
		return &ProviderError{Retryable: false, HTTPStatus: status, Message: fmt.Sprintf("status %d", status)}
	default:
		return nil
	}
}

// NoCredentialsError marks a PermanentProviderError raised when a
// credential lookup for a capability returns nothing (spec §4.5 step 1).
type NoCredentialsError struct {
	Capability string
}

func (e *NoCredentialsError) Error() string {
	return fmt.Sprintf("no credentials configured for capability %q", e.Capability)
}
