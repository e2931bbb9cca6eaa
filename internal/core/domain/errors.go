package domain

import (
	"errors"
	"fmt"
	"time"
)

// ============================================================================
// Submission Errors
// ============================================================================

// Validation errors
var (
	ErrInvalidFormat     = errors.New("invalid image format")
	ErrInvalidParameters = errors.New("invalid generation parameters")
)

// Local processing errors
var (
	ErrImageConversion      = errors.New("image conversion failed")
	ErrFilesystem           = errors.New("filesystem operation failed")
	ErrSubmissionInProgress = errors.New("another submission is already running")
)

// ============================================================================
// Remote Inference Errors
// ============================================================================

var (
	ErrServiceUnreachable = errors.New("inference service unreachable")
	ErrRateLimited        = errors.New("inference service rate limited the request")
	ErrQuotaExceeded      = errors.New("inference GPU quota exceeded")
	ErrRemoteInference    = errors.New("remote inference failed")
	ErrMissingResultAsset = errors.New("inference result asset not found")
)

// ============================================================================
// Artifact Errors
// ============================================================================

var (
	ErrNoArtifacts      = errors.New("no artifacts have been generated yet")
	ErrArtifactNotFound = errors.New("artifact not found")
)

// QuotaExceededError reports an exhausted GPU quota. WaitTime is zero when the
// service did not say when the quota resets.
type QuotaExceededError struct {
	WaitTime time.Duration
	WaitText string
	Message  string
}

func (e *QuotaExceededError) Error() string {
	if e.WaitText != "" {
		return fmt.Sprintf("%s: try again in %s", ErrQuotaExceeded, e.WaitText)
	}
	return ErrQuotaExceeded.Error()
}

func (e *QuotaExceededError) Unwrap() error {
	return ErrQuotaExceeded
}

// RetryAfter returns the wait hint carried by err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var quotaErr *QuotaExceededError
	if errors.As(err, &quotaErr) && quotaErr.WaitTime > 0 {
		return quotaErr.WaitTime, true
	}
	return 0, false
}
