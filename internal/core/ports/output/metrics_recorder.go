package ports

import "time"

// Submission outcomes used as metric labels.
const (
	OutcomeSuccess           = "success"
	OutcomeInvalidInput      = "invalid_input"
	OutcomeBusy              = "busy"
	OutcomeRateLimited       = "rate_limited"
	OutcomeQuotaExceeded     = "quota_exceeded"
	OutcomeUnreachable       = "unreachable"
	OutcomeMissingAsset      = "missing_asset"
	OutcomeConversionFailure = "conversion_failure"
	OutcomeFilesystemFailure = "filesystem_failure"
	OutcomeRemoteFailure     = "remote_failure"
)

// MetricsRecorder receives pipeline observations.
type MetricsRecorder interface {
	ObserveSubmission(outcome string, duration time.Duration)
	ObserveInferenceAttempt(result string)
	ObserveRetryDelay(delay time.Duration)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) ObserveSubmission(string, time.Duration) {}
func (NopMetrics) ObserveInferenceAttempt(string) {}
func (NopMetrics) ObserveRetryDelay(time.Duration) {}
