package prometheus

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	ports "image3d-service/internal/core/ports/output"
)

func TestRecorder_ObserveSubmission(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.ObserveSubmission(ports.OutcomeSuccess, 12*time.Second)
	r.ObserveSubmission(ports.OutcomeSuccess, 20*time.Second)
	r.ObserveSubmission(ports.OutcomeQuotaExceeded, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.submissionsTotal.WithLabelValues(ports.OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.submissionsTotal.WithLabelValues(ports.OutcomeQuotaExceeded)))
	assert.Equal(t, 2, testutil.CollectAndCount(r.submissionDuration))
}

func TestRecorder_ObserveInference(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.ObserveInferenceAttempt(ports.OutcomeRateLimited)
	r.ObserveInferenceAttempt(ports.OutcomeRateLimited)
	r.ObserveInferenceAttempt(ports.OutcomeSuccess)
	r.ObserveRetryDelay(2 * time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.inferenceAttempts.WithLabelValues(ports.OutcomeRateLimited)))
	assert.Equal(t, 1, testutil.CollectAndCount(r.retryDelay))
}

func TestRecorder_ObserveHTTPRequest(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.ObserveHTTPRequest(http.MethodPost, "/generate", http.StatusOK, 3*time.Second)
	r.ObserveHTTPRequest(http.MethodGet, "/api/v1/artifacts/:name", http.StatusNotFound, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequestsTotal.WithLabelValues(http.MethodPost, "/generate", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/artifacts/:name", "404")))
}

func TestNewRecorder_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewRecorder(prometheus.NewRegistry())
		NewRecorder(prometheus.NewRegistry())
	})
}
