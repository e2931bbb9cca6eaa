package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "image3d"

// Recorder exports pipeline and HTTP observations as Prometheus metrics.
type Recorder struct {
	submissionsTotal   *prometheus.CounterVec
	submissionDuration *prometheus.HistogramVec
	inferenceAttempts  *prometheus.CounterVec
	retryDelay         prometheus.Histogram

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewRecorder registers the collectors on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		submissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Total number of submissions by outcome",
			},
			[]string{"outcome"},
		),
		submissionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "submission_duration_seconds",
				Help:      "Submission duration in seconds, including remote inference",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"outcome"},
		),
		inferenceAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inference_attempts_total",
				Help:      "Total number of remote inference calls by result",
			},
			[]string{"result"},
		),
		retryDelay: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "inference_retry_delay_seconds",
				Help:      "Backoff delay before retrying a rate-limited inference call",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
			},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

func (r *Recorder) ObserveSubmission(outcome string, duration time.Duration) {
	r.submissionsTotal.WithLabelValues(outcome).Inc()
	r.submissionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (r *Recorder) ObserveInferenceAttempt(result string) {
	r.inferenceAttempts.WithLabelValues(result).Inc()
}

func (r *Recorder) ObserveRetryDelay(delay time.Duration) {
	r.retryDelay.Observe(delay.Seconds())
}

// ObserveHTTPRequest records one served request. path should be the route
// template, not the raw URL, to keep label cardinality bounded.
func (r *Recorder) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	r.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
