package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"image3d-service/internal/core/domain"
	ports "image3d-service/internal/core/ports/output"
)

// MockInferenceClient is a mock of InferenceClient.
type MockInferenceClient struct {
	mock.Mock
}

func (m *MockInferenceClient) Probe(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockInferenceClient) Predict(ctx context.Context, req ports.PredictionRequest) (*domain.Prediction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Prediction), args.Error(1)
}

// MockMetricsRecorder is a mock of MetricsRecorder.
type MockMetricsRecorder struct {
	mock.Mock
}

func (m *MockMetricsRecorder) ObserveSubmission(outcome string, duration time.Duration) {
	m.Called(outcome, duration)
}

func (m *MockMetricsRecorder) ObserveInferenceAttempt(result string) {
	m.Called(result)
}

func (m *MockMetricsRecorder) ObserveRetryDelay(delay time.Duration) {
	m.Called(delay)
}
