package ports

import (
	"context"

	"image3d-service/internal/core/domain"
)

// PredictionRequest carries the normalized image and generation parameters.
// WorkDir is the per-request directory the client downloads result assets into.
type PredictionRequest struct {
	ImagePath string
	WorkDir   string
	Params    domain.GenerationParameters
}

// InferenceClient defines the contract for the remote image-to-3D service.
type InferenceClient interface {
	// Probe checks reachability with a short timeout.
	Probe(ctx context.Context) error

	// Predict runs one reconstruction. Errors wrap the domain taxonomy:
	// ErrRateLimited, ErrQuotaExceeded, ErrServiceUnreachable, ErrRemoteInference.
	Predict(ctx context.Context, req PredictionRequest) (*domain.Prediction, error)
}
