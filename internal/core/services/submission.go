package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"image3d-service/internal/core/domain"
	ports "image3d-service/internal/core/ports/output"
	"image3d-service/internal/retry"
)

// SubmissionConfig tunes the pipeline.
type SubmissionConfig struct {
	Retry        retry.Policy
	Probe        bool
	RetryOptions []retry.Option
}

// SubmissionService runs the upload → remote inference → artifact pipeline.
// The output directory holds at most one submission's artifacts, so only one
// submission may run at a time.
type SubmissionService struct {
	workspace  ports.Workspace
	inference  ports.InferenceClient
	metrics    ports.MetricsRecorder
	normalizer *ImageNormalizer
	cfg        SubmissionConfig
	slot       *semaphore.Weighted

	mu      sync.RWMutex
	current *domain.ArtifactSet
}

func NewSubmissionService(
	workspace ports.Workspace,
	inference ports.InferenceClient,
	metrics ports.MetricsRecorder,
	normalizer *ImageNormalizer,
	cfg SubmissionConfig,
) *SubmissionService {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if normalizer == nil {
		normalizer = NewImageNormalizer("")
	}
	return &SubmissionService{
		workspace:  workspace,
		inference:  inference,
		metrics:    metrics,
		normalizer: normalizer,
		cfg:        cfg,
		slot:       semaphore.NewWeighted(1),
	}
}

// ArtifactVisitor reads one stored artifact. r is valid only during the call.
type ArtifactVisitor func(a domain.Artifact, r io.Reader) error

// Submit validates the upload, calls the remote service and stores the
// resulting artifacts. On any failure it returns a nil set.
func (s *SubmissionService) Submit(ctx context.Context, img domain.UploadedImage, params domain.GenerationParameters) (*domain.ArtifactSet, error) {
	return s.SubmitAndVisit(ctx, img, params, nil)
}

// SubmitAndVisit is Submit, additionally passing every stored artifact to
// visit before the next submission can replace the output directory.
func (s *SubmissionService) SubmitAndVisit(ctx context.Context, img domain.UploadedImage, params domain.GenerationParameters, visit ArtifactVisitor) (set *domain.ArtifactSet, err error) {
	start := time.Now()
	id := uuid.New()
	logger := log.WithFields(log.Fields{
		"submission_id": id.String(),
		"filename":      img.SafeFilename(),
	})
	defer func() {
		s.metrics.ObserveSubmission(outcomeOf(err), time.Since(start))
		if err != nil {
			logger.WithError(err).Warn("submission failed")
		}
	}()

	if err := img.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if !s.slot.TryAcquire(1) {
		return nil, domain.ErrSubmissionInProgress
	}
	defer s.slot.Release(1)

	workDir, err := s.workspace.TempDir("submission-")
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := s.workspace.RemoveAll(workDir); rmErr != nil {
			logger.WithError(rmErr).Warn("remove working directory")
		}
	}()

	imageName, imageData, err := s.normalizer.Normalize(img.SafeFilename(), img.Data)
	if err != nil {
		return nil, err
	}
	imagePath := filepath.Join(workDir, imageName)
	if err := s.workspace.WriteFile(imagePath, imageData); err != nil {
		return nil, err
	}

	s.setCurrent(nil)
	if err := s.workspace.RecreateOutputDir(); err != nil {
		return nil, err
	}

	if s.cfg.Probe {
		if err := s.inference.Probe(ctx); err != nil {
			return nil, fmt.Errorf("probe inference service: %w", err)
		}
	}

	attempts := 0
	opts := append([]retry.Option{
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			s.metrics.ObserveRetryDelay(delay)
			logger.WithFields(log.Fields{
				"attempt": attempt,
				"delay":   delay.String(),
			}).Info("inference rate limited, backing off")
		}),
	}, s.cfg.RetryOptions...)

	prediction, err := retry.Do(ctx, s.cfg.Retry, isRateLimited, func(ctx context.Context) (*domain.Prediction, error) {
		attempts++
		p, err := s.inference.Predict(ctx, ports.PredictionRequest{
			ImagePath: imagePath,
			WorkDir:   workDir,
			Params:    params,
		})
		s.metrics.ObserveInferenceAttempt(outcomeOf(err))
		return p, err
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("inference after %d attempt(s): %w", attempts, err)
	}

	if prediction == nil || !s.workspace.Exists(prediction.ModelPath) {
		modelPath := ""
		if prediction != nil {
			modelPath = prediction.ModelPath
		}
		return nil, fmt.Errorf("%w: model file not found at %q", domain.ErrMissingResultAsset, modelPath)
	}

	set, err = s.persist(id, img.BaseName(), imagePath, prediction, params.GenerateVideo)
	if err == nil {
		set.Artifacts, err = s.listArtifacts(set)
	}
	if err != nil {
		if clearErr := s.workspace.ClearOutput(); clearErr != nil {
			logger.WithError(clearErr).Error("clear partial artifacts")
		}
		return nil, err
	}
	set.Attempts = attempts

	s.setCurrent(set)
	logger.WithFields(log.Fields{
		"attempts":  attempts,
		"has_video": set.HasVideo(),
		"duration":  time.Since(start).String(),
	}).Info("submission completed")

	if visit != nil {
		for _, a := range set.Artifacts {
			if err := s.visitArtifact(a, visit); err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}

func (s *SubmissionService) visitArtifact(a domain.Artifact, visit ArtifactVisitor) error {
	rc, err := s.workspace.Open(a.Path)
	if err != nil {
		return err
	}
	defer rc.Close()
	return visit(a, rc)
}

// persist copies the results into the output directory. The preview video is
// kept only when it was requested.
func (s *SubmissionService) persist(id uuid.UUID, base, imagePath string, p *domain.Prediction, withVideo bool) (*domain.ArtifactSet, error) {
	set := &domain.ArtifactSet{
		ID:        id,
		BaseName:  base,
		CreatedAt: time.Now(),
	}

	var err error
	modelName := domain.ArtifactName(base, domain.ArtifactRoleModel, domain.ExtOf(p.ModelPath))
	if set.ModelPath, err = s.workspace.CopyIntoOutput(p.ModelPath, modelName); err != nil {
		return nil, err
	}

	imageName := domain.ArtifactName(base, domain.ArtifactRoleImage, domain.ExtOf(imagePath))
	if set.ImagePath, err = s.workspace.CopyIntoOutput(imagePath, imageName); err != nil {
		return nil, err
	}

	if withVideo && s.workspace.Exists(p.VideoPath) {
		videoName := domain.ArtifactName(base, domain.ArtifactRoleVideo, domain.ExtOf(p.VideoPath))
		if set.VideoPath, err = s.workspace.CopyIntoOutput(p.VideoPath, videoName); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// Probe reports whether the inference service is reachable.
func (s *SubmissionService) Probe(ctx context.Context) error {
	return s.inference.Probe(ctx)
}

// Current returns the most recent successful artifact set.
func (s *SubmissionService) Current() (*domain.ArtifactSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, domain.ErrNoArtifacts
	}
	cp := *s.current
	cp.Artifacts = append([]domain.Artifact(nil), s.current.Artifacts...)
	return &cp, nil
}

func (s *SubmissionService) setCurrent(set *domain.ArtifactSet) {
	s.mu.Lock()
	s.current = set
	s.mu.Unlock()
}

func isRateLimited(err error) bool {
	var quotaErr *domain.QuotaExceededError
	if errors.As(err, &quotaErr) {
		return false
	}
	return errors.Is(err, domain.ErrRateLimited)
}

func outcomeOf(err error) string {
	var quotaErr *domain.QuotaExceededError
	switch {
	case err == nil:
		return ports.OutcomeSuccess
	case errors.As(err, &quotaErr):
		return ports.OutcomeQuotaExceeded
	case errors.Is(err, domain.ErrInvalidFormat), errors.Is(err, domain.ErrInvalidParameters):
		return ports.OutcomeInvalidInput
	case errors.Is(err, domain.ErrSubmissionInProgress):
		return ports.OutcomeBusy
	case errors.Is(err, domain.ErrRateLimited):
		return ports.OutcomeRateLimited
	case errors.Is(err, domain.ErrServiceUnreachable):
		return ports.OutcomeUnreachable
	case errors.Is(err, domain.ErrMissingResultAsset):
		return ports.OutcomeMissingAsset
	case errors.Is(err, domain.ErrImageConversion):
		return ports.OutcomeConversionFailure
	case errors.Is(err, domain.ErrFilesystem):
		return ports.OutcomeFilesystemFailure
	default:
		return ports.OutcomeRemoteFailure
	}
}
