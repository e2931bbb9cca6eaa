package handlers

import (
	"image3d-service/internal/core/domain"
	"image3d-service/internal/core/services"

	"github.com/gin-gonic/gin"
)

const artifactsPath = "/api/v1/artifacts"

type Handler struct {
	submissionSvc  *services.SubmissionService
	defaults       domain.GenerationParameters
	uploadMaxBytes int64
}

func New(
	submissionSvc *services.SubmissionService,
	defaults domain.GenerationParameters,
	uploadMaxBytes int64,
) *Handler {
	return &Handler{
		submissionSvc:  submissionSvc,
		defaults:       defaults,
		uploadMaxBytes: uploadMaxBytes,
	}
}

// RegisterPages mounts the HTML upload UI on the engine root.
func (h *Handler) RegisterPages(r gin.IRoutes) {
	r.GET("/", h.Index)
	r.POST("/generate", h.Generate)
}

// RegisterRoutes mounts the JSON API, expected under /api/v1.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	// Submissions
	r.POST("/submissions", h.CreateSubmission)

	// Artifacts of the latest successful submission
	r.GET("/artifacts", h.GetArtifacts)
	r.GET("/artifacts/:name", h.GetArtifact)
}

// RegisterProbes mounts liveness and readiness endpoints.
func (h *Handler) RegisterProbes(r gin.IRoutes) {
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
}
