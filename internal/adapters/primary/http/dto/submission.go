package dto

import (
	"time"

	"image3d-service/internal/core/domain"
)

// ============================================================================
// Request DTOs
// ============================================================================

// SubmissionForm carries the optional generation overrides sent next to the
// uploaded image. Absent fields keep the configured defaults.
type SubmissionForm struct {
	RemoveBackground *bool    `form:"remove_background"`
	Seed             *int     `form:"seed"`
	GenerateVideo    *bool    `form:"generate_video"`
	RefineDetails    *bool    `form:"refine_details"`
	ExpansionWeight  *float64 `form:"expansion_weight"`
	MeshInit         string   `form:"mesh_init"`
}

// ToParams applies the form on top of defaults and validates the result.
func (f *SubmissionForm) ToParams(defaults domain.GenerationParameters) (domain.GenerationParameters, error) {
	p := defaults
	if f.RemoveBackground != nil {
		p.RemoveBackground = *f.RemoveBackground
	}
	if f.Seed != nil {
		p.Seed = *f.Seed
	}
	if f.GenerateVideo != nil {
		p.GenerateVideo = *f.GenerateVideo
	}
	if f.RefineDetails != nil {
		p.RefineDetails = *f.RefineDetails
	}
	if f.ExpansionWeight != nil {
		p.ExpansionWeight = *f.ExpansionWeight
	}
	if f.MeshInit != "" {
		m, err := domain.ParseMeshInit(f.MeshInit)
		if err != nil {
			return domain.GenerationParameters{}, err
		}
		p.MeshInit = m
	}
	if err := p.Validate(); err != nil {
		return domain.GenerationParameters{}, err
	}
	return p, nil
}

// ============================================================================
// Response DTOs
// ============================================================================

type ArtifactResponse struct {
	Role        string `json:"role"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
}

type ArtifactSetResponse struct {
	ID        string             `json:"id"`
	BaseName  string             `json:"base_name"`
	CreatedAt time.Time          `json:"created_at"`
	Attempts  int                `json:"attempts,omitempty"`
	HasVideo  bool               `json:"has_video"`
	Artifacts []ArtifactResponse `json:"artifacts"`
	BundleURL string             `json:"bundle_url"`
}

// ToArtifactSetResponse builds the API view of a set. urlPrefix is the route
// that serves individual artifacts, e.g. "/api/v1/artifacts".
func ToArtifactSetResponse(set *domain.ArtifactSet, artifacts []domain.Artifact, urlPrefix string) ArtifactSetResponse {
	resp := ArtifactSetResponse{
		ID:        set.ID.String(),
		BaseName:  set.BaseName,
		CreatedAt: set.CreatedAt,
		Attempts:  set.Attempts,
		HasVideo:  set.HasVideo(),
		Artifacts: make([]ArtifactResponse, 0, len(artifacts)),
		BundleURL: urlPrefix + "/" + BundleName,
	}
	for _, a := range artifacts {
		resp.Artifacts = append(resp.Artifacts, ArtifactResponse{
			Role:        string(a.Role),
			Name:        a.Name,
			ContentType: a.ContentType,
			Size:        a.Size,
			URL:         urlPrefix + "/" + a.Name,
		})
	}
	return resp
}

// BundleName is the artifact route name of the zip archive.
const BundleName = "bundle.zip"

type ErrorResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after,omitempty"`
}
