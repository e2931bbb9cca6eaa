package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"image3d-service/internal/adapters/primary/http/dto"
	"image3d-service/internal/adapters/primary/http/web"
	"image3d-service/internal/core/domain"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const pageTitle = "Image to 3D Model Converter"

var downloadLabels = map[domain.ArtifactRole]string{
	domain.ArtifactRoleModel: "Download 3D Model (GLB)",
	domain.ArtifactRoleImage: "Download Original Image",
	domain.ArtifactRoleVideo: "Download Preview Video",
}

func (h *Handler) Index(c *gin.Context) {
	accept := make([]string, 0, len(domain.AllowedExtensions))
	for _, ext := range domain.AllowedExtensions {
		accept = append(accept, "."+ext)
	}

	c.HTML(http.StatusOK, "index.html", web.IndexPage{
		Title:        pageTitle,
		Accept:       strings.Join(accept, ","),
		Extensions:   domain.AllowedExtensions,
		MaxUploadMiB: h.uploadMaxBytes >> 20,
		Defaults:     h.defaults,
	})
}

// Generate runs a submission from the HTML form and renders the outcome.
func (h *Handler) Generate(c *gin.Context) {
	page := web.ResultPage{
		Title:        pageTitle,
		ViewerScript: web.ModelViewerScript,
	}

	img, params, err := h.readUpload(c)
	if err != nil {
		h.renderFailure(c, page, err)
		return
	}
	page.Filename = img.SafeFilename()
	if mt := mimetype.Detect(img.Data); strings.HasPrefix(mt.String(), "image/") {
		page.ImageSrc = web.DataURI(mt.String(), img.Data)
	}

	set, err := h.submissionSvc.SubmitAndVisit(c.Request.Context(), img, params, func(a domain.Artifact, r io.Reader) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("%w: read %s: %v", domain.ErrFilesystem, a.Name, err)
		}
		uri := web.DataURI(a.ContentType, data)
		switch a.Role {
		case domain.ArtifactRoleModel:
			page.ModelSrc = uri
		case domain.ArtifactRoleVideo:
			page.VideoSrc = uri
		}
		page.Downloads = append(page.Downloads, web.Download{
			Label: downloadLabels[a.Role],
			Name:  a.Name,
			Size:  a.Size,
			Href:  uri,
		})
		return nil
	})
	if err != nil {
		h.renderFailure(c, page, err)
		return
	}

	page.Success = true
	page.Attempts = set.Attempts
	page.BundleURL = artifactsPath + "/" + dto.BundleName
	c.HTML(http.StatusOK, "result.html", page)
}

func (h *Handler) renderFailure(c *gin.Context, page web.ResultPage, err error) {
	status := statusFor(err)
	page.Success = false
	page.Alternatives = web.Alternatives
	page.Error = "Error processing request: " + err.Error()
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("generate page failed")
	}

	var quotaErr *domain.QuotaExceededError
	if errors.As(err, &quotaErr) {
		page.QuotaWait = quotaErr.WaitText
		if secs, ok := retryAfterSeconds(err); ok {
			c.Header("Retry-After", strconv.Itoa(secs))
		}
	}

	c.HTML(status, "result.html", page)
}
