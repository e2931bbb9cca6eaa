package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"image3d-service/internal/adapters/primary/http/dto"
	"image3d-service/internal/core/domain"

	"github.com/gin-gonic/gin"
)

// multipartOverhead leaves room for boundaries and the parameter fields on
// top of the file itself.
const multipartOverhead = 64 << 10

func (h *Handler) CreateSubmission(c *gin.Context) {
	img, params, err := h.readUpload(c)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	set, err := h.submissionSvc.Submit(c.Request.Context(), img, params)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToArtifactSetResponse(set, set.Artifacts, artifactsPath))
}

// readUpload extracts the "image" file and the generation overrides from a
// multipart request.
func (h *Handler) readUpload(c *gin.Context) (domain.UploadedImage, domain.GenerationParameters, error) {
	var img domain.UploadedImage
	var params domain.GenerationParameters

	if h.uploadMaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploadMaxBytes+multipartOverhead)
	}

	fh, err := c.FormFile("image")
	if err != nil {
		switch {
		case isBodyTooLarge(err):
			return img, params, fmt.Errorf("%w: limit is %d bytes", errUploadTooLarge, h.uploadMaxBytes)
		case errors.Is(err, http.ErrMissingFile):
			return img, params, fmt.Errorf("%w: please upload an image file first", domain.ErrInvalidFormat)
		default:
			return img, params, fmt.Errorf("%w: read upload: %v", domain.ErrInvalidFormat, err)
		}
	}
	if h.uploadMaxBytes > 0 && fh.Size > h.uploadMaxBytes {
		return img, params, fmt.Errorf("%w: %s is %d bytes, limit is %d", errUploadTooLarge, fh.Filename, fh.Size, h.uploadMaxBytes)
	}

	f, err := fh.Open()
	if err != nil {
		return img, params, fmt.Errorf("%w: open upload: %v", domain.ErrInvalidFormat, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return img, params, fmt.Errorf("%w: read upload: %v", domain.ErrInvalidFormat, err)
	}
	img = domain.UploadedImage{Filename: fh.Filename, Data: data}

	var form dto.SubmissionForm
	if err := c.ShouldBind(&form); err != nil {
		return img, params, fmt.Errorf("%w: %v", domain.ErrInvalidParameters, err)
	}
	params, err = form.ToParams(h.defaults)
	if err != nil {
		return img, params, err
	}
	return img, params, nil
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
