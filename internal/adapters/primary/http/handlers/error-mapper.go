package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"image3d-service/internal/adapters/primary/http/dto"
	"image3d-service/internal/core/domain"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

var errUploadTooLarge = errors.New("upload exceeds the size limit")

func statusFor(err error) int {
	switch {
	case errors.Is(err, errUploadTooLarge):
		return http.StatusRequestEntityTooLarge

	// Bad request / validation errors
	case errors.Is(err, domain.ErrInvalidFormat),
		errors.Is(err, domain.ErrInvalidParameters):
		return http.StatusBadRequest

	case errors.Is(err, domain.ErrImageConversion):
		return http.StatusUnprocessableEntity

	case errors.Is(err, domain.ErrSubmissionInProgress):
		return http.StatusConflict

	// Remote service errors
	case errors.Is(err, domain.ErrQuotaExceeded),
		errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrServiceUnreachable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrRemoteInference),
		errors.Is(err, domain.ErrMissingResultAsset):
		return http.StatusBadGateway

	// Not found errors
	case errors.Is(err, domain.ErrNoArtifacts),
		errors.Is(err, domain.ErrArtifactNotFound):
		return http.StatusNotFound

	default:
		return http.StatusInternalServerError
	}
}

// retryAfterSeconds rounds the wait hint of err up to whole seconds.
func retryAfterSeconds(err error) (int, bool) {
	wait, ok := domain.RetryAfter(err)
	if !ok {
		return 0, false
	}
	return int(math.Ceil(wait.Seconds())), true
}

func mapDomainError(c *gin.Context, err error) {
	status := statusFor(err)
	resp := dto.ErrorResponse{Error: err.Error()}

	if secs, ok := retryAfterSeconds(err); ok {
		c.Header("Retry-After", strconv.Itoa(secs))
		resp.RetryAfter = secs
	}

	if status == http.StatusInternalServerError {
		log.WithError(err).Error("unexpected error")
		resp.Error = "internal server error"
	}

	c.JSON(status, resp)
}
