package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"image3d-service/internal/adapters/primary/http/dto"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) GetArtifacts(c *gin.Context) {
	set, err := h.submissionSvc.Current()
	if err != nil {
		mapDomainError(c, err)
		return
	}

	artifacts, err := h.submissionSvc.Artifacts()
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToArtifactSetResponse(set, artifacts, artifactsPath))
}

func (h *Handler) GetArtifact(c *gin.Context) {
	name := c.Param("name")
	if name == dto.BundleName {
		h.getBundle(c)
		return
	}

	artifact, rc, err := h.submissionSvc.OpenArtifact(name)
	if err != nil {
		mapDomainError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, artifact.Size, artifact.ContentType, rc, map[string]string{
		"Content-Disposition": attachment(artifact.Name),
	})
}

// getBundle buffers the archive so that a failure still yields a JSON error.
func (h *Handler) getBundle(c *gin.Context) {
	set, err := h.submissionSvc.Current()
	if err != nil {
		mapDomainError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.submissionSvc.Bundle(&buf); err != nil {
		log.WithError(err).Error("build artifact bundle failed")
		mapDomainError(c, err)
		return
	}

	c.Header("Content-Disposition", attachment(set.BaseName+"_artifacts.zip"))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}
