package services

import (
	"archive/zip"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"image3d-service/internal/core/domain"
)

const gltfBinaryContentType = "model/gltf-binary"

// Artifacts lists the files of the current artifact set in model, image, video order.
func (s *SubmissionService) Artifacts() ([]domain.Artifact, error) {
	set, err := s.Current()
	if err != nil {
		return nil, err
	}
	return set.Artifacts, nil
}

func (s *SubmissionService) listArtifacts(set *domain.ArtifactSet) ([]domain.Artifact, error) {
	roles := []struct {
		role domain.ArtifactRole
		path string
	}{
		{domain.ArtifactRoleModel, set.ModelPath},
		{domain.ArtifactRoleImage, set.ImagePath},
		{domain.ArtifactRoleVideo, set.VideoPath},
	}

	artifacts := make([]domain.Artifact, 0, len(roles))
	for _, r := range roles {
		if r.path == "" {
			continue
		}
		info, err := s.workspace.Stat(r.path)
		if err != nil {
			return nil, fmt.Errorf("%w: stat %s: %v", domain.ErrFilesystem, filepath.Base(r.path), err)
		}
		artifacts = append(artifacts, domain.Artifact{
			Role:        r.role,
			Name:        filepath.Base(r.path),
			Path:        r.path,
			ContentType: s.contentType(r.path),
			Size:        info.Size(),
		})
	}
	return artifacts, nil
}

// OpenArtifact opens one file of the current set by its output name.
// The caller must close the returned reader.
func (s *SubmissionService) OpenArtifact(name string) (domain.Artifact, io.ReadCloser, error) {
	artifacts, err := s.Artifacts()
	if err != nil {
		return domain.Artifact{}, nil, err
	}
	for _, a := range artifacts {
		if a.Name != name {
			continue
		}
		rc, err := s.workspace.Open(a.Path)
		if err != nil {
			return domain.Artifact{}, nil, err
		}
		return a, rc, nil
	}
	return domain.Artifact{}, nil, fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, name)
}

// Bundle writes the current set as a zip archive to w.
func (s *SubmissionService) Bundle(w io.Writer) error {
	artifacts, err := s.Artifacts()
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	for _, a := range artifacts {
		if err := s.addToZip(zw, a); err != nil {
			zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish bundle: %w", err)
	}
	return nil
}

func (s *SubmissionService) addToZip(zw *zip.Writer, a domain.Artifact) error {
	rc, err := s.workspace.Open(a.Path)
	if err != nil {
		return err
	}
	defer rc.Close()

	entry, err := zw.Create(a.Name)
	if err != nil {
		return fmt.Errorf("add %s to bundle: %w", a.Name, err)
	}
	if _, err := io.Copy(entry, rc); err != nil {
		return fmt.Errorf("%w: copy %s into bundle: %v", domain.ErrFilesystem, a.Name, err)
	}
	return nil
}

func (s *SubmissionService) contentType(path string) string {
	if domain.ExtOf(path) == "glb" {
		return gltfBinaryContentType
	}
	if rc, err := s.workspace.Open(path); err == nil {
		defer rc.Close()
		if mt, err := mimetype.DetectReader(rc); err == nil && isMediaType(mt) {
			return mt.String()
		}
	}
	return extensionMIME(path)
}

func extensionMIME(path string) string {
	switch domain.ExtOf(path) {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "mp4":
		return "video/mp4"
	}
	return "application/octet-stream"
}

func isMediaType(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") || strings.HasPrefix(m.String(), "video/") {
			return true
		}
	}
	return false
}
