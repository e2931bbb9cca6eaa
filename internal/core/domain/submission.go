package domain

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Uploaded Image
// ============================================================================

// AllowedExtensions lists the image extensions accepted for submission.
var AllowedExtensions = []string{"png", "jpg", "jpeg"}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// UploadedImage is the raw upload as received from the user.
type UploadedImage struct {
	Filename string
	Data     []byte
}

// SafeFilename strips directories and characters that are unsafe on disk.
func (u UploadedImage) SafeFilename() string {
	name := filepath.Base(strings.ReplaceAll(u.Filename, "\\", "/"))
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, ".")
	if name == "" || name == "." {
		return ""
	}
	return name
}

// Ext returns the lower-cased extension without the dot, or "" if there is none.
func (u UploadedImage) Ext() string {
	return ExtOf(u.SafeFilename())
}

// BaseName returns the sanitized filename without its extension.
func (u UploadedImage) BaseName() string {
	name := u.SafeFilename()
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Validate checks the filename against AllowedExtensions.
func (u UploadedImage) Validate() error {
	if u.BaseName() == "" {
		return fmt.Errorf("%w: missing filename", ErrInvalidFormat)
	}
	if !IsAllowedExtension(u.Ext()) {
		return fmt.Errorf("%w: %q, allowed extensions are %s",
			ErrInvalidFormat, u.Filename, strings.Join(AllowedExtensions, ", "))
	}
	if len(u.Data) == 0 {
		return fmt.Errorf("%w: empty file", ErrInvalidFormat)
	}
	return nil
}

func IsAllowedExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func ExtOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// ============================================================================
// Artifact Set
// ============================================================================

type ArtifactRole string

const (
	ArtifactRoleModel ArtifactRole = "model"
	ArtifactRoleImage ArtifactRole = "image"
	ArtifactRoleVideo ArtifactRole = "video"
)

// Role suffixes appended to the source base name.
const (
	ModelSuffix = "_3d_model"
	ImageSuffix = "_original"
	VideoSuffix = "_video"
)

// Prediction holds local paths of the assets fetched from the remote service.
type Prediction struct {
	ModelPath string
	VideoPath string
}

// ArtifactSet is the group of output files produced by one successful submission.
type ArtifactSet struct {
	ID        uuid.UUID
	BaseName  string
	ModelPath string
	ImagePath string
	VideoPath string
	CreatedAt time.Time
	Attempts  int

	// Artifacts lists the stored files in model, image, video order.
	Artifacts []Artifact
}

type Artifact struct {
	Role        ArtifactRole
	Name        string
	Path        string
	ContentType string
	Size        int64
}

// ArtifactName builds the output filename for a role.
func ArtifactName(base string, role ArtifactRole, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	switch role {
	case ArtifactRoleModel:
		if ext == "" {
			ext = "glb"
		}
		return base + ModelSuffix + "." + ext
	case ArtifactRoleVideo:
		if ext == "" {
			ext = "mp4"
		}
		return base + VideoSuffix + "." + ext
	default:
		return base + ImageSuffix + "." + ext
	}
}

// HasVideo reports whether the set includes a preview video.
func (s *ArtifactSet) HasVideo() bool {
	return s.VideoPath != ""
}
