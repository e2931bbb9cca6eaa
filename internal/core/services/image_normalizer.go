package services

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"image3d-service/internal/core/domain"
)

const jpegQuality = 95

// ImageNormalizer checks that an upload really is a supported raster image and
// re-encodes it to one canonical format.
type ImageNormalizer struct {
	format string
}

// NewImageNormalizer accepts "png", "jpeg" or "" (keep the upload unchanged).
func NewImageNormalizer(format string) *ImageNormalizer {
	return &ImageNormalizer{format: strings.ToLower(format)}
}

// Normalize returns the filename and bytes to submit for an upload named name.
func (n *ImageNormalizer) Normalize(name string, data []byte) (string, []byte, error) {
	mt := mimetype.Detect(data)
	if !mt.Is("image/png") && !mt.Is("image/jpeg") {
		return "", nil, fmt.Errorf("%w: content of %q is %s", domain.ErrInvalidFormat, name, mt.String())
	}
	if n.format == "" {
		return name, data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("%w: decode %q: %v", domain.ErrImageConversion, name, err)
	}

	var buf bytes.Buffer
	switch n.format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	default:
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return "", nil, fmt.Errorf("%w: encode %s: %v", domain.ErrImageConversion, n.format, err)
	}

	base := strings.TrimSuffix(name, filepath.Ext(name))
	ext := n.format
	if ext == "jpeg" {
		ext = "jpg"
	}
	return base + "." + ext, buf.Bytes(), nil
}
