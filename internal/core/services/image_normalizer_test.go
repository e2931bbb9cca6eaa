package services

import (
	"bytes"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image3d-service/internal/core/domain"
)

func TestImageNormalizer_KeepsUploadWithoutCanonicalFormat(t *testing.T) {
	data := jpegBytes(t)

	name, out, err := NewImageNormalizer("").Normalize("cat.jpeg", data)
	require.NoError(t, err)
	assert.Equal(t, "cat.jpeg", name)
	assert.Equal(t, data, out)
}

func TestImageNormalizer_ToPNG(t *testing.T) {
	name, out, err := NewImageNormalizer("png").Normalize("cat.JPG", jpegBytes(t))
	require.NoError(t, err)
	assert.Equal(t, "cat.png", name)

	_, err = png.Decode(bytes.NewReader(out))
	assert.NoError(t, err)
}

func TestImageNormalizer_ToJPEG(t *testing.T) {
	name, out, err := NewImageNormalizer("JPEG").Normalize("cat.png", pngBytes(t))
	require.NoError(t, err)
	assert.Equal(t, "cat.jpg", name)

	_, err = jpeg.Decode(bytes.NewReader(out))
	assert.NoError(t, err)
}

func TestImageNormalizer_RejectsNonImageContent(t *testing.T) {
	_, _, err := NewImageNormalizer("png").Normalize("cat.png", []byte("%PDF-1.7\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)
}

func TestImageNormalizer_CorruptImage(t *testing.T) {
	data := pngBytes(t)
	truncated := data[:len(data)/2]

	_, _, err := NewImageNormalizer("jpeg").Normalize("cat.png", truncated)
	assert.ErrorIs(t, err, domain.ErrImageConversion)
}
