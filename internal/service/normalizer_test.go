package service

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImageJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x += 8 {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func testImagePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodedSize(t *testing.T, data []byte) (int, int, string) {
	t.Helper()
	img, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy(), format
}

func TestNormalize_DownscalesWideImages(t *testing.T) {
	normalizer := NewImageNormalizer(640)

	out, err := normalizer.Normalize("dinner.jpg", testImageJPEG(t, 1280, 960))

	require.NoError(t, err)
	assert.Equal(t, 640, out.Width)
	assert.Equal(t, 480, out.Height)
	assert.Equal(t, "image/jpeg", out.ContentType)
	assert.Equal(t, "dinner.jpg", out.Name)
	assert.False(t, out.ModifiedAt.IsZero())

	w, h, format := decodedSize(t, out.Data)
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
	assert.Equal(t, "jpeg", format)
}

func TestNormalize_RoundsScaledHeight(t *testing.T) {
	normalizer := NewImageNormalizer(640)

	// 333 * 640/1000 = 213.12, rounds to 213
	out, err := normalizer.Normalize("pan.jpg", testImageJPEG(t, 1000, 333))

	require.NoError(t, err)
	assert.Equal(t, 640, out.Width)
	assert.Equal(t, 213, out.Height)
}

func TestNormalize_NarrowImagePassthrough(t *testing.T) {
	normalizer := NewImageNormalizer(640)

	// narrower than the bound: dimensions are kept, the image is still
	// re-encoded through the same codec path
	out, err := normalizer.Normalize("small.jpg", testImageJPEG(t, 320, 240))

	require.NoError(t, err)
	assert.Equal(t, 320, out.Width)
	assert.Equal(t, 240, out.Height)
	assert.Equal(t, "image/jpeg", out.ContentType)

	w, h, _ := decodedSize(t, out.Data)
	assert.Equal(t, 320, w)
	assert.Equal(t, 240, h)
}

func TestNormalize_PreservesMediaType(t *testing.T) {
	normalizer := NewImageNormalizer(640)

	out, err := normalizer.Normalize("salad.png", testImagePNG(t, 800, 600))

	require.NoError(t, err)
	assert.Equal(t, "image/png", out.ContentType)
	_, _, format := decodedSize(t, out.Data)
	assert.Equal(t, "png", format)
}

func TestNormalize_DecodeError(t *testing.T) {
	normalizer := NewImageNormalizer(640)

	out, err := normalizer.Normalize("notes.txt", []byte("not an image"))

	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrImageDecode)
}

func TestNewImageNormalizer_DefaultsWidth(t *testing.T) {
	normalizer := NewImageNormalizer(0)

	out, err := normalizer.Normalize("wide.jpg", testImageJPEG(t, 1280, 720))

	require.NoError(t, err)
	assert.Equal(t, DefaultMaxWidth, out.Width)
}
