package service

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"log"
	"math"
	"time"

	xdraw "golang.org/x/image/draw"
)

const (
	// DefaultMaxWidth is the width bound applied to uploaded meal photos
	DefaultMaxWidth = 640

	// jpegQuality is the fixed re-encode quality for JPEG sources
	jpegQuality = 80
)

// NormalizedImage is the output of Normalize: the re-encoded bytes plus the
// metadata the asset store and the draft preview need.
type NormalizedImage struct {
	Name        string
	ContentType string
	Data        []byte
	Width       int
	Height      int
	ModifiedAt  time.Time
}

// ImageNormalizer rescales uploaded images to a bounded width and re-encodes
// them at a fixed quality in their original media type.
type ImageNormalizer struct {
	maxWidth int
}

// NewImageNormalizer creates a normalizer with the given width bound
func NewImageNormalizer(maxWidth int) *ImageNormalizer {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	return &ImageNormalizer{maxWidth: maxWidth}
}

// Normalize decodes data, downscales it to the width bound preserving aspect
// ratio, and re-encodes it. Images already at or below the bound keep their
// dimensions but still pass through the encoder, so every stored image has
// gone through the same codec path.
func (n *ImageNormalizer) Normalize(name string, data []byte) (*NormalizedImage, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width > n.maxWidth {
		scale := float64(n.maxWidth) / float64(width)
		height = int(math.Round(float64(height) * scale))
		if height < 1 {
			height = 1
		}
		width = n.maxWidth

		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
		src = dst
	}

	var buf bytes.Buffer
	var contentType string
	switch format {
	case "jpeg":
		contentType = "image/jpeg"
		err = jpeg.Encode(&buf, src, &jpeg.Options{Quality: jpegQuality})
	case "png":
		contentType = "image/png"
		err = png.Encode(&buf, src)
	case "gif":
		contentType = "image/gif"
		err = gif.Encode(&buf, src, nil)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrImageEncode, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageEncode, err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("%w: encoder produced no data", ErrImageEncode)
	}

	log.Printf("[ImageNormalizer] %s: %dx%d -> %dx%d (%d bytes)",
		name, bounds.Dx(), bounds.Dy(), width, height, buf.Len())

	return &NormalizedImage{
		Name:        name,
		ContentType: contentType,
		Data:        buf.Bytes(),
		Width:       width,
		Height:      height,
		ModifiedAt:  time.Now(),
	}, nil
}
