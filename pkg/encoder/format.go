package encoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// ErrEmptyImage is returned by formats asked to encode a zero-area image.
var ErrEmptyImage = errors.New("image has no pixels")

// Format encodes an image to a lossy format at a quality in [0, 1].
type Format interface {
	// Name returns the format name (e.g. "jpeg", "webp").
	Name() string

	// Extension returns the file extension without dot.
	Extension() string

	// Encode converts the image to bytes at the given quality.
	Encode(img image.Image, quality float64) ([]byte, error)
}

var (
	// JPEG is the default lossy format.
	JPEG Format = jpegFormat{}
	// WebP is lossy WebP using libwebp.
	WebP Format = webpFormat{}
)

// FormatByName returns the format for "jpg", "jpeg" or "webp".
func FormatByName(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "jpg", "jpeg":
		return JPEG, nil
	case "webp":
		return WebP, nil
	default:
		return nil, fmt.Errorf("unsupported lossy format: %s", name)
	}
}

type jpegFormat struct{}

func (jpegFormat) Name() string      { return "jpeg" }
func (jpegFormat) Extension() string { return "jpg" }

func (jpegFormat) Encode(img image.Image, quality float64) ([]byte, error) {
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality(quality))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// jpegQuality maps [0, 1] onto the encoder's 1-100 scale.
func jpegQuality(q float64) int {
	v := int(math.Round(q * 100))
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}

type webpFormat struct{}

func (webpFormat) Name() string      { return "webp" }
func (webpFormat) Extension() string { return "webp" }

func (webpFormat) Encode(img image.Image, quality float64) ([]byte, error) {
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	var buf bytes.Buffer
	opts := &webp.Options{Lossless: false, Quality: float32(math.Max(0, math.Min(1, quality)) * 100)}
	if err := webp.Encode(&buf, img, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
