// Package watermark captions photos and re-encodes them under a size cap.
//
// A caption is drawn on a translucent label at one of five placements (the
// four corners, 20 px in from the edges, or the exact center). The result is
// then encoded as JPEG starting at full quality and stepping quality down
// until it fits the byte budget.
//
// Basic usage:
//
//	package main
//
//	import (
//		"log"
//		"os"
//
//		"github.com/menta2k/watermark"
//		"github.com/menta2k/watermark/pkg/placement"
//	)
//
//	func main() {
//		wm := watermark.New()
//
//		img, err := wm.LoadImage("photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		res, err := wm.Apply(img, "© 2024 Jane Doe", placement.BottomRight)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		if err := os.WriteFile("photo_wm.jpg", res.Data, 0o644); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package consists of these components:
//
//  1. Placement (pkg/placement): the five label positions and their geometry
//  2. Compositor (pkg/compositor): draws the caption label
//  3. Encoder (pkg/encoder): the size-bounded quality ladder
//  4. Vision (pkg/vision): saliency-based placement suggestion
//  5. Processing (pkg/processing): image loading and saving
//
// pkg/session models the interactive screen on top of these, and
// pkg/caption suggests caption text through a local Ollama model.
package watermark

import (
	"context"
	"fmt"
	"image"
	"io"

	"github.com/menta2k/watermark/internal/utils"
	"github.com/menta2k/watermark/pkg/compositor"
	"github.com/menta2k/watermark/pkg/encoder"
	"github.com/menta2k/watermark/pkg/placement"
	"github.com/menta2k/watermark/pkg/processing"
	"github.com/menta2k/watermark/pkg/vision"
)

// Version of the watermark library
const Version = "1.0.0"

// Watermarker provides a high-level interface for captioning and encoding
type Watermarker struct {
	processor  *processing.Processor
	compositor *compositor.Compositor
	encoder    *encoder.Encoder
	detector   *vision.SaliencyDetector
	budget     encoder.Budget
}

// New creates a Watermarker with the default style, JPEG and a 30 MiB budget
func New() *Watermarker {
	return &Watermarker{
		processor:  processing.NewProcessor(),
		compositor: compositor.New(),
		encoder:    encoder.New(),
		detector:   vision.New(),
		budget:     encoder.DefaultBudget(),
	}
}

// NewWithConfig creates a Watermarker with custom configuration. A nil
// format means JPEG.
func NewWithConfig(style compositor.Style, format encoder.Format, budget encoder.Budget, detection vision.DetectionConfig) *Watermarker {
	return &Watermarker{
		processor:  processing.NewProcessor(),
		compositor: compositor.NewWithStyle(style),
		encoder:    encoder.NewWithFormat(format),
		detector:   vision.NewWithConfig(detection),
		budget:     budget,
	}
}

// Budget returns the size budget used by Apply
func (w *Watermarker) Budget() encoder.Budget {
	return w.budget
}

// Format returns the output format used by Apply
func (w *Watermarker) Format() encoder.Format {
	return w.encoder.Format()
}

// Style returns the caption label style
func (w *Watermarker) Style() compositor.Style {
	return w.compositor.Style()
}

// DetectionConfig returns the placement detector configuration
func (w *Watermarker) DetectionConfig() vision.DetectionConfig {
	return w.detector.Config()
}

// LoadImage loads an image from file
func (w *Watermarker) LoadImage(path string) (image.Image, error) {
	return w.processor.LoadImage(path)
}

// LoadImageSmart loads an image from a file path or http(s) URL
func (w *Watermarker) LoadImageSmart(ctx context.Context, source string) (image.Image, error) {
	return w.processor.LoadImageSmart(ctx, source)
}

// LoadImageFromReader loads an image from an io.Reader
func (w *Watermarker) LoadImageFromReader(reader io.Reader) (image.Image, error) {
	return w.processor.LoadImageFromReader(reader)
}

// GetImageInfo returns basic information about an image
func (w *Watermarker) GetImageInfo(img image.Image) processing.ImageInfo {
	return w.processor.GetImageInfo(img)
}

// ValidateImage checks if an image meets requirements
func (w *Watermarker) ValidateImage(img image.Image) error {
	return w.processor.ValidateImage(img)
}

// SaveImage writes img to path in the format given by its extension
// (jpg, png or webp) at high quality. It is meant for previews and debug
// output; captioned results go through Apply.
func (w *Watermarker) SaveImage(img image.Image, path string) error {
	return w.processor.SaveImage(img, path, utils.GetFileExtension(path), 95, false)
}

// Compose draws caption onto a copy of img at p
func (w *Watermarker) Compose(img image.Image, caption string, p placement.Placement) image.Image {
	return w.compositor.Compose(img, caption, p)
}

// EncodeWithinBudget encodes img in the configured format, lowering quality
// in the configured steps until it is at most maxBytes. Output that is
// still over budget at quality 0 is returned without error.
func (w *Watermarker) EncodeWithinBudget(img image.Image, maxBytes int) ([]byte, error) {
	budget := w.budget
	budget.MaxBytes = maxBytes
	res, err := w.encoder.Encode(img, budget)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// Apply composes the caption and encodes the result within the budget.
func (w *Watermarker) Apply(img image.Image, caption string, p placement.Placement) (encoder.Result, error) {
	return w.encoder.Encode(w.Compose(img, caption, p), w.budget)
}

// SuggestPlacement returns the placement where caption would cover the
// least detail of img.
func (w *Watermarker) SuggestPlacement(img image.Image, caption string) placement.Placement {
	label := w.compositor.MeasureCaption(caption, img.Bounds().Dx())
	return w.detector.SuggestPlacement(img, label)
}

// PlacementScores returns the mean saliency under caption's label at every
// placement. Lower is quieter.
func (w *Watermarker) PlacementScores(img image.Image, caption string) map[placement.Placement]float64 {
	label := w.compositor.MeasureCaption(caption, img.Bounds().Dx())
	return w.detector.Scores(img, label)
}

// DebugOverlay outlines every candidate label rectangle for caption and
// highlights the one at chosen.
func (w *Watermarker) DebugOverlay(img image.Image, caption string, chosen placement.Placement) image.Image {
	size := img.Bounds().Size()
	var rects []image.Rectangle
	idx := -1
	for i, p := range placement.All() {
		rects = append(rects, w.compositor.LabelRect(size, caption, p))
		if p == chosen {
			idx = i
		}
	}
	return w.processor.CreateDebugOverlay(img, rects, idx)
}

// ProcessFile is a convenience function that loads, captions, encodes and
// writes an image. It returns the encoder result so callers can report
// quality and whether the budget was met.
func (w *Watermarker) ProcessFile(inputPath, outputPath, caption string, p placement.Placement) (encoder.Result, error) {
	img, err := w.LoadImage(inputPath)
	if err != nil {
		return encoder.Result{}, fmt.Errorf("failed to load image: %w", err)
	}

	if err := w.ValidateImage(img); err != nil {
		return encoder.Result{}, fmt.Errorf("image validation failed: %w", err)
	}

	res, err := w.Apply(img, caption, p)
	if err != nil {
		return res, fmt.Errorf("encoding failed: %w", err)
	}

	if err := w.processor.WriteEncoded(res.Data, outputPath); err != nil {
		return res, err
	}

	return res, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
