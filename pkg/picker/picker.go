// Package picker delivers a single image to the caller, the way the photo
// picker sheet hands one asset back to the screen.
package picker

import (
	"context"
	"image"

	"github.com/menta2k/watermark/pkg/processing"
)

// Result is what a picker delivers. A nil Image with a nil Err means the
// pick was cancelled.
type Result struct {
	Image  image.Image
	Source string
	Err    error
}

// Cancelled reports whether the pick ended without an image or error.
func (r Result) Cancelled() bool {
	return r.Image == nil && r.Err == nil
}

// Picker produces at most one image per call. The returned channel receives
// exactly one Result and is then closed.
type Picker interface {
	Pick(ctx context.Context) <-chan Result
}

// Func adapts a plain load function to Picker.
type Func func(ctx context.Context) (image.Image, string, error)

// Pick runs f in its own goroutine
func (f Func) Pick(ctx context.Context) <-chan Result {
	return deliver(ctx, "", func() Result {
		img, src, err := f(ctx)
		return Result{Image: img, Source: src, Err: err}
	})
}

// FilePicker loads one image from disk
type FilePicker struct {
	processor *processing.Processor
	path      string
}

// NewFilePicker creates a picker for a local path
func NewFilePicker(processor *processing.Processor, path string) *FilePicker {
	if processor == nil {
		processor = processing.NewProcessor()
	}
	return &FilePicker{processor: processor, path: path}
}

// Pick loads the file
func (p *FilePicker) Pick(ctx context.Context) <-chan Result {
	return deliver(ctx, p.path, func() Result {
		img, err := p.processor.LoadImage(p.path)
		return Result{Image: img, Source: p.path, Err: err}
	})
}

// URLPicker downloads one image over http(s)
type URLPicker struct {
	processor *processing.Processor
	url       string
}

// NewURLPicker creates a picker for a remote image
func NewURLPicker(processor *processing.Processor, url string) *URLPicker {
	if processor == nil {
		processor = processing.NewProcessor()
	}
	return &URLPicker{processor: processor, url: url}
}

// Pick downloads the image
func (p *URLPicker) Pick(ctx context.Context) <-chan Result {
	return deliver(ctx, p.url, func() Result {
		img, err := p.processor.LoadImageFromURL(ctx, p.url)
		return Result{Image: img, Source: p.url, Err: err}
	})
}

// NewSourcePicker returns a URLPicker for http(s) sources and a FilePicker
// for everything else.
func NewSourcePicker(processor *processing.Processor, source string) Picker {
	if processing.IsURL(source) {
		return NewURLPicker(processor, source)
	}
	return NewFilePicker(processor, source)
}

// deliver runs load and sends its result, or a cancelled result if ctx ends
// first. The channel is buffered so the loader never blocks.
func deliver(ctx context.Context, source string, load func() Result) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)

		done := make(chan Result, 1)
		go func() { done <- load() }()

		select {
		case res := <-done:
			if ctx.Err() != nil && res.Image == nil {
				res = Result{Source: source}
			}
			out <- res
		case <-ctx.Done():
			out <- Result{Source: source}
		}
	}()
	return out
}
