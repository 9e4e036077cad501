// Package session holds the state of the single watermark screen and the
// actions that change it.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"k8s.io/klog/v2"

	"github.com/menta2k/watermark/pkg/compositor"
	"github.com/menta2k/watermark/pkg/encoder"
	"github.com/menta2k/watermark/pkg/library"
	"github.com/menta2k/watermark/pkg/picker"
	"github.com/menta2k/watermark/pkg/placement"
)

// ErrNoLibrary is returned by Save when the controller has nowhere to put
// the image.
var ErrNoLibrary = errors.New("no library configured")

// State is everything the screen shows.
type State struct {
	Image           image.Image
	Caption         string
	Placement       placement.Placement
	ShowingPicker   bool
	ShowingSettings bool
	ShowSavedAlert  bool
}

// InitialState is the screen before any interaction.
func InitialState() State {
	return State{Placement: placement.Default}
}

// Outcome says what Save did.
type Outcome int

const (
	OutcomeNoImage Outcome = iota
	OutcomeEncodeFailed
	OutcomeSaveFailed
	OutcomeSaved
	OutcomeSavedOverBudget
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoImage:
		return "no-image"
	case OutcomeEncodeFailed:
		return "encode-failed"
	case OutcomeSaveFailed:
		return "save-failed"
	case OutcomeSaved:
		return "saved"
	case OutcomeSavedOverBudget:
		return "saved-over-budget"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// SaveReport describes one Save call.
type SaveReport struct {
	Outcome  Outcome
	Location string
	Result   encoder.Result
}

// Controller owns a State. All methods are safe for concurrent use.
type Controller struct {
	mu       sync.Mutex
	state    State
	settings Settings

	compositor *compositor.Compositor
	encoder    *encoder.Encoder
	library    library.Library
}

// NewController creates a controller in the initial state that saves into
// lib.
func NewController(lib library.Library) *Controller {
	c := &Controller{
		state:   InitialState(),
		library: lib,
	}
	c.install(DefaultSettings())
	return c
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Load shows the picker and waits for it. A delivered image replaces the
// current one; a cancelled pick leaves the state as it was.
func (c *Controller) Load(ctx context.Context, p picker.Picker) error {
	c.mu.Lock()
	c.state.ShowingPicker = true
	c.mu.Unlock()

	var res picker.Result
	select {
	case r, ok := <-p.Pick(ctx):
		if ok {
			res = r
		}
	case <-ctx.Done():
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ShowingPicker = false

	if res.Err != nil {
		return fmt.Errorf("failed to load image: %w", res.Err)
	}
	if res.Image == nil {
		klog.V(2).Infof("pick cancelled")
		return nil
	}

	c.state.Image = res.Image
	klog.V(1).Infof("loaded %s (%dx%d)", res.Source, res.Image.Bounds().Dx(), res.Image.Bounds().Dy())
	return nil
}

// SetCaption replaces the caption text.
func (c *Controller) SetCaption(caption string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Caption = caption
}

// SetPlacement moves the label.
func (c *Controller) SetPlacement(p placement.Placement) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %d", placement.ErrUnknownPlacement, int(p))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Placement = p
	c.settings.Placement = p
	return nil
}

// OpenSettings shows the settings sheet.
func (c *Controller) OpenSettings() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ShowingSettings = true
}

// CloseSettings hides the settings sheet without changing anything.
func (c *Controller) CloseSettings() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ShowingSettings = false
}

// DismissAlert hides the "saved" alert.
func (c *Controller) DismissAlert() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ShowSavedAlert = false
}

// Preview returns the composited image for the current state, or nil when
// there is no image.
func (c *Controller) Preview() image.Image {
	c.mu.Lock()
	img, caption, p, comp := c.state.Image, c.state.Caption, c.state.Placement, c.compositor
	c.mu.Unlock()

	if img == nil {
		return nil
	}
	return comp.Compose(img, caption, p)
}

// Save composes the current image, encodes it within the budget and hands
// it to the library. Without an image it does nothing.
func (c *Controller) Save(ctx context.Context) (SaveReport, error) {
	c.mu.Lock()
	img, caption, p := c.state.Image, c.state.Caption, c.state.Placement
	comp, enc, budget, lib := c.compositor, c.encoder, c.settings.Budget, c.library
	c.mu.Unlock()

	if img == nil {
		return SaveReport{Outcome: OutcomeNoImage}, nil
	}
	if lib == nil {
		return SaveReport{Outcome: OutcomeSaveFailed}, ErrNoLibrary
	}

	out := comp.Compose(img, caption, p)
	res, err := enc.Encode(out, budget)
	report := SaveReport{Result: res}
	if err != nil {
		report.Outcome = OutcomeEncodeFailed
		return report, err
	}
	for _, a := range res.Trace {
		klog.V(2).Infof("%s q=%.2f size=%d", res.Format.Name(), a.Quality, a.Size)
	}

	location, err := lib.Save(ctx, res.Data, res.Format.Extension())
	if err != nil {
		report.Outcome = OutcomeSaveFailed
		return report, fmt.Errorf("failed to save image: %w", err)
	}
	report.Location = location

	report.Outcome = OutcomeSaved
	if !res.WithinBudget() {
		report.Outcome = OutcomeSavedOverBudget
		klog.V(1).Infof("saved %s over budget: %d > %d bytes", location, len(res.Data), budget.MaxBytes)
	}

	c.mu.Lock()
	c.state.ShowSavedAlert = true
	c.mu.Unlock()
	return report, nil
}
