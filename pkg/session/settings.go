package session

import (
	"fmt"

	"github.com/menta2k/watermark/pkg/compositor"
	"github.com/menta2k/watermark/pkg/encoder"
	"github.com/menta2k/watermark/pkg/placement"
)

// Settings is what the settings sheet edits.
type Settings struct {
	Placement   placement.Placement
	FontScale   float64
	MinFontSize float64
	Padding     int
	Budget      encoder.Budget
	// Format is an encoder format name ("jpeg" or "webp").
	Format string
}

// DefaultSettings matches the initial screen.
func DefaultSettings() Settings {
	style := compositor.DefaultStyle()
	return Settings{
		Placement:   placement.Default,
		FontScale:   style.FontScale,
		MinFontSize: style.MinFontSize,
		Padding:     style.Padding,
		Budget:      encoder.DefaultBudget(),
		Format:      encoder.JPEG.Name(),
	}
}

// Validate checks the settings without applying them
func (s Settings) Validate() error {
	if !s.Placement.Valid() {
		return fmt.Errorf("%w: %d", placement.ErrUnknownPlacement, int(s.Placement))
	}
	if s.FontScale <= 0 || s.FontScale > 1 {
		return fmt.Errorf("font scale must be in (0, 1], got %g", s.FontScale)
	}
	if s.MinFontSize < 1 {
		return fmt.Errorf("minimum font size must be at least 1, got %g", s.MinFontSize)
	}
	if s.Padding < 0 {
		return fmt.Errorf("padding cannot be negative, got %d", s.Padding)
	}
	if s.Budget.MaxBytes <= 0 {
		return fmt.Errorf("max bytes must be positive, got %d", s.Budget.MaxBytes)
	}
	if s.Budget.Step <= 0 || s.Budget.Step > 1 {
		return fmt.Errorf("quality step must be in (0, 1], got %g", s.Budget.Step)
	}
	if _, err := encoder.FormatByName(s.Format); err != nil {
		return err
	}
	return nil
}

// Settings returns the settings in effect.
func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// ApplySettings validates and installs s, then closes the settings sheet.
// Invalid settings leave everything unchanged.
func (c *Controller) ApplySettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.install(s)
	c.state.Placement = s.Placement
	c.state.ShowingSettings = false
	return nil
}

// install swaps in the compositor and encoder for s. Callers hold c.mu or
// own c exclusively.
func (c *Controller) install(s Settings) {
	style := compositor.DefaultStyle()
	style.FontScale = s.FontScale
	style.MinFontSize = s.MinFontSize
	style.Padding = s.Padding
	format, err := encoder.FormatByName(s.Format)
	if err != nil {
		format = encoder.JPEG
	}

	c.settings = s
	c.compositor = compositor.NewWithStyle(style)
	c.encoder = encoder.NewWithFormat(format)
}
