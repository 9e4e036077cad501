package main

import (
	"image"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/menta2k/watermark"
	"github.com/menta2k/watermark/internal/config"
	"github.com/menta2k/watermark/internal/utils"
	"github.com/menta2k/watermark/pkg/encoder"
	"github.com/menta2k/watermark/pkg/placement"
	"github.com/menta2k/watermark/pkg/session"
	"github.com/menta2k/watermark/pkg/vision"
)

// autoPlacement is the --placement value that picks the quietest corner.
const autoPlacement = "auto"

// jobOptions are the label and encoder flags shared by apply, batch and
// watch. Flags the user did not set fall back to the config file.
type jobOptions struct {
	caption   string
	placement string
	format    string
	maxSize   string
	step      float64
	fontScale float64
	debug     bool

	// resolved
	auto  bool
	place placement.Placement
}

func (o *jobOptions) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.caption, "caption", "c", "", "caption text")
	f.StringVarP(&o.placement, "placement", "p", "", "top-left, top-right, bottom-left, bottom-right, center or auto")
	f.StringVar(&o.format, "format", "", "output format: jpeg or webp")
	f.StringVar(&o.maxSize, "max-size", "", `size budget, e.g. "30 MiB" or "800kB"`)
	f.Float64Var(&o.step, "step", 0, "quality decrement between attempts (0 < step <= 1)")
	f.Float64Var(&o.fontScale, "font-scale", 0, "font size as a fraction of image width")
	f.BoolVar(&o.debug, "debug", false, "also write an overlay showing every candidate label position")
}

// merge applies the flags the user set on top of c.
func (o *jobOptions) merge(cmd *cobra.Command, c *config.Config) error {
	f := cmd.Flags()
	if f.Changed("caption") {
		c.Watermark.Caption = o.caption
	}
	if f.Changed("placement") {
		if strings.EqualFold(o.placement, autoPlacement) {
			c.Watermark.AutoPlacement = true
		} else {
			p, err := placement.Parse(o.placement)
			if err != nil {
				return err
			}
			c.Watermark.Placement = p
			c.Watermark.AutoPlacement = false
		}
	}
	if f.Changed("format") {
		c.Encoder.Format = o.format
	}
	if f.Changed("max-size") {
		c.Encoder.MaxSize = o.maxSize
	}
	if f.Changed("step") {
		c.Encoder.QualityStep = o.step
	}
	if f.Changed("font-scale") {
		c.Watermark.FontScale = o.fontScale
	}
	if err := c.Validate(); err != nil {
		return err
	}

	o.caption = c.Watermark.Caption
	o.auto = c.Watermark.AutoPlacement
	o.place = c.Watermark.Placement
	return nil
}

// effectiveConfig copies the loaded config and merges the flags into it.
func (o *jobOptions) effectiveConfig(cmd *cobra.Command) (*config.Config, error) {
	c := *cfg
	if err := o.merge(cmd, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func newWatermarker(c *config.Config) (*watermark.Watermarker, error) {
	format, err := encoder.FormatByName(c.Encoder.Format)
	if err != nil {
		return nil, err
	}
	budget, err := c.Budget()
	if err != nil {
		return nil, err
	}
	return watermark.NewWithConfig(c.Style(), format, budget, vision.DefaultConfig()), nil
}

func sessionSettings(c *config.Config) (session.Settings, error) {
	budget, err := c.Budget()
	if err != nil {
		return session.Settings{}, err
	}
	return session.Settings{
		Placement:   c.Watermark.Placement,
		FontScale:   c.Watermark.FontScale,
		MinFontSize: c.Watermark.MinFontSize,
		Padding:     c.Watermark.Padding,
		Budget:      budget,
		Format:      c.Encoder.Format,
	}, nil
}

// choosePlacement returns the fixed placement, or a suggestion for img in
// auto mode.
func (o *jobOptions) choosePlacement(wm *watermark.Watermarker, img image.Image) placement.Placement {
	if !o.auto {
		return o.place
	}
	p := wm.SuggestPlacement(img, o.caption)
	klog.V(1).Infof("auto placement: %s", p)
	return p
}

// writeDebugOverlay saves the candidate overlay next to output as PNG.
func writeDebugOverlay(wm *watermark.Watermarker, img image.Image, caption string, p placement.Placement, output string) {
	path := strings.TrimSuffix(output, "."+utils.GetFileExtension(output)) + "_debug.png"
	if err := wm.SaveImage(wm.DebugOverlay(img, caption, p), path); err != nil {
		klog.Errorf("debug overlay save failed: %v", err)
		return
	}
	klog.Infof("wrote %s", path)
}

// report logs the outcome of one encode.
func report(source, output string, p placement.Placement, res encoder.Result, budget int) {
	size := humanize.IBytes(uint64(len(res.Data)))
	if !res.WithinBudget() {
		klog.Warningf("%s: still %s over the %s budget at quality 0, saved anyway to %s",
			source, humanize.IBytes(uint64(len(res.Data)-budget)), humanize.IBytes(uint64(budget)), output)
		return
	}
	klog.Infof("%s -> %s (%s, %s, quality %.1f, %d attempts)", source, output, p, size, res.Quality, len(res.Trace))
}

func outputName(source string, c *config.Config, ext string) string {
	name := source
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	name = utils.SanitizeFilename(lastSegment(name))
	if name == "" {
		name = "image"
	}
	return utils.GenerateOutputFilename(name, c.Output.OutputDir, c.Output.Prefix, c.Output.Suffix, ext)
}

func lastSegment(p string) string {
	p = strings.TrimRight(p, "/\\")
	if i := strings.LastIndexAny(p, "/\\"); i >= 0 {
		return p[i+1:]
	}
	return p
}
