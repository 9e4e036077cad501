package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/menta2k/watermark/internal/config"
	"github.com/menta2k/watermark/internal/utils"
	"github.com/menta2k/watermark/pkg/encoder"
	"github.com/menta2k/watermark/pkg/library"
	"github.com/menta2k/watermark/pkg/picker"
	"github.com/menta2k/watermark/pkg/processing"
	"github.com/menta2k/watermark/pkg/session"
)

var (
	applyOpts    jobOptions
	applyOutput  string
	applyLibrary bool
)

var applyCmd = &cobra.Command{
	Use:   "apply [image]",
	Short: "Caption a single image",
	Long: `Caption a single image from a file or http(s) URL and write the result.

Without --output the result is written to the output directory as
<prefix><name><suffix>.<ext>. With --library it is stored under a unique
watermark-<uuid> name instead, like a photo library import.

Examples:
  watermark apply photo.jpg -c "© 2024 Jane Doe"
  watermark apply photo.jpg -c "Holiday" -p top-left -o out/holiday.jpg
  watermark apply https://example.com/cat.png -c cat -p auto --max-size 500kB`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)

	applyOpts.addFlags(applyCmd)
	applyCmd.Flags().StringVarP(&applyOutput, "output", "o", "", "output file path")
	applyCmd.Flags().BoolVar(&applyLibrary, "library", false, "store under a unique name in the output directory")
}

// pathLibrary saves to one fixed path.
type pathLibrary string

func (l pathLibrary) Save(ctx context.Context, data []byte, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := utils.WriteFileAtomic(string(l), data); err != nil {
		return "", err
	}
	return string(l), nil
}

// matchOutputFormat makes the encoder format agree with the extension of an
// explicit output path. Without --format the extension picks the format.
func matchOutputFormat(c *config.Config, path string, explicit bool) error {
	ext := utils.GetFileExtension(path)
	if ext == "" {
		return nil
	}
	want, err := encoder.FormatByName(ext)
	if err != nil {
		return fmt.Errorf("output %s: %w", path, err)
	}
	if !explicit {
		c.Encoder.Format = want.Name()
		return nil
	}
	have, err := encoder.FormatByName(c.Encoder.Format)
	if err != nil {
		return err
	}
	if have.Name() != want.Name() {
		return fmt.Errorf("output %s does not match --format %s", path, c.Encoder.Format)
	}
	return nil
}

func runApply(cmd *cobra.Command, args []string) error {
	source := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c, err := applyOpts.effectiveConfig(cmd)
	if err != nil {
		return err
	}
	if applyOutput != "" {
		if err := matchOutputFormat(c, applyOutput, cmd.Flags().Changed("format")); err != nil {
			return err
		}
	}
	wm, err := newWatermarker(c)
	if err != nil {
		return err
	}
	settings, err := sessionSettings(c)
	if err != nil {
		return err
	}

	var lib library.Library
	switch {
	case applyOutput != "":
		lib = pathLibrary(applyOutput)
	case applyLibrary:
		lib = library.NewDirLibrary(c.Output.OutputDir).WithAffixes(c.Output.Prefix, c.Output.Suffix)
	default:
		lib = pathLibrary(outputName(source, c, wm.Format().Extension()))
	}

	ctrl := session.NewController(lib)
	if err := ctrl.ApplySettings(settings); err != nil {
		return err
	}
	if err := ctrl.Load(ctx, picker.NewSourcePicker(processing.NewProcessor(), source)); err != nil {
		return err
	}
	img := ctrl.State().Image
	if img == nil {
		return fmt.Errorf("no image loaded from %s", source)
	}

	ctrl.SetCaption(applyOpts.caption)
	p := applyOpts.choosePlacement(wm, img)
	if err := ctrl.SetPlacement(p); err != nil {
		return err
	}

	rep, err := ctrl.Save(ctx)
	if err != nil {
		return err
	}
	report(source, rep.Location, p, rep.Result, settings.Budget.MaxBytes)
	klog.V(1).Infof("outcome: %s", rep.Outcome)

	if applyOpts.debug {
		writeDebugOverlay(wm, img, applyOpts.caption, p, rep.Location)
	}
	return nil
}
