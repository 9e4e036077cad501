package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/menta2k/watermark"
	"github.com/menta2k/watermark/internal/config"
	"github.com/menta2k/watermark/internal/utils"
	"github.com/menta2k/watermark/pkg/encoder"
	"github.com/menta2k/watermark/pkg/placement"
)

var (
	batchOpts     jobOptions
	batchWorkers  int
	batchFailFast bool
)

var batchCmd = &cobra.Command{
	Use:   "batch [dir|files...]",
	Short: "Caption many images",
	Long: `Caption every image found in the given directories (recursively) and
files, writing results to the output directory.

Examples:
  watermark batch photos/ -c "© 2024 Jane Doe"
  watermark batch a.jpg b.png -p auto --workers 8`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchOpts.addFlags(batchCmd)
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "parallel workers (default from config)")
	batchCmd.Flags().BoolVar(&batchFailFast, "fail-fast", false, "stop at the first failed image")
}

func runBatch(cmd *cobra.Command, args []string) error {
	c, err := batchOpts.effectiveConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		c.Output.Workers = batchWorkers
	}
	if c.Output.Workers < 1 {
		return fmt.Errorf("workers must be positive")
	}

	wm, err := newWatermarker(c)
	if err != nil {
		return err
	}

	inputs, err := collectInputs(args)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no images found")
	}
	jobs := planOutputs(inputs, c, wm.Format().Extension())
	klog.Infof("processing %d images with %d workers ...", len(jobs), c.Output.Workers)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Output.Workers)

	var failed, written atomic.Int64
	var total atomic.Uint64
	for _, job := range jobs {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res, err := processFile(wm, &batchOpts, job.in, job.out)
			if err != nil {
				failed.Add(1)
				klog.Errorf("%s: %v", job.in, err)
				if batchFailFast {
					return err
				}
				return nil
			}
			written.Add(1)
			total.Add(uint64(len(res.Data)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	klog.Infof("done: %d written (%s), %d failed", written.Load(), humanize.IBytes(total.Load()), failed.Load())
	if failed.Load() > 0 {
		return fmt.Errorf("%d of %d images failed", failed.Load(), len(jobs))
	}
	return nil
}

// batchInput is one image to caption. Rel is its path relative to the
// directory argument it was found in, or its base name for a file argument.
type batchInput struct {
	path string
	rel  string
}

type batchJob struct {
	in  string
	out string
}

// collectInputs expands directories into their image files.
func collectInputs(args []string) ([]batchInput, error) {
	var inputs []batchInput
	for _, arg := range args {
		if utils.DirExists(arg) {
			found, err := utils.ListImageFiles(arg)
			if err != nil {
				return nil, fmt.Errorf("list %s: %w", arg, err)
			}
			for _, f := range found {
				rel, err := filepath.Rel(arg, f)
				if err != nil {
					rel = filepath.Base(f)
				}
				inputs = append(inputs, batchInput{path: f, rel: rel})
			}
			continue
		}
		if !utils.FileExists(arg) {
			return nil, fmt.Errorf("input does not exist: %s", arg)
		}
		inputs = append(inputs, batchInput{path: arg, rel: filepath.Base(arg)})
	}
	return inputs, nil
}

// planOutputs mirrors each input's relative folder under the output
// directory. Names that would still collide get a -2, -3, ... suffix so no
// two jobs write the same file.
func planOutputs(inputs []batchInput, c *config.Config, ext string) []batchJob {
	taken := make(map[string]bool, len(inputs))
	jobs := make([]batchJob, 0, len(inputs))
	for _, in := range inputs {
		dir := filepath.Join(c.Output.OutputDir, filepath.Dir(in.rel))
		name := utils.SanitizeFilename(filepath.Base(in.rel))
		if name == "" {
			name = "image"
		}
		out := utils.GenerateOutputFilename(name, dir, c.Output.Prefix, c.Output.Suffix, ext)
		if taken[out] {
			stem := strings.TrimSuffix(out, "."+ext)
			for n := 2; taken[out]; n++ {
				out = fmt.Sprintf("%s-%d.%s", stem, n, ext)
			}
			klog.Warningf("%s: output name taken, writing %s", in.path, out)
		}
		taken[out] = true
		jobs = append(jobs, batchJob{in: in.path, out: out})
	}
	return jobs
}

// processFile captions one file on disk.
func processFile(wm *watermark.Watermarker, o *jobOptions, in, out string) (encoder.Result, error) {
	var p placement.Placement
	var res encoder.Result

	if !o.auto {
		p = o.place
		r, err := wm.ProcessFile(in, out, o.caption, p)
		if err != nil {
			return r, err
		}
		res = r
	} else {
		img, err := wm.LoadImage(in)
		if err != nil {
			return res, fmt.Errorf("failed to load image: %w", err)
		}
		p = o.choosePlacement(wm, img)
		res, err = wm.Apply(img, o.caption, p)
		if err != nil {
			return res, fmt.Errorf("encoding failed: %w", err)
		}
		if err := utils.WriteFileAtomic(out, res.Data); err != nil {
			return res, err
		}
	}

	report(in, out, p, res, wm.Budget().MaxBytes)
	if o.debug {
		if img, err := wm.LoadImage(in); err == nil {
			writeDebugOverlay(wm, img, o.caption, p, out)
		}
	}
	return res, nil
}
