package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/menta2k/watermark/internal/config"
	"github.com/menta2k/watermark/internal/utils"
	"github.com/menta2k/watermark/pkg/picker"
	"github.com/menta2k/watermark/pkg/processing"
)

var (
	watchOpts     jobOptions
	watchExisting bool
	watchSettle   time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Caption images as they arrive in a folder",
	Long: `Watch a folder and caption every image written into it. Each file is
processed again only when its size or modification time changes. Results go
to the output directory; if that is the watched folder, files carrying the
output prefix and suffix are skipped.

Examples:
  watermark watch inbox/ -c "© 2024 Jane Doe"
  watermark watch inbox/ --existing -p auto`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchOpts.addFlags(watchCmd)
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "also caption images already in the folder")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", picker.DefaultSettle, "quiet period before a changed file is read")
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]

	c, err := watchOpts.effectiveConfig(cmd)
	if err != nil {
		return err
	}
	wm, err := newWatermarker(c)
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(c.Output.OutputDir); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := picker.NewDirWatcher(processing.NewProcessor(), dir).
		WithSettle(watchSettle).
		WithExisting(watchExisting).
		WithIgnore(isOutputFile(c))

	results, err := w.Watch(ctx)
	if err != nil {
		return err
	}
	klog.Infof("watching %s, writing to %s (ctrl-c to stop)", dir, c.Output.OutputDir)

	for r := range results {
		if r.Err != nil {
			klog.Errorf("%s: %v", r.Source, r.Err)
			continue
		}
		out := outputName(r.Source, c, wm.Format().Extension())
		p := watchOpts.choosePlacement(wm, r.Image)

		res, err := wm.Apply(r.Image, watchOpts.caption, p)
		if err != nil {
			klog.Errorf("%s: %v", r.Source, err)
			continue
		}
		if err := utils.WriteFileAtomic(out, res.Data); err != nil {
			klog.Errorf("%s: %v", r.Source, err)
			continue
		}
		report(r.Source, out, p, res, wm.Budget().MaxBytes)
		if watchOpts.debug {
			writeDebugOverlay(wm, r.Image, watchOpts.caption, p, out)
		}
	}

	klog.Infof("stopped watching %s", dir)
	return nil
}

// isOutputFile recognises files this command wrote, so a shared input and
// output folder does not loop.
func isOutputFile(c *config.Config) func(path string) bool {
	outDir, _ := filepath.Abs(c.Output.OutputDir)
	prefix, suffix := c.Output.Prefix, c.Output.Suffix

	return func(path string) bool {
		if strings.HasSuffix(strings.TrimSuffix(path, filepath.Ext(path)), "_debug") {
			return true
		}
		dir, _ := filepath.Abs(filepath.Dir(path))
		if dir != outDir {
			return false
		}
		if prefix == "" && suffix == "" {
			return true
		}
		base := filepath.Base(path)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		return strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix)
	}
}
