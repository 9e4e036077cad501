package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/menta2k/watermark"
	"github.com/menta2k/watermark/internal/config"
	"github.com/menta2k/watermark/internal/utils"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "watermark",
	Short: "Caption photos and re-encode them under a size cap",
	Long: `Watermark draws a caption on a translucent label in one corner (or the
center) of a photo and re-encodes the result, lowering quality step by step
until it fits the size budget.

Commands:
- apply: caption a single image (file or URL)
- batch: caption every image in a folder
- watch: caption images as they land in a hot folder
- suggest: propose a caption and placement for an image
- config: create or print the configuration file`,
	Version:           watermark.Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() {
	err := rootCmd.Execute()
	klog.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file, JSON or YAML (default "+config.GetConfigPath()+" if it exists)")
}

// loadConfig reads the config file named by --config, or the default one
// when it exists. Without a file the built-in defaults are used.
func loadConfig(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.GetConfigPath()
		if !utils.FileExists(path) {
			cfg = config.Default()
			return nil
		}
	}

	loaded, err := config.LoadFromFile(path)
	if err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	klog.V(1).Infof("loaded config from %s", path)
	cfg = loaded
	return nil
}
