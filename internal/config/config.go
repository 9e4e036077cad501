package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/watermark/pkg/compositor"
	"github.com/menta2k/watermark/pkg/encoder"
	"github.com/menta2k/watermark/pkg/placement"
)

// Config holds the application configuration
type Config struct {
	Watermark WatermarkConfig `json:"watermark" yaml:"watermark"`
	Encoder   EncoderConfig   `json:"encoder" yaml:"encoder"`
	Output    OutputConfig    `json:"output" yaml:"output"`
	Caption   CaptionConfig   `json:"caption" yaml:"caption"`
}

// WatermarkConfig holds the caption label settings
type WatermarkConfig struct {
	Caption       string              `json:"caption" yaml:"caption"`
	Placement     placement.Placement `json:"placement" yaml:"placement"`
	AutoPlacement bool                `json:"auto_placement" yaml:"auto_placement"`
	FontScale     float64             `json:"font_scale" yaml:"font_scale"`
	MinFontSize   float64             `json:"min_font_size" yaml:"min_font_size"`
	Padding       int                 `json:"padding" yaml:"padding"`
}

// EncoderConfig holds the size budget settings
type EncoderConfig struct {
	Format string `json:"format" yaml:"format"`
	// MaxSize is a human readable byte size such as "30 MiB" or "500kB".
	MaxSize     string  `json:"max_size" yaml:"max_size"`
	QualityStep float64 `json:"quality_step" yaml:"quality_step"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	OutputDir string `json:"output_dir" yaml:"output_dir"`
	Prefix    string `json:"prefix" yaml:"prefix"`
	Suffix    string `json:"suffix" yaml:"suffix"`
	Workers   int    `json:"workers" yaml:"workers"`
}

// CaptionConfig holds the caption suggestion backend
type CaptionConfig struct {
	// Backend is "ollama" or "llamacpp".
	Backend string `json:"backend" yaml:"backend"`
	// URL of the backend server; empty uses the backend's default.
	URL     string `json:"url" yaml:"url"`
	Model   string `json:"model" yaml:"model"`
	MaxDim  int    `json:"max_dim" yaml:"max_dim"`
	Quality int    `json:"quality" yaml:"quality"`
}

// Default returns a configuration with default values
func Default() *Config {
	style := compositor.DefaultStyle()
	return &Config{
		Watermark: WatermarkConfig{
			Placement:   placement.Default,
			FontScale:   style.FontScale,
			MinFontSize: style.MinFontSize,
			Padding:     style.Padding,
		},
		Encoder: EncoderConfig{
			Format:      encoder.JPEG.Name(),
			MaxSize:     humanize.IBytes(encoder.DefaultMaxBytes),
			QualityStep: encoder.DefaultStep,
		},
		Output: OutputConfig{
			OutputDir: "./output",
			Prefix:    "",
			Suffix:    "_wm",
			Workers:   4,
		},
		Caption: CaptionConfig{
			Backend: "ollama",
			Model:   "llava",
			MaxDim:  1024,
			Quality: 85,
		},
	}
}

// LoadFromFile loads configuration from a JSON or YAML file. Fields missing
// from the file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isYAML(filename) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration as JSON, or YAML for .yaml/.yml names
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := c.Marshal(isYAML(filename))
	if err != nil {
		return err
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Marshal renders the configuration as indented JSON or YAML
func (c *Config) Marshal(asYAML bool) ([]byte, error) {
	var data []byte
	var err error
	if asYAML {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !c.Watermark.Placement.Valid() {
		return fmt.Errorf("watermark.placement: %w", placement.ErrUnknownPlacement)
	}

	if c.Watermark.FontScale <= 0 || c.Watermark.FontScale > 1 {
		return fmt.Errorf("watermark.font_scale must be between 0 and 1")
	}

	if c.Watermark.MinFontSize < 1 {
		return fmt.Errorf("watermark.min_font_size must be at least 1")
	}

	if c.Watermark.Padding < 0 {
		return fmt.Errorf("watermark.padding cannot be negative")
	}

	if _, err := encoder.FormatByName(c.Encoder.Format); err != nil {
		return fmt.Errorf("encoder.format: %w", err)
	}

	if _, err := c.MaxBytes(); err != nil {
		return err
	}

	if c.Encoder.QualityStep <= 0 || c.Encoder.QualityStep > 1 {
		return fmt.Errorf("encoder.quality_step must be between 0 and 1")
	}

	if c.Output.Workers < 1 {
		return fmt.Errorf("output.workers must be positive")
	}

	if c.Caption.Backend != "ollama" && c.Caption.Backend != "llamacpp" {
		return fmt.Errorf("caption.backend must be ollama or llamacpp")
	}

	if c.Caption.Quality < 1 || c.Caption.Quality > 100 {
		return fmt.Errorf("caption.quality must be between 1 and 100")
	}

	if c.Caption.MaxDim < 0 {
		return fmt.Errorf("caption.max_dim cannot be negative")
	}

	return nil
}

// MaxBytes parses Encoder.MaxSize
func (c *Config) MaxBytes() (int, error) {
	n, err := humanize.ParseBytes(c.Encoder.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("encoder.max_size: %w", err)
	}
	if n == 0 || n > uint64(int(^uint(0)>>1)) {
		return 0, fmt.Errorf("encoder.max_size must be positive, got %q", c.Encoder.MaxSize)
	}
	return int(n), nil
}

// Budget returns the encoder budget described by the configuration
func (c *Config) Budget() (encoder.Budget, error) {
	n, err := c.MaxBytes()
	if err != nil {
		return encoder.Budget{}, err
	}
	return encoder.Budget{MaxBytes: n, Step: c.Encoder.QualityStep}, nil
}

// Style returns the compositor style described by the configuration
func (c *Config) Style() compositor.Style {
	style := compositor.DefaultStyle()
	style.FontScale = c.Watermark.FontScale
	style.MinFontSize = c.Watermark.MinFontSize
	style.Padding = c.Watermark.Padding
	return style
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "watermark", "config.json")
}

func isYAML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}
