package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/menta2k/watermark/pkg/encoder"
	"github.com/menta2k/watermark/pkg/placement"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config is invalid: %v", err)
	}

	n, err := cfg.MaxBytes()
	if err != nil {
		t.Fatalf("MaxBytes failed: %v", err)
	}
	if n != encoder.DefaultMaxBytes {
		t.Errorf("Expected %d bytes, got %d", encoder.DefaultMaxBytes, n)
	}
	if cfg.Watermark.Placement != placement.BottomRight {
		t.Errorf("Expected bottom-right, got %s", cfg.Watermark.Placement)
	}
}

func TestSaveAndLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.Watermark.Caption = "© Example"
	cfg.Watermark.Placement = placement.TopLeft
	cfg.Encoder.MaxSize = "500kB"

	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"placement": "top-left"`) {
		t.Errorf("Expected placement by name in JSON, got:\n%s", data)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Watermark.Caption != "© Example" || loaded.Watermark.Placement != placement.TopLeft {
		t.Errorf("Round trip lost values: %+v", loaded.Watermark)
	}

	n, err := loaded.MaxBytes()
	if err != nil || n != 500000 {
		t.Errorf("Expected 500000 bytes, got %d (%v)", n, err)
	}
}

func TestLoadYAMLPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
watermark:
  caption: hello
  placement: topRight
encoder:
  format: webp
  max_size: 2 MiB
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Loaded config is invalid: %v", err)
	}

	if cfg.Watermark.Placement != placement.TopRight {
		t.Errorf("Expected top-right, got %s", cfg.Watermark.Placement)
	}
	if cfg.Encoder.Format != "webp" {
		t.Errorf("Expected webp, got %s", cfg.Encoder.Format)
	}
	// Unset fields keep defaults
	if cfg.Output.Workers != 4 || cfg.Encoder.QualityStep != encoder.DefaultStep {
		t.Errorf("Defaults not preserved: %+v %+v", cfg.Output, cfg.Encoder)
	}

	budget, err := cfg.Budget()
	if err != nil {
		t.Fatal(err)
	}
	if budget.MaxBytes != 2*1024*1024 {
		t.Errorf("Expected 2 MiB, got %d", budget.MaxBytes)
	}
}

func TestSaveYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := Default().SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "placement: bottom-right") {
		t.Errorf("Expected YAML placement, got:\n%s", data)
	}

	if _, err := LoadFromFile(path); err != nil {
		t.Errorf("LoadFromFile failed: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte(`{"watermark": {"placement": "sideways"}}`), 0644)
	if _, err := LoadFromFile(path); err == nil {
		t.Error("Expected error for unknown placement")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"font scale", func(c *Config) { c.Watermark.FontScale = 0 }},
		{"min font", func(c *Config) { c.Watermark.MinFontSize = 0 }},
		{"padding", func(c *Config) { c.Watermark.Padding = -1 }},
		{"format", func(c *Config) { c.Encoder.Format = "gif" }},
		{"max size", func(c *Config) { c.Encoder.MaxSize = "lots" }},
		{"zero size", func(c *Config) { c.Encoder.MaxSize = "0" }},
		{"step", func(c *Config) { c.Encoder.QualityStep = 2 }},
		{"workers", func(c *Config) { c.Output.Workers = 0 }},
		{"quality", func(c *Config) { c.Caption.Quality = 101 }},
		{"backend", func(c *Config) { c.Caption.Backend = "openai" }},
		{"placement", func(c *Config) { c.Watermark.Placement = placement.Placement(9) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestStyle(t *testing.T) {
	cfg := Default()
	cfg.Watermark.FontScale = 0.1
	cfg.Watermark.Padding = 4

	style := cfg.Style()
	if style.FontScale != 0.1 || style.Padding != 4 {
		t.Errorf("Unexpected style: %+v", style)
	}
}

func TestGetConfigPath(t *testing.T) {
	if !strings.HasSuffix(GetConfigPath(), filepath.Join("watermark", "config.json")) {
		t.Errorf("Unexpected config path %s", GetConfigPath())
	}
}
