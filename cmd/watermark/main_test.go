package main

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/watermark/internal/config"
)

func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 120, 90))
	for y := 0; y < 90; y++ {
		for x := 0; x < 120; x++ {
			img.Set(x, y, color.NRGBA{uint8(x * 2), uint8(y * 2), 60, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestOutputName(t *testing.T) {
	c := config.Default()
	c.Output.OutputDir = "out"

	assert.Equal(t, filepath.Join("out", "cat_wm.jpg"), outputName("https://example.com/a/cat.png?size=large", c, "jpg"))
	assert.Equal(t, filepath.Join("out", "photo_wm.webp"), outputName("/data/photo.jpeg", c, "webp"))
}

func TestIsOutputFile(t *testing.T) {
	dir := t.TempDir()
	c := config.Default()
	c.Output.OutputDir = dir
	ignore := isOutputFile(c)

	assert.True(t, ignore(filepath.Join(dir, "cat_wm.jpg")))
	assert.True(t, ignore(filepath.Join(dir, "cat_wm_debug.png")))
	assert.False(t, ignore(filepath.Join(dir, "cat.jpg")))
	assert.False(t, ignore(filepath.Join(t.TempDir(), "cat_wm.jpg")))
}

func TestCollectInputs(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, filepath.Join(dir, "a.png"))
	writeTestPNG(t, filepath.Join(dir, "b.png"))
	single := filepath.Join(t.TempDir(), "c.png")
	writeTestPNG(t, single)

	inputs, err := collectInputs([]string{dir, single})
	require.NoError(t, err)
	require.Len(t, inputs, 3)
	assert.Equal(t, "a.png", inputs[0].rel)
	assert.Equal(t, "c.png", inputs[2].rel)

	_, err = collectInputs([]string{filepath.Join(dir, "missing.png")})
	assert.Error(t, err)
}

func TestPlanOutputsSiblingFolders(t *testing.T) {
	dir := t.TempDir()
	for _, sub := range []string{"a", "b"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0755))
		writeTestPNG(t, filepath.Join(dir, sub, "img.png"))
	}
	c := config.Default()
	c.Output.OutputDir = filepath.Join(dir, "out")

	inputs, err := collectInputs([]string{dir})
	require.NoError(t, err)
	jobs := planOutputs(inputs, c, "jpg")

	require.Len(t, jobs, 2)
	assert.Equal(t, filepath.Join(dir, "out", "a", "img_wm.jpg"), jobs[0].out)
	assert.Equal(t, filepath.Join(dir, "out", "b", "img_wm.jpg"), jobs[1].out)
}

func TestPlanOutputsSameNameFiles(t *testing.T) {
	c := config.Default()
	c.Output.OutputDir = "out"
	inputs := []batchInput{
		{path: filepath.Join("a", "img.png"), rel: "img.png"},
		{path: filepath.Join("b", "img.png"), rel: "img.png"},
		{path: filepath.Join("c", "img.jpg"), rel: "img.jpg"},
	}

	jobs := planOutputs(inputs, c, "jpg")

	require.Len(t, jobs, 3)
	assert.Equal(t, filepath.Join("out", "img_wm.jpg"), jobs[0].out)
	assert.Equal(t, filepath.Join("out", "img_wm-2.jpg"), jobs[1].out)
	assert.Equal(t, filepath.Join("out", "img_wm-3.jpg"), jobs[2].out)
}

func TestBatchCommandKeepsSameNamedFiles(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	for _, sub := range []string{"a", "b"} {
		require.NoError(t, os.MkdirAll(filepath.Join(in, sub), 0755))
		writeTestPNG(t, filepath.Join(in, sub, "img.png"))
	}
	outDir := filepath.Join(dir, "out")

	c := config.Default()
	c.Output.OutputDir = outDir
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, c.SaveToFile(cfgPath))

	rootCmd.SetArgs([]string{"batch", in, "--config", cfgPath, "-c", "TEST", "-p", "bottom-right"})
	require.NoError(t, rootCmd.Execute())

	assert.FileExists(t, filepath.Join(outDir, "a", "img_wm.jpg"))
	assert.FileExists(t, filepath.Join(outDir, "b", "img_wm.jpg"))
}

func TestMatchOutputFormat(t *testing.T) {
	c := config.Default()
	require.NoError(t, matchOutputFormat(c, "out.webp", false))
	assert.Equal(t, "webp", c.Encoder.Format)

	c = config.Default()
	require.NoError(t, matchOutputFormat(c, "out.JPEG", false))
	assert.Equal(t, "jpeg", c.Encoder.Format)

	c = config.Default()
	c.Encoder.Format = "jpeg"
	assert.Error(t, matchOutputFormat(c, "out.webp", true))
	assert.NoError(t, matchOutputFormat(c, "out.jpg", true))

	c = config.Default()
	assert.Error(t, matchOutputFormat(c, "out.png", false))
	assert.NoError(t, matchOutputFormat(c, "out", false))
}

func TestApplyCommand(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")

	c := config.Default()
	c.Output.OutputDir = outDir
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, c.SaveToFile(cfgPath))

	in := filepath.Join(dir, "photo.png")
	writeTestPNG(t, in)

	rootCmd.SetArgs([]string{"apply", in, "--config", cfgPath, "-c", "TEST", "-p", "top-left", "--max-size", "1MiB"})
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(filepath.Join(outDir, "photo_wm.jpg"))
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(120, 90), img.Bounds().Size())
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watermark.json")

	rootCmd.SetArgs([]string{"config", "init", path})
	require.NoError(t, rootCmd.Execute())

	loaded, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.NoError(t, loaded.Validate())

	rootCmd.SetArgs([]string{"config", "init", path})
	assert.Error(t, rootCmd.Execute())
}
