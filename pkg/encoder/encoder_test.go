package encoder

import (
	"errors"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestImage creates an opaque gradient with light deterministic noise
func createTestImage(width, height int) image.Image {
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			n := uint8(rng.Intn(32))
			r := uint8((x*200)/width) + n
			g := uint8((y*200)/height) + n
			b := uint8(((x+y)*100)/(width+height)) + n
			img.Set(x, y, color.RGBA{r, g, b, 255})
		}
	}
	return img
}

func TestFirstEncodingReturnedWhenWithinBudget(t *testing.T) {
	img := createTestImage(320, 240)

	best, err := JPEG.Encode(img, 1.0)
	require.NoError(t, err)

	out, err := EncodeWithinBudget(img, len(best))
	require.NoError(t, err)
	assert.Equal(t, best, out)

	res, err := New().Encode(img, Budget{MaxBytes: len(best) * 2})
	require.NoError(t, err)
	assert.Equal(t, Success, res.State)
	assert.Len(t, res.Trace, 1)
	assert.Equal(t, 1.0, res.Quality)
}

func TestSizeIsMonotonic(t *testing.T) {
	img := createTestImage(320, 240)

	// A one-byte budget forces the whole ladder.
	res, err := New().Encode(img, Budget{MaxBytes: 1, Step: DefaultStep})
	require.NoError(t, err)

	require.Len(t, res.Trace, 11)
	for i := 1; i < len(res.Trace); i++ {
		assert.LessOrEqual(t, res.Trace[i].Size, res.Trace[i-1].Size,
			"quality %.1f larger than %.1f", res.Trace[i].Quality, res.Trace[i-1].Quality)
	}
	assert.InDelta(t, 0.0, res.Quality, 1e-9)
	assert.Equal(t, ExhaustedStillOverBudget, res.State)
	assert.False(t, res.WithinBudget())
	assert.Equal(t, res.Trace[len(res.Trace)-1].Size, len(res.Data))
}

func TestExhaustedReturnsBytesWithoutError(t *testing.T) {
	img := createTestImage(64, 64)
	out, err := EncodeWithinBudget(img, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Greater(t, len(out), 10)
}

func TestStopsAsSoonAsWithinBudget(t *testing.T) {
	img := createTestImage(320, 240)
	best, err := JPEG.Encode(img, 1.0)
	require.NoError(t, err)

	res, err := New().Encode(img, Budget{MaxBytes: len(best) - 1})
	require.NoError(t, err)
	assert.Equal(t, Success, res.State)
	assert.Len(t, res.Trace, 2)
	assert.InDelta(t, 0.9, res.Quality, 1e-9)
	assert.LessOrEqual(t, len(res.Data), len(best)-1)
}

func TestUnencodableImage(t *testing.T) {
	empty := image.NewRGBA(image.Rect(0, 0, 0, 0))

	out, err := EncodeWithinBudget(empty, DefaultMaxBytes)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrUnencodable)

	res, err := New().Encode(empty, DefaultBudget())
	assert.ErrorIs(t, err, ErrUnencodable)
	assert.Equal(t, HardFailure, res.State)
	assert.Empty(t, res.Trace)
}

// flakyFormat succeeds for the first n calls and fails afterwards.
type flakyFormat struct {
	n     int
	calls int
}

func (f *flakyFormat) Name() string      { return "flaky" }
func (f *flakyFormat) Extension() string { return "bin" }

func (f *flakyFormat) Encode(img image.Image, quality float64) ([]byte, error) {
	f.calls++
	if f.calls > f.n {
		return nil, errors.New("boom")
	}
	return make([]byte, 1000-f.calls), nil
}

func TestFailedRetryKeepsLastBytes(t *testing.T) {
	f := &flakyFormat{n: 3}
	res, err := NewWithFormat(f).Encode(createTestImage(8, 8), Budget{MaxBytes: 10})
	require.NoError(t, err)

	assert.Equal(t, 4, f.calls)
	assert.Len(t, res.Data, 997)
	assert.InDelta(t, 0.8, res.Quality, 1e-9)
	assert.Equal(t, ExhaustedStillOverBudget, res.State)
}

func TestFirstAttemptFailure(t *testing.T) {
	f := &flakyFormat{n: 0}
	_, err := NewWithFormat(f).Encode(createTestImage(8, 8), DefaultBudget())
	assert.ErrorIs(t, err, ErrUnencodable)
	assert.Equal(t, 1, f.calls)
}

func TestCustomStep(t *testing.T) {
	img := createTestImage(64, 64)
	res, err := New().Encode(img, Budget{MaxBytes: 1, Step: 0.25})
	require.NoError(t, err)

	var qualities []float64
	for _, a := range res.Trace {
		qualities = append(qualities, a.Quality)
	}
	assert.InDeltaSlice(t, []float64{1, 0.75, 0.5, 0.25, 0}, qualities, 1e-9)
}

func TestFormatByName(t *testing.T) {
	for _, name := range []string{"", "jpg", "JPEG"} {
		f, err := FormatByName(name)
		require.NoError(t, err)
		assert.Equal(t, "jpeg", f.Name())
	}
	f, err := FormatByName("webp")
	require.NoError(t, err)
	assert.Equal(t, "webp", f.Extension())

	_, err = FormatByName("png")
	assert.Error(t, err)
}

func TestWebPWithinBudget(t *testing.T) {
	img := createTestImage(128, 128)
	res, err := NewWithFormat(WebP).Encode(img, DefaultBudget())
	require.NoError(t, err)
	assert.Equal(t, Success, res.State)
	assert.Equal(t, "RIFF", string(res.Data[:4]))
}

func TestJPEGQualityMapping(t *testing.T) {
	assert.Equal(t, 100, jpegQuality(1))
	assert.Equal(t, 90, jpegQuality(0.9))
	assert.Equal(t, 1, jpegQuality(0))
	assert.Equal(t, 100, jpegQuality(3))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "exhausted-still-over-budget", ExhaustedStillOverBudget.String())
	assert.Equal(t, "hard-failure", HardFailure.String())
}

func BenchmarkEncodeWithinBudget(b *testing.B) {
	img := createTestImage(1920, 1080)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		EncodeWithinBudget(img, 200*1024)
	}
}
