package picker

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/watermark/pkg/processing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{uint8(x), uint8(y), 90, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, pngBytes(t, w, h), 0644))
}

// receive reads one result and checks the channel is closed afterwards.
func receive(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res, ok := <-ch:
		require.True(t, ok, "channel closed without a result")
		_, more := <-ch
		assert.False(t, more, "channel delivered more than one result")
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pick")
		return Result{}
	}
}

func TestFilePicker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.png")
	writePNG(t, path, 40, 30)

	res := receive(t, NewFilePicker(nil, path).Pick(context.Background()))
	require.NoError(t, res.Err)
	require.NotNil(t, res.Image)
	assert.Equal(t, image.Pt(40, 30), res.Image.Bounds().Size())
	assert.Equal(t, path, res.Source)
	assert.False(t, res.Cancelled())
}

func TestFilePickerMissing(t *testing.T) {
	res := receive(t, NewFilePicker(nil, filepath.Join(t.TempDir(), "nope.png")).Pick(context.Background()))
	assert.Error(t, res.Err)
	assert.Nil(t, res.Image)
	assert.False(t, res.Cancelled())
}

func TestURLPicker(t *testing.T) {
	data := pngBytes(t, 16, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer srv.Close()

	p := NewSourcePicker(processing.NewProcessor(), srv.URL+"/photo.png")
	_, isURL := p.(*URLPicker)
	assert.True(t, isURL)

	res := receive(t, p.Pick(context.Background()))
	require.NoError(t, res.Err)
	assert.Equal(t, image.Pt(16, 8), res.Image.Bounds().Size())
}

func TestSourcePickerChoosesFile(t *testing.T) {
	_, isFile := NewSourcePicker(nil, "/tmp/photo.jpg").(*FilePicker)
	assert.True(t, isFile)
}

func TestFuncCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := Func(func(ctx context.Context) (image.Image, string, error) {
		<-ctx.Done()
		return nil, "", ctx.Err()
	})

	res := receive(t, f.Pick(ctx))
	assert.True(t, res.Cancelled())
}

func TestFuncError(t *testing.T) {
	boom := errors.New("boom")
	f := Func(func(ctx context.Context) (image.Image, string, error) {
		return nil, "x", boom
	})

	res := receive(t, f.Pick(context.Background()))
	assert.ErrorIs(t, res.Err, boom)
}
