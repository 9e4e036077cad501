package caption

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	reply  string
	err    error
	prompt string
	model  string
	image  string
}

func (f *fakeClient) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	f.model, f.prompt, f.image = model, prompt, imgB64
	return f.reply, f.err
}

func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 90, 255})
		}
	}
	return img
}

func TestSuggest(t *testing.T) {
	client := &fakeClient{reply: "```json\n{\"caption\": \"Harbour at Dusk.\", \"tags\": [\"Sea\", \"sea\", \"boats\",]}\n```"}
	s := NewSuggester(client, "llava")

	got, err := s.Suggest(context.Background(), createTestImage(64, 48))
	require.NoError(t, err)

	assert.Equal(t, "Harbour at Dusk", got.Caption)
	assert.Equal(t, []string{"sea", "boats"}, got.Tags)
	assert.False(t, got.Fallback)
	assert.Equal(t, "llava", client.model)
	assert.Equal(t, DefaultPrompt, client.prompt)
	assert.NotEmpty(t, client.image)
}

func TestSuggestCustomPrompt(t *testing.T) {
	client := &fakeClient{reply: `{"caption":"ok"}`}
	s := NewSuggester(client, "m").WithPrompt("custom")

	_, err := s.Suggest(context.Background(), createTestImage(8, 8))
	require.NoError(t, err)
	assert.Equal(t, "custom", client.prompt)
	assert.Equal(t, DefaultPrompt, NewSuggester(client, "m").prompt)
}

func TestSuggestErrors(t *testing.T) {
	boom := errors.New("backend down")
	_, err := NewSuggester(&fakeClient{err: boom}, "m").Suggest(context.Background(), createTestImage(8, 8))
	assert.ErrorIs(t, err, boom)

	_, err = NewSuggester(&fakeClient{reply: `{"caption": ""}`}, "m").Suggest(context.Background(), createTestImage(8, 8))
	assert.Error(t, err)
}

func TestParseSuggestionPlainText(t *testing.T) {
	s := ParseSuggestion("\n  \"Morning fog over the valley\"\nSome explanation follows.")
	assert.True(t, s.Fallback)
	assert.Equal(t, "Morning fog over the valley", s.Caption)
}

func TestParseSuggestionWithComments(t *testing.T) {
	raw := `{
  // the caption
  "caption": "Old Town",
  /* tags */ "tags": ["city"],
}`
	s := ParseSuggestion(raw)
	assert.False(t, s.Fallback)
	assert.Equal(t, "Old Town", s.Caption)
	assert.Equal(t, []string{"city"}, s.Tags)
}

func TestNormalizeCaption(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  Sunset   Pier  ", "Sunset Pier"},
		{`"Quoted"`, "Quoted"},
		{"«Водяные Знаки»", "Водяные Знаки"},
		{"Done!!!", "Done"},
		{"", ""},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, NormalizeCaption(test.input), test.input)
	}

	long := strings.Repeat("word ", 20)
	got := NormalizeCaption(long)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), MaxCaptionRunes)
	assert.False(t, strings.HasSuffix(got, " "))
	assert.True(t, strings.HasSuffix(got, "word"))
}

func TestNormalizeTagsLimit(t *testing.T) {
	got := normalizeTags([]string{"a", "B", "c", "d", "e", "f", " "})
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)
}

func TestSuggestImageOptions(t *testing.T) {
	client := &fakeClient{reply: `{"caption":"small"}`}
	s := NewSuggester(client, "m").WithImageOptions(16, 50)

	_, err := s.Suggest(context.Background(), createTestImage(64, 48))
	require.NoError(t, err)

	data, err := base64.StdEncoding.DecodeString(client.image)
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(16, 12), img.Bounds().Size())
}
