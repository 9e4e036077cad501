// Package caption suggests watermark captions using a vision model.
package caption

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"regexp"
	"strings"
	"unicode"

	"github.com/menta2k/watermark/pkg/processing"
)

// MaxCaptionRunes bounds suggested captions so they fit a label.
const MaxCaptionRunes = 40

// DefaultPrompt asks the model for a short caption in JSON.
const DefaultPrompt = `You write short photo watermarks.

Return JSON only:
{
  "caption": "2 to 5 words",
  "tags": ["tag1", "tag2", "tag3"]
}

RULES
- The caption names the place, subject or mood of the photo.
- No hashtags, emoji, quotes or trailing punctuation.
- Do not guess real identities.
- Tags: lowercase, concise, no duplicates.
- JSON only. No markdown, no code fences, no comments.`

// VisionClient is a model backend that can answer a prompt about an image.
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
}

// Suggestion is a caption proposed by the model.
type Suggestion struct {
	Caption string   `json:"caption"`
	Tags    []string `json:"tags"`
	// Fallback is set when the reply was not valid JSON and the caption
	// was taken from plain text.
	Fallback bool `json:"-"`
}

// Suggester turns images into caption suggestions
type Suggester struct {
	client    VisionClient
	model     string
	prompt    string
	processor *processing.Processor
	maxDim    int
	quality   int
}

// NewSuggester creates a suggester for model served by client
func NewSuggester(client VisionClient, model string) *Suggester {
	return &Suggester{
		client:    client,
		model:     model,
		prompt:    DefaultPrompt,
		processor: processing.NewProcessor(),
		maxDim:    1024,
		quality:   85,
	}
}

// WithPrompt returns a copy of the suggester using a custom prompt
func (s *Suggester) WithPrompt(prompt string) *Suggester {
	cp := *s
	cp.prompt = prompt
	return &cp
}

// WithImageOptions returns a copy of the suggester that sends images
// downscaled to maxDim on the long side at the given JPEG quality. Zero
// values keep the current settings.
func (s *Suggester) WithImageOptions(maxDim, quality int) *Suggester {
	cp := *s
	if maxDim > 0 {
		cp.maxDim = maxDim
	}
	if quality > 0 {
		cp.quality = quality
	}
	return &cp
}

// Suggest asks the model for a caption for img
func (s *Suggester) Suggest(ctx context.Context, img image.Image) (*Suggestion, error) {
	imgB64, err := s.processor.PrepareImageForModel(img, "jpg", s.maxDim, s.quality)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}

	raw, err := s.client.SimpleQuery(ctx, s.model, s.prompt, imgB64)
	if err != nil {
		return nil, err
	}

	suggestion := ParseSuggestion(raw)
	if suggestion.Caption == "" {
		return nil, fmt.Errorf("model returned no usable caption")
	}
	return &suggestion, nil
}

// ParseSuggestion extracts a suggestion from a model reply. Replies that are
// not JSON fall back to their first non-empty line.
func ParseSuggestion(raw string) Suggestion {
	cleaned := sanitizeModelJSON(raw)

	var s Suggestion
	if strings.HasPrefix(cleaned, "{") && json.Unmarshal([]byte(cleaned), &s) == nil {
		s.Caption = NormalizeCaption(s.Caption)
		s.Tags = normalizeTags(s.Tags)
		return s
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.Trim(line, "`"))
		if line == "" || strings.HasPrefix(line, "{") {
			continue
		}
		return Suggestion{Caption: NormalizeCaption(line), Fallback: true}
	}
	return Suggestion{Fallback: true}
}

// NormalizeCaption collapses whitespace, strips quotes and trailing
// punctuation, and truncates to MaxCaptionRunes on a word boundary.
func NormalizeCaption(caption string) string {
	caption = strings.Join(strings.Fields(caption), " ")
	caption = strings.Trim(caption, "\"'“”«»`")
	caption = strings.TrimRightFunc(caption, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})

	runes := []rune(caption)
	if len(runes) <= MaxCaptionRunes {
		return caption
	}
	cut := string(runes[:MaxCaptionRunes])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

// normalizeTags ensures tags are cleaned and limited to 5 entries
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 5)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == 5 {
			break
		}
	}
	return out
}

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
