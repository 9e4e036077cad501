package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/menta2k/watermark/pkg/caption"
	"github.com/menta2k/watermark/pkg/llamacpp"
	"github.com/menta2k/watermark/pkg/ollama"
	"github.com/menta2k/watermark/pkg/placement"
)

var (
	suggestCaption string
	suggestModel   string
	suggestURL     string
	suggestBackend string
	suggestNoModel bool
	suggestJSON    bool
)

var suggestCmd = &cobra.Command{
	Use:   "suggest [image]",
	Short: "Suggest a caption and placement for an image",
	Long: `Ask a local vision model (Ollama or llama.cpp) for a short caption and
pick the placement where that caption covers the least detail.

With --caption (or --no-model) the model is skipped and only the placement
is suggested.

Examples:
  watermark suggest photo.jpg
  watermark suggest photo.jpg --model llava:13b --json
  watermark suggest photo.jpg --caption "© Jane" --no-model`,
	Args: cobra.ExactArgs(1),
	RunE: runSuggest,
}

func init() {
	rootCmd.AddCommand(suggestCmd)

	suggestCmd.Flags().StringVarP(&suggestCaption, "caption", "c", "", "use this caption instead of asking the model")
	suggestCmd.Flags().StringVar(&suggestModel, "model", "", "vision model (default from config)")
	suggestCmd.Flags().StringVar(&suggestURL, "url", "", "model server URL (default from config)")
	suggestCmd.Flags().StringVar(&suggestBackend, "backend", "", "model backend: ollama or llamacpp (default from config)")
	suggestCmd.Flags().BoolVar(&suggestNoModel, "no-model", false, "do not contact the model")
	suggestCmd.Flags().BoolVar(&suggestJSON, "json", false, "print the result as JSON")
}

type suggestOutput struct {
	Source    string              `json:"source"`
	Caption   string              `json:"caption"`
	Tags      []string            `json:"tags,omitempty"`
	Placement placement.Placement `json:"placement"`
	Scores    map[string]float64  `json:"scores"`
}

func runSuggest(cmd *cobra.Command, args []string) error {
	source := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	wm, err := newWatermarker(cfg)
	if err != nil {
		return err
	}
	img, err := wm.LoadImageSmart(ctx, source)
	if err != nil {
		return err
	}

	out := suggestOutput{Source: source, Caption: caption.NormalizeCaption(suggestCaption)}
	if out.Caption == "" {
		out.Caption = cfg.Watermark.Caption
	}

	if suggestCaption == "" && !suggestNoModel {
		backend, url, model := cfg.Caption.Backend, cfg.Caption.URL, cfg.Caption.Model
		if suggestBackend != "" {
			backend = suggestBackend
		}
		if suggestURL != "" {
			url = suggestURL
		}
		if suggestModel != "" {
			model = suggestModel
		}

		client, err := newVisionClient(backend, url)
		if err != nil {
			return err
		}
		s := caption.NewSuggester(client, model).WithImageOptions(cfg.Caption.MaxDim, cfg.Caption.Quality)

		klog.V(1).Infof("asking %s via %s ...", model, backend)
		suggestion, err := s.Suggest(ctx, img)
		if err != nil {
			return fmt.Errorf("caption suggestion failed: %w", err)
		}
		if suggestion.Fallback {
			klog.Warningf("model did not return JSON, using its first line")
		}
		out.Caption = suggestion.Caption
		out.Tags = suggestion.Tags
	}

	out.Placement = wm.SuggestPlacement(img, out.Caption)
	out.Scores = make(map[string]float64)
	for p, score := range wm.PlacementScores(img, out.Caption) {
		out.Scores[p.String()] = score
	}

	if suggestJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "caption:   %s\n", out.Caption)
	if len(out.Tags) > 0 {
		fmt.Fprintf(w, "tags:      %v\n", out.Tags)
	}
	fmt.Fprintf(w, "placement: %s\n", out.Placement)
	for _, p := range placement.All() {
		fmt.Fprintf(w, "  %-13s %.4f\n", p, out.Scores[p.String()])
	}
	return nil
}

func newVisionClient(backend, url string) (caption.VisionClient, error) {
	switch backend {
	case "", "ollama":
		if url == "" {
			url = ollama.DefaultURL
		}
		client, err := ollama.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return client, nil
	case "llamacpp":
		client, err := llamacpp.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown backend: %s (use 'ollama' or 'llamacpp')", backend)
	}
}
