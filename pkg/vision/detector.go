package vision

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/watermark/pkg/placement"
)

// SaliencyDetector scores image areas by how much visual detail they hold,
// so captions can be placed where they hide the least.
type SaliencyDetector struct {
	config DetectionConfig
}

// DetectionConfig holds configuration for saliency detection
type DetectionConfig struct {
	ContrastWeight float64
	ColorWeight    float64
	// AnalysisSize is the longest side the image is reduced to before
	// the saliency map is computed. Zero disables downscaling.
	AnalysisSize int
}

// DefaultConfig favours edges over brightness and analyses at 256 px.
func DefaultConfig() DetectionConfig {
	return DetectionConfig{
		ContrastWeight: 0.8,
		ColorWeight:    0.2,
		AnalysisSize:   256,
	}
}

// New creates a new SaliencyDetector with default configuration
func New() *SaliencyDetector {
	return &SaliencyDetector{config: DefaultConfig()}
}

// NewWithConfig creates a new SaliencyDetector with custom configuration
func NewWithConfig(config DetectionConfig) *SaliencyDetector {
	return &SaliencyDetector{config: config}
}

// Config returns the detector configuration
func (d *SaliencyDetector) Config() DetectionConfig {
	return d.config
}

// suggestionOrder is the tie-break order; the session default comes first.
var suggestionOrder = []placement.Placement{
	placement.BottomRight,
	placement.BottomLeft,
	placement.TopRight,
	placement.TopLeft,
	placement.Center,
}

// SuggestPlacement returns the placement whose label rectangle of size
// labelSize covers the least salient part of img.
func (d *SaliencyDetector) SuggestPlacement(img image.Image, labelSize image.Point) placement.Placement {
	scores := d.Scores(img, labelSize)

	best := placement.Default
	bestScore := math.Inf(1)
	for _, p := range suggestionOrder {
		if s := scores[p]; s < bestScore {
			best, bestScore = p, s
		}
	}
	return best
}

// Scores returns the mean saliency under the label rectangle of every
// placement. Rectangles that fall entirely outside the image score +Inf.
func (d *SaliencyDetector) Scores(img image.Image, labelSize image.Point) map[placement.Placement]float64 {
	size := img.Bounds().Size()
	scores := make(map[placement.Placement]float64, len(suggestionOrder))
	if size.X <= 0 || size.Y <= 0 {
		for _, p := range suggestionOrder {
			scores[p] = math.Inf(1)
		}
		return scores
	}

	small, scale := d.analysisImage(img)
	saliencyMap := d.SaliencyMap(small)
	mapBounds := image.Rect(0, 0, small.Bounds().Dx(), small.Bounds().Dy())

	for _, p := range suggestionOrder {
		r := p.Rect(size, labelSize)
		scaled := image.Rect(
			int(math.Floor(float64(r.Min.X)*scale)),
			int(math.Floor(float64(r.Min.Y)*scale)),
			int(math.Ceil(float64(r.Max.X)*scale)),
			int(math.Ceil(float64(r.Max.Y)*scale)),
		).Intersect(mapBounds)

		if scaled.Empty() {
			scores[p] = math.Inf(1)
			continue
		}
		scores[p] = calculateRegionScore(saliencyMap, scaled)
	}
	return scores
}

// analysisImage returns the image the map is computed on and the factor
// that maps original coordinates onto it.
func (d *SaliencyDetector) analysisImage(img image.Image) (image.Image, float64) {
	b := img.Bounds()
	limit := d.config.AnalysisSize
	if limit <= 0 || (b.Dx() <= limit && b.Dy() <= limit) {
		return imaging.Clone(img), 1
	}
	small := imaging.Fit(img, limit, limit, imaging.Box)
	return small, float64(small.Bounds().Dx()) / float64(b.Dx())
}

// SaliencyMap computes a per-pixel saliency value from edge strength and
// brightness.
func (d *SaliencyDetector) SaliencyMap(img image.Image) [][]float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	saliencyMap := make([][]float64, height)
	for i := range saliencyMap {
		saliencyMap[i] = make([]float64, width)
	}

	neighbors := [][]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			r1, g1, b1, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()

			// Edge strength against the 8 neighbours
			var edgeStrength float64
			for _, offset := range neighbors {
				nx, ny := x+offset[0], y+offset[1]
				r2, g2, b2, _ := img.At(nx+bounds.Min.X, ny+bounds.Min.Y).RGBA()

				dr := float64(r1) - float64(r2)
				dg := float64(g1) - float64(g2)
				db := float64(b1) - float64(b2)
				edgeStrength += math.Sqrt(dr*dr + dg*dg + db*db)
			}
			edgeStrength /= (8.0 * 65535.0)

			brightness := (float64(r1) + float64(g1) + float64(b1)) / (3.0 * 65535.0)

			saliencyMap[y][x] = d.config.ContrastWeight*edgeStrength + d.config.ColorWeight*brightness
		}
	}

	return saliencyMap
}

func calculateRegionScore(saliencyMap [][]float64, r image.Rectangle) float64 {
	var total float64
	count := 0

	for y := r.Min.Y; y < r.Max.Y && y < len(saliencyMap); y++ {
		for x := r.Min.X; x < r.Max.X && x < len(saliencyMap[y]); x++ {
			total += saliencyMap[y][x]
			count++
		}
	}

	if count == 0 {
		return math.Inf(1)
	}
	return total / float64(count)
}
