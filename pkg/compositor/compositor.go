// Package compositor draws caption watermarks onto images.
package compositor

import (
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/watermark/pkg/placement"
)

// Style holds the fixed look of a caption label.
type Style struct {
	// FontScale is the font size as a fraction of the image width.
	FontScale float64
	// MinFontSize keeps captions legible on small images.
	MinFontSize float64
	TextColor   color.NRGBA
	LabelColor  color.NRGBA
	// Padding is added around the text inside the label box.
	Padding int
}

// DefaultStyle is translucent white text on a translucent black label.
func DefaultStyle() Style {
	return Style{
		FontScale:   0.05,
		MinFontSize: 12,
		TextColor:   color.NRGBA{R: 255, G: 255, B: 255, A: 128},
		LabelColor:  color.NRGBA{R: 0, G: 0, B: 0, A: 128},
		Padding:     0,
	}
}

// Compositor renders captions with a fixed Style.
type Compositor struct {
	style Style
}

// New creates a Compositor with DefaultStyle
func New() *Compositor {
	return &Compositor{style: DefaultStyle()}
}

// NewWithStyle creates a Compositor with a custom style
func NewWithStyle(style Style) *Compositor {
	return &Compositor{style: style}
}

// Style returns the compositor's style
func (c *Compositor) Style() Style {
	return c.style
}

var defaultCompositor = New()

// Compose draws caption onto a copy of img using DefaultStyle.
func Compose(img image.Image, caption string, p placement.Placement) image.Image {
	return defaultCompositor.Compose(img, caption, p)
}

// Compose returns a new image of the same size as img with the caption label
// drawn at p. The input image is never modified. Labels that do not fit are
// drawn partially off the image rather than clamped.
func (c *Compositor) Compose(img image.Image, caption string, p placement.Placement) image.Image {
	dst := imaging.Clone(img)
	size := dst.Bounds().Size()
	if size.X <= 0 || size.Y <= 0 {
		return dst
	}
	if !p.Valid() {
		p = placement.Default
	}

	face := c.face(size.X)
	defer face.Close()

	text := measure(face, caption)
	box := c.boxSize(text)
	origin := p.Point(size, box)
	rect := image.Rectangle{Min: origin, Max: origin.Add(box)}

	draw.Draw(dst, rect, image.NewUniform(c.style.LabelColor), image.Point{}, draw.Over)

	ascent := face.Metrics().Ascent
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c.style.TextColor),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(origin.X + (box.X-text.X)/2),
			Y: fixed.I(origin.Y+(box.Y-text.Y)/2) + ascent,
		},
	}
	d.DrawString(caption)

	return dst
}

// MeasureCaption returns the label box size for caption on an image of the
// given width.
func (c *Compositor) MeasureCaption(caption string, imageWidth int) image.Point {
	face := c.face(imageWidth)
	defer face.Close()
	return c.boxSize(measure(face, caption))
}

// LabelRect returns where Compose would draw the label box.
func (c *Compositor) LabelRect(imageSize image.Point, caption string, p placement.Placement) image.Rectangle {
	return p.Rect(imageSize, c.MeasureCaption(caption, imageSize.X))
}

// FontSize returns the point size used for an image of the given width.
func (c *Compositor) FontSize(imageWidth int) float64 {
	size := c.style.FontScale * float64(imageWidth)
	return math.Max(size, c.style.MinFontSize)
}

func (c *Compositor) boxSize(text image.Point) image.Point {
	return image.Pt(text.X+2*c.style.Padding, text.Y+2*c.style.Padding)
}

// face builds a Go Regular face for the image width. If that fails the
// fixed 7x13 bitmap face is used so drawing never fails.
func (c *Compositor) face(imageWidth int) font.Face {
	f, err := regularFont()
	if err != nil {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    c.FontSize(imageWidth),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}

func measure(face font.Face, caption string) image.Point {
	m := face.Metrics()
	return image.Pt(font.MeasureString(face, caption).Ceil(), (m.Ascent + m.Descent).Ceil())
}

var (
	fontOnce   sync.Once
	goRegular  *opentype.Font
	goParseErr error
)

func regularFont() (*opentype.Font, error) {
	fontOnce.Do(func() {
		goRegular, goParseErr = opentype.Parse(goregular.TTF)
	})
	return goRegular, goParseErr
}
