// Package placement maps caption positions to anchor points on an image.
package placement

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

// Margin is the distance in pixels between the label box and the image
// edges it is anchored to.
const Margin = 20

// ErrUnknownPlacement is returned by Parse for names it does not recognise.
var ErrUnknownPlacement = errors.New("unknown placement")

// Placement is one of the five fixed caption positions.
type Placement int

const (
	TopLeft Placement = iota
	TopRight
	BottomLeft
	BottomRight
	Center
)

// Default is the placement a fresh session starts with.
const Default = BottomRight

// Alignment is the layout alignment used when previewing a placement.
type Alignment int

const (
	TopLeading Alignment = iota
	TopTrailing
	BottomLeading
	BottomTrailing
	Centered
)

var names = map[Placement]string{
	TopLeft:     "top-left",
	TopRight:    "top-right",
	BottomLeft:  "bottom-left",
	BottomRight: "bottom-right",
	Center:      "center",
}

var alignmentNames = map[Alignment]string{
	TopLeading:     "top-leading",
	TopTrailing:    "top-trailing",
	BottomLeading:  "bottom-leading",
	BottomTrailing: "bottom-trailing",
	Centered:       "center",
}

// All returns the placements in selector order.
func All() []Placement {
	return []Placement{TopLeft, TopRight, BottomLeft, BottomRight, Center}
}

// Valid reports whether p is one of the five placements.
func (p Placement) Valid() bool {
	_, ok := names[p]
	return ok
}

func (p Placement) String() string {
	if name, ok := names[p]; ok {
		return name
	}
	return fmt.Sprintf("placement(%d)", int(p))
}

// Point returns the top-left corner of a label box of size textSize placed
// on an image of size imageSize. Boxes larger than the image produce
// negative coordinates; nothing is clamped.
func (p Placement) Point(imageSize, textSize image.Point) image.Point {
	left := Margin
	right := imageSize.X - textSize.X - Margin
	top := Margin
	bottom := imageSize.Y - textSize.Y - Margin

	switch p {
	case TopLeft:
		return image.Pt(left, top)
	case TopRight:
		return image.Pt(right, top)
	case BottomLeft:
		return image.Pt(left, bottom)
	case BottomRight:
		return image.Pt(right, bottom)
	case Center:
		return image.Pt((imageSize.X-textSize.X)/2, (imageSize.Y-textSize.Y)/2)
	default:
		panic(fmt.Sprintf("placement: invalid value %d", int(p)))
	}
}

// Rect returns the label rectangle for p, i.e. Point extended by textSize.
func (p Placement) Rect(imageSize, textSize image.Point) image.Rectangle {
	min := p.Point(imageSize, textSize)
	return image.Rectangle{Min: min, Max: min.Add(textSize)}
}

// Alignment returns the preview alignment matching p.
func (p Placement) Alignment() Alignment {
	switch p {
	case TopLeft:
		return TopLeading
	case TopRight:
		return TopTrailing
	case BottomLeft:
		return BottomLeading
	case BottomRight:
		return BottomTrailing
	default:
		return Centered
	}
}

func (a Alignment) String() string {
	if name, ok := alignmentNames[a]; ok {
		return name
	}
	return fmt.Sprintf("alignment(%d)", int(a))
}

// Parse converts a name such as "bottom-right", "bottomRight" or
// "BOTTOM_RIGHT" into a Placement.
func Parse(s string) (Placement, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)

	for p, name := range names {
		if strings.ReplaceAll(name, "-", "") == key {
			return p, nil
		}
	}
	return Default, fmt.Errorf("%w: %q", ErrUnknownPlacement, s)
}

// MarshalText implements encoding.TextMarshaler so placements read well in
// JSON and YAML configuration files.
func (p Placement) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPlacement, int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Placement) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
