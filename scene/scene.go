// Package scene describes the drawable content of a single render request.
//
// A Scene is a flat list of items. Each item pairs a Shape with a paint
// (a solid color), a Style (fill with a fill rule, or stroke with a width)
// and an affine Transform. Scenes are mutable and meant to be reused: the
// owner calls Reset before populating it again.
package scene

import (
	"image/color"

	"github.com/go-gl/mathgl/mgl64"
)

// Point is a 2D point in scene coordinates (pixels, origin top-left).
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// FillRule determines which areas of a path are inside.
type FillRule byte

const (
	NonZero FillRule = iota
	EvenOdd
)

func (r FillRule) String() string {
	if r == EvenOdd {
		return "evenodd"
	}
	return "nonzero"
}

// Style is either a Fill or a Stroke.
type Style interface {
	isStyle()
}

// Fill paints the interior of a shape.
type Fill struct {
	Rule FillRule
}

// Stroke paints the outline of a shape with the given width.
type Stroke struct {
	Width float64
}

func (Fill) isStyle()   {}
func (Stroke) isStyle() {}

// Item is one drawn primitive.
type Item struct {
	Shape     Shape
	Style     Style
	Brush     color.NRGBA
	Transform mgl64.Mat3
}

// Scene is a reusable collection of drawn primitives.
// It is not safe for concurrent use.
type Scene struct {
	items []Item
}

// New returns an empty scene.
func New() *Scene {
	return &Scene{items: make([]Item, 0, 16)}
}

// Reset clears the scene, keeping its allocated capacity.
func (s *Scene) Reset() {
	clear(s.items)
	s.items = s.items[:0]
}

// Fill adds a filled shape.
func (s *Scene) Fill(rule FillRule, xf mgl64.Mat3, brush color.NRGBA, shape Shape) {
	s.items = append(s.items, Item{Shape: shape, Style: Fill{Rule: rule}, Brush: brush, Transform: xf})
}

// Stroke adds a stroked shape.
func (s *Scene) Stroke(width float64, xf mgl64.Mat3, brush color.NRGBA, shape Shape) {
	s.items = append(s.items, Item{Shape: shape, Style: Stroke{Width: width}, Brush: brush, Transform: xf})
}

// Items returns the scene's items in drawing order.
// The returned slice is only valid until the next mutation.
func (s *Scene) Items() []Item {
	return s.items
}

// Len returns the number of items in the scene.
func (s *Scene) Len() int {
	return len(s.items)
}
