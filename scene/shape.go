package scene

// Shape is one of the geometric primitives a Scene can hold.
type Shape interface {
	isShape()
}

// Rect is an axis-aligned rectangle from (X0,Y0) to (X1,Y1).
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// RoundedRect is a rectangle with circular corners of the given radius.
type RoundedRect struct {
	Rect
	Radius float64
}

// Circle is centered at Center.
type Circle struct {
	Center Point
	Radius float64
}

// Ellipse is centered at Center with radii Radii.X and Radii.Y,
// rotated by Rotation radians about its center.
type Ellipse struct {
	Center   Point
	Radii    Point
	Rotation float64
}

// Line is a straight segment from P0 to P1. It only makes sense stroked.
type Line struct {
	P0, P1 Point
}

// Verb identifies a path element.
type Verb byte

const (
	MoveTo Verb = iota
	LineTo
	QuadTo
	CubicTo
	Close
)

// PathEl is a single path element. MoveTo and LineTo use Pts[0],
// QuadTo uses Pts[0..1] and CubicTo uses Pts[0..2].
type PathEl struct {
	Verb Verb
	Pts  [3]Point
}

// Path is a sequence of path elements.
type Path []PathEl

func (Rect) isShape()        {}
func (RoundedRect) isShape() {}
func (Circle) isShape()      {}
func (Ellipse) isShape()     {}
func (Line) isShape()        {}
func (Path) isShape()        {}

// NewRoundedRect returns a rounded rectangle from (x0,y0) to (x1,y1).
func NewRoundedRect(x0, y0, x1, y1, radius float64) RoundedRect {
	return RoundedRect{Rect: Rect{X0: x0, Y0: y0, X1: x1, Y1: y1}, Radius: radius}
}

// Width returns the rectangle width.
func (r Rect) Width() float64 { return r.X1 - r.X0 }

// Height returns the rectangle height.
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// MoveTo starts a new subpath at p.
func (p *Path) MoveTo(x, y float64) {
	*p = append(*p, PathEl{Verb: MoveTo, Pts: [3]Point{Pt(x, y)}})
}

// LineTo adds a straight segment to (x,y).
func (p *Path) LineTo(x, y float64) {
	*p = append(*p, PathEl{Verb: LineTo, Pts: [3]Point{Pt(x, y)}})
}

// QuadTo adds a quadratic Bézier segment.
func (p *Path) QuadTo(cx, cy, x, y float64) {
	*p = append(*p, PathEl{Verb: QuadTo, Pts: [3]Point{Pt(cx, cy), Pt(x, y)}})
}

// CubicTo adds a cubic Bézier segment.
func (p *Path) CubicTo(c1x, c1y, c2x, c2y, x, y float64) {
	*p = append(*p, PathEl{Verb: CubicTo, Pts: [3]Point{Pt(c1x, c1y), Pt(c2x, c2y), Pt(x, y)}})
}

// ClosePath closes the current subpath.
func (p *Path) ClosePath() {
	*p = append(*p, PathEl{Verb: Close})
}
