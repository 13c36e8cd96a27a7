package scene

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Identity is the identity affine transform.
var Identity = mgl64.Ident3()

// Translate returns a translation transform.
func Translate(x, y float64) mgl64.Mat3 {
	return mgl64.Translate2D(x, y)
}

// Rotate returns a rotation about the origin by angle radians.
func Rotate(angle float64) mgl64.Mat3 {
	return mgl64.HomogRotate2D(angle)
}

// Scale returns a scaling transform.
func Scale(sx, sy float64) mgl64.Mat3 {
	return mgl64.Scale2D(sx, sy)
}

// Affine returns the six coefficients of the 2D affine part of m,
// such that x' = a*x + b*y + c and y' = d*x + e*y + f.
// mgl64 matrices are column-major.
func Affine(m mgl64.Mat3) (a, b, c, d, e, f float64) {
	return m[0], m[3], m[6], m[1], m[4], m[7]
}

// Apply transforms p by m.
func Apply(m mgl64.Mat3, p Point) Point {
	v := m.Mul3x1(mgl64.Vec3{p.X, p.Y, 1})
	return Point{X: v[0], Y: v[1]}
}
