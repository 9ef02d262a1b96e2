// Package geo is the geometry kernel shared by signature placement and
// composition: pixel rectangles, document extents, normalized (fractional)
// rectangles, and affine matrices. All rectangles use a top-left origin with
// y growing downward, matching screen coordinates.
package geo

import (
	"errors"
	"math"
)

// Point is a position in render pixels.
type Point struct{ X, Y float64 }

// Extent is the rendered pixel size of a document.
type Extent struct{ W, H float64 }

// IsValid reports whether both dimensions are positive.
func (e Extent) IsValid() bool { return e.W > 0 && e.H > 0 }

// Rect is an axis-aligned rectangle in render pixels.
type Rect struct {
	X, Y float64 // top-left corner
	W, H float64
}

// Center returns the rectangle's center point.
func (r Rect) Center() Point { return Point{X: r.X + r.W/2, Y: r.Y + r.H/2} }

// In reports whether r is fully contained in the extent.
func (r Rect) In(e Extent) bool {
	return r.X >= 0 && r.Y >= 0 && r.X+r.W <= e.W && r.Y+r.H <= e.H
}

// Translate returns r shifted by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, W: r.W, H: r.H}
}

// Clamp returns r with each axis independently moved back inside the extent,
// so that X ∈ [0, e.W−r.W] and Y ∈ [0, e.H−r.H]. Clamping an already
// contained rectangle is a no-op. Rectangles larger than the extent pin to
// the origin.
func Clamp(r Rect, e Extent) Rect {
	r.X = clampAxis(r.X, e.W-r.W)
	r.Y = clampAxis(r.Y, e.H-r.H)
	return r
}

func clampAxis(v, max float64) float64 {
	if max < 0 {
		max = 0
	}
	return math.Min(math.Max(v, 0), max)
}

// ClampSize returns r with width and height limited to the given ranges.
// The position is untouched.
func ClampSize(r Rect, minW, maxW, minH, maxH float64) Rect {
	r.W = math.Min(math.Max(r.W, minW), maxW)
	r.H = math.Min(math.Max(r.H, minH), maxH)
	return r
}

// NormRect is a rectangle expressed as fractions of a document extent, so
// that a placement re-renders identically at any zoom or device size.
type NormRect struct {
	X, Y float64 // fractions of extent width/height
	W, H float64
}

var ErrBadExtent = errors.New("extent dimensions must be positive")

// Normalize divides r by the extent, producing fractions in [0,1] for any
// contained rectangle.
func Normalize(r Rect, e Extent) (NormRect, error) {
	if !e.IsValid() {
		return NormRect{}, ErrBadExtent
	}
	return NormRect{X: r.X / e.W, Y: r.Y / e.H, W: r.W / e.W, H: r.H / e.H}, nil
}

// Denormalize multiplies n by the extent, recovering a pixel rectangle.
// Normalize followed by Denormalize with the same extent round-trips within
// floating-point tolerance.
func Denormalize(n NormRect, e Extent) Rect {
	return Rect{X: n.X * e.W, Y: n.Y * e.H, W: n.W * e.W, H: n.H * e.H}
}

// Matrix is a 2D affine transform [a b c d e f], mapping
// (x, y) -> (a*x + c*y + e, b*x + d*y + f).
type Matrix [6]float64

// Identity returns the identity transform.
func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

// Mul returns the transform that applies m first, then o.
func (m Matrix) Mul(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

// Apply transforms the point p.
func (m Matrix) Apply(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

// Translate returns a translation by (tx, ty).
func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }

// Scale returns a scale by (sx, sy) about the origin.
func Scale(sx, sy float64) Matrix { return Matrix{sx, 0, 0, sy, 0, 0} }

// Rotate returns a rotation by the given angle in radians. With a y-down
// coordinate system a positive angle rotates clockwise on screen.
func Rotate(angle float64) Matrix {
	c, s := math.Cos(angle), math.Sin(angle)
	return Matrix{c, s, -s, c, 0, 0}
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 { return deg * math.Pi / 180 }
