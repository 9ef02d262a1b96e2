// Package capture implements the freehand signature canvas: pointer events
// accumulate strokes, and Encode rasterizes the committed drawing into a PNG
// with a transparent background. The canvas is a pure model; it never touches
// the network or storage, and platform gesture plumbing stays outside.
package capture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"

	"golang.org/x/image/vector"

	"github.com/wudi/signkit/geo"
)

// ErrEmptyDrawing is returned by Encode when no stroke has at least two
// points. Callers treat it as a validation failure, not an I/O error.
var ErrEmptyDrawing = errors.New("capture: empty drawing")

// ContentType of the encoded payload.
const ContentType = "image/png"

// Option configures a Canvas.
type Option func(*Canvas)

// WithStrokeColor sets the ink color. Default is black.
func WithStrokeColor(c color.Color) Option {
	return func(cv *Canvas) { cv.strokeColor = c }
}

// WithStrokeWidth sets the stroke width in pixels. Non-positive values are
// ignored. Default is 3.
func WithStrokeWidth(w float64) Option {
	return func(cv *Canvas) {
		if w > 0 {
			cv.strokeWidth = w
		}
	}
}

// Canvas records freehand strokes on a fixed-size drawing surface.
// It is not safe for concurrent use; gesture events arrive one at a time.
type Canvas struct {
	width, height int
	strokeColor   color.Color
	strokeWidth   float64

	strokes [][]geo.Point // committed strokes, in drawing order
	current []geo.Point   // accumulator for the in-progress stroke
	drawing bool
}

// New returns a canvas with the declared pixel size.
func New(width, height int, opts ...Option) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New("capture: canvas dimensions must be positive")
	}
	cv := &Canvas{
		width:       width,
		height:      height,
		strokeColor: color.Black,
		strokeWidth: 3,
	}
	for _, opt := range opts {
		opt(cv)
	}
	return cv, nil
}

// PointerDown starts a new stroke at p. An unfinished previous stroke is
// committed first, mirroring a second pointer landing before the first lifted.
func (cv *Canvas) PointerDown(p geo.Point) {
	if cv.drawing {
		cv.PointerUp()
	}
	cv.drawing = true
	cv.current = append(cv.current[:0], p)
}

// PointerMove appends a point to the in-progress stroke. Moves without a
// preceding PointerDown are dropped.
func (cv *Canvas) PointerMove(p geo.Point) {
	if !cv.drawing {
		return
	}
	cv.current = append(cv.current, p)
}

// PointerUp commits the in-progress stroke to the stroke list and clears the
// accumulator.
func (cv *Canvas) PointerUp() {
	if !cv.drawing {
		return
	}
	cv.drawing = false
	if len(cv.current) > 0 {
		stroke := make([]geo.Point, len(cv.current))
		copy(stroke, cv.current)
		cv.strokes = append(cv.strokes, stroke)
	}
	cv.current = cv.current[:0]
}

// Clear resets all strokes, committed and in-progress.
func (cv *Canvas) Clear() {
	cv.strokes = nil
	cv.current = cv.current[:0]
	cv.drawing = false
}

// StrokeCount returns the number of committed strokes.
func (cv *Canvas) StrokeCount() int { return len(cv.strokes) }

// HasInk reports whether Encode would produce output: at least one committed
// or in-progress stroke with two or more points. Single-point strokes are
// dots a stroked path cannot represent and do not count.
func (cv *Canvas) HasInk() bool {
	for _, s := range cv.strokes {
		if len(s) >= 2 {
			return true
		}
	}
	return len(cv.current) >= 2
}

// Encode rasterizes the drawing into a PNG of the canvas's declared size with
// a transparent background and returns the encoded bytes plus content type.
// The in-progress stroke is included. Encode is a pure function of canvas
// state: it performs no I/O and leaves the strokes untouched.
func (cv *Canvas) Encode() ([]byte, string, error) {
	if !cv.HasInk() {
		return nil, "", ErrEmptyDrawing
	}

	z := vector.NewRasterizer(cv.width, cv.height)
	for _, stroke := range cv.strokes {
		strokePath(z, stroke, cv.strokeWidth)
	}
	strokePath(z, cv.current, cv.strokeWidth)

	dst := image.NewNRGBA(image.Rect(0, 0, cv.width, cv.height))
	z.Draw(dst, dst.Bounds(), image.NewUniform(cv.strokeColor), image.Point{})

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), ContentType, nil
}

// strokePath adds the filled outline of a polyline stroke to the rasterizer:
// one quad per segment plus a rounded cap at every point so joints have no
// gaps. Strokes with fewer than two points produce an empty path.
func strokePath(z *vector.Rasterizer, pts []geo.Point, width float64) {
	if len(pts) < 2 {
		return
	}
	half := width / 2
	for i := 0; i+1 < len(pts); i++ {
		p0, p1 := pts[i], pts[i+1]
		dx, dy := p1.X-p0.X, p1.Y-p0.Y
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		// Unit normal scaled to half the stroke width.
		nx, ny := -dy/length*half, dx/length*half
		z.MoveTo(float32(p0.X+nx), float32(p0.Y+ny))
		z.LineTo(float32(p1.X+nx), float32(p1.Y+ny))
		z.LineTo(float32(p1.X-nx), float32(p1.Y-ny))
		z.LineTo(float32(p0.X-nx), float32(p0.Y-ny))
		z.ClosePath()
	}
	for _, p := range pts {
		capDot(z, p, half)
	}
}

// capDot adds an octagonal dot of radius r centered at p. The vertices are
// wound in the same direction as the segment quads: the rasterizer sums
// signed coverage, so an opposite winding would cancel where dot and quad
// overlap.
func capDot(z *vector.Rasterizer, p geo.Point, r float64) {
	if r <= 0 {
		return
	}
	const sides = 8
	for i := sides; i >= 0; i-- {
		a := 2 * math.Pi * float64(i) / sides
		x := float32(p.X + r*math.Cos(a))
		y := float32(p.Y + r*math.Sin(a))
		if i == 0 {
			z.MoveTo(x, y)
		} else {
			z.LineTo(x, y)
		}
	}
	z.ClosePath()
}
