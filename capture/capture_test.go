package capture

import (
	"bytes"
	"errors"
	"image/png"
	"testing"

	"github.com/wudi/signkit/geo"
)

func TestEncodeEmptyCanvasIsRejected(t *testing.T) {
	cv, err := New(400, 200)
	if err != nil {
		t.Fatalf("new canvas: %v", err)
	}
	if _, _, err := cv.Encode(); !errors.Is(err, ErrEmptyDrawing) {
		t.Fatalf("expected ErrEmptyDrawing, got %v", err)
	}
}

func TestSinglePointStrokesDoNotCount(t *testing.T) {
	cv, _ := New(400, 200)
	cv.PointerDown(geo.Point{X: 50, Y: 50})
	cv.PointerUp()
	cv.PointerDown(geo.Point{X: 90, Y: 90})
	cv.PointerUp()
	if cv.StrokeCount() != 2 {
		t.Fatalf("expected 2 committed strokes, got %d", cv.StrokeCount())
	}
	if cv.HasInk() {
		t.Fatal("single-point strokes must not count as ink")
	}
	if _, _, err := cv.Encode(); !errors.Is(err, ErrEmptyDrawing) {
		t.Fatalf("expected ErrEmptyDrawing, got %v", err)
	}
}

func TestEncodeProducesDecodablePNGOfDeclaredSize(t *testing.T) {
	cv, _ := New(400, 200, WithStrokeWidth(4))
	cv.PointerDown(geo.Point{X: 20, Y: 100})
	for x := 30.0; x <= 380; x += 10 {
		cv.PointerMove(geo.Point{X: x, Y: 100})
	}
	cv.PointerUp()

	data, ct, err := cv.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if ct != ContentType {
		t.Fatalf("content type = %q, want %q", ct, ContentType)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 200 {
		t.Fatalf("bounds = %v, want 400x200", b)
	}
	// Ink along the stroke, transparency off it.
	if _, _, _, a := img.At(200, 100).RGBA(); a == 0 {
		t.Fatal("expected ink at stroke midpoint")
	}
	if _, _, _, a := img.At(200, 20).RGBA(); a != 0 {
		t.Fatal("expected transparent background away from stroke")
	}
}

func TestStrokeJointsAreFullyOpaque(t *testing.T) {
	cv, _ := New(100, 100, WithStrokeWidth(6))
	cv.PointerDown(geo.Point{X: 10, Y: 10})
	cv.PointerMove(geo.Point{X: 50, Y: 50})
	cv.PointerMove(geo.Point{X: 90, Y: 10})
	cv.PointerUp()

	data, _, err := cv.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	// Every sample point is covered by a cap dot and its adjoining segment
	// quads; overlapping coverage must add up, not cancel into a hole.
	for _, p := range []geo.Point{{X: 10, Y: 10}, {X: 50, Y: 50}, {X: 90, Y: 10}} {
		if _, _, _, a := img.At(int(p.X), int(p.Y)).RGBA(); a < 0xc000 {
			t.Fatalf("alpha at joint (%v,%v) = %#x, want opaque ink", p.X, p.Y, a)
		}
	}
}

func TestInProgressStrokeIsIncluded(t *testing.T) {
	cv, _ := New(100, 100)
	cv.PointerDown(geo.Point{X: 10, Y: 50})
	cv.PointerMove(geo.Point{X: 90, Y: 50})
	// No PointerUp: the accumulator still qualifies.
	if !cv.HasInk() {
		t.Fatal("in-progress stroke with 2 points should count")
	}
	data, _, err := cv.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if _, _, _, a := img.At(50, 50).RGBA(); a == 0 {
		t.Fatal("expected ink from in-progress stroke")
	}
}

func TestClearResetsEverything(t *testing.T) {
	cv, _ := New(100, 100)
	cv.PointerDown(geo.Point{X: 10, Y: 10})
	cv.PointerMove(geo.Point{X: 20, Y: 20})
	cv.PointerUp()
	cv.PointerDown(geo.Point{X: 30, Y: 30})
	cv.PointerMove(geo.Point{X: 40, Y: 40})
	cv.Clear()
	if cv.StrokeCount() != 0 || cv.HasInk() {
		t.Fatalf("clear left state behind: strokes=%d ink=%v", cv.StrokeCount(), cv.HasInk())
	}
}

func TestPointerMoveWithoutDownIsDropped(t *testing.T) {
	cv, _ := New(100, 100)
	cv.PointerMove(geo.Point{X: 10, Y: 10})
	cv.PointerMove(geo.Point{X: 20, Y: 20})
	if cv.HasInk() {
		t.Fatal("moves without a pointer down must not draw")
	}
}

func TestEncodeLeavesStrokesUntouched(t *testing.T) {
	cv, _ := New(100, 100)
	cv.PointerDown(geo.Point{X: 10, Y: 10})
	cv.PointerMove(geo.Point{X: 90, Y: 90})
	cv.PointerUp()
	first, _, err := cv.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	second, _, err := cv.Encode()
	if err != nil {
		t.Fatalf("second encode: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("encode should be deterministic for unchanged state")
	}
}
