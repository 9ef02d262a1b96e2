package composite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/wudi/signkit/asset"
	"github.com/wudi/signkit/gateway"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func solidPNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return encodePNG(t, img)
}

type mapResolver map[string][]byte

func (m mapResolver) Resolve(_ context.Context, id string) (*asset.SignatureAsset, error) {
	payload, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("signature %s: %w", id, gateway.ErrNotFound)
	}
	return &asset.SignatureAsset{ID: id, Payload: payload}, nil
}

type countingLoader struct {
	data  map[string][]byte
	calls int
}

func (l *countingLoader) Load(_ context.Context, ref string) ([]byte, error) {
	l.calls++
	data, ok := l.data[ref]
	if !ok {
		return nil, fmt.Errorf("ref %s: %w", ref, gateway.ErrNotFound)
	}
	return data, nil
}

var (
	red   = color.NRGBA{R: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

func pixelAt(t *testing.T, data []byte, x, y int) color.NRGBA {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode composed png: %v", err)
	}
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func TestComposeLastPlacementWinsOnOverlap(t *testing.T) {
	base := solidPNG(t, 200, 100, white)
	loader := &countingLoader{data: map[string][]byte{"doc.png": base}}
	resolver := mapResolver{
		"sig-a": solidPNG(t, 10, 10, red),
		"sig-b": solidPNG(t, 10, 10, blue),
	}
	c, err := New(resolver, loader)
	if err != nil {
		t.Fatalf("new composer: %v", err)
	}
	placements := []asset.NormalizedPlacement{
		{SignatureID: "sig-a", X: 0.1, Y: 0.1, Width: 0.5, Height: 0.5},
		{SignatureID: "sig-b", X: 0.3, Y: 0.3, Width: 0.5, Height: 0.5},
	}
	res, err := c.Compose(context.Background(), "doc.png", placements)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if res.Passthrough {
		t.Fatal("raster composer must not signal passthrough")
	}
	if res.ContentType != "image/png" {
		t.Fatalf("content type = %q", res.ContentType)
	}
	// A covers (20,10)-(120,60), B covers (60,30)-(160,80); in the overlap
	// only B's pixels survive.
	if got := pixelAt(t, res.Data, 90, 45); got != blue {
		t.Fatalf("overlap pixel = %+v, want blue", got)
	}
	if got := pixelAt(t, res.Data, 30, 20); got != red {
		t.Fatalf("A-only pixel = %+v, want red", got)
	}
	if got := pixelAt(t, res.Data, 180, 90); got != white {
		t.Fatalf("background pixel = %+v, want white", got)
	}
}

func TestComposeRotatesAboutPlacementCenter(t *testing.T) {
	base := solidPNG(t, 100, 100, white)
	loader := &countingLoader{data: map[string][]byte{"doc.png": base}}

	// Left half red, right half blue.
	sig := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			if x < 10 {
				sig.SetNRGBA(x, y, red)
			} else {
				sig.SetNRGBA(x, y, blue)
			}
		}
	}
	resolver := mapResolver{"sig": encodePNG(t, sig)}
	c, err := New(resolver, loader)
	if err != nil {
		t.Fatalf("new composer: %v", err)
	}
	placements := []asset.NormalizedPlacement{
		{SignatureID: "sig", X: 0.25, Y: 0.25, Width: 0.5, Height: 0.5, Rotation: 180},
	}
	res, err := c.Compose(context.Background(), "doc.png", placements)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	// Placement rect is (25,25)-(75,75), center (50,50). After a half turn
	// the red half lands on the right.
	if got := pixelAt(t, res.Data, 65, 50); got != red {
		t.Fatalf("right-of-center pixel = %+v, want red after 180 turn", got)
	}
	if got := pixelAt(t, res.Data, 35, 50); got != blue {
		t.Fatalf("left-of-center pixel = %+v, want blue after 180 turn", got)
	}
}

func TestComposeSingleAssetFailureAbortsEverything(t *testing.T) {
	base := solidPNG(t, 100, 100, white)
	loader := &countingLoader{data: map[string][]byte{"doc.png": base}}
	resolver := mapResolver{
		"sig-a": solidPNG(t, 10, 10, red),
		"sig-c": solidPNG(t, 10, 10, blue),
	}
	c, err := New(resolver, loader)
	if err != nil {
		t.Fatalf("new composer: %v", err)
	}
	placements := []asset.NormalizedPlacement{
		{SignatureID: "sig-a", X: 0.1, Y: 0.1, Width: 0.2, Height: 0.2},
		{SignatureID: "sig-missing", X: 0.3, Y: 0.3, Width: 0.2, Height: 0.2},
		{SignatureID: "sig-c", X: 0.5, Y: 0.5, Width: 0.2, Height: 0.2},
	}
	res, err := c.Compose(context.Background(), "doc.png", placements)
	if res != nil {
		t.Fatalf("expected no result, got %+v", res)
	}
	if !errors.Is(err, ErrResourceLoad) {
		t.Fatalf("expected ErrResourceLoad, got %v", err)
	}
	if !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("resolver cause should survive wrapping, got %v", err)
	}
}

func TestComposeUndecodableAssetFailsLoad(t *testing.T) {
	base := solidPNG(t, 100, 100, white)
	loader := &countingLoader{data: map[string][]byte{"doc.png": base}}
	resolver := mapResolver{"sig": []byte("not a png")}
	c, _ := New(resolver, loader)
	_, err := c.Compose(context.Background(), "doc.png", []asset.NormalizedPlacement{
		{SignatureID: "sig", X: 0.1, Y: 0.1, Width: 0.2, Height: 0.2},
	})
	if !errors.Is(err, ErrResourceLoad) {
		t.Fatalf("expected ErrResourceLoad, got %v", err)
	}
}

func TestComposeBaseImageFailureIsFatal(t *testing.T) {
	loader := &countingLoader{data: map[string][]byte{}}
	c, _ := New(mapResolver{}, loader)
	_, err := c.Compose(context.Background(), "missing.png", nil)
	if !errors.Is(err, ErrResourceLoad) {
		t.Fatalf("expected ErrResourceLoad, got %v", err)
	}
}

func TestComposeWithStampDrawsText(t *testing.T) {
	base := solidPNG(t, 300, 120, white)
	loader := &countingLoader{data: map[string][]byte{"doc.png": base}}
	resolver := mapResolver{"sig": solidPNG(t, 10, 10, red)}
	c, err := New(resolver, loader, WithStamp("Signed 2026-08-23"))
	if err != nil {
		t.Fatalf("new composer: %v", err)
	}
	res, err := c.Compose(context.Background(), "doc.png", []asset.NormalizedPlacement{
		{SignatureID: "sig", X: 0.05, Y: 0.05, Width: 0.3, Height: 0.3},
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// Some pixel in the bottom-right quadrant must be darkened by the stamp.
	b := img.Bounds()
	darkened := false
	for y := b.Max.Y / 2; y < b.Max.Y && !darkened; y++ {
		for x := b.Max.X / 2; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c != white {
				darkened = true
				break
			}
		}
	}
	if !darkened {
		t.Fatal("stamp left no mark in the bottom-right quadrant")
	}
}

func TestPassthroughComposerTouchesNothing(t *testing.T) {
	loader := &countingLoader{}
	resolver := mapResolver{}
	c, err := New(resolver, loader, WithRasterization(false))
	if err != nil {
		t.Fatalf("new composer: %v", err)
	}
	res, err := c.Compose(context.Background(), "doc.png", []asset.NormalizedPlacement{
		{SignatureID: "sig", X: 0.1, Y: 0.1, Width: 0.2, Height: 0.2},
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if !res.Passthrough {
		t.Fatal("expected passthrough signal")
	}
	if len(res.Data) != 0 {
		t.Fatal("passthrough must carry no image data")
	}
	if loader.calls != 0 {
		t.Fatalf("passthrough loaded %d refs", loader.calls)
	}
}
