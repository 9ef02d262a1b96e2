package composite

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register decoders for scanned pages and assets
	"image/png"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	"github.com/wudi/signkit/asset"
	"github.com/wudi/signkit/geo"
	"github.com/wudi/signkit/observability"
)

type loadedAsset struct {
	id  string
	img image.Image
}

type rasterComposer struct {
	resolver Resolver
	loader   Loader
	cfg      config
}

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Compose loads the base image and all signature assets, then flattens the
// placements in list order onto a copy of the base. Any load failure aborts
// the whole composition before a single pixel is drawn.
func (rc *rasterComposer) Compose(ctx context.Context, baseRef string, placements []asset.NormalizedPlacement) (*Result, error) {
	ctx, span := rc.cfg.tracer.StartSpan(ctx, "composite.Compose")
	defer span.Finish()
	span.SetTag(observability.MetricPlacementCount, len(placements))
	start := time.Now()

	baseData, err := rc.loader.Load(ctx, baseRef)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("%w: load base image %s: %w", ErrResourceLoad, baseRef, err)
	}
	base, err := decodeImage(baseData)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("%w: decode base image %s: %w", ErrResourceLoad, baseRef, err)
	}

	loadStart := time.Now()
	loaded, err := rc.loadAll(ctx, placements)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	rc.cfg.logger.Debug("signature assets loaded",
		observability.Int("count", len(loaded)),
		observability.Duration("elapsed", time.Since(loadStart)))

	bounds := base.Bounds()
	extent := geo.Extent{W: float64(bounds.Dx()), H: float64(bounds.Dy())}
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Draw(dst, dst.Bounds(), base, bounds.Min, xdraw.Src)

	for i, p := range placements {
		rect := geo.Denormalize(geo.NormRect{X: p.X, Y: p.Y, W: p.Width, H: p.Height}, extent)
		drawPlacement(dst, loaded[i].img, rect, p.Rotation)
	}

	if rc.cfg.stamp != "" {
		if err := drawStamp(dst, rc.cfg.stamp); err != nil {
			span.SetError(err)
			return nil, fmt.Errorf("composite: draw stamp: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("composite: encode: %w", err)
	}
	rc.cfg.logger.Info("composition flattened",
		observability.String("base", baseRef),
		observability.Int("placements", len(placements)),
		observability.Int("bytes", buf.Len()),
		observability.Duration("elapsed", time.Since(start)))
	return &Result{Data: buf.Bytes(), ContentType: "image/png"}, nil
}

// drawPlacement draws src scaled into rect and rotated about rect's center by
// the given degrees: translate the source to its own center, rotate, scale to
// the target size, then translate to the rect center. Later calls draw over
// earlier pixels.
func drawPlacement(dst *image.NRGBA, src image.Image, rect geo.Rect, rotation int) {
	sb := src.Bounds()
	sw, sh := float64(sb.Dx()), float64(sb.Dy())
	if sw == 0 || sh == 0 || rect.W <= 0 || rect.H <= 0 {
		return
	}
	center := rect.Center()
	m := geo.Translate(-sw/2, -sh/2).
		Mul(geo.Scale(rect.W/sw, rect.H/sh)).
		Mul(geo.Rotate(geo.Radians(float64(rotation)))).
		Mul(geo.Translate(center.X, center.Y))
	aff := f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}
	xdraw.CatmullRom.Transform(dst, aff, src, sb, xdraw.Over, nil)
}

// drawStamp renders the stamp text in the bottom-right corner with a small
// margin, dark gray so it reads on both light scans and photos.
func drawStamp(dst *image.NRGBA, text string) error {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return err
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: 14, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return err
	}
	defer face.Close()

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.NRGBA{R: 64, G: 64, B: 64, A: 255}),
		Face: face,
	}
	const margin = 8
	width := d.MeasureString(text)
	b := dst.Bounds()
	d.Dot = fixed.P(b.Max.X-margin, b.Max.Y-margin)
	d.Dot.X -= width
	d.DrawString(text)
	return nil
}
