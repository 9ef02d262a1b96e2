// Package composite flattens a finalized placement list onto a base document
// image. The raster strategy loads every signature asset concurrently, then
// draws them in placement order so later placements win on overlap. Platforms
// without a rasterizing surface use the passthrough strategy instead, which
// leaves visual composition to render time; persisting the normalized
// placements is the caller's job in both modes.
package composite

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wudi/signkit/asset"
	"github.com/wudi/signkit/observability"
)

// ErrResourceLoad marks a failed load or decode of the base image or any
// signature asset. The failure policy is all-or-nothing: one bad asset aborts
// the whole composition and already-loaded rasters are discarded.
var ErrResourceLoad = errors.New("composite: resource load failure")

// Resolver maps a signature id to its stored asset.
type Resolver interface {
	Resolve(ctx context.Context, signatureID string) (*asset.SignatureAsset, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, signatureID string) (*asset.SignatureAsset, error)

func (f ResolverFunc) Resolve(ctx context.Context, signatureID string) (*asset.SignatureAsset, error) {
	return f(ctx, signatureID)
}

// Loader fetches the encoded bytes behind an image reference (a storage key,
// URL, or file path, depending on the host).
type Loader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, ref string) ([]byte, error)

func (f LoaderFunc) Load(ctx context.Context, ref string) ([]byte, error) { return f(ctx, ref) }

// Result is the outcome of a composition. Passthrough results carry no bytes:
// the original reference image stands unchanged and the placement list alone
// describes the overlay.
type Result struct {
	Data        []byte
	ContentType string
	Passthrough bool
}

// Composer turns a base image reference and an ordered placement list into a
// flattened signed image, or a passthrough signal.
type Composer interface {
	Compose(ctx context.Context, baseRef string, placements []asset.NormalizedPlacement) (*Result, error)
}

type config struct {
	rasterize bool
	stamp     string
	logger    observability.Logger
	tracer    observability.Tracer
}

// Option configures a Composer.
type Option func(*config)

// WithRasterization selects the flattening strategy at construction time.
// When disabled the composer is a passthrough: Compose never loads images and
// always signals passthrough. Default is enabled.
func WithRasterization(enabled bool) Option {
	return func(c *config) { c.rasterize = enabled }
}

// WithStamp draws the given text in the bottom-right corner of the flattened
// image, e.g. a signer name and date. Empty text disables the stamp. The
// passthrough strategy ignores it.
func WithStamp(text string) Option {
	return func(c *config) { c.stamp = text }
}

// WithLogger attaches a structured logger.
func WithLogger(l observability.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracer attaches a tracer for compose spans.
func WithTracer(tr observability.Tracer) Option {
	return func(c *config) {
		if tr != nil {
			c.tracer = tr
		}
	}
}

// New builds a Composer over the given resolver and image loader.
func New(resolver Resolver, loader Loader, opts ...Option) (Composer, error) {
	if resolver == nil {
		return nil, errors.New("composite: resolver is required")
	}
	if loader == nil {
		return nil, errors.New("composite: loader is required")
	}
	cfg := config{
		rasterize: true,
		logger:    observability.NopLogger{},
		tracer:    observability.NopTracer(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.rasterize {
		return passthrough{}, nil
	}
	return &rasterComposer{resolver: resolver, loader: loader, cfg: cfg}, nil
}

// passthrough signals that flattening is unsupported. This is a contract, not
// a failure path: the caller persists the placements so a capable renderer
// reconstructs the overlay later.
type passthrough struct{}

func (passthrough) Compose(context.Context, string, []asset.NormalizedPlacement) (*Result, error) {
	return &Result{Passthrough: true}, nil
}

// loadAll resolves and decodes every placement's asset concurrently. Loads
// are unordered relative to each other; results land at their placement index
// so draw order stays deterministic. The first failure (by placement index)
// is returned and everything loaded so far is discarded.
func (rc *rasterComposer) loadAll(ctx context.Context, placements []asset.NormalizedPlacement) ([]loadedAsset, error) {
	loaded := make([]loadedAsset, len(placements))
	errs := make([]error, len(placements))
	var wg sync.WaitGroup
	for i, p := range placements {
		wg.Add(1)
		go func(i int, signatureID string) {
			defer wg.Done()
			loaded[i], errs[i] = rc.loadOne(ctx, signatureID)
		}(i, p.SignatureID)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return loaded, nil
}

func (rc *rasterComposer) loadOne(ctx context.Context, signatureID string) (loadedAsset, error) {
	a, err := rc.resolver.Resolve(ctx, signatureID)
	if err != nil {
		return loadedAsset{}, fmt.Errorf("%w: resolve signature %s: %w", ErrResourceLoad, signatureID, err)
	}
	img, err := decodeImage(a.Payload)
	if err != nil {
		return loadedAsset{}, fmt.Errorf("%w: decode signature %s: %w", ErrResourceLoad, signatureID, err)
	}
	return loadedAsset{id: signatureID, img: img}, nil
}
