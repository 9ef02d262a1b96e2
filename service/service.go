// Package service wires the signing pipeline together: placement sessions on
// top, then composition, blob upload, and the persistence gateway underneath.
// Hosts construct one Signing service per deployment and open a session per
// document being signed.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wudi/signkit/asset"
	"github.com/wudi/signkit/capture"
	"github.com/wudi/signkit/composite"
	"github.com/wudi/signkit/gateway"
	"github.com/wudi/signkit/geo"
	"github.com/wudi/signkit/observability"
	"github.com/wudi/signkit/session"
)

// BlobStore uploads encoded images. store/s3blob satisfies it.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Option configures the service.
type Option func(*Signing)

// WithLogger attaches a structured logger.
func WithLogger(l observability.Logger) Option {
	return func(s *Signing) {
		if l != nil {
			s.log = l
		}
	}
}

// WithTracer attaches a tracer.
func WithTracer(tr observability.Tracer) Option {
	return func(s *Signing) {
		if tr != nil {
			s.tracer = tr
		}
	}
}

// WithRasterization selects flatten vs passthrough composition for every
// save. Hosts without a rasterizing surface disable it; placements are then
// persisted without a composed image.
func WithRasterization(enabled bool) Option {
	return func(s *Signing) { s.rasterize = enabled }
}

// WithStamp enables an audit stamp ("Signed <date>") on flattened images.
func WithStamp(enabled bool) Option {
	return func(s *Signing) { s.stamp = enabled }
}

// WithClock overrides the time source used for the stamp text.
func WithClock(now func() time.Time) Option {
	return func(s *Signing) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSignedImageKey overrides how storage keys for composed images are
// generated.
func WithSignedImageKey(f func(ownerID string) string) Option {
	return func(s *Signing) {
		if f != nil {
			s.signedKey = f
		}
	}
}

// Signing orchestrates document signing end to end.
type Signing struct {
	gw        gateway.Gateway
	blobs     BlobStore
	loader    composite.Loader
	rasterize bool
	stamp     bool
	now       func() time.Time
	signedKey func(ownerID string) string
	log       observability.Logger
	tracer    observability.Tracer
}

// New builds the service. The loader fetches base images by reference (the
// blob store usually doubles as it). A blob store is required unless
// rasterization is disabled.
func New(gw gateway.Gateway, blobs BlobStore, loader composite.Loader, opts ...Option) (*Signing, error) {
	if gw == nil {
		return nil, errors.New("service: gateway is required")
	}
	s := &Signing{
		gw:        gw,
		blobs:     blobs,
		loader:    loader,
		rasterize: true,
		now:       time.Now,
		log:       observability.NopLogger{},
		tracer:    observability.NopTracer(),
		signedKey: func(ownerID string) string {
			return fmt.Sprintf("users/%s/signed/%s.png", ownerID, uuid.NewString())
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rasterize {
		if s.blobs == nil {
			return nil, errors.New("service: blob store is required when rasterization is enabled")
		}
		if s.loader == nil {
			return nil, errors.New("service: image loader is required when rasterization is enabled")
		}
	}
	return s, nil
}

// NewSession opens a placement session for a document rendered at the given
// extent. The returned session's Save runs the full sign pipeline.
func (s *Signing) NewSession(ctx context.Context, documentID, ownerID string, extent geo.Extent) (*session.Session, error) {
	if _, err := s.gw.GetDocument(ctx, documentID, ownerID); err != nil {
		return nil, err
	}
	saver := session.SaverFunc(func(ctx context.Context, placements []asset.NormalizedPlacement) (*asset.SignedDocument, error) {
		return s.SignDocument(ctx, documentID, ownerID, placements)
	})
	return session.New(extent, saver)
}

// SignDocument composes the placements onto the document's image, uploads the
// flattened result, and persists the signed state. Placements outside the
// normalized contract fail validation up front. Composition failures abort
// before any storage write; upload failures discard the composed bytes and
// leave the document unmodified.
func (s *Signing) SignDocument(ctx context.Context, documentID, ownerID string, placements []asset.NormalizedPlacement) (*asset.SignedDocument, error) {
	ctx, span := s.tracer.StartSpan(ctx, "service.SignDocument")
	defer span.Finish()
	start := time.Now()

	if len(placements) == 0 {
		return nil, fmt.Errorf("service: no placements: %w", gateway.ErrValidation)
	}
	for i, p := range placements {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("service: placement %d: %w: %w", i, gateway.ErrValidation, err)
		}
	}
	doc, err := s.gw.GetDocument(ctx, documentID, ownerID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	resolver := composite.ResolverFunc(func(ctx context.Context, signatureID string) (*asset.SignatureAsset, error) {
		return s.gw.GetSignatureAsset(ctx, signatureID, ownerID)
	})
	compOpts := []composite.Option{
		composite.WithRasterization(s.rasterize),
		composite.WithLogger(s.log),
		composite.WithTracer(s.tracer),
	}
	if s.stamp {
		compOpts = append(compOpts, composite.WithStamp("Signed "+s.now().Format("2006-01-02")))
	}
	comp, err := composite.New(resolver, s.loaderOrNop(), compOpts...)
	if err != nil {
		return nil, err
	}
	res, err := comp.Compose(ctx, doc.ImageRef, placements)
	if err != nil {
		span.SetError(err)
		s.log.Error("composition failed",
			observability.String("document", documentID),
			observability.Error("err", err))
		return nil, err
	}

	var signedRef *string
	if !res.Passthrough {
		key := s.signedKey(ownerID)
		if err := s.blobs.Put(ctx, key, res.Data, res.ContentType); err != nil {
			span.SetError(err)
			s.log.Error("signed image upload failed",
				observability.String("document", documentID),
				observability.Error("err", err))
			return nil, err
		}
		signedRef = &key
	}

	signed, err := s.gw.StoreSignedDocument(ctx, documentID, ownerID, signedRef, placements)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	s.log.Info("document signed",
		observability.String("document", documentID),
		observability.Int("placements", len(placements)),
		observability.Duration("elapsed", time.Since(start)))
	return signed, nil
}

// loaderOrNop keeps composite.New happy in passthrough mode, where no load
// ever happens.
func (s *Signing) loaderOrNop() composite.Loader {
	if s.loader != nil {
		return s.loader
	}
	return composite.LoaderFunc(func(context.Context, string) ([]byte, error) {
		return nil, errors.New("service: no image loader configured")
	})
}

// ClearSignature removes a document's signed state.
func (s *Signing) ClearSignature(ctx context.Context, documentID, ownerID string) (*asset.Document, error) {
	doc, err := s.gw.ClearSignature(ctx, documentID, ownerID)
	if err != nil {
		return nil, err
	}
	s.log.Info("signature cleared", observability.String("document", documentID))
	return doc, nil
}

// SaveCapturedSignature encodes the canvas and stores it as a named signature
// asset. An empty drawing is a validation failure and nothing is stored.
func (s *Signing) SaveCapturedSignature(ctx context.Context, ownerID, name string, canvas *capture.Canvas) (*asset.SignatureAsset, error) {
	payload, _, err := canvas.Encode()
	if err != nil {
		if errors.Is(err, capture.ErrEmptyDrawing) {
			return nil, fmt.Errorf("%w: %w", gateway.ErrValidation, err)
		}
		return nil, err
	}
	return s.gw.CreateSignatureAsset(ctx, ownerID, name, payload)
}

// ListSignatures returns the owner's saved signatures, most recent first.
func (s *Signing) ListSignatures(ctx context.Context, ownerID string) ([]asset.SignatureAsset, error) {
	return s.gw.ListSignatureAssets(ctx, ownerID)
}
