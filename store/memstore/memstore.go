// Package memstore is a map-backed gateway implementation for tests,
// examples, and single-process hosts. It enforces the same ownership and
// validation rules as the durable stores.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wudi/signkit/asset"
	"github.com/wudi/signkit/gateway"
)

// Store implements gateway.Gateway in memory. The zero value is not usable;
// call New.
type Store struct {
	mu        sync.Mutex
	documents map[string]*asset.Document
	assets    map[string]*asset.SignatureAsset
	now       func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		documents: make(map[string]*asset.Document),
		assets:    make(map[string]*asset.SignatureAsset),
		now:       time.Now,
	}
}

// SetClock overrides the store's clock; tests use it for deterministic
// timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AddDocument seeds a document, assigning an id if empty. It stands in for
// the scanning flow that creates documents upstream of signing.
func (s *Store) AddDocument(doc asset.Document) *asset.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	t := s.now()
	doc.CreatedAt, doc.UpdatedAt = t, t
	s.documents[doc.ID] = &doc
	return cloneDocument(&doc)
}

func cloneDocument(d *asset.Document) *asset.Document {
	out := *d
	if d.SignedImageRef != nil {
		ref := *d.SignedImageRef
		out.SignedImageRef = &ref
	}
	if d.Placements != nil {
		out.Placements = append([]asset.NormalizedPlacement(nil), d.Placements...)
	}
	return &out
}

func cloneAsset(a *asset.SignatureAsset) *asset.SignatureAsset {
	out := *a
	out.Payload = append([]byte(nil), a.Payload...)
	return &out
}

func (s *Store) document(documentID, ownerID string) (*asset.Document, error) {
	d, ok := s.documents[documentID]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", documentID, gateway.ErrNotFound)
	}
	if d.OwnerID != ownerID {
		return nil, fmt.Errorf("document %s: %w", documentID, gateway.ErrForbidden)
	}
	return d, nil
}

func (s *Store) GetDocument(_ context.Context, documentID, ownerID string) (*asset.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.document(documentID, ownerID)
	if err != nil {
		return nil, err
	}
	return cloneDocument(d), nil
}

func (s *Store) StoreSignedDocument(_ context.Context, documentID, ownerID string, signedImageRef *string, placements []asset.NormalizedPlacement) (*asset.SignedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.document(documentID, ownerID)
	if err != nil {
		return nil, err
	}
	d.IsSigned = true
	if signedImageRef != nil {
		ref := *signedImageRef
		d.SignedImageRef = &ref
	} else {
		d.SignedImageRef = nil
	}
	d.Placements = append([]asset.NormalizedPlacement(nil), placements...)
	d.UpdatedAt = s.now()
	return &asset.SignedDocument{Document: *cloneDocument(d)}, nil
}

func (s *Store) ClearSignature(_ context.Context, documentID, ownerID string) (*asset.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.document(documentID, ownerID)
	if err != nil {
		return nil, err
	}
	d.IsSigned = false
	d.SignedImageRef = nil
	d.Placements = nil
	d.UpdatedAt = s.now()
	return cloneDocument(d), nil
}

func (s *Store) ListSignatureAssets(_ context.Context, ownerID string) ([]asset.SignatureAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []asset.SignatureAsset
	for _, a := range s.assets {
		if a.OwnerID == ownerID {
			out = append(out, *cloneAsset(a))
		}
	}
	// Most recent first; id breaks ties so the order is stable.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) signatureAsset(assetID, ownerID string) (*asset.SignatureAsset, error) {
	a, ok := s.assets[assetID]
	if !ok {
		return nil, fmt.Errorf("signature asset %s: %w", assetID, gateway.ErrNotFound)
	}
	if a.OwnerID != ownerID {
		return nil, fmt.Errorf("signature asset %s: %w", assetID, gateway.ErrForbidden)
	}
	return a, nil
}

func (s *Store) GetSignatureAsset(_ context.Context, assetID, ownerID string) (*asset.SignatureAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.signatureAsset(assetID, ownerID)
	if err != nil {
		return nil, err
	}
	return cloneAsset(a), nil
}

func (s *Store) CreateSignatureAsset(_ context.Context, ownerID, name string, payload []byte) (*asset.SignatureAsset, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("signature name is required: %w", gateway.ErrValidation)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("signature payload is required: %w", gateway.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.now()
	a := &asset.SignatureAsset{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		Payload:   append([]byte(nil), payload...),
		CreatedAt: t,
		UpdatedAt: t,
	}
	s.assets[a.ID] = a
	return cloneAsset(a), nil
}

func (s *Store) RenameSignatureAsset(_ context.Context, assetID, ownerID, name string) (*asset.SignatureAsset, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("signature name is required: %w", gateway.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.signatureAsset(assetID, ownerID)
	if err != nil {
		return nil, err
	}
	a.Name = name
	a.UpdatedAt = s.now()
	return cloneAsset(a), nil
}

func (s *Store) DeleteSignatureAsset(_ context.Context, assetID, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.signatureAsset(assetID, ownerID); err != nil {
		return err
	}
	delete(s.assets, assetID)
	return nil
}

var _ gateway.Gateway = (*Store)(nil)
