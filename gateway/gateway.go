// Package gateway declares the persistence boundary for signed documents and
// signature assets, together with the error taxonomy every implementation
// maps its failures onto. The signing core only ever talks to this interface;
// store/memstore and store/pgstore provide implementations.
package gateway

import (
	"context"
	"errors"

	"github.com/wudi/signkit/asset"
)

// Sentinel errors implementations wrap so callers can classify failures with
// errors.Is regardless of the backing store.
var (
	// ErrValidation marks a rejected input: empty payloads, blank names,
	// saves with nothing to save.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing document or signature asset.
	ErrNotFound = errors.New("not found")
	// ErrForbidden marks a write or read against a record the caller does
	// not own.
	ErrForbidden = errors.New("forbidden")
	// ErrStorage marks a backend failure after validation passed.
	ErrStorage = errors.New("storage failure")
)

// Gateway persists documents and signature assets.
type Gateway interface {
	// GetDocument fetches a document owned by ownerID.
	GetDocument(ctx context.Context, documentID, ownerID string) (*asset.Document, error)

	// StoreSignedDocument marks the document signed, recording the composed
	// image reference (nil in passthrough mode) and the ordered placement
	// list. It returns the updated document.
	StoreSignedDocument(ctx context.Context, documentID, ownerID string, signedImageRef *string, placements []asset.NormalizedPlacement) (*asset.SignedDocument, error)

	// ClearSignature removes the signed state from a document: is_signed,
	// the composed image reference and all placements.
	ClearSignature(ctx context.Context, documentID, ownerID string) (*asset.Document, error)

	// ListSignatureAssets returns the owner's saved signatures, most recent
	// first.
	ListSignatureAssets(ctx context.Context, ownerID string) ([]asset.SignatureAsset, error)

	// GetSignatureAsset fetches one signature asset owned by ownerID.
	GetSignatureAsset(ctx context.Context, assetID, ownerID string) (*asset.SignatureAsset, error)

	// CreateSignatureAsset stores a new signature with the given encoded
	// image payload and returns the stored record.
	CreateSignatureAsset(ctx context.Context, ownerID, name string, payload []byte) (*asset.SignatureAsset, error)

	// RenameSignatureAsset updates an asset's name, the only mutable field.
	RenameSignatureAsset(ctx context.Context, assetID, ownerID, name string) (*asset.SignatureAsset, error)

	// DeleteSignatureAsset removes a signature asset. Documents already
	// signed with it are unaffected; their flattened image and placement
	// list stand on their own.
	DeleteSignatureAsset(ctx context.Context, assetID, ownerID string) error
}
