// Package asset holds the persisted data model for signable documents and
// saved signatures. These are wire types: field names and JSON tags match the
// stored records, and none of them carry behavior beyond validation.
package asset

import (
	"errors"
	"fmt"
	"time"
)

// SignatureAsset is one saved signature belonging to one user. The payload is
// an opaque encoded image (PNG for captured signatures); assets are immutable
// except for rename.
type SignatureAsset struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Payload   []byte    `json:"signature_payload"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizedPlacement is the persisted projection of one placed signature:
// position and size as fractions of the document extent, so the overlay
// re-renders correctly at any zoom or device size.
type NormalizedPlacement struct {
	SignatureID string  `json:"signature_id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Rotation    int     `json:"rotation,omitempty"` // degrees, [0,360)
}

// Validate checks that p names a signature and describes a rectangle
// contained in the unit square with an in-range rotation. A small tolerance
// absorbs the rounding a normalize step introduces.
func (p NormalizedPlacement) Validate() error {
	const eps = 1e-9
	if p.SignatureID == "" {
		return errors.New("signature_id is required")
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("size %vx%v must be positive", p.Width, p.Height)
	}
	if p.X < -eps || p.Y < -eps || p.X+p.Width > 1+eps || p.Y+p.Height > 1+eps {
		return fmt.Errorf("rect (%v, %v, %v, %v) exceeds the unit square", p.X, p.Y, p.Width, p.Height)
	}
	if p.Rotation < 0 || p.Rotation >= 360 {
		return fmt.Errorf("rotation %d outside [0,360)", p.Rotation)
	}
	return nil
}

// Document is a scanned reference document. ImageRef points at the stored
// page image; SignedImageRef is set once a flattened signed image exists.
type Document struct {
	ID             string                `json:"id"`
	OwnerID        string                `json:"owner_id"`
	Name           string                `json:"name"`
	ImageRef       string                `json:"image_ref"`
	IsSigned       bool                  `json:"is_signed"`
	SignedImageRef *string               `json:"signed_document_url"`
	Placements     []NormalizedPlacement `json:"signature_data"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// SignedDocument is the result of a successful save: the document with its
// signature state applied. SignedImageRef is nil when composition ran in
// passthrough mode; the placements then carry everything a renderer needs to
// reconstruct the overlay.
type SignedDocument struct {
	Document
}
