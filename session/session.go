// Package session implements the placement session: the in-memory state
// machine that holds the signatures overlaid on one document and owns every
// geometry mutation. Sessions are session-per-document handles, never global
// state, so independent signing sessions coexist freely.
//
// Geometry follows a clamp-on-write model: after every mutation each
// placement rectangle is fully contained in the document's render rectangle,
// and boundary violations are corrected silently rather than surfaced as
// errors. Only Save performs I/O; all gesture operations are synchronous.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/wudi/signkit/asset"
	"github.com/wudi/signkit/gateway"
	"github.com/wudi/signkit/geo"
)

// Placement geometry defaults and bounds, in render pixels.
const (
	DefaultWidth  = 120.0
	DefaultHeight = 60.0
	MinWidth      = 60.0
	MaxWidth      = 200.0
	MinHeight     = 30.0
	MaxHeight     = 100.0
)

// State is the session lifecycle state.
type State int

const (
	StateEmpty State = iota
	StateEditing
	StateSaving
	StateSaved
	// StateFailed is transient: a failed save passes through it and lands
	// back in StateEditing before Save returns, placements intact.
	StateFailed
)

func (s State) String() string {
	return []string{"Empty", "Editing", "Saving", "Saved", "Failed"}[s]
}

var (
	// ErrNoPlacements is returned by Save when the session holds nothing to
	// save. It is raised before any composition or storage call.
	ErrNoPlacements = fmt.Errorf("session: no placements to save: %w", gateway.ErrValidation)
	// ErrUnknownPlacement is returned when an operation names a placement id
	// the session does not hold.
	ErrUnknownPlacement = errors.New("session: unknown placement")
	// ErrSaving is returned for operations attempted while a save is in
	// flight, including Discard.
	ErrSaving = errors.New("session: save in flight")
	// ErrClosed is returned for operations after a successful save.
	ErrClosed = errors.New("session: closed")
	// ErrExtentTooSmall is returned by New for extents that cannot contain
	// even a minimum-size placement.
	ErrExtentTooSmall = errors.New("session: extent smaller than minimum placement size")
)

// Placement is one signature instance positioned on the document. The id is
// session-local and distinct from the asset id: the same asset may be placed
// multiple times.
type Placement struct {
	ID       string
	AssetID  string
	Rect     geo.Rect
	Rotation int // degrees, one of 0, 90, 180, 270
	Selected bool
}

// Moved translates p by (dx, dy) and clamps both axes independently back
// into the extent. The clamp applies to the translated rectangle, not
// incrementally, so repeated drags cannot creep past an edge.
func Moved(p Placement, dx, dy float64, e geo.Extent) Placement {
	p.Rect = geo.Clamp(p.Rect.Translate(dx, dy), e)
	return p
}

// Rotated advances p's rotation a quarter turn clockwise. Four applications
// return to the original orientation.
func Rotated(p Placement) Placement {
	p.Rotation = (p.Rotation + 90) % 360
	return p
}

// Resized multiplies p's size by scale about its top-left corner, clamps the
// size to [MinWidth,MaxWidth]×[MinHeight,MaxHeight] capped at the extent,
// then re-clamps the position so clamped growth near an edge cannot push the
// rectangle outside the document.
func Resized(p Placement, scale float64, e geo.Extent) Placement {
	p.Rect.W *= scale
	p.Rect.H *= scale
	p.Rect = geo.ClampSize(p.Rect, MinWidth, math.Min(MaxWidth, e.W), MinHeight, math.Min(MaxHeight, e.H))
	p.Rect = geo.Clamp(p.Rect, e)
	return p
}

// Saver receives the finalized, normalized placement list when a session
// saves. Implementations compose and persist; the session does neither
// itself.
type Saver interface {
	SaveSignedDocument(ctx context.Context, placements []asset.NormalizedPlacement) (*asset.SignedDocument, error)
}

// SaverFunc adapts a function to the Saver interface.
type SaverFunc func(ctx context.Context, placements []asset.NormalizedPlacement) (*asset.SignedDocument, error)

func (f SaverFunc) SaveSignedDocument(ctx context.Context, placements []asset.NormalizedPlacement) (*asset.SignedDocument, error) {
	return f(ctx, placements)
}

// Session holds the placements for one document. It is single-writer: one
// gesture event is processed to completion before the next is accepted, and
// the session must not be shared across goroutines.
type Session struct {
	extent     geo.Extent
	saver      Saver
	placements []Placement
	selected   string // placement id, "" for none
	state      State
}

// New opens a session over a document rendered at the given extent. The
// extent is fixed for the session's lifetime; re-rendering at another size
// means opening a new session. Extents that cannot contain a minimum-size
// placement are rejected.
func New(extent geo.Extent, saver Saver) (*Session, error) {
	if !extent.IsValid() {
		return nil, geo.ErrBadExtent
	}
	if extent.W < MinWidth || extent.H < MinHeight {
		return nil, ErrExtentTooSmall
	}
	if saver == nil {
		return nil, errors.New("session: saver is required")
	}
	return &Session{extent: extent, saver: saver, state: StateEmpty}, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Extent returns the document render extent the session was opened with.
func (s *Session) Extent() geo.Extent { return s.extent }

// Placements returns a copy of the placement list in placement order.
func (s *Session) Placements() []Placement {
	out := make([]Placement, len(s.placements))
	copy(out, s.placements)
	return out
}

// Selected returns the currently selected placement id, if any.
func (s *Session) Selected() (string, bool) { return s.selected, s.selected != "" }

func (s *Session) editable() error {
	switch s.state {
	case StateSaving:
		return ErrSaving
	case StateSaved:
		return ErrClosed
	}
	return nil
}

// Add places the asset centered on the document at the default size, shrunk
// to fit documents rendered smaller than the default, and returns the fresh
// placement id.
func (s *Session) Add(assetID string) (string, error) {
	if err := s.editable(); err != nil {
		return "", err
	}
	w := math.Min(DefaultWidth, s.extent.W)
	h := math.Min(DefaultHeight, s.extent.H)
	p := Placement{
		ID:      uuid.NewString(),
		AssetID: assetID,
		Rect: geo.Clamp(geo.Rect{
			X: (s.extent.W - w) / 2,
			Y: (s.extent.H - h) / 2,
			W: w,
			H: h,
		}, s.extent),
	}
	s.placements = append(s.placements, p)
	s.state = StateEditing
	return p.ID, nil
}

func (s *Session) find(id string) (int, error) {
	if err := s.editable(); err != nil {
		return 0, err
	}
	for i := range s.placements {
		if s.placements[i].ID == id {
			return i, nil
		}
	}
	return 0, ErrUnknownPlacement
}

// Move translates a placement by the drag delta, clamped to the document.
func (s *Session) Move(id string, dx, dy float64) error {
	i, err := s.find(id)
	if err != nil {
		return err
	}
	s.placements[i] = Moved(s.placements[i], dx, dy, s.extent)
	return nil
}

// Rotate turns a placement a quarter turn clockwise.
func (s *Session) Rotate(id string) error {
	i, err := s.find(id)
	if err != nil {
		return err
	}
	s.placements[i] = Rotated(s.placements[i])
	return nil
}

// Resize scales a placement's size by scale, clamped to the size bounds and
// back into the document. Non-positive scales are rejected.
func (s *Session) Resize(id string, scale float64) error {
	if scale <= 0 {
		return fmt.Errorf("session: scale must be positive, got %v", scale)
	}
	i, err := s.find(id)
	if err != nil {
		return err
	}
	s.placements[i] = Resized(s.placements[i], scale, s.extent)
	return nil
}

// Remove deletes a placement, deselecting it if selected. Removing the last
// placement returns the session to Empty.
func (s *Session) Remove(id string) error {
	i, err := s.find(id)
	if err != nil {
		return err
	}
	if s.selected == id {
		s.selected = ""
	}
	s.placements = append(s.placements[:i], s.placements[i+1:]...)
	if len(s.placements) == 0 {
		s.state = StateEmpty
	}
	return nil
}

// Select marks a placement as the single selection. Selection drives which
// controls a UI shows; it never affects geometry.
func (s *Session) Select(id string) error {
	i, err := s.find(id)
	if err != nil {
		return err
	}
	if s.selected != "" {
		s.setSelected(s.selected, false)
	}
	s.selected = s.placements[i].ID
	s.placements[i].Selected = true
	return nil
}

// Deselect clears the selection, if any.
func (s *Session) Deselect() {
	if s.selected == "" {
		return
	}
	s.setSelected(s.selected, false)
	s.selected = ""
}

func (s *Session) setSelected(id string, sel bool) {
	for i := range s.placements {
		if s.placements[i].ID == id {
			s.placements[i].Selected = sel
			return
		}
	}
}

// Normalized projects the current placements onto the persisted coordinate
// model, in placement order.
func (s *Session) Normalized() ([]asset.NormalizedPlacement, error) {
	out := make([]asset.NormalizedPlacement, 0, len(s.placements))
	for _, p := range s.placements {
		n, err := geo.Normalize(p.Rect, s.extent)
		if err != nil {
			return nil, err
		}
		out = append(out, asset.NormalizedPlacement{
			SignatureID: p.AssetID,
			X:           n.X,
			Y:           n.Y,
			Width:       n.W,
			Height:      n.H,
			Rotation:    p.Rotation,
		})
	}
	return out, nil
}

// Save normalizes the placements and hands them to the saver. With zero
// placements it fails validation before any I/O. On success the session
// closes and the signed document is returned; on failure the session reverts
// to Editing with every placement retained so the user can retry.
func (s *Session) Save(ctx context.Context) (*asset.SignedDocument, error) {
	if err := s.editable(); err != nil {
		return nil, err
	}
	if len(s.placements) == 0 {
		return nil, ErrNoPlacements
	}
	normalized, err := s.Normalized()
	if err != nil {
		return nil, err
	}
	s.state = StateSaving
	signed, err := s.saver.SaveSignedDocument(ctx, normalized)
	if err != nil {
		// Failed is transient: the session lands back in Editing with every
		// placement retained so the user can retry without re-placing.
		s.state = StateEditing
		return nil, err
	}
	s.state = StateSaved
	return signed, nil
}

// Discard drops all placements and returns the session to Empty. It is
// refused while a save is in flight so an in-progress write is never raced.
func (s *Session) Discard() error {
	if s.state == StateSaving {
		return ErrSaving
	}
	s.placements = nil
	s.selected = ""
	s.state = StateEmpty
	return nil
}
