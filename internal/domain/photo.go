package domain

import "context"

// PhotoKind distinguishes the single avatar slot from gallery slots.
type PhotoKind string

// Photo kinds.
const (
	KindAvatar  PhotoKind = "avatar"
	KindGallery PhotoKind = "gallery"
)

// MaxPhotos is the per-user cap on stored photos, avatar included. Gallery
// positions are drawn from 1..MaxPhotos.
const MaxPhotos = 5

// GalleryPosition is a gallery slot number, valid only in 1..MaxPhotos.
type GalleryPosition int

// NewGalleryPosition validates n as a gallery slot.
func NewGalleryPosition(n int) (GalleryPosition, error) {
	if n < 1 || n > MaxPhotos {
		return 0, ErrInvalidPositions
	}
	return GalleryPosition(n), nil
}

// Photo represents one stored image belonging to exactly one user.
// Position is set only for gallery photos.
type Photo struct {
	ID         int64
	OwnerID    int64
	Kind       PhotoKind
	Position   *int
	StorageKey string
	MimeType   string
	Width      int
	Height     int
	SizeBytes  int
}

// PositionChange maps a gallery photo to a new slot in a reorder request.
type PositionChange struct {
	ID       int64
	Position GalleryPosition
}

// PhotoRepository defines the port for photo slot persistence. Every mutating
// operation is atomic with respect to a single owner's rows: two concurrent
// mutations on the same owner must not interleave, so implementations run
// each read-validate-write sequence in one transaction (or equivalent).
//
// Invariants that must hold after every call: at most one avatar row per
// owner, at most MaxPhotos rows total per owner, and gallery positions form
// the exact set {1..count} with no duplicates and no gaps.
type PhotoRepository interface {
	// ListByOwner returns the owner's photos, avatar first, gallery ordered
	// by position ascending.
	ListByOwner(ctx context.Context, ownerID int64) ([]Photo, error)

	// GetAvatar returns the owner's avatar, or nil if none exists.
	GetAvatar(ctx context.Context, ownerID int64) (*Photo, error)

	// ReplaceAvatar inserts p as the owner's avatar, deleting any existing
	// avatar row. A first avatar fails with ErrMaxPhotosReached when the
	// owner already has MaxPhotos rows. Returns the created row and the
	// storage keys of any replaced avatar for backing-file cleanup.
	ReplaceAvatar(ctx context.Context, ownerID int64, p Photo) (*Photo, []string, error)

	// AddGalleryPhoto inserts p at the lowest free gallery position. Fails
	// with ErrMaxPhotosReached at the total cap, or ErrGalleryFull when no
	// position in 1..MaxPhotos is free.
	AddGalleryPhoto(ctx context.Context, ownerID int64, p Photo) (*Photo, error)

	// DeletePhoto removes the owner's photo with the given id, compacting
	// remaining gallery positions to a gap-free 1..N in stable order. Fails
	// with ErrPhotoNotFound when the row does not exist or belongs to
	// another owner. Returns the deleted row.
	DeletePhoto(ctx context.Context, ownerID, id int64) (*Photo, error)

	// ReorderGallery applies the position changes as one atomic update.
	// Fails with ErrInvalidIDs when a change names a photo outside the
	// owner's gallery, or ErrInvalidPositions when the resulting assignment
	// is not a permutation of 1..N. Returns the reordered gallery.
	ReorderGallery(ctx context.Context, ownerID int64, changes []PositionChange) ([]Photo, error)
}
