package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"matcha/internal/domain"
	img "matcha/internal/image"
	"matcha/internal/logging"
)

// FileStore is the blob persistence collaborator for photo renditions.
// Remove is fire-and-forget: implementations log failures instead of
// returning them.
type FileStore interface {
	Write(key string, data []byte) error
	Remove(keys ...string)
	ThumbKey(key string) string
}

// PhotoService implements the photo slot engine: one avatar slot plus a
// gallery of positions 1..domain.MaxPhotos. The repository owns the slot
// invariants; this service handles decoding, resizing and file placement
// around the repository mutation.
type PhotoService struct {
	photos domain.PhotoRepository
	store  FileStore
	proc   img.Processor
	log    logging.Logger
}

// NewPhotoService creates a PhotoService.
func NewPhotoService(photos domain.PhotoRepository, store FileStore, proc img.Processor, log logging.Logger) *PhotoService {
	return &PhotoService{photos: photos, store: store, proc: proc, log: log}
}

// List returns the user's photos, avatar first, gallery by position.
func (s *PhotoService) List(ctx context.Context, userID int64) ([]domain.Photo, error) {
	return s.photos.ListByOwner(ctx, userID)
}

// ThumbKey maps a rendition key to its thumbnail key.
func (s *PhotoService) ThumbKey(key string) string {
	return s.store.ThumbKey(key)
}

// Avatar returns the user's avatar, or nil when none is set.
func (s *PhotoService) Avatar(ctx context.Context, userID int64) (*domain.Photo, error) {
	return s.photos.GetAvatar(ctx, userID)
}

// UploadAvatar stores data as the user's avatar, replacing any existing one.
// A first avatar counts against the total photo cap; a replacement never
// does.
func (s *PhotoService) UploadAvatar(ctx context.Context, userID int64, data []byte) (*domain.Photo, error) {
	p, err := s.prepare(userID, "a", data)
	if err != nil {
		return nil, err
	}

	created, replacedKeys, err := s.photos.ReplaceAvatar(ctx, userID, p)
	if err != nil {
		s.discard(p.StorageKey)
		return nil, err
	}
	s.removeRenditions(replacedKeys)
	return created, nil
}

// UploadGallery stores data at the lowest free gallery position.
func (s *PhotoService) UploadGallery(ctx context.Context, userID int64, data []byte) (*domain.Photo, error) {
	p, err := s.prepare(userID, "g", data)
	if err != nil {
		return nil, err
	}

	created, err := s.photos.AddGalleryPhoto(ctx, userID, p)
	if err != nil {
		s.discard(p.StorageKey)
		return nil, err
	}
	return created, nil
}

// Delete removes the user's photo and compacts remaining gallery positions.
// The backing files are removed best-effort after the row is gone.
func (s *PhotoService) Delete(ctx context.Context, userID, photoID int64) error {
	deleted, err := s.photos.DeletePhoto(ctx, userID, photoID)
	if err != nil {
		return err
	}
	s.removeRenditions([]string{deleted.StorageKey})
	return nil
}

// Reorder assigns new gallery positions. The changes must name distinct
// photos in the caller's gallery and the resulting positions must be a
// permutation of 1..N.
func (s *PhotoService) Reorder(ctx context.Context, userID int64, changes []domain.PositionChange) ([]domain.Photo, error) {
	seenID := make(map[int64]bool, len(changes))
	seenPos := make(map[domain.GalleryPosition]bool, len(changes))
	for _, c := range changes {
		if seenID[c.ID] {
			return nil, domain.ErrDuplicateIDs
		}
		seenID[c.ID] = true
		if seenPos[c.Position] {
			return nil, domain.ErrDuplicatePositions
		}
		seenPos[c.Position] = true
	}
	return s.photos.ReorderGallery(ctx, userID, changes)
}

// prepare validates, resizes and writes the renditions for an upload,
// returning the unsaved photo row. On error no files remain on disk.
func (s *PhotoService) prepare(userID int64, prefix string, data []byte) (domain.Photo, error) {
	if len(data) == 0 {
		return domain.Photo{}, domain.ErrNoFile
	}
	switch http.DetectContentType(data) {
	case "image/jpeg", "image/png", "image/webp":
	default:
		return domain.Photo{}, domain.ErrUnsupportedType
	}

	main, err := s.proc.ResizeMain(data)
	if err != nil {
		return domain.Photo{}, domain.ErrUnsupportedType
	}
	thumb, err := s.proc.ResizeThumb(data)
	if err != nil {
		return domain.Photo{}, domain.ErrUnsupportedType
	}
	meta, err := s.proc.ReadMeta(main)
	if err != nil {
		return domain.Photo{}, domain.ErrUnsupportedType
	}

	// WebP uploads come back re-encoded, so the stored mime is sniffed from
	// the rendition, not the upload.
	mime := http.DetectContentType(main)
	ext := "jpg"
	if mime == "image/png" {
		ext = "png"
	}
	key := fmt.Sprintf("u/%d/%s_%s.%s", userID, prefix, uuid.NewString(), ext)

	if err := s.store.Write(key, main); err != nil {
		return domain.Photo{}, err
	}
	if err := s.store.Write(s.store.ThumbKey(key), thumb); err != nil {
		s.discard(key)
		return domain.Photo{}, err
	}

	kind := domain.KindGallery
	if prefix == "a" {
		kind = domain.KindAvatar
	}
	return domain.Photo{
		OwnerID:    userID,
		Kind:       kind,
		StorageKey: key,
		MimeType:   mime,
		Width:      meta.Width,
		Height:     meta.Height,
		SizeBytes:  len(main),
	}, nil
}

// discard removes the renditions of a photo that never made it into the
// repository.
func (s *PhotoService) discard(key string) {
	s.store.Remove(key, s.store.ThumbKey(key))
}

func (s *PhotoService) removeRenditions(keys []string) {
	for _, key := range keys {
		s.store.Remove(key, s.store.ThumbKey(key))
	}
}
