package adapthttp

import (
	"io"
	"net/http"
	"strconv"

	"matcha/internal/domain"
)

// maxUploadBytes bounds a photo upload before decoding starts.
const maxUploadBytes = 10 << 20

type photoBody struct {
	ID           int64  `json:"id"`
	Kind         string `json:"kind"`
	Position     *int   `json:"position,omitempty"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl"`
	MimeType     string `json:"mimeType"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	SizeBytes    int    `json:"sizeBytes"`
}

func (s *Server) toPhotoBody(p *domain.Photo) photoBody {
	return photoBody{
		ID:           p.ID,
		Kind:         string(p.Kind),
		Position:     p.Position,
		URL:          "/uploads/" + p.StorageKey,
		ThumbnailURL: "/uploads/" + s.photos.ThumbKey(p.StorageKey),
		MimeType:     p.MimeType,
		Width:        p.Width,
		Height:       p.Height,
		SizeBytes:    p.SizeBytes,
	}
}

func (s *Server) toPhotoBodies(photos []domain.Photo) []photoBody {
	out := make([]photoBody, len(photos))
	for i := range photos {
		out[i] = s.toPhotoBody(&photos[i])
	}
	return out
}

// readUpload pulls the "file" part out of a multipart upload.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, r, domain.ErrNoFile)
		return nil, false
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, domain.ErrNoFile)
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return data, true
}

func (s *Server) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	photos, err := s.photos.List(r.Context(), identity.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"photos": s.toPhotoBodies(photos)})
}

func (s *Server) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	photo, err := s.photos.UploadAvatar(r.Context(), identity.UserID, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"photo": s.toPhotoBody(photo)})
}

func (s *Server) handleUploadGallery(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	photo, err := s.photos.UploadGallery(r.Context(), identity.UserID, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"photo": s.toPhotoBody(photo)})
}

func (s *Server) handleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, r, domain.ErrPhotoNotFound)
		return
	}
	if err := s.photos.Delete(r.Context(), identity.UserID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReorderPhotos(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	var req struct {
		Order []struct {
			ID       int64 `json:"id"`
			Position int   `json:"position"`
		} `json:"order"`
	}
	if !s.parseJSON(w, r, &req) {
		return
	}

	changes := make([]domain.PositionChange, 0, len(req.Order))
	for _, o := range req.Order {
		pos, err := domain.NewGalleryPosition(o.Position)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		changes = append(changes, domain.PositionChange{ID: o.ID, Position: pos})
	}

	gallery, err := s.photos.Reorder(r.Context(), identity.UserID, changes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"photos": s.toPhotoBodies(gallery)})
}
