// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"matcha/internal/domain"
)

// DB implements an in-memory database storage. A single mutex guards all
// tables, which also gives the photo operations the per-owner atomicity the
// repository contract requires.
type DB struct {
	mu       sync.Mutex
	users    []*domain.User
	profiles map[int64]*domain.Profile
	verify   map[string]*domain.ActionToken
	resets   map[string]*domain.ActionToken
	photos   []domain.Photo

	userIDCounter  int64
	photoIDCounter int64
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		profiles: make(map[int64]*domain.Profile),
		verify:   make(map[string]*domain.ActionToken),
		resets:   make(map[string]*domain.ActionToken),
	}
}

// Ensure interfaces are met.
var _ domain.UserRepository = (*DB)(nil)
var _ domain.ProfileRepository = (*DB)(nil)
var _ domain.ActionTokenRepository = (*DB)(nil)
var _ domain.PhotoRepository = (*DB)(nil)

// --- UserRepository ---

// Create creates a new user.
func (db *DB) Create(ctx context.Context, email, username, passwordHash string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if strings.EqualFold(u.Email, email) || strings.EqualFold(u.Username, username) {
			return nil, domain.ErrUserAlreadyExists
		}
	}

	db.userIDCounter++
	u := &domain.User{
		ID:           db.userIDCounter,
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	db.users = append(db.users, u)
	cp := *u
	return &cp, nil
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// GetByUsername retrieves a user by username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if strings.EqualFold(u.Username, username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// GetByEmailOrUsername retrieves a user matching q against email or username.
func (db *DB) GetByEmailOrUsername(ctx context.Context, q string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if strings.EqualFold(u.Email, q) || strings.EqualFold(u.Username, q) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// SetPasswordHash replaces a user's password hash.
func (db *DB) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			u.PasswordHash = hash
			return nil
		}
	}
	return domain.ErrUserNotFound
}

// MarkEmailVerified records the verification time.
func (db *DB) MarkEmailVerified(ctx context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			now := time.Now().UTC()
			u.EmailVerifiedAt = &now
			return nil
		}
	}
	return domain.ErrUserNotFound
}

// --- ProfileRepository ---

// Get retrieves a profile, or nil when the user never saved one.
func (db *DB) Get(ctx context.Context, userID int64) (*domain.Profile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if p, ok := db.profiles[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

// Upsert applies a partial profile update, creating the row if needed.
func (db *DB) Upsert(ctx context.Context, userID int64, patch domain.ProfilePatch) (*domain.Profile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	p, ok := db.profiles[userID]
	if !ok {
		p = &domain.Profile{UserID: userID}
		db.profiles[userID] = p
	}
	if patch.DisplayName != nil {
		p.DisplayName = *patch.DisplayName
	}
	if patch.Gender != nil {
		v := *patch.Gender
		p.Gender = &v
	}
	if patch.SexualPref != nil {
		v := *patch.SexualPref
		p.SexualPref = &v
	}
	if patch.Bio != nil {
		p.Bio = *patch.Bio
	}
	if patch.Birthdate != nil {
		v := *patch.Birthdate
		p.Birthdate = &v
	}
	if patch.FameRating != nil {
		p.FameRating = *patch.FameRating
	}
	cp := *p
	return &cp, nil
}

// --- ActionTokenRepository ---

// CreateVerification stores an email verification token.
func (db *DB) CreateVerification(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.verify[token] = &domain.ActionToken{UserID: userID, Token: token, ExpiresAt: expiresAt}
	return nil
}

// GetVerification retrieves a verification token, or nil when unknown.
func (db *DB) GetVerification(ctx context.Context, token string) (*domain.ActionToken, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if t, ok := db.verify[token]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

// DeleteVerification removes a verification token.
func (db *DB) DeleteVerification(ctx context.Context, token string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.verify, token)
	return nil
}

// CreateReset stores a password reset token.
func (db *DB) CreateReset(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.resets[token] = &domain.ActionToken{UserID: userID, Token: token, ExpiresAt: expiresAt}
	return nil
}

// GetReset retrieves a reset token, or nil when unknown.
func (db *DB) GetReset(ctx context.Context, token string) (*domain.ActionToken, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if t, ok := db.resets[token]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

// MarkResetUsed records that a reset token has been consumed.
func (db *DB) MarkResetUsed(ctx context.Context, token string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if t, ok := db.resets[token]; ok {
		now := time.Now().UTC()
		t.UsedAt = &now
	}
	return nil
}

// --- PhotoRepository ---

// ListByOwner returns the owner's photos, avatar first, gallery by position.
func (db *DB) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Photo, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.ownerPhotosLocked(ownerID), nil
}

// GetAvatar returns the owner's avatar, or nil if none exists.
func (db *DB) GetAvatar(ctx context.Context, ownerID int64) (*domain.Photo, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, p := range db.photos {
		if p.OwnerID == ownerID && p.Kind == domain.KindAvatar {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

// ReplaceAvatar inserts p as the owner's avatar, deleting any existing one.
func (db *DB) ReplaceAvatar(ctx context.Context, ownerID int64, p domain.Photo) (*domain.Photo, []string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var replaced []string
	total := 0
	for _, row := range db.photos {
		if row.OwnerID != ownerID {
			continue
		}
		total++
		if row.Kind == domain.KindAvatar {
			replaced = append(replaced, row.StorageKey)
		}
	}

	// Only a first avatar counts against the total cap; a replacement
	// swaps one row for another.
	if len(replaced) == 0 && total >= domain.MaxPhotos {
		return nil, nil, domain.ErrMaxPhotosReached
	}

	kept := db.photos[:0]
	for _, row := range db.photos {
		if row.OwnerID == ownerID && row.Kind == domain.KindAvatar {
			continue
		}
		kept = append(kept, row)
	}
	db.photos = kept

	db.photoIDCounter++
	p.ID = db.photoIDCounter
	p.OwnerID = ownerID
	p.Kind = domain.KindAvatar
	p.Position = nil
	db.photos = append(db.photos, p)

	cp := p
	return &cp, replaced, nil
}

// AddGalleryPhoto inserts p at the lowest free gallery position.
func (db *DB) AddGalleryPhoto(ctx context.Context, ownerID int64, p domain.Photo) (*domain.Photo, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.ownerCountLocked(ownerID) >= domain.MaxPhotos {
		return nil, domain.ErrMaxPhotosReached
	}

	taken := map[int]bool{}
	for _, row := range db.photos {
		if row.OwnerID == ownerID && row.Kind == domain.KindGallery {
			taken[*row.Position] = true
		}
	}
	pos := 0
	for n := 1; n <= domain.MaxPhotos; n++ {
		if !taken[n] {
			pos = n
			break
		}
	}
	if pos == 0 {
		return nil, domain.ErrGalleryFull
	}

	db.photoIDCounter++
	p.ID = db.photoIDCounter
	p.OwnerID = ownerID
	p.Kind = domain.KindGallery
	p.Position = &pos
	db.photos = append(db.photos, p)

	cp := p
	return &cp, nil
}

// DeletePhoto removes the owner's photo and compacts gallery positions.
func (db *DB) DeletePhoto(ctx context.Context, ownerID, id int64) (*domain.Photo, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	idx := -1
	for i, row := range db.photos {
		if row.ID == id && row.OwnerID == ownerID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, domain.ErrPhotoNotFound
	}
	deleted := db.photos[idx]
	db.photos = append(db.photos[:idx], db.photos[idx+1:]...)

	if deleted.Kind == domain.KindGallery {
		db.compactGalleryLocked(ownerID)
	}
	return &deleted, nil
}

// ReorderGallery applies the position changes as one atomic update.
func (db *DB) ReorderGallery(ctx context.Context, ownerID int64, changes []domain.PositionChange) ([]domain.Photo, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	gallery := map[int64]*domain.Photo{}
	n := 0
	for i := range db.photos {
		row := &db.photos[i]
		if row.OwnerID == ownerID && row.Kind == domain.KindGallery {
			gallery[row.ID] = row
			n++
		}
	}

	next := map[int64]int{}
	for _, c := range changes {
		if _, ok := gallery[c.ID]; !ok {
			return nil, domain.ErrInvalidIDs
		}
		next[c.ID] = int(c.Position)
	}

	// Unchanged photos keep their slot; the final assignment must still be
	// a permutation of 1..N.
	seen := map[int]bool{}
	for id, row := range gallery {
		pos, ok := next[id]
		if !ok {
			pos = *row.Position
		}
		if pos < 1 || pos > n || seen[pos] {
			return nil, domain.ErrInvalidPositions
		}
		seen[pos] = true
	}

	for id, pos := range next {
		p := pos
		gallery[id].Position = &p
	}

	result := make([]domain.Photo, 0, n)
	for _, row := range gallery {
		result = append(result, *row)
	}
	sort.Slice(result, func(i, j int) bool { return *result[i].Position < *result[j].Position })
	return result, nil
}

func (db *DB) ownerCountLocked(ownerID int64) int {
	n := 0
	for _, row := range db.photos {
		if row.OwnerID == ownerID {
			n++
		}
	}
	return n
}

func (db *DB) ownerPhotosLocked(ownerID int64) []domain.Photo {
	var result []domain.Photo
	for _, row := range db.photos {
		if row.OwnerID == ownerID {
			result = append(result, row)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if (a.Kind == domain.KindAvatar) != (b.Kind == domain.KindAvatar) {
			return a.Kind == domain.KindAvatar
		}
		if a.Kind == domain.KindAvatar {
			return a.ID < b.ID
		}
		return *a.Position < *b.Position
	})
	return result
}

// compactGalleryLocked renumbers the owner's gallery to a gap-free 1..N,
// keeping the existing relative order.
func (db *DB) compactGalleryLocked(ownerID int64) {
	var gallery []*domain.Photo
	for i := range db.photos {
		row := &db.photos[i]
		if row.OwnerID == ownerID && row.Kind == domain.KindGallery {
			gallery = append(gallery, row)
		}
	}
	sort.Slice(gallery, func(i, j int) bool { return *gallery[i].Position < *gallery[j].Position })
	for i, row := range gallery {
		pos := i + 1
		row.Position = &pos
	}
}
