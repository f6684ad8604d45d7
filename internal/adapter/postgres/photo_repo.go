package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"matcha/internal/domain"
)

var _ domain.PhotoRepository = (*DB)(nil)

const photoColumns = "id, user_id, kind, position, storage_key, mime_type, width, height, size_bytes"

func scanPhoto(row interface{ Scan(...any) error }) (*domain.Photo, error) {
	var p domain.Photo
	err := row.Scan(&p.ID, &p.OwnerID, &p.Kind, &p.Position, &p.StorageKey, &p.MimeType, &p.Width, &p.Height, &p.SizeBytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// mapCheckViolation turns a schema CHECK failure into a client error; the
// photos table re-validates the slot invariants the code enforces.
func mapCheckViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23514" {
		return domain.BadRequest("CONSTRAINT_VIOLATION", "Constraint violation")
	}
	return err
}

// lockOwner serializes photo mutations per owner by locking the user row
// for the duration of the transaction.
func lockOwner(ctx context.Context, tx *sql.Tx, ownerID int64) error {
	_, err := tx.ExecContext(ctx, "SELECT 1 FROM users WHERE id = $1 FOR UPDATE", ownerID)
	return err
}

// ListByOwner returns the owner's photos, avatar first, gallery by position.
func (d *DB) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Photo, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+photoColumns+" FROM photos WHERE user_id = $1 ORDER BY (kind = 'avatar') DESC, position",
		ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []domain.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, *p)
	}
	return photos, rows.Err()
}

// GetAvatar returns the owner's avatar, or nil if none exists.
func (d *DB) GetAvatar(ctx context.Context, ownerID int64) (*domain.Photo, error) {
	return scanPhoto(d.sql.QueryRowContext(ctx,
		"SELECT "+photoColumns+" FROM photos WHERE user_id = $1 AND kind = 'avatar'", ownerID))
}

// ReplaceAvatar inserts p as the owner's avatar, deleting any existing one.
func (d *DB) ReplaceAvatar(ctx context.Context, ownerID int64, p domain.Photo) (*domain.Photo, []string, error) {
	var created *domain.Photo
	var replaced []string
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockOwner(ctx, tx, ownerID); err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx,
			"SELECT storage_key FROM photos WHERE user_id = $1 AND kind = 'avatar'", ownerID)
		if err != nil {
			return err
		}
		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				rows.Close()
				return err
			}
			replaced = append(replaced, key)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		// Only a first avatar counts against the total cap; a replacement
		// swaps one row for another.
		if len(replaced) == 0 {
			var total int
			if err := tx.QueryRowContext(ctx,
				"SELECT COUNT(*) FROM photos WHERE user_id = $1", ownerID).Scan(&total); err != nil {
				return err
			}
			if total >= domain.MaxPhotos {
				return domain.ErrMaxPhotosReached
			}
		} else {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM photos WHERE user_id = $1 AND kind = 'avatar'", ownerID); err != nil {
				return err
			}
		}

		created, err = scanPhoto(tx.QueryRowContext(ctx,
			"INSERT INTO photos (user_id, kind, storage_key, mime_type, width, height, size_bytes) VALUES ($1, 'avatar', $2, $3, $4, $5, $6) RETURNING "+photoColumns,
			ownerID, p.StorageKey, p.MimeType, p.Width, p.Height, p.SizeBytes))
		return mapCheckViolation(err)
	})
	if err != nil {
		return nil, nil, err
	}
	return created, replaced, nil
}

// AddGalleryPhoto inserts p at the lowest free gallery position.
func (d *DB) AddGalleryPhoto(ctx context.Context, ownerID int64, p domain.Photo) (*domain.Photo, error) {
	var created *domain.Photo
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockOwner(ctx, tx, ownerID); err != nil {
			return err
		}

		var total int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM photos WHERE user_id = $1", ownerID).Scan(&total); err != nil {
			return err
		}
		if total >= domain.MaxPhotos {
			return domain.ErrMaxPhotosReached
		}

		var pos sql.NullInt64
		err := tx.QueryRowContext(ctx,
			`SELECT MIN(n) FROM generate_series(1, $2) AS n
			 WHERE n NOT IN (SELECT position FROM photos WHERE user_id = $1 AND kind = 'gallery')`,
			ownerID, domain.MaxPhotos).Scan(&pos)
		if err != nil {
			return err
		}
		if !pos.Valid {
			return domain.ErrGalleryFull
		}

		created, err = scanPhoto(tx.QueryRowContext(ctx,
			"INSERT INTO photos (user_id, kind, position, storage_key, mime_type, width, height, size_bytes) VALUES ($1, 'gallery', $2, $3, $4, $5, $6, $7) RETURNING "+photoColumns,
			ownerID, pos.Int64, p.StorageKey, p.MimeType, p.Width, p.Height, p.SizeBytes))
		return mapCheckViolation(err)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// DeletePhoto removes the owner's photo and compacts gallery positions.
func (d *DB) DeletePhoto(ctx context.Context, ownerID, id int64) (*domain.Photo, error) {
	var deleted *domain.Photo
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockOwner(ctx, tx, ownerID); err != nil {
			return err
		}

		var err error
		deleted, err = scanPhoto(tx.QueryRowContext(ctx,
			"DELETE FROM photos WHERE id = $1 AND user_id = $2 RETURNING "+photoColumns, id, ownerID))
		if err != nil {
			return err
		}
		if deleted == nil {
			return domain.ErrPhotoNotFound
		}
		if deleted.Kind != domain.KindGallery {
			return nil
		}

		// Renumber survivors to a gap-free 1..N, keeping relative order.
		// Only rows whose position actually changes are written.
		_, err = tx.ExecContext(ctx,
			`UPDATE photos SET position = ranked.rank
			 FROM (SELECT id, ROW_NUMBER() OVER (ORDER BY position) AS rank
			       FROM photos WHERE user_id = $1 AND kind = 'gallery') AS ranked
			 WHERE photos.id = ranked.id AND photos.position <> ranked.rank`,
			ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ReorderGallery applies the position changes as one atomic update.
func (d *DB) ReorderGallery(ctx context.Context, ownerID int64, changes []domain.PositionChange) ([]domain.Photo, error) {
	var result []domain.Photo
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockOwner(ctx, tx, ownerID); err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx,
			"SELECT id, position FROM photos WHERE user_id = $1 AND kind = 'gallery'", ownerID)
		if err != nil {
			return err
		}
		current := map[int64]int{}
		for rows.Next() {
			var id int64
			var pos int
			if err := rows.Scan(&id, &pos); err != nil {
				rows.Close()
				return err
			}
			current[id] = pos
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		next := map[int64]int{}
		for _, c := range changes {
			if _, ok := current[c.ID]; !ok {
				return domain.ErrInvalidIDs
			}
			next[c.ID] = int(c.Position)
		}

		// Unchanged photos keep their slot; the final assignment must be a
		// permutation of 1..N.
		seen := map[int]bool{}
		for id, pos := range current {
			if p, ok := next[id]; ok {
				pos = p
			}
			if pos < 1 || pos > len(current) || seen[pos] {
				return domain.ErrInvalidPositions
			}
			seen[pos] = true
		}

		if len(next) > 0 {
			// One statement for the whole assignment; the deferred unique
			// constraint tolerates the intermediate collisions.
			var when strings.Builder
			args := []any{ownerID}
			ids := make([]string, 0, len(next))
			for id, pos := range next {
				fmt.Fprintf(&when, " WHEN $%d::bigint THEN $%d::int", len(args)+1, len(args)+2)
				args = append(args, id, pos)
				ids = append(ids, fmt.Sprintf("$%d::bigint", len(args)+1))
				args = append(args, id)
			}
			query := fmt.Sprintf(
				"UPDATE photos SET position = CASE id%s END WHERE user_id = $1 AND id IN (%s)",
				when.String(), strings.Join(ids, ", "))
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return mapCheckViolation(err)
			}
		}

		galleryRows, err := tx.QueryContext(ctx,
			"SELECT "+photoColumns+" FROM photos WHERE user_id = $1 AND kind = 'gallery' ORDER BY position",
			ownerID)
		if err != nil {
			return err
		}
		defer galleryRows.Close()
		for galleryRows.Next() {
			p, err := scanPhoto(galleryRows)
			if err != nil {
				return err
			}
			result = append(result, *p)
		}
		return galleryRows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
