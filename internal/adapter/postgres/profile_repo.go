package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"matcha/internal/domain"
)

var _ domain.ProfileRepository = (*DB)(nil)

const profileColumns = "user_id, display_name, gender, sexual_pref, bio, birthdate, fame_rating"

func scanProfile(row *sql.Row) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(&p.UserID, &p.DisplayName, &p.Gender, &p.SexualPref, &p.Bio, &p.Birthdate, &p.FameRating)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Get retrieves a profile, or nil when the user never saved one.
func (d *DB) Get(ctx context.Context, userID int64) (*domain.Profile, error) {
	return scanProfile(d.sql.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE user_id = $1", userID))
}

// Upsert applies a partial profile update, creating the row if needed. Only
// the fields present in the patch are written.
func (d *DB) Upsert(ctx context.Context, userID int64, patch domain.ProfilePatch) (*domain.Profile, error) {
	cols := []string{"user_id"}
	args := []any{userID}
	add := func(col string, v any) {
		cols = append(cols, col)
		args = append(args, v)
	}
	if patch.DisplayName != nil {
		add("display_name", *patch.DisplayName)
	}
	if patch.Gender != nil {
		add("gender", *patch.Gender)
	}
	if patch.SexualPref != nil {
		add("sexual_pref", *patch.SexualPref)
	}
	if patch.Bio != nil {
		add("bio", *patch.Bio)
	}
	if patch.Birthdate != nil {
		add("birthdate", *patch.Birthdate)
	}
	if patch.FameRating != nil {
		add("fame_rating", *patch.FameRating)
	}

	placeholders := make([]string, len(cols))
	sets := make([]string, 0, len(cols)-1)
	for i, col := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if i > 0 {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}

	query := fmt.Sprintf(
		"INSERT INTO profiles (%s) VALUES (%s) ON CONFLICT (user_id) DO UPDATE SET %s RETURNING %s",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(sets, ", "), profileColumns)
	if len(sets) == 0 {
		query = fmt.Sprintf(
			"INSERT INTO profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id RETURNING %s",
			profileColumns)
	}
	return scanProfile(d.sql.QueryRowContext(ctx, query, args...))
}
