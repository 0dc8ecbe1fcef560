package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/profilesync/internal/profile"
)

const selectColumns = `id, full_name, age, city, image_url, decision, updated_at`

// FetchAll returns every stored profile ordered by full name ascending,
// ties broken by id.
//
// Returns an empty slice (not nil) if the store is empty.
func (s *Store) FetchAll(ctx context.Context) ([]profile.StoredProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM profiles
		ORDER BY full_name ASC, id ASC, row_id ASC
	`)
	if err != nil {
		return nil, opError("fetch all", err)
	}
	defer rows.Close()

	profiles := []profile.StoredProfile{}
	for rows.Next() {
		sp, err := scanProfile(rows)
		if err != nil {
			return nil, opError("fetch all", err)
		}
		profiles = append(profiles, sp)
	}

	if err := rows.Err(); err != nil {
		return nil, opError("fetch all", fmt.Errorf("iterate profiles: %w", err))
	}

	return profiles, nil
}

// Count returns the number of stored profiles.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n); err != nil {
		return 0, opError("count", err)
	}
	return n, nil
}

// Get retrieves a single profile by id.
// Returns ErrNotFound if no profile has that id.
func (s *Store) Get(ctx context.Context, id string) (profile.StoredProfile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM profiles
		WHERE id = ?
		ORDER BY updated_at DESC, row_id DESC
		LIMIT 1
	`, id)

	sp, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return profile.StoredProfile{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return profile.StoredProfile{}, opError("get", err)
	}
	return sp, nil
}
