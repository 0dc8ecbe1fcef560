package store

import (
	"context"
	"fmt"

	"github.com/roach88/profilesync/internal/profile"
)

// deleteDuplicatesSQL removes every row that has a newer row with the same
// id. "Newer" means a later updated_at, or the same updated_at and a higher
// row_id, so exactly one row per id survives and the choice is deterministic.
const deleteDuplicatesSQL = `
	DELETE FROM profiles
	WHERE EXISTS (
		SELECT 1 FROM profiles AS newer
		WHERE newer.id = profiles.id
		  AND (newer.updated_at > profiles.updated_at
		       OR (newer.updated_at = profiles.updated_at AND newer.row_id > profiles.row_id))
	)
`

// Upsert merges a batch of profiles into the store in a single transaction.
//
// For each profile, an existing row with the same id has its remote fields
// and updated_at overwritten while its decision is left untouched. A profile
// with no row is inserted with decision "none".
//
// Either the whole batch becomes visible or, on error, none of it does. A
// profile that fails validation rejects the batch before anything is written.
func (s *Store) Upsert(ctx context.Context, batch []profile.Profile) error {
	if len(batch) == 0 {
		return nil
	}
	for i, p := range batch {
		if err := p.Validate(); err != nil {
			return opError("upsert", fmt.Errorf("profile %d (%q): %w", i, p.ID, err))
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return opError("upsert", fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() // No-op if committed

	update, err := tx.PrepareContext(ctx, `
		UPDATE profiles
		SET full_name = ?, age = ?, city = ?, image_url = ?, updated_at = ?
		WHERE id = ?
	`)
	if err != nil {
		return opError("upsert", fmt.Errorf("prepare update: %w", err))
	}
	defer update.Close()

	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO profiles (id, full_name, age, city, image_url, decision, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return opError("upsert", fmt.Errorf("prepare insert: %w", err))
	}
	defer insert.Close()

	for _, p := range batch {
		now := s.now()

		result, err := update.ExecContext(ctx,
			p.FullName,
			p.Age,
			p.City,
			p.ImageURLString(),
			now,
			p.ID,
		)
		if err != nil {
			return opError("upsert", fmt.Errorf("update %s: %w", p.ID, err))
		}

		updated, err := result.RowsAffected()
		if err != nil {
			return opError("upsert", fmt.Errorf("rows affected: %w", err))
		}
		if updated > 0 {
			continue
		}

		_, err = insert.ExecContext(ctx,
			p.ID,
			p.FullName,
			p.Age,
			p.City,
			p.ImageURLString(),
			string(profile.DecisionNone),
			now,
		)
		if err != nil {
			return opError("upsert", fmt.Errorf("insert %s: %w", p.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return opError("upsert", fmt.Errorf("commit: %w", err))
	}

	return nil
}

// SetDecision records decision against the profile with the given id.
// Returns false with no error if no such profile exists.
func (s *Store) SetDecision(ctx context.Context, id string, decision profile.Decision) (bool, error) {
	if !decision.Valid() {
		return false, opError("set decision", fmt.Errorf("invalid decision %q", string(decision)))
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET decision = ?, updated_at = ? WHERE id = ?
	`, string(decision), s.now(), id)
	if err != nil {
		return false, opError("set decision", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, opError("set decision", fmt.Errorf("rows affected: %w", err))
	}
	return n > 0, nil
}

// DeleteAll removes every profile. Returns the number of rows removed.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM profiles`)
	if err != nil {
		return 0, opError("delete all", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, opError("delete all", fmt.Errorf("rows affected: %w", err))
	}
	return n, nil
}

// RemoveDuplicates keeps one row per id, the one with the latest updated_at,
// and deletes the rest. Returns the number of rows removed.
//
// Duplicates can only exist if the unique index was bypassed. Calling this
// when the table is already clean is a no-op.
func (s *Store) RemoveDuplicates(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, deleteDuplicatesSQL)
	if err != nil {
		return 0, opError("remove duplicates", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, opError("remove duplicates", fmt.Errorf("rows affected: %w", err))
	}
	return n, nil
}
