package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/profilesync/internal/testutil"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) (*Store, *testutil.StepClock) {
	t.Helper()
	clock := testutil.NewStepClock()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}

// dropUniqueIndex removes the uniqueness constraint on profiles.id so tests
// can reproduce a store that holds duplicates.
func dropUniqueIndex(t *testing.T, s *Store) {
	t.Helper()
	if _, err := s.db.Exec(`DROP INDEX idx_profiles_id`); err != nil {
		t.Fatalf("drop unique index: %v", err)
	}
}

// insertRaw writes a row directly, bypassing Upsert.
func insertRaw(t *testing.T, s *Store, id, fullName string, age int, decision string, updatedAt int64) {
	t.Helper()
	_, err := s.db.Exec(`
		INSERT INTO profiles (id, full_name, age, city, image_url, decision, updated_at)
		VALUES (?, ?, ?, 'NYC', 'https://img.example.com/x.jpg', ?, ?)
	`, id, fullName, age, decision, updatedAt)
	if err != nil {
		t.Fatalf("insert raw %s: %v", id, err)
	}
}

// rowCount counts rows for id, including duplicates.
func rowCount(t *testing.T, s *Store, id string) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM profiles WHERE id = ?`, id).Scan(&n); err != nil {
		t.Fatalf("count rows %s: %v", id, err)
	}
	return n
}
