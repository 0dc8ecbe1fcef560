package testutil

import (
	"fmt"
	"testing"

	"github.com/roach88/profilesync/internal/profile"
)

// Profile builds a valid profile for tests, failing t on invalid input.
// The image URL is derived from the id.
func Profile(t testing.TB, id, fullName string, age int, city string) profile.Profile {
	t.Helper()
	p, err := profile.New(id, fullName, age, city, fmt.Sprintf("https://img.example.com/%s.jpg", id))
	if err != nil {
		t.Fatalf("testutil.Profile(%q): %v", id, err)
	}
	return p
}
