package store

import (
	"fmt"
	"time"

	"github.com/roach88/profilesync/internal/profile"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanProfile reads one row selected with selectColumns.
// A row whose image URL or decision no longer validates is reported as an
// error rather than returned half-formed.
func scanProfile(row rowScanner) (profile.StoredProfile, error) {
	var (
		id, fullName, city, imageURL, decision string
		age                                    int
		updatedAt                              int64
	)
	if err := row.Scan(&id, &fullName, &age, &city, &imageURL, &decision, &updatedAt); err != nil {
		return profile.StoredProfile{}, err
	}

	u, err := profile.ParseImageURL(imageURL)
	if err != nil {
		return profile.StoredProfile{}, fmt.Errorf("scan %s: %w", id, err)
	}

	d := profile.Decision(decision)
	if !d.Valid() {
		return profile.StoredProfile{}, fmt.Errorf("scan %s: invalid decision %q", id, decision)
	}

	return profile.StoredProfile{
		Profile: profile.Profile{
			ID:       id,
			FullName: fullName,
			Age:      age,
			City:     city,
			ImageURL: u,
		},
		Decision:  d,
		UpdatedAt: fromUnixNano(updatedAt),
	}, nil
}

// fromUnixNano converts a stored updated_at value to a UTC time.
func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
