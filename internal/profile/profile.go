package profile

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Validation errors returned by New.
var (
	ErrEmptyID     = errors.New("profile id is empty")
	ErrNegativeAge = errors.New("profile age is negative")
	ErrInvalidURL  = errors.New("profile image url is not absolute")
)

// Profile is a candidate record fetched from the remote source.
type Profile struct {
	ID       string
	FullName string
	Age      int
	City     string
	ImageURL *url.URL
}

// New validates its arguments and returns a Profile.
// rawURL must parse as an absolute URL with a host.
func New(id, fullName string, age int, city, rawURL string) (Profile, error) {
	u, err := ParseImageURL(rawURL)
	if err != nil {
		return Profile{}, err
	}
	p := Profile{
		ID:       id,
		FullName: fullName,
		Age:      age,
		City:     city,
		ImageURL: u,
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate reports the first invariant p violates. Profiles built with
// New always pass; literals built elsewhere may not.
func (p Profile) Validate() error {
	if p.ID == "" {
		return ErrEmptyID
	}
	if p.Age < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeAge, p.Age)
	}
	if p.ImageURL == nil {
		return fmt.Errorf("%w: missing", ErrInvalidURL)
	}
	if !validImageURL(p.ImageURL) {
		return fmt.Errorf("%w: %q", ErrInvalidURL, p.ImageURL.String())
	}
	return nil
}

// Clone returns a copy of p that shares no memory with it.
func (p Profile) Clone() Profile {
	if p.ImageURL != nil {
		u := *p.ImageURL
		if u.User != nil {
			user := *u.User
			u.User = &user
		}
		p.ImageURL = &u
	}
	return p
}

// ParseImageURL parses raw and rejects anything that is not an absolute URL.
func ParseImageURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURL, raw, err)
	}
	if !validImageURL(u) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return u, nil
}

func validImageURL(u *url.URL) bool {
	return u.IsAbs() && u.Host != ""
}

// ImageURLString returns the image URL in string form, or "" if unset.
func (p Profile) ImageURLString() string {
	if p.ImageURL == nil {
		return ""
	}
	return p.ImageURL.String()
}

// StoredProfile is a Profile as persisted by the local store, together with
// the user's decision and the time of the last write.
type StoredProfile struct {
	Profile
	Decision  Decision
	UpdatedAt time.Time
}
