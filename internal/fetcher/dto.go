package fetcher

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/profilesync/internal/profile"
)

// ruResponse is the subset of the random-user API response we consume.
type ruResponse struct {
	Results *[]ruUser `json:"results"`
}

type ruUser struct {
	Login struct {
		UUID string `json:"uuid"`
	} `json:"login"`
	Name struct {
		First string `json:"first"`
		Last  string `json:"last"`
	} `json:"name"`
	DOB struct {
		Age int `json:"age"`
	} `json:"dob"`
	Location struct {
		City string `json:"city"`
	} `json:"location"`
	Picture struct {
		Large string `json:"large"`
	} `json:"picture"`
}

var errMissingResults = errors.New(`response has no "results" array`)

// decodeProfiles parses a response body and maps every record to a Profile.
// Any malformed record fails the whole batch.
func decodeProfiles(body []byte) ([]profile.Profile, error) {
	var resp ruResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, decodingFailure(err)
	}
	if resp.Results == nil {
		return nil, decodingFailure(errMissingResults)
	}

	users := *resp.Results
	profiles := make([]profile.Profile, 0, len(users))
	for i, u := range users {
		p, err := u.toProfile()
		if err != nil {
			return nil, decodingFailure(fmt.Errorf("record %d: %w", i, err))
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// toProfile maps the DTO to the domain type.
// The full name is "first last", NFC normalized.
func (u ruUser) toProfile() (profile.Profile, error) {
	fullName := norm.NFC.String(u.Name.First + " " + u.Name.Last)
	return profile.New(
		u.Login.UUID,
		fullName,
		u.DOB.Age,
		norm.NFC.String(u.Location.City),
		u.Picture.Large,
	)
}
