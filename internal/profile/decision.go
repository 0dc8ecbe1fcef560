package profile

import (
	"fmt"
	"strings"
)

// Decision is the user's accept/decline choice for a profile.
type Decision string

const (
	DecisionNone     Decision = "none"
	DecisionAccepted Decision = "accepted"
	DecisionDeclined Decision = "declined"
)

// Decisions lists every valid decision in declaration order.
var Decisions = []Decision{DecisionNone, DecisionAccepted, DecisionDeclined}

// ParseDecision converts s to a Decision.
// The short forms "accept" and "decline" are accepted as aliases.
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return DecisionNone, nil
	case "accepted", "accept":
		return DecisionAccepted, nil
	case "declined", "decline":
		return DecisionDeclined, nil
	}
	return "", fmt.Errorf("unknown decision %q: must be one of %v", s, Decisions)
}

// Valid reports whether d is one of the declared decisions.
func (d Decision) Valid() bool {
	switch d {
	case DecisionNone, DecisionAccepted, DecisionDeclined:
		return true
	}
	return false
}

func (d Decision) String() string {
	return string(d)
}

// MarshalText implements encoding.TextMarshaler.
func (d Decision) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid decision %q", string(d))
	}
	return []byte(d), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decision) UnmarshalText(b []byte) error {
	parsed, err := ParseDecision(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
