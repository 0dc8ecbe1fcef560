package syncer

import (
	"github.com/roach88/profilesync/internal/profile"
)

// Phase is the position of the current cycle in its state machine.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseLoadingCache      Phase = "loading_cache"
	PhaseRefreshingNetwork Phase = "refreshing_network"
	PhaseCancelled         Phase = "cancelled"
)

// State is the published view observed by the presentation layer.
type State struct {
	// Profiles is the last successfully read store contents, ordered by
	// full name. Never cleared by a failed refresh.
	Profiles []profile.StoredProfile

	// Err is the latest surfaced error, kept until ClearError.
	Err *SyncError

	Online  bool
	Phase   Phase
	CycleID string // id of the cycle that last changed Phase
}

// ErrorMessage returns the user-facing message, or "" when there is none.
func (s State) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Message()
}

// clone returns a deep copy; callers may modify it freely.
func (s State) clone() State {
	profiles := make([]profile.StoredProfile, len(s.Profiles))
	for i, p := range s.Profiles {
		p.Profile = p.Profile.Clone()
		profiles[i] = p
	}
	s.Profiles = profiles
	return s
}
