package api

import (
	"time"

	"github.com/roach88/profilesync/internal/profile"
	"github.com/roach88/profilesync/internal/syncer"
)

// ProfileView is the JSON shape of a stored profile.
type ProfileView struct {
	ID        string           `json:"id"`
	FullName  string           `json:"full_name"`
	Age       int              `json:"age"`
	City      string           `json:"city"`
	ImageURL  string           `json:"image_url"`
	Decision  profile.Decision `json:"decision"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewProfileViews converts stored profiles, keeping their order.
func NewProfileViews(ps []profile.StoredProfile) []ProfileView {
	views := make([]ProfileView, len(ps))
	for i, p := range ps {
		views[i] = ProfileView{
			ID:        p.ID,
			FullName:  p.FullName,
			Age:       p.Age,
			City:      p.City,
			ImageURL:  p.ImageURLString(),
			Decision:  p.Decision,
			UpdatedAt: p.UpdatedAt,
		}
	}
	return views
}

// StateView is the JSON shape of the published sync state.
type StateView struct {
	Profiles  []ProfileView `json:"profiles"`
	Online    bool          `json:"online"`
	Phase     syncer.Phase  `json:"phase"`
	CycleID   string        `json:"cycle_id,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorKind syncer.Kind   `json:"error_kind,omitempty"`
}

// NewStateView converts a state snapshot.
func NewStateView(st syncer.State) StateView {
	v := StateView{
		Profiles: NewProfileViews(st.Profiles),
		Online:   st.Online,
		Phase:    st.Phase,
		CycleID:  st.CycleID,
	}
	if st.Err != nil {
		v.Error = st.Err.Message()
		v.ErrorKind = st.Err.Kind
	}
	return v
}
