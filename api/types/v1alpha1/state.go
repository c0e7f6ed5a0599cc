package v1alpha1

import "time"

// Transition represents how a display switches between slides
type Transition string

const (
	// TransitionCut switches slides immediately
	TransitionCut Transition = "cut"
	// TransitionFade cross-fades between slides
	TransitionFade Transition = "fade"
	// TransitionSlide animates slides horizontally
	TransitionSlide Transition = "slide"
)

// Valid reports whether t is a known transition
func (t Transition) Valid() bool {
	switch t {
	case TransitionCut, TransitionFade, TransitionSlide:
		return true
	}
	return false
}

// HostState is the single source of truth for what a display is showing.
// It is owned by the host's display session and mutated only by applying
// a ClientCommand. At most one override mode (blank or logo) is active
// at a time.
type HostState struct {
	// DisplayID identifies which display this state belongs to
	DisplayID string `json:"displayId"`
	// EventID is the loaded event, or nil when idle
	EventID *string `json:"eventId"`
	// CurrentItemIndex is the position within the event's item list
	CurrentItemIndex int `json:"currentItemIndex"`
	// CurrentSectionIndex is the position within the item's sections
	CurrentSectionIndex int `json:"currentSectionIndex"`
	// CurrentSlideIndex is the position within the section's slides
	CurrentSlideIndex int `json:"currentSlideIndex"`
	// IsBlank indicates the blank-screen override is active
	IsBlank bool `json:"isBlank"`
	// IsLogo indicates the logo override is active
	IsLogo bool `json:"isLogo"`
	// Transition is the active slide transition style
	Transition Transition `json:"transition"`
	// ConnectedClients counts authenticated local controller connections
	ConnectedClients int `json:"connectedClients"`
	// LastUpdated records when the state last changed
	LastUpdated time.Time `json:"lastUpdated"`
}

// Clone returns a deep copy of the state
func (s *HostState) Clone() *HostState {
	out := *s
	if s.EventID != nil {
		id := *s.EventID
		out.EventID = &id
	}
	return &out
}
