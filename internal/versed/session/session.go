// Package session implements the per-display process state: the
// pairing lifecycle and the presentation state machine that all
// transports feed into.
package session

import (
	"log/slog"
	"sync"
	"time"

	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
	"github.com/versewall/versewall/internal/versed/dedup"
)

// Phase is the display session lifecycle
type Phase string

const (
	// PhaseLoading resolves a prior pairing against the backing store
	PhaseLoading Phase = "loading"
	// PhasePairing awaits a claim; no host state exists yet
	PhasePairing Phase = "pairing"
	// PhaseReady is paired with no event loaded; the logo screen shows
	PhaseReady Phase = "ready"
	// PhasePresenting has an event loaded and applies navigation
	PhasePresenting Phase = "presenting"
)

// Broadcaster receives every state change, fire-and-forget. A failing
// broadcaster must not block the others or roll back the change;
// implementations swallow or log their own errors.
type Broadcaster func(*v1alpha1.HostState)

// Session owns the HostState for one display. All command application,
// regardless of originating transport, is serialized through its mutex
// so the state machine never observes interleaved partial updates.
type Session struct {
	logger *slog.Logger
	now    func() time.Time

	mu           sync.Mutex
	phase        Phase
	identity     *v1alpha1.DisplayIdentity
	state        *v1alpha1.HostState
	settings     map[string]string
	clients      int
	deduper      *dedup.Deduper
	broadcasters []Broadcaster
}

// New creates a session in the loading phase
func New(logger *slog.Logger) *Session {
	return &Session{
		logger:   logger,
		now:      time.Now,
		phase:    PhaseLoading,
		settings: make(map[string]string),
		deduper:  dedup.New(0, 0),
	}
}

// SetBroadcasters replaces the state-change sinks. Called when the
// transports for a pairing come up, before commands start flowing.
func (s *Session) SetBroadcasters(bs ...Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcasters = bs
}

// Phase returns the current lifecycle phase
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Identity returns the paired identity, or nil before pairing
func (s *Session) Identity() *v1alpha1.DisplayIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// BeginPairing moves an unpaired session from loading to pairing
func (s *Session) BeginPairing() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.phase = PhasePairing
	s.identity = nil
	s.state = nil
	s.logger.Info("session awaiting pairing")
}

// SetPaired installs a claimed identity and moves to ready. The initial
// state shows the logo screen with no event loaded.
func (s *Session) SetPaired(identity *v1alpha1.DisplayIdentity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.identity = identity
	s.phase = PhaseReady
	s.state = &v1alpha1.HostState{
		DisplayID:        identity.DisplayID,
		IsLogo:           true,
		Transition:       v1alpha1.TransitionCut,
		ConnectedClients: s.clients,
		LastUpdated:      s.now(),
	}
	s.logger.Info("session paired",
		"displayId", identity.DisplayID,
		"tenantId", identity.TenantID,
		"name", identity.Name,
	)
}

// Unpair drops the identity and returns to pairing. Called when the
// display's registry row is removed.
func (s *Session) Unpair() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("session unpaired")
	s.phase = PhasePairing
	s.identity = nil
	s.state = nil
}

// Snapshot returns a copy of the current host state. Before pairing
// completes there is no state and Snapshot returns an empty one.
func (s *Session) Snapshot() *v1alpha1.HostState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return &v1alpha1.HostState{}
	}
	return s.state.Clone()
}

// Settings returns a copy of the accumulated display settings
func (s *Session) Settings() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out
}

// ClientConnected records an authenticated local controller
func (s *Session) ClientConnected() {
	s.mu.Lock()
	s.clients++
	state := s.syncClientsLocked()
	s.mu.Unlock()

	s.broadcast(state)
}

// ClientDisconnected records a departed local controller
func (s *Session) ClientDisconnected() {
	s.mu.Lock()
	if s.clients > 0 {
		s.clients--
	}
	state := s.syncClientsLocked()
	s.mu.Unlock()

	s.broadcast(state)
}

func (s *Session) syncClientsLocked() *v1alpha1.HostState {
	if s.state == nil {
		return nil
	}
	s.state.ConnectedClients = s.clients
	s.state.LastUpdated = s.now()
	return s.state.Clone()
}

func (s *Session) broadcast(state *v1alpha1.HostState) {
	if state == nil {
		return
	}
	s.mu.Lock()
	bs := s.broadcasters
	s.mu.Unlock()
	for _, b := range bs {
		b(state)
	}
}
