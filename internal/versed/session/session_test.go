package session

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
)

func testSession(t *testing.T) *Session {
	t.Helper()
	s := New(slog.Default())
	s.SetPaired(&v1alpha1.DisplayIdentity{
		DisplayID: "display-42",
		TenantID:  "church-1",
		Name:      "Main Hall",
	})
	return s
}

func TestLifecycle(t *testing.T) {
	t.Run("starts in loading", func(t *testing.T) {
		s := New(slog.Default())
		assert.Equal(t, PhaseLoading, s.Phase())
		assert.Nil(t, s.Identity())
	})

	t.Run("pairing installs logo state", func(t *testing.T) {
		s := testSession(t)
		assert.Equal(t, PhaseReady, s.Phase())

		state := s.Snapshot()
		assert.Equal(t, "display-42", state.DisplayID)
		assert.True(t, state.IsLogo)
		assert.False(t, state.IsBlank)
		assert.Nil(t, state.EventID)
		assert.Equal(t, v1alpha1.TransitionCut, state.Transition)
	})

	t.Run("unpair returns to pairing", func(t *testing.T) {
		s := testSession(t)
		s.Unpair()
		assert.Equal(t, PhasePairing, s.Phase())
		assert.Nil(t, s.Identity())
	})

	t.Run("commands dropped before pairing", func(t *testing.T) {
		s := New(slog.Default())
		s.BeginPairing()

		var broadcasts int
		s.SetBroadcasters(func(*v1alpha1.HostState) { broadcasts++ })

		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandNextSlide})
		assert.Equal(t, 0, broadcasts)
		assert.Equal(t, PhasePairing, s.Phase())
	})
}

func TestApplyCommand(t *testing.T) {
	present := func(t *testing.T) *Session {
		s := testSession(t)
		s.ApplyCommand(&v1alpha1.ClientCommand{
			Type:    v1alpha1.CommandLoadEvent,
			EventID: "event-1",
		})
		require.Equal(t, PhasePresenting, s.Phase())
		return s
	}

	t.Run("load event starts presenting at the top", func(t *testing.T) {
		s := present(t)
		state := s.Snapshot()
		require.NotNil(t, state.EventID)
		assert.Equal(t, "event-1", *state.EventID)
		assert.Equal(t, 0, state.CurrentItemIndex)
		assert.Equal(t, 0, state.CurrentSectionIndex)
		assert.Equal(t, 0, state.CurrentSlideIndex)
		assert.False(t, state.IsLogo)
		assert.False(t, state.IsBlank)
	})

	t.Run("load then unload restores the ready state", func(t *testing.T) {
		s := testSession(t)
		before := s.Snapshot()

		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandLoadEvent, EventID: "event-1"})
		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandNextSlide})
		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandUnloadEvent})

		assert.Equal(t, PhaseReady, s.Phase())
		after := s.Snapshot()

		// Everything except the update timestamp is back where it was
		before.LastUpdated = time.Time{}
		after.LastUpdated = time.Time{}
		assert.Equal(t, before, after)
	})

	t.Run("next slide has no upper bound", func(t *testing.T) {
		s := present(t)
		for i := 0; i < 200; i++ {
			s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandNextSlide})
		}
		assert.Equal(t, 200, s.Snapshot().CurrentSlideIndex)
	})

	t.Run("prev slide clamps at zero", func(t *testing.T) {
		s := present(t)
		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandPrevSlide})
		assert.Equal(t, 0, s.Snapshot().CurrentSlideIndex)

		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandNextSlide})
		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandPrevSlide})
		assert.Equal(t, 0, s.Snapshot().CurrentSlideIndex)
	})

	t.Run("goto section resets the slide", func(t *testing.T) {
		s := present(t)
		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandNextSlide})
		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandGotoSection, SectionIndex: 2})

		state := s.Snapshot()
		assert.Equal(t, 2, state.CurrentSectionIndex)
		assert.Equal(t, 0, state.CurrentSlideIndex)
	})

	t.Run("goto item resets section and slide", func(t *testing.T) {
		s := present(t)
		s.ApplyCommand(&v1alpha1.ClientCommand{
			Type: v1alpha1.CommandSetSlide, ItemIndex: 1, SectionIndex: 2, SlideIndex: 3,
		})
		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandGotoItem, ItemIndex: 4})

		state := s.Snapshot()
		assert.Equal(t, 4, state.CurrentItemIndex)
		assert.Equal(t, 0, state.CurrentSectionIndex)
		assert.Equal(t, 0, state.CurrentSlideIndex)
	})

	t.Run("negative indices clamp to zero", func(t *testing.T) {
		s := present(t)
		s.ApplyCommand(&v1alpha1.ClientCommand{
			Type: v1alpha1.CommandSetSlide, ItemIndex: -1, SectionIndex: -2, SlideIndex: -3,
		})

		state := s.Snapshot()
		assert.Equal(t, 0, state.CurrentItemIndex)
		assert.Equal(t, 0, state.CurrentSectionIndex)
		assert.Equal(t, 0, state.CurrentSlideIndex)
	})

	t.Run("blank and logo overrides are mutually exclusive", func(t *testing.T) {
		s := present(t)

		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandBlankScreen})
		state := s.Snapshot()
		assert.True(t, state.IsBlank)
		assert.False(t, state.IsLogo)

		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandShowLogo})
		state = s.Snapshot()
		assert.False(t, state.IsBlank)
		assert.True(t, state.IsLogo)

		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandUnblank})
		state = s.Snapshot()
		assert.False(t, state.IsBlank)
		assert.False(t, state.IsLogo)
	})

	t.Run("unblank while ready keeps the logo", func(t *testing.T) {
		s := testSession(t)
		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandBlankScreen})
		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandUnblank})

		state := s.Snapshot()
		assert.False(t, state.IsBlank)
		assert.True(t, state.IsLogo)
	})

	t.Run("set transition validates the style", func(t *testing.T) {
		s := present(t)

		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandSetTransition, Transition: v1alpha1.TransitionFade})
		assert.Equal(t, v1alpha1.TransitionFade, s.Snapshot().Transition)

		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandSetTransition, Transition: "teleport"})
		assert.Equal(t, v1alpha1.TransitionFade, s.Snapshot().Transition)
	})

	t.Run("settings merge across updates", func(t *testing.T) {
		s := testSession(t)
		s.ApplyCommand(&v1alpha1.ClientCommand{
			Type: v1alpha1.CommandUpdateSettings, Settings: map[string]string{"fontScale": "1.2"},
		})
		s.ApplyCommand(&v1alpha1.ClientCommand{
			Type: v1alpha1.CommandUpdateSettings, Settings: map[string]string{"theme": "dark"},
		})

		settings := s.Settings()
		assert.Equal(t, "1.2", settings["fontScale"])
		assert.Equal(t, "dark", settings["theme"])
	})

	t.Run("navigation ignored while ready", func(t *testing.T) {
		s := testSession(t)
		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandNextSlide})
		assert.Equal(t, 0, s.Snapshot().CurrentSlideIndex)
		assert.Equal(t, PhaseReady, s.Phase())
	})
}

func TestDeduplication(t *testing.T) {
	t.Run("same command id applies once", func(t *testing.T) {
		s := testSession(t)
		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandLoadEvent, EventID: "event-1"})

		// The same NEXT_SLIDE arriving over both transports
		cmd := &v1alpha1.ClientCommand{Type: v1alpha1.CommandNextSlide, CommandID: "cmd-1"}
		s.ApplyCommand(cmd)
		s.ApplyCommand(cmd)

		assert.Equal(t, 1, s.Snapshot().CurrentSlideIndex)
	})

	t.Run("commands without ids always apply", func(t *testing.T) {
		s := testSession(t)
		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandLoadEvent, EventID: "event-1"})

		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandNextSlide})
		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandNextSlide})

		assert.Equal(t, 2, s.Snapshot().CurrentSlideIndex)
	})
}

func TestBroadcast(t *testing.T) {
	t.Run("state changes reach every broadcaster", func(t *testing.T) {
		s := testSession(t)

		var first, second []*v1alpha1.HostState
		s.SetBroadcasters(
			func(state *v1alpha1.HostState) { first = append(first, state) },
			func(state *v1alpha1.HostState) { second = append(second, state) },
		)

		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandLoadEvent, EventID: "event-1"})

		require.Len(t, first, 1)
		require.Len(t, second, 1)
		require.NotNil(t, first[0].EventID)
		assert.Equal(t, "event-1", *first[0].EventID)
	})

	t.Run("no-op commands do not broadcast", func(t *testing.T) {
		s := testSession(t)

		var broadcasts int
		s.SetBroadcasters(func(*v1alpha1.HostState) { broadcasts++ })

		// PREV_SLIDE at zero changes nothing
		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandLoadEvent, EventID: "event-1"})
		s.ApplyCommand(&v1alpha1.ClientCommand{Type: v1alpha1.CommandPrevSlide})

		assert.Equal(t, 1, broadcasts)
	})

	t.Run("client counts flow into broadcasts", func(t *testing.T) {
		s := testSession(t)

		var last *v1alpha1.HostState
		s.SetBroadcasters(func(state *v1alpha1.HostState) { last = state })

		s.ClientConnected()
		require.NotNil(t, last)
		assert.Equal(t, 1, last.ConnectedClients)

		s.ClientConnected()
		assert.Equal(t, 2, last.ConnectedClients)

		s.ClientDisconnected()
		assert.Equal(t, 1, last.ConnectedClients)
	})
}
