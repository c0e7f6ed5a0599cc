package session

import (
	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
)

// ApplyCommand is the single command-application pipeline. Every
// transport delivers here, so the dedup check runs exactly once per
// message no matter which path carried it. Duplicates are a no-op: the
// state machine cannot distinguish a replay from a legitimate repeat
// any other way.
func (s *Session) ApplyCommand(cmd *v1alpha1.ClientCommand) {
	s.mu.Lock()

	if s.phase != PhaseReady && s.phase != PhasePresenting {
		s.mu.Unlock()
		s.logger.Info("dropping command before pairing", "type", string(cmd.Type))
		return
	}

	if s.deduper.IsDuplicate(cmd.CommandID) {
		s.mu.Unlock()
		s.logger.Info("suppressing duplicate command",
			"type", string(cmd.Type),
			"commandId", cmd.CommandID,
		)
		return
	}

	changed := s.applyLocked(cmd)
	var state *v1alpha1.HostState
	if changed {
		s.state.ConnectedClients = s.clients
		s.state.LastUpdated = s.now()
		state = s.state.Clone()
	}
	s.mu.Unlock()

	// Broadcast outside the lock; transports must not serialize against
	// command application.
	s.broadcast(state)
}

// applyLocked mutates the state for one command and reports whether
// anything changed. The switch is exhaustive over command kinds: adding
// a kind without handling it here is a compile-time visible gap at the
// single dispatch point.
func (s *Session) applyLocked(cmd *v1alpha1.ClientCommand) bool {
	switch cmd.Type {
	case v1alpha1.CommandLoadEvent:
		if cmd.EventID == "" {
			return false
		}
		eventID := cmd.EventID
		s.state.EventID = &eventID
		s.state.CurrentItemIndex = 0
		s.state.CurrentSectionIndex = 0
		s.state.CurrentSlideIndex = 0
		s.state.IsLogo = false
		s.state.IsBlank = false
		s.phase = PhasePresenting
		s.logger.Info("event loaded", "eventId", eventID)
		return true

	case v1alpha1.CommandUnloadEvent:
		if s.phase != PhasePresenting {
			return false
		}
		s.state.EventID = nil
		s.state.CurrentItemIndex = 0
		s.state.CurrentSectionIndex = 0
		s.state.CurrentSlideIndex = 0
		s.state.IsLogo = true
		s.state.IsBlank = false
		s.phase = PhaseReady
		s.logger.Info("event unloaded")
		return true

	case v1alpha1.CommandSetSlide:
		if s.phase != PhasePresenting {
			return false
		}
		s.state.CurrentItemIndex = clampIndex(cmd.ItemIndex)
		s.state.CurrentSectionIndex = clampIndex(cmd.SectionIndex)
		s.state.CurrentSlideIndex = clampIndex(cmd.SlideIndex)
		return true

	case v1alpha1.CommandGotoSlide:
		if s.phase != PhasePresenting {
			return false
		}
		s.state.CurrentSlideIndex = clampIndex(cmd.SlideIndex)
		return true

	case v1alpha1.CommandGotoSection:
		if s.phase != PhasePresenting {
			return false
		}
		s.state.CurrentSectionIndex = clampIndex(cmd.SectionIndex)
		s.state.CurrentSlideIndex = 0
		return true

	case v1alpha1.CommandGotoItem:
		if s.phase != PhasePresenting {
			return false
		}
		s.state.CurrentItemIndex = clampIndex(cmd.ItemIndex)
		s.state.CurrentSectionIndex = 0
		s.state.CurrentSlideIndex = 0
		return true

	case v1alpha1.CommandNextSlide:
		if s.phase != PhasePresenting {
			return false
		}
		// Upper bounds belong to the content layer; this subsystem does
		// not know slide counts.
		s.state.CurrentSlideIndex++
		return true

	case v1alpha1.CommandPrevSlide:
		if s.phase != PhasePresenting {
			return false
		}
		if s.state.CurrentSlideIndex > 0 {
			s.state.CurrentSlideIndex--
			return true
		}
		return false

	case v1alpha1.CommandBlankScreen:
		// Override modes are mutually exclusive
		s.state.IsBlank = true
		s.state.IsLogo = false
		return true

	case v1alpha1.CommandShowLogo:
		s.state.IsLogo = true
		s.state.IsBlank = false
		return true

	case v1alpha1.CommandUnblank:
		if !s.state.IsBlank && !s.state.IsLogo {
			return false
		}
		s.state.IsBlank = false
		// Ready keeps its logo: unblank only returns to slides while
		// presenting.
		s.state.IsLogo = s.phase == PhaseReady
		return true

	case v1alpha1.CommandSetTransition:
		if !cmd.Transition.Valid() {
			s.logger.Info("ignoring unknown transition", "transition", string(cmd.Transition))
			return false
		}
		s.state.Transition = cmd.Transition
		return true

	case v1alpha1.CommandUpdateSettings:
		for k, v := range cmd.Settings {
			s.settings[k] = v
		}
		return len(cmd.Settings) > 0

	default:
		s.logger.Error("dropping command of unknown type", "type", string(cmd.Type))
		return false
	}
}

func clampIndex(i int) int {
	if i < 0 {
		return 0
	}
	return i
}
