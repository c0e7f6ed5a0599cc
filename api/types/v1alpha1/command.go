package v1alpha1

// ClientCommandType defines the kinds of commands a controller can send
type ClientCommandType string

const (
	// CommandLoadEvent loads an event and begins presenting
	CommandLoadEvent ClientCommandType = "LOAD_EVENT"
	// CommandUnloadEvent unloads the event and returns to the logo screen
	CommandUnloadEvent ClientCommandType = "UNLOAD_EVENT"
	// CommandSetSlide jumps to an absolute item/section/slide position
	CommandSetSlide ClientCommandType = "SET_SLIDE"
	// CommandGotoSlide jumps to a slide within the current section
	CommandGotoSlide ClientCommandType = "GOTO_SLIDE"
	// CommandGotoSection jumps to a section within the current item
	CommandGotoSection ClientCommandType = "GOTO_SECTION"
	// CommandGotoItem jumps to an item within the event
	CommandGotoItem ClientCommandType = "GOTO_ITEM"
	// CommandNextSlide advances one slide
	CommandNextSlide ClientCommandType = "NEXT_SLIDE"
	// CommandPrevSlide steps back one slide, clamped at zero
	CommandPrevSlide ClientCommandType = "PREV_SLIDE"
	// CommandBlankScreen activates the blank-screen override
	CommandBlankScreen ClientCommandType = "BLANK_SCREEN"
	// CommandShowLogo activates the logo override
	CommandShowLogo ClientCommandType = "SHOW_LOGO"
	// CommandUnblank clears any active override
	CommandUnblank ClientCommandType = "UNBLANK"
	// CommandSetTransition changes the slide transition style
	CommandSetTransition ClientCommandType = "SET_TRANSITION"
	// CommandUpdateSettings merges display settings
	CommandUpdateSettings ClientCommandType = "UPDATE_SETTINGS"
)

// ClientCommand is a single control instruction for a display.
//
// CommandID is an opaque creator-generated identifier used only for
// deduplication when the same command arrives over both transports; it
// carries no ordering semantics. Commands without a CommandID are never
// deduplicated.
type ClientCommand struct {
	// Type selects the command kind
	Type ClientCommandType `json:"type"`
	// CommandID identifies this command for deduplication
	CommandID string `json:"commandId,omitempty"`
	// EventID names the event for LOAD_EVENT
	EventID string `json:"eventId,omitempty"`
	// ItemIndex is the target item for SET_SLIDE and GOTO_ITEM
	ItemIndex int `json:"itemIndex,omitempty"`
	// SectionIndex is the target section for SET_SLIDE and GOTO_SECTION
	SectionIndex int `json:"sectionIndex,omitempty"`
	// SlideIndex is the target slide for SET_SLIDE and GOTO_SLIDE
	SlideIndex int `json:"slideIndex,omitempty"`
	// Transition is the style for SET_TRANSITION
	Transition Transition `json:"transition,omitempty"`
	// Settings carries key-value pairs for UPDATE_SETTINGS
	Settings map[string]string `json:"settings,omitempty"`
}
