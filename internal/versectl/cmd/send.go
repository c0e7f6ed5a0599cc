package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
)

// newSendCmd creates the send command group. Every subcommand connects
// to the target display, fires one command on all available transports,
// and exits; the host deduplicates overlapping deliveries.
func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send DISPLAY_ID COMMAND",
		Short: "Send a control command to a display",
		Long: `The send command drives a display: loading events, navigating slides,
and toggling screen overrides. Commands are delivered over the local network
when the display is reachable directly, and over the cloud relay otherwise.`,
	}

	cmd.AddCommand(
		newSendLoadCmd(),
		newSendUnloadCmd(),
		newSendNextCmd(),
		newSendPrevCmd(),
		newSendGotoCmd(),
		newSendBlankCmd(),
		newSendLogoCmd(),
		newSendUnblankCmd(),
		newSendTransitionCmd(),
		newSendSettingsCmd(),
	)

	return cmd
}

// deliver connects to the display, sends one command, and disconnects
func deliver(cmd *cobra.Command, displayID string, command *v1alpha1.ClientCommand) error {
	c, err := newController()
	if err != nil {
		return err
	}
	defer c.Close()

	status, err := c.manager.Connect(cmd.Context(), displayID)
	if err != nil {
		return err
	}
	if err := c.manager.Send(displayID, command); err != nil {
		return err
	}

	fmt.Printf("Sent %s to %s via %s\n", command.Type, displayID, status.Transport)
	return nil
}

func newSendLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load DISPLAY_ID EVENT_ID",
		Short: "Load an event and start presenting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deliver(cmd, args[0], &v1alpha1.ClientCommand{
				Type:    v1alpha1.CommandLoadEvent,
				EventID: args[1],
			})
		},
	}
}

func newSendUnloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unload DISPLAY_ID",
		Short: "Unload the current event, returning to the logo screen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deliver(cmd, args[0], &v1alpha1.ClientCommand{
				Type: v1alpha1.CommandUnloadEvent,
			})
		},
	}
}

func newSendNextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next DISPLAY_ID",
		Short: "Advance to the next slide",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deliver(cmd, args[0], &v1alpha1.ClientCommand{
				Type: v1alpha1.CommandNextSlide,
			})
		},
	}
}

func newSendPrevCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prev DISPLAY_ID",
		Short: "Go back one slide",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deliver(cmd, args[0], &v1alpha1.ClientCommand{
				Type: v1alpha1.CommandPrevSlide,
			})
		},
	}
}

func newSendGotoCmd() *cobra.Command {
	var item, section, slide int

	cmd := &cobra.Command{
		Use:   "goto DISPLAY_ID",
		Short: "Jump to a specific position",
		Long: `Jump to a position within the loaded event. Specifying only --item or
--section resets the narrower positions to the start; specifying all three
sets the exact slide.`,
		Example: `  # Jump to the third item
  versectl send goto display-42 --item=2

  # Jump to a specific slide
  versectl send goto display-42 --item=2 --section=1 --slide=4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case cmd.Flags().Changed("slide") && cmd.Flags().Changed("item"):
				return deliver(cmd, args[0], &v1alpha1.ClientCommand{
					Type:         v1alpha1.CommandSetSlide,
					ItemIndex:    item,
					SectionIndex: section,
					SlideIndex:   slide,
				})
			case cmd.Flags().Changed("slide"):
				return deliver(cmd, args[0], &v1alpha1.ClientCommand{
					Type:       v1alpha1.CommandGotoSlide,
					SlideIndex: slide,
				})
			case cmd.Flags().Changed("section"):
				return deliver(cmd, args[0], &v1alpha1.ClientCommand{
					Type:         v1alpha1.CommandGotoSection,
					SectionIndex: section,
				})
			case cmd.Flags().Changed("item"):
				return deliver(cmd, args[0], &v1alpha1.ClientCommand{
					Type:      v1alpha1.CommandGotoItem,
					ItemIndex: item,
				})
			default:
				return fmt.Errorf("specify at least one of --item, --section, --slide")
			}
		},
	}

	cmd.Flags().IntVar(&item, "item", 0, "Item index")
	cmd.Flags().IntVar(&section, "section", 0, "Section index")
	cmd.Flags().IntVar(&slide, "slide", 0, "Slide index")

	return cmd
}

func newSendBlankCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "blank DISPLAY_ID",
		Short: "Blank the screen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deliver(cmd, args[0], &v1alpha1.ClientCommand{
				Type: v1alpha1.CommandBlankScreen,
			})
		},
	}
}

func newSendLogoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logo DISPLAY_ID",
		Short: "Show the logo screen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deliver(cmd, args[0], &v1alpha1.ClientCommand{
				Type: v1alpha1.CommandShowLogo,
			})
		},
	}
}

func newSendUnblankCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unblank DISPLAY_ID",
		Short: "Clear blank or logo overrides",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deliver(cmd, args[0], &v1alpha1.ClientCommand{
				Type: v1alpha1.CommandUnblank,
			})
		},
	}
}

func newSendTransitionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transition DISPLAY_ID (cut|fade|slide)",
		Short: "Set the slide transition style",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			transition := v1alpha1.Transition(args[1])
			if !transition.Valid() {
				return fmt.Errorf("unknown transition %q", args[1])
			}
			return deliver(cmd, args[0], &v1alpha1.ClientCommand{
				Type:       v1alpha1.CommandSetTransition,
				Transition: transition,
			})
		},
	}
}

func newSendSettingsCmd() *cobra.Command {
	var settings map[string]string

	cmd := &cobra.Command{
		Use:   "settings DISPLAY_ID",
		Short: "Update display settings",
		Example: `  # Change the font scale
  versectl send settings display-42 --set fontScale=1.2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(settings) == 0 {
				return fmt.Errorf("specify at least one --set key=value")
			}
			return deliver(cmd, args[0], &v1alpha1.ClientCommand{
				Type:     v1alpha1.CommandUpdateSettings,
				Settings: settings,
			})
		},
	}

	cmd.Flags().StringToStringVar(&settings, "set", nil, "Setting key=value pairs")

	return cmd
}
