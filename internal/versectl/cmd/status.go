package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
)

// newStatusCmd creates the status command showing a display's transport
// state and current presentation state.
func newStatusCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "status DISPLAY_ID",
		Short: "Show a display's connection and presentation state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			displayID := args[0]

			c, err := newController()
			if err != nil {
				return err
			}
			defer c.Close()

			status, err := c.manager.Connect(cmd.Context(), displayID)
			if err != nil {
				return err
			}

			// The retained cloud broadcast or the local STATE_SYNC usually
			// arrives within moments of connecting
			deadline := time.Now().Add(wait)
			var state *v1alpha1.HostState
			for time.Now().Before(deadline) {
				if state = c.manager.State(displayID); state != nil {
					break
				}
				time.Sleep(100 * time.Millisecond)
			}

			fmt.Printf("Display:    %s\n", displayID)
			fmt.Printf("Connection: %s", status.State)
			if status.Transport != "" {
				fmt.Printf(" (%s)", status.Transport)
			}
			fmt.Println()

			if state == nil {
				fmt.Println("State:      not received")
				return nil
			}

			if state.EventID != nil {
				fmt.Printf("Event:      %s\n", *state.EventID)
				fmt.Printf("Position:   item %d, section %d, slide %d\n",
					state.CurrentItemIndex, state.CurrentSectionIndex, state.CurrentSlideIndex)
			} else {
				fmt.Println("Event:      none loaded")
			}
			switch {
			case state.IsBlank:
				fmt.Println("Override:   blank")
			case state.IsLogo:
				fmt.Println("Override:   logo")
			default:
				fmt.Println("Override:   none")
			}
			fmt.Printf("Transition: %s\n", state.Transition)
			fmt.Printf("Clients:    %d\n", state.ConnectedClients)
			fmt.Printf("Updated:    %s\n", state.LastUpdated.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 3*time.Second, "How long to wait for a state broadcast")

	return cmd
}
