package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
	"github.com/versewall/versewall/internal/versectl/client"
)

// newWatchCmd creates the watch command, streaming state changes and
// presence events until interrupted.
func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch DISPLAY_ID",
		Short: "Stream a display's state changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			displayID := args[0]

			c, err := newController()
			if err != nil {
				return err
			}
			defer c.Close()

			// Rebuild the manager with a state sink before connecting
			c.manager.Close()
			c.manager = client.NewManager(client.Options{
				Token:            c.context.Token,
				TenantID:         c.context.Tenant,
				Registry:         managerLookup(c.registry),
				Discovery:        c.mdns,
				Relay:            managerRelay(c.relay),
				LocalDialTimeout: 5 * time.Second,
				DiscoveryTimeout: 3 * time.Second,
				Logger:           c.logger,
				OnState: func(id string, state *v1alpha1.HostState) {
					printStateLine(id, state)
				},
			})

			status, err := c.manager.Connect(cmd.Context(), displayID)
			if err != nil {
				return err
			}
			fmt.Printf("Watching %s via %s (ctrl-c to stop)\n", displayID, status.Transport)

			if c.context.Tenant != "" && c.relay != nil {
				if err := c.manager.WatchPresence(func(event v1alpha1.PresenceEvent) {
					if event.DisplayID == displayID {
						fmt.Printf("%s  presence: %s\n", time.Now().Format("15:04:05"), event.Type)
					}
				}); err != nil {
					c.logger.Error("error watching presence", "error", err)
				}
			}

			// A LAN stream that dies mid-watch would otherwise degrade
			// to cloud for the rest of the session
			go func() {
				ticker := time.NewTicker(30 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-cmd.Context().Done():
						return
					case <-ticker.C:
						ds := c.manager.Status().PerDisplay[displayID]
						if ds.State == v1alpha1.ConnectionConnected && ds.Transport == v1alpha1.TransportLocal {
							continue
						}
						if err := c.manager.Reconnect(cmd.Context()); err != nil {
							c.logger.Debug("reconnect attempt failed", "error", err)
						}
					}
				}
			}()

			<-cmd.Context().Done()
			return nil
		},
	}
}

func printStateLine(displayID string, state *v1alpha1.HostState) {
	event := "-"
	if state.EventID != nil {
		event = *state.EventID
	}
	override := ""
	if state.IsBlank {
		override = " [blank]"
	} else if state.IsLogo {
		override = " [logo]"
	}
	fmt.Printf("%s  %s event=%s item=%d section=%d slide=%d clients=%d%s\n",
		state.LastUpdated.Format("15:04:05"),
		displayID,
		event,
		state.CurrentItemIndex,
		state.CurrentSectionIndex,
		state.CurrentSlideIndex,
		state.ConnectedClients,
		override,
	)
}
