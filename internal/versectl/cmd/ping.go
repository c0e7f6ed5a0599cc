package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newPingCmd creates the ping command, a pure connectivity probe that
// does not touch presentation state.
func newPingCmd() *cobra.Command {
	var (
		count   int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ping DISPLAY_ID",
		Short: "Probe a display's connectivity",
		Example: `  # Probe once
  versectl ping display-42

  # Probe five times
  versectl ping display-42 --count=5`,
		Args: cobra.ExactArgs(1),
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
			fmt.Printf("Connected to %s via %s\n", displayID, status.Transport)

			failures := 0
			for i := 0; i < count; i++ {
				rtt, err := c.manager.Ping(cmd.Context(), displayID, timeout)
				if err != nil {
					failures++
					fmt.Printf("ping %d: %v\n", i+1, err)
					continue
				}
				fmt.Printf("ping %d: %s\n", i+1, rtt.Round(time.Millisecond))
			}

			if failures == count {
				return fmt.Errorf("display %s did not answer", displayID)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 1, "Number of probes")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Per-probe timeout")

	return cmd
}
