package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// newDisplayCmd creates the display command group for registry
// management: listing, claiming, and removing displays.
func newDisplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "display",
		Short: "Manage paired displays",
		Long: `The display command manages the display registry. Claiming a pairing
code registers the host showing that code under your tenant; removing a
display revokes its pairing and sends it back to the pairing screen.`,
	}

	cmd.AddCommand(
		newDisplayListCmd(),
		newDisplayClaimCmd(),
		newDisplayRemoveCmd(),
	)

	return cmd
}

func newDisplayListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tenant's displays",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newController()
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.requireRegistry(); err != nil {
				return err
			}
			if err := c.requireTenant(); err != nil {
				return err
			}

			displays, err := c.registry.List(cmd.Context(), c.context.Tenant)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tONLINE\tLOCAL ADDRESS\tLAST SEEN")
			now := time.Now()
			for _, d := range displays {
				online := "no"
				if d.IsOnline(now) {
					online = "yes"
				}
				addr := ""
				if d.LocalIP != nil && d.LocalPort != nil {
					addr = fmt.Sprintf("%s:%d", *d.LocalIP, *d.LocalPort)
				}
				lastSeen := "never"
				if d.LastSeenAt != nil {
					lastSeen = d.LastSeenAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.DisplayID, d.Name, online, addr, lastSeen)
			}
			return w.Flush()
		},
	}
}

func newDisplayClaimCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "claim CODE",
		Short: "Claim a pairing code shown on a display",
		Example: `  # Claim the display showing code 483920 as "Main Hall"
  versectl display claim 483920 --name="Main Hall"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newController()
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.requireRegistry(); err != nil {
				return err
			}
			if err := c.requireTenant(); err != nil {
				return err
			}

			identity, err := c.registry.Claim(cmd.Context(), args[0], c.context.Tenant, name)
			if err != nil {
				return err
			}

			fmt.Printf("Display %q claimed as %s\n", identity.Name, identity.DisplayID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Human-readable display name (required)")
	if err := cmd.MarkFlagRequired("name"); err != nil {
		panic(err)
	}

	return cmd
}

func newDisplayRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove DISPLAY_ID",
		Short: "Remove a display, revoking its pairing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newController()
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.requireRegistry(); err != nil {
				return err
			}
			if err := c.requireTenant(); err != nil {
				return err
			}

			if err := c.registry.Remove(cmd.Context(), args[0], c.context.Tenant); err != nil {
				return err
			}

			fmt.Printf("Display %s removed\n", args[0])
			return nil
		},
	}
}
