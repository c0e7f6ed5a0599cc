package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/versewall/versewall/internal/versectl/config"
)

// newConfigCmd creates the config command that manages CLI contexts.
// Each context represents one Versewall deployment: its relay broker,
// registry database, and credentials.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long: `The config command provides subcommands for managing versectl's
configuration, including contexts for different deployments.

Each context bundles a relay broker URL, a display registry connection string,
and credentials, allowing you to switch between deployments with one command.`,
	}

	cmd.AddCommand(
		newConfigGetContextCmd(),
		newConfigSetContextCmd(),
		newConfigDeleteContextCmd(),
		newConfigUseContextCmd(),
	)

	return cmd
}

// newConfigGetContextCmd creates a command for viewing context information
func newConfigGetContextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-context [name]",
		Short: "Display one or many contexts",
		Example: `  # List all contexts
  versectl config get-context

  # Show details for a specific context
  versectl config get-context production`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) == 0 {
				fmt.Printf("CURRENT   NAME           BROKER\n")
				for name, ctx := range cfg.Contexts {
					current := " "
					if name == cfg.CurrentContext {
						current = "*"
					}
					fmt.Printf("%-8s  %-13s  %s\n", current, name, ctx.Broker)
				}
				return
			}

			name := args[0]
			ctx, ok := cfg.Contexts[name]
			if !ok {
				fmt.Printf("Error: context %q not found\n", name)
				return
			}

			fmt.Printf("Name: %s\n", name)
			fmt.Printf("Broker: %s\n", ctx.Broker)
			fmt.Printf("Database: %s\n", ctx.Database)
			fmt.Printf("Tenant: %s\n", ctx.Tenant)
			if len(ctx.Token) > 10 {
				fmt.Printf("Token: %s...\n", ctx.Token[:10])
			}
		},
	}
}

// newConfigSetContextCmd creates a command for creating or updating
// contexts
func newConfigSetContextCmd() *cobra.Command {
	var (
		broker   string
		database string
		token    string
		tenant   string
	)

	cmd := &cobra.Command{
		Use:   "set-context NAME",
		Short: "Create or update a context",
		Example: `  # Create a context for a local deployment
  versectl config set-context dev --broker=tcp://localhost:1883 --tenant=church-1

  # Update production with registry access
  versectl config set-context prod --broker=ssl://relay.example.com:8883 \
    --database="postgres://versectl@db.example.com/versewall" --tenant=church-1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			if broker == "" && database == "" {
				return fmt.Errorf("at least one of --broker or --database is required")
			}

			context := &config.Context{
				Name:     name,
				Broker:   broker,
				Database: database,
				Token:    token,
				Tenant:   tenant,
			}

			cfg.AddContext(name, context)

			// First context becomes current automatically
			if cfg.CurrentContext == "" {
				cfg.CurrentContext = name
			}

			if err := config.SaveConfig(cfg); err != nil {
				return fmt.Errorf("error saving config: %w", err)
			}

			fmt.Printf("Context %q updated\n", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&broker, "broker", "", "Relay broker URL")
	cmd.Flags().StringVar(&database, "database", "", "Display registry connection string")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token for local handshakes")
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant id")

	return cmd
}

// newConfigDeleteContextCmd creates a command for removing contexts
func newConfigDeleteContextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-context NAME",
		Short: "Delete a context",
		Example: `  # Delete the 'staging' context
  versectl config delete-context staging`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			if err := cfg.RemoveContext(name); err != nil {
				return fmt.Errorf("error removing context: %w", err)
			}

			if err := config.SaveConfig(cfg); err != nil {
				return fmt.Errorf("error saving config: %w", err)
			}

			fmt.Printf("Context %q deleted\n", name)
			return nil
		},
	}
}

// newConfigUseContextCmd creates a command for switching between
// contexts
func newConfigUseContextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use-context NAME",
		Short: "Switch to a different context",
		Example: `  # Switch to production context
  versectl config use-context production`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			if err := cfg.SetCurrentContext(name); err != nil {
				return fmt.Errorf("error setting current context: %w", err)
			}

			if err := config.SaveConfig(cfg); err != nil {
				return fmt.Errorf("error saving config: %w", err)
			}

			fmt.Printf("Switched to context %q\n", name)
			return nil
		},
	}
}
