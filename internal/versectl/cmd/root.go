// Package cmd implements the Versewall CLI commands
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/versewall/versewall/internal/versectl/config"
)

var (
	cfg   *config.Config
	debug bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "versectl",
	Short: "Versewall display control tool",
	Long: `versectl is a command line tool for controlling Versewall presentation
displays. It drives slide navigation, screen overrides, and event loading over
the local network or the cloud relay, and manages display pairing.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("broker", "", "Relay broker URL")
	rootCmd.PersistentFlags().String("token", "", "Bearer token for local handshakes")
	rootCmd.PersistentFlags().String("tenant", "", "Tenant id")
	rootCmd.PersistentFlags().String("database", "", "Display registry connection string")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable verbose output")

	// Add commands
	rootCmd.AddCommand(newDisplayCmd())
	rootCmd.AddCommand(newSendCmd())
	rootCmd.AddCommand(newPingCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// initConfig reads in the config file
func initConfig() {
	var err error
	cfg, err = config.LoadConfig()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}
}

// currentContext resolves the active context with flag overrides applied
func currentContext() (*config.Context, error) {
	ctx, err := cfg.GetCurrentContext()
	if err != nil {
		// Flags alone may be enough without a saved context
		ctx = &config.Context{}
	}

	if broker, _ := rootCmd.PersistentFlags().GetString("broker"); broker != "" {
		ctx.Broker = broker
	}
	if token, _ := rootCmd.PersistentFlags().GetString("token"); token != "" {
		ctx.Token = token
	}
	if tenant, _ := rootCmd.PersistentFlags().GetString("tenant"); tenant != "" {
		ctx.Tenant = tenant
	}
	if database, _ := rootCmd.PersistentFlags().GetString("database"); database != "" {
		ctx.Database = database
	}

	if ctx.Broker == "" && ctx.Database == "" {
		return nil, fmt.Errorf("no broker or database configured; run versectl config set-context first")
	}
	return ctx, nil
}
