package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "concord",
	Short: "Concord - Contract registry and routing for multi-agent development",
	Long: `Concord coordinates parallel AI coding agents through shared contracts.

Agents register tasks, publish interface contracts, and declare dependencies
into a session-scoped registry. Concord routes each contract to the agents
that need it, detects conflicting definitions and circular dependencies, and
cross-checks the produced artifacts against the declared contracts.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing; main prints the
	// returned error once, and printer.Error has already written the details
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "concord.yml", "Path to the configuration file")
}
