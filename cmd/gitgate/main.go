// Package main provides the entry point for the gitgate CLI tool.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgeline/gitgate/cmd/gitgate/commands"
	"github.com/forgeline/gitgate/pkg/version"
)

// Exit codes understood by build schedulers driving gitgate.
const (
	exitFailure     = 1
	exitChanges     = 2
	exitIntegration = 3
)

var (
	configPath string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gitgate",
		Short: "Gitgate - git polling and workspace convergence for build pipelines",
		Long: `Gitgate keeps build workspaces converged with their git remotes.

Commands:
  poll      Check whether a project's branch moved since the last build
  checkout  Converge the project workspace to the configured branch
  changes   Show the commits picked up by the last checkout
  env       Print the build environment for a project workspace
  daemon    Poll all configured projects on an interval`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add commands.
	rootCmd.AddCommand(commands.NewPollCommand(&configPath, &verbose))
	rootCmd.AddCommand(commands.NewCheckoutCommand(&configPath, &verbose))
	rootCmd.AddCommand(commands.NewChangesCommand(&configPath, &verbose))
	rootCmd.AddCommand(commands.NewEnvCommand(&configPath, &verbose))
	rootCmd.AddCommand(commands.NewDaemonCommand(&configPath, &verbose))
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps the sentinel command results to scheduler-visible exit
// codes. Detected changes and unmergeable branches are expected outcomes
// and are not reported as errors.
func exitCode(err error) int {
	switch {
	case errors.Is(err, commands.ErrChangesDetected):
		return exitChanges
	case errors.Is(err, commands.ErrIntegrationFailed):
		return exitIntegration
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		return exitFailure
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "gitgate %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
