package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// EnvCommand prints the environment variables a build of the project would
// receive, in shell export form.
type EnvCommand struct {
	configPath string
	verbose    bool
	overrides  map[string]string
}

// NewEnvCommand creates the env command.
func NewEnvCommand(configPath *string, verbose *bool) *cobra.Command {
	ec := &EnvCommand{}

	cmd := &cobra.Command{
		Use:   "env <project>",
		Short: "Print the build environment for a project workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ec.configPath = *configPath
			ec.verbose = *verbose

			return ec.run(cmd, args[0])
		},
	}

	cmd.Flags().StringToStringVar(&ec.overrides, "param", nil,
		"Build parameter overrides as KEY=VALUE (repeatable)")

	return cmd
}

func (ec *EnvCommand) run(cmd *cobra.Command, name string) error {
	app, err := NewApp(ec.configPath, ec.verbose)
	if err != nil {
		return err
	}

	project, err := app.Project(name)
	if err != nil {
		return err
	}

	env, err := app.Sync.BuildEnv(
		project.Workspace(),
		app.WorkspaceDir(project.Name),
		Substituter(project, ec.overrides),
	)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", key, env[key])
	}

	return nil
}
