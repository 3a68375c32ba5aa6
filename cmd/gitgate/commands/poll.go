package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgeline/gitgate/pkg/poll"
)

// PollCommand polls one project for new revisions.
type PollCommand struct {
	configPath string
	verbose    bool
	overrides  map[string]string
}

// NewPollCommand creates the poll command.
func NewPollCommand(configPath *string, verbose *bool) *cobra.Command {
	pc := &PollCommand{}

	cmd := &cobra.Command{
		Use:   "poll <project>",
		Short: "Check whether a project's branch moved since the last build",
		Long: "Fetch the project's remote and compare the branch tip against the\n" +
			"last built revision. Exits 2 when a build should run, 0 when the\n" +
			"workspace is up to date. The recorded revision is not touched;\n" +
			"only checkout advances it.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pc.configPath = *configPath
			pc.verbose = *verbose

			return pc.run(cmd, args[0])
		},
	}

	cmd.Flags().StringToStringVar(&pc.overrides, "param", nil,
		"Build parameter overrides as KEY=VALUE (repeatable)")

	return cmd
}

func (pc *PollCommand) run(cmd *cobra.Command, name string) error {
	app, err := NewApp(pc.configPath, pc.verbose)
	if err != nil {
		return err
	}

	project, err := app.Project(name)
	if err != nil {
		return err
	}

	detector := poll.NewDetector(app.Sync, app.Store, nil, app.Logger)

	decision, err := detector.ShouldBuild(
		cmd.Context(),
		project.Workspace(),
		project.Name,
		app.WorkspaceDir(project.Name),
		Substituter(project, pc.overrides),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (tip %s)\n", project.Name, decision.Reason, shortRev(decision.Tip))

	if decision.Changed {
		return ErrChangesDetected
	}

	return nil
}

func shortRev(rev string) string {
	const shortLen = 7

	if len(rev) <= shortLen {
		return rev
	}

	return rev[:shortLen]
}
