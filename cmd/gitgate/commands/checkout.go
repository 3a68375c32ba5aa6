package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgeline/gitgate/pkg/workspace"
)

// CheckoutCommand converges a project workspace to its configured branch.
type CheckoutCommand struct {
	configPath string
	verbose    bool
	overrides  map[string]string
	updateLast bool
}

// NewCheckoutCommand creates the checkout command.
func NewCheckoutCommand(configPath *string, verbose *bool) *cobra.Command {
	cc := &CheckoutCommand{}

	cmd := &cobra.Command{
		Use:   "checkout <project>",
		Short: "Converge the project workspace to the configured branch",
		Long: "Clone or fetch the project, check out the configured branch (merging\n" +
			"it onto the merge target when configured), archive the changelog since\n" +
			"the last build and record the new revision. A branch that does not\n" +
			"merge cleanly exits 3 without advancing the recorded revision.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc.configPath = *configPath
			cc.verbose = *verbose

			return cc.run(cmd, args[0])
		},
	}

	cmd.Flags().StringToStringVar(&cc.overrides, "param", nil,
		"Build parameter overrides as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&cc.updateLast, "update-last", true,
		"Record the checked out revision as the last built one")

	return cmd
}

func (cc *CheckoutCommand) run(cmd *cobra.Command, name string) error {
	app, err := NewApp(cc.configPath, cc.verbose)
	if err != nil {
		return err
	}

	project, err := app.Project(name)
	if err != nil {
		return err
	}

	dir := app.WorkspaceDir(project.Name)
	sub := Substituter(project, cc.overrides)

	result, err := app.Sync.Converge(cmd.Context(), project.Workspace(), dir, sub)
	if err != nil {
		return err
	}

	if result.Outcome == workspace.IntegrationFailed {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", project.Name, describeOutcome(result))

		return ErrIntegrationFailed
	}

	last, err := app.Store.Last(project.Name)
	if err != nil {
		return err
	}

	set, err := app.Sync.Changes(cmd.Context(), dir, last, result.Tip)
	if err != nil {
		return err
	}

	if len(set) > 0 {
		path, writeErr := app.Changes.Write(project.Name, set)
		if writeErr != nil {
			return writeErr
		}

		app.Logger.Info("changelog archived", "project", project.Name, "entries", len(set), "path", path)
	}

	if cc.updateLast {
		err = app.Store.SetLast(project.Name, result.Tip)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%d new commits)\n",
		project.Name, describeOutcome(result), len(set))

	return nil
}
