package commands

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/forgeline/gitgate/pkg/changelog"
	"github.com/forgeline/gitgate/pkg/workspace"
)

// ChangesCommand renders the changelog archived by the last checkout.
type ChangesCommand struct {
	configPath string
	verbose    bool
	raw        bool
	noColor    bool
}

// NewChangesCommand creates the changes command.
func NewChangesCommand(configPath *string, verbose *bool) *cobra.Command {
	cc := &ChangesCommand{}

	cmd := &cobra.Command{
		Use:   "changes <project>",
		Short: "Show the commits picked up by the last checkout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc.configPath = *configPath
			cc.verbose = *verbose

			return cc.run(cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&cc.raw, "raw", false, "Emit the raw changelog format instead of a table")
	cmd.Flags().BoolVar(&cc.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func (cc *ChangesCommand) run(cmd *cobra.Command, name string) error {
	app, err := NewApp(cc.configPath, cc.verbose)
	if err != nil {
		return err
	}

	project, err := app.Project(name)
	if err != nil {
		return err
	}

	set, written, err := app.Changes.Latest(project.Name)
	if err != nil {
		return err
	}

	if cc.raw {
		return changelog.WriteRaw(cmd.OutOrStdout(), set)
	}

	if cc.noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: changelog archived %s\n", project.Name, humanize.Time(written))
	cc.render(cmd.OutOrStdout(), set, project.BrowserURL)

	return nil
}

func (cc *ChangesCommand) render(w io.Writer, set changelog.Set, browserURL string) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	tbl.AppendHeader(table.Row{"Commit", "Author", "Message", "Files"})

	for _, entry := range set {
		tbl.AppendRow(table.Row{
			color.YellowString(shortRev(entry.ID)),
			entry.Author,
			firstLine(entry.Message),
			len(entry.AffectedPaths),
		})
	}

	tbl.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d commits", len(set))})
	tbl.Render()

	if browserURL == "" {
		return
	}

	fmt.Fprintln(w)

	for _, entry := range set {
		link, linkErr := url.JoinPath(browserURL, entry.ID)
		if linkErr != nil {
			continue
		}

		fmt.Fprintf(w, "%s %s\n", shortRev(entry.ID), link)
	}
}

func firstLine(message string) string {
	line, _, _ := strings.Cut(message, "\n")

	return line
}

// describeOutcome is the one-line status rendered after a checkout.
func describeOutcome(result workspace.Result) string {
	if result.Outcome == workspace.IntegrationFailed {
		return color.RedString("integration failed: %s", result.Reason)
	}

	return color.GreenString("converged on %s at %s", result.Branch, shortRev(result.Tip))
}
