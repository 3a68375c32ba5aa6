package commands_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeline/gitgate/cmd/gitgate/commands"
	"github.com/forgeline/gitgate/internal/changestore"
	"github.com/forgeline/gitgate/internal/config"
	"github.com/forgeline/gitgate/pkg/changelog"
)

// writeTestConfig writes a config file whose state lives under dir.
func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()

	content := fmt.Sprintf(`
state_dir: %s/state
workspace_dir: %s/workspaces
changelog_dir: %s/changelogs
projects:
  - name: api
    source: https://example.com/api.git
    branch: master
    browser_url: https://example.com/api/commit
`, dir, dir, dir)

	path := filepath.Join(dir, "gitgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func TestNewAppCreatesStateDirectories(t *testing.T) {
	dir := t.TempDir()

	app, err := commands.NewApp(writeTestConfig(t, dir), false)
	require.NoError(t, err)

	assert.DirExists(t, filepath.Join(dir, "state"))
	assert.DirExists(t, filepath.Join(dir, "changelogs"))
	assert.DirExists(t, filepath.Join(dir, "workspaces"))
	assert.Equal(t, filepath.Join(dir, "workspaces", "api"), app.WorkspaceDir("api"))
}

func TestReadyChecksCoverRuntimeDirectories(t *testing.T) {
	dir := t.TempDir()

	app, err := commands.NewApp(writeTestConfig(t, dir), false)
	require.NoError(t, err)

	checks := app.ReadyChecks()
	require.Len(t, checks, 3)

	for _, check := range checks {
		assert.NoError(t, check(context.Background()))
	}

	require.NoError(t, os.RemoveAll(filepath.Join(dir, "state")))

	err = checks[0](context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state dir")
}

func TestSubstituterOverridesProjectParameters(t *testing.T) {
	project := config.Project{Parameters: map[string]string{"BRANCH": "main", "SUFFIX": "rc"}}

	sub := commands.Substituter(project, map[string]string{"BRANCH": "release"})

	assert.Equal(t, "release", sub.Substitute("${BRANCH}"))
	assert.Equal(t, "rc", sub.Substitute("${SUFFIX}"))
}

func TestChangesCommandRendersLatestArchive(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)

	store, err := changestore.New(filepath.Join(dir, "changelogs"))
	require.NoError(t, err)

	_, err = store.Write("api", changelog.Set{
		{
			ID:            "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			Author:        "Jane Doe",
			Message:       "Fix bug\n",
			AffectedPaths: []string{"src/file.go"},
		},
	})
	require.NoError(t, err)

	verbose := false
	out, err := execute(t, commands.NewChangesCommand(&configPath, &verbose), "api", "--no-color")
	require.NoError(t, err)

	assert.Contains(t, out, "aaaaaaa")
	assert.Contains(t, out, "Jane Doe")
	assert.Contains(t, out, "Fix bug")
	assert.Contains(t, out, "https://example.com/api/commit/aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
}

func TestChangesCommandRawOutputRoundTrips(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)

	store, err := changestore.New(filepath.Join(dir, "changelogs"))
	require.NoError(t, err)

	_, err = store.Write("api", changelog.Set{
		{ID: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", Author: "John Smith", Message: "Add feature\n"},
	})
	require.NoError(t, err)

	verbose := false
	out, err := execute(t, commands.NewChangesCommand(&configPath, &verbose), "api", "--raw")
	require.NoError(t, err)

	set, err := changelog.Parse(bytes.NewReader([]byte(out)))
	require.NoError(t, err)
	require.Len(t, set, 1)
	assert.Equal(t, "John Smith", set[0].Author)
}

func TestChangesCommandUnknownProject(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)

	verbose := false
	_, err := execute(t, commands.NewChangesCommand(&configPath, &verbose), "ghost")
	assert.ErrorIs(t, err, config.ErrUnknownProject)
}

func TestChangesCommandWithoutArchive(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)

	verbose := false
	_, err := execute(t, commands.NewChangesCommand(&configPath, &verbose), "api")
	assert.ErrorIs(t, err, changestore.ErrNoChangelog)
}
