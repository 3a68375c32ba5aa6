package workspace_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeline/gitgate/pkg/gitlib"
	"github.com/forgeline/gitgate/pkg/params"
	"github.com/forgeline/gitgate/pkg/workspace"
)

func newFixture(t *testing.T) (*workspace.TestOpener, *workspace.Synchronizer) {
	t.Helper()

	repo := &workspace.TestRepo{
		Branches: map[string]gitlib.Hash{
			"master":  workspace.TestHash(0xaa),
			"topic":   workspace.TestHash(0xbb),
			"staging": workspace.TestHash(0xcc),
		},
	}
	opener := &workspace.TestOpener{Repo: repo}

	return opener, workspace.NewSynchronizer(opener, nil)
}

func TestConvergeClonesWhenAbsent(t *testing.T) {
	opener, sync := newFixture(t)

	result, err := sync.Converge(context.Background(), workspace.Config{
		Source: "https://example.com/repo.git",
		Branch: "master",
	}, t.TempDir(), nil)
	require.NoError(t, err)

	assert.Equal(t, workspace.Converged, result.Outcome)
	assert.Equal(t, "master", result.Branch)
	assert.Equal(t, workspace.TestHash(0xaa).String(), result.Tip)
	assert.Equal(t, 1, opener.CloneCount)
	assert.Equal(t, []string{"fetch", "checkout master"}, opener.Repo.Ops)
	assert.True(t, opener.Repo.Freed)
}

func TestConvergeOpensExistingClone(t *testing.T) {
	opener, sync := newFixture(t)
	opener.Exists = true

	_, err := sync.Converge(context.Background(), workspace.Config{Branch: "master"}, t.TempDir(), nil)
	require.NoError(t, err)

	assert.Zero(t, opener.CloneCount)
	assert.Equal(t, 1, opener.OpenCount)
	assert.Equal(t, []string{"fetch", "checkout master"}, opener.Repo.Ops)
}

func TestConvergeIsIdempotent(t *testing.T) {
	opener, sync := newFixture(t)
	cfg := workspace.Config{Branch: "master"}
	dir := t.TempDir()

	first, err := sync.Converge(context.Background(), cfg, dir, nil)
	require.NoError(t, err)

	opener.Repo.Ops = nil

	second, err := sync.Converge(context.Background(), cfg, dir, nil)
	require.NoError(t, err)

	// Second pass: no clone, just the unconditional fetch and checkout.
	assert.Equal(t, first, second)
	assert.Equal(t, 1, opener.CloneCount)
	assert.Equal(t, []string{"fetch", "checkout master"}, opener.Repo.Ops)
}

func TestConvergeInitsSubmodulesOnClone(t *testing.T) {
	opener, sync := newFixture(t)
	opener.Repo.Submodules = true

	_, err := sync.Converge(context.Background(), workspace.Config{Branch: "master"}, t.TempDir(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"submodule-init", "fetch", "checkout master", "submodule-update"}, opener.Repo.Ops)
}

func TestConvergeExpandsBranchParameters(t *testing.T) {
	opener, sync := newFixture(t)

	result, err := sync.Converge(context.Background(), workspace.Config{
		Branch: "${BRANCH}",
	}, t.TempDir(), params.Map{"BRANCH": "topic"})
	require.NoError(t, err)

	assert.Equal(t, "topic", result.Branch)
	assert.Contains(t, opener.Repo.Ops, "checkout topic")
}

func TestConvergeMergesOntoTarget(t *testing.T) {
	opener, sync := newFixture(t)

	result, err := sync.Converge(context.Background(), workspace.Config{
		Branch:      "topic",
		Merge:       true,
		MergeTarget: "staging",
	}, t.TempDir(), nil)
	require.NoError(t, err)

	assert.Equal(t, workspace.Converged, result.Outcome)
	assert.Equal(t, "staging", result.Branch)
	assert.Equal(t, workspace.TestHash(0xbb).String(), result.Tip)
	assert.Equal(t, []string{"fetch", "checkout staging", "merge topic"}, opener.Repo.Ops)
}

func TestConvergeMergeReportsBranchTipNotMergeCommit(t *testing.T) {
	opener, sync := newFixture(t)
	opener.Repo.MergeCommit = workspace.TestHash(0xdd)

	result, err := sync.Converge(context.Background(), workspace.Config{
		Branch:      "topic",
		Merge:       true,
		MergeTarget: "staging",
	}, t.TempDir(), nil)
	require.NoError(t, err)

	// The workspace sits on the merge commit, but the reported revision
	// is the branch tip: the merge commit is minted fresh on every run,
	// so recording it would make the next poll see a phantom change.
	assert.Equal(t, workspace.TestHash(0xdd), opener.Repo.CurrentHead)
	assert.Equal(t, workspace.TestHash(0xbb).String(), result.Tip)
}

func TestConvergeSelfMergeIsPlainCheckout(t *testing.T) {
	opener, sync := newFixture(t)

	result, err := sync.Converge(context.Background(), workspace.Config{
		Branch:      "master",
		Merge:       true,
		MergeTarget: "${TARGET}",
	}, t.TempDir(), params.Map{"TARGET": "master"})
	require.NoError(t, err)

	assert.Equal(t, workspace.Converged, result.Outcome)
	assert.Equal(t, "master", result.Branch)
	assert.NotContains(t, opener.Repo.Ops, "merge master")
}

func TestConvergeMergeConflictIsIntegrationFailure(t *testing.T) {
	opener, sync := newFixture(t)
	opener.Repo.MergeErr = gitlib.ErrMergeConflict

	result, err := sync.Converge(context.Background(), workspace.Config{
		Branch:      "topic",
		Merge:       true,
		MergeTarget: "staging",
		Clean:       true,
	}, t.TempDir(), nil)
	require.NoError(t, err)

	assert.Equal(t, workspace.IntegrationFailed, result.Outcome)
	assert.Equal(t, "staging", result.Branch)
	assert.Contains(t, result.Reason, "does not merge cleanly")

	// The workspace stays on the merge target; no clean runs on a
	// build that will not proceed.
	assert.Equal(t, "staging", opener.Repo.CurrentBranch)
	assert.NotContains(t, opener.Repo.Ops, "clean")
}

func TestConvergeCleansWhenConfigured(t *testing.T) {
	opener, sync := newFixture(t)

	_, err := sync.Converge(context.Background(), workspace.Config{
		Branch: "master",
		Clean:  true,
	}, t.TempDir(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"fetch", "checkout master", "clean"}, opener.Repo.Ops)
}

func TestConvergeFetchFailureIsFatal(t *testing.T) {
	opener, sync := newFixture(t)
	opener.Repo.FetchErr = errors.New("network unreachable")

	_, err := sync.Converge(context.Background(), workspace.Config{Branch: "master"}, t.TempDir(), nil)
	require.Error(t, err)
	assert.True(t, opener.Repo.Freed)
}

func TestSyncStopsBeforeCheckout(t *testing.T) {
	opener, sync := newFixture(t)

	repo, err := sync.Sync(context.Background(), workspace.Config{Branch: "master"}, t.TempDir())
	require.NoError(t, err)

	repo.Free()

	assert.Equal(t, []string{"fetch"}, opener.Repo.Ops)
}

func TestChangesEmptyWhenRevisionAbsentOrEqual(t *testing.T) {
	_, sync := newFixture(t)
	rev := workspace.TestHash(0xaa).String()

	for _, pair := range [][2]string{
		{"", rev},
		{rev, ""},
		{rev, rev},
	} {
		set, err := sync.Changes(context.Background(), t.TempDir(), pair[0], pair[1])
		require.NoError(t, err)
		assert.Empty(t, set)
	}
}

func TestChangesParsesRawLog(t *testing.T) {
	opener, sync := newFixture(t)
	opener.Repo.RawLogText = "commit abc\ncommitter Jane Doe <jane@x.com> 1 +0000\n\n    Fix bug\n\nM\tsrc/file.go\n"

	set, err := sync.Changes(
		context.Background(),
		t.TempDir(),
		workspace.TestHash(0xaa).String(),
		workspace.TestHash(0xbb).String(),
	)
	require.NoError(t, err)
	require.Len(t, set, 1)

	assert.Equal(t, "abc", set[0].ID)
	assert.Equal(t, "Jane Doe", set[0].Author)
	assert.Equal(t, []string{"src/file.go"}, set[0].AffectedPaths)
}

func TestBuildEnv(t *testing.T) {
	_, sync := newFixture(t)

	env, err := sync.BuildEnv(workspace.Config{Branch: "master"}, t.TempDir(), nil)
	require.NoError(t, err)

	assert.Equal(t, workspace.TestHash(0xaa).String(), env[workspace.EnvRevision])
	assert.Equal(t, workspace.TestHash(0xaa).Short(), env[workspace.EnvRevisionShort])
}
