package changestore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeline/gitgate/internal/changestore"
	"github.com/forgeline/gitgate/pkg/changelog"
)

func sampleSet() changelog.Set {
	return changelog.Set{
		{
			ID:            "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			Author:        "Jane Doe",
			Message:       "Fix bug\n",
			AffectedPaths: []string{"src/file.go", "docs/readme.md"},
		},
		{
			ID:      "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
			Author:  "John Smith",
			Message: "Add feature\n",
		},
	}
}

func TestWriteAndLatestRoundTrip(t *testing.T) {
	store, err := changestore.New(t.TempDir())
	require.NoError(t, err)

	path, err := store.Write("api", sampleSet())
	require.NoError(t, err)
	assert.FileExists(t, path)

	set, written, err := store.Latest("api")
	require.NoError(t, err)
	require.Len(t, set, 2)
	assert.WithinDuration(t, time.Now().UTC(), written, time.Minute)

	assert.Equal(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", set[0].ID)
	assert.Equal(t, "Jane Doe", set[0].Author)
	assert.Equal(t, "Fix bug\n", set[0].Message)
	assert.Equal(t, []string{"src/file.go", "docs/readme.md"}, set[0].AffectedPaths)
	assert.Equal(t, "John Smith", set[1].Author)
}

func TestLatestPicksNewestArchive(t *testing.T) {
	store, err := changestore.New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Write("api", sampleSet()[:1])
	require.NoError(t, err)

	newer := changelog.Set{{ID: "cccccccccccccccccccccccccccccccccccccccc", Author: "Third"}}
	_, err = store.Write("api", newer)
	require.NoError(t, err)

	set, _, err := store.Latest("api")
	require.NoError(t, err)
	require.Len(t, set, 1)
	assert.Equal(t, "cccccccccccccccccccccccccccccccccccccccc", set[0].ID)
}

func TestLatestWithoutHistory(t *testing.T) {
	store, err := changestore.New(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Latest("unknown")
	assert.ErrorIs(t, err, changestore.ErrNoChangelog)
}

func TestProjectsAreIsolated(t *testing.T) {
	store, err := changestore.New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Write("api", sampleSet())
	require.NoError(t, err)

	_, _, err = store.Latest("web")
	assert.ErrorIs(t, err, changestore.ErrNoChangelog)
}
