package poll_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeline/gitgate/pkg/poll"
)

func TestFileStoreLastEmptyWithoutHistory(t *testing.T) {
	store, err := poll.NewFileStore(t.TempDir())
	require.NoError(t, err)

	last, err := store.Last("fresh-project")
	require.NoError(t, err)
	assert.Empty(t, last)
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := poll.NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.SetLast("api", "aabbcc"))
	require.NoError(t, store.SetLast("api", "ddeeff"))

	last, err := store.Last("api")
	require.NoError(t, err)
	assert.Equal(t, "ddeeff", last)

	// Projects are isolated from each other.
	other, err := store.Last("web")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := poll.NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.SetLast("api", "aabbcc"))

	reopened, err := poll.NewFileStore(dir)
	require.NoError(t, err)

	last, err := reopened.Last("api")
	require.NoError(t, err)
	assert.Equal(t, "aabbcc", last)
}

func TestFileStoreCorruptStateFileFails(t *testing.T) {
	dir := t.TempDir()

	store, err := poll.NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "api.json"), []byte("not json"), 0o644))

	_, err = store.Last("api")
	assert.Error(t, err)
}
