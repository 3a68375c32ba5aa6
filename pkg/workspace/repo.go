package workspace

import (
	"context"
	"io"

	"github.com/forgeline/gitgate/pkg/gitlib"
)

// Repo is the set of primitive repository operations the synchronizer
// drives. Every failure is an infrastructure error except Merge, whose
// gitlib.ErrMergeConflict outcome the synchronizer recovers into a result.
type Repo interface {
	Fetch(ctx context.Context) error
	Checkout(ctx context.Context, branch string) error
	Merge(ctx context.Context, branch string) error
	Clean() error
	Head() (gitlib.Hash, error)
	Tip(branch string) (gitlib.Hash, error)
	RevParse(spec string, short bool) (string, error)
	HasSubmodules() bool
	SubmoduleInit() error
	SubmoduleUpdate() error
	RawLog(w io.Writer, from, to gitlib.Hash) error
	Free()
}

// Opener probes, opens and clones workspace repositories.
type Opener interface {
	IsRepository(path string) bool
	Open(path string) (Repo, error)
	Clone(ctx context.Context, url, path string) (Repo, error)
}

// GitOpener is the libgit2-backed Opener used outside of tests.
type GitOpener struct{}

// IsRepository probes whether a clone already exists at path.
func (GitOpener) IsRepository(path string) bool {
	return gitlib.IsRepository(path)
}

// Open opens an existing clone.
func (GitOpener) Open(path string) (Repo, error) {
	repo, err := gitlib.Open(path)
	if err != nil {
		return nil, err
	}

	return repo, nil
}

// Clone performs a full clone of url into path.
func (GitOpener) Clone(ctx context.Context, url, path string) (Repo, error) {
	repo, err := gitlib.Clone(ctx, url, path)
	if err != nil {
		return nil, err
	}

	return repo, nil
}
