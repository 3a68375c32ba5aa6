package gitlib

import (
	"context"
	"errors"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Sentinel errors distinguishing expected failure modes from plain
// infrastructure errors.
var (
	// ErrRevisionNotFound is returned when a branch or revision spec does
	// not resolve to any object.
	ErrRevisionNotFound = errors.New("revision not found")

	// ErrMergeConflict is returned when a merge stops on index conflicts.
	// The in-progress merge state is aborted before returning.
	ErrMergeConflict = errors.New("merge did not complete cleanly")
)

const (
	// originRemote is the remote every workspace clone tracks.
	originRemote = "origin"

	// headsRefspec mirrors all remote branch tips into refs/remotes/origin.
	headsRefspec = "+refs/heads/*:refs/remotes/origin/*"

	localBranchPrefix  = "refs/heads/"
	remoteBranchPrefix = "refs/remotes/" + originRemote + "/"
)

// Repository wraps a libgit2 repository rooted at a build workspace.
type Repository struct {
	repo *git2go.Repository
	path string
}

// IsRepository probes whether a git repository already exists at path.
func IsRepository(path string) bool {
	repo, err := git2go.OpenRepositoryExtended(path, git2go.RepositoryOpenNoSearch, "")
	if err != nil {
		return false
	}

	repo.Free()

	return true
}

// Open opens an existing repository at the given workspace path.
func Open(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Clone performs a full clone of url into path. Clone failures are fatal for
// the calling sync cycle and propagate as infrastructure errors.
func Clone(ctx context.Context, url, path string) (*Repository, error) {
	err := ctx.Err()
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", url, err)
	}

	repo, err := git2go.Clone(url, path, &git2go.CloneOptions{})
	if err != nil {
		return nil, fmt.Errorf("clone %s into %s: %w", url, path, err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Path returns the workspace path the repository was opened at.
func (r *Repository) Path() string {
	return r.path
}

// Workdir returns the working directory of the repository.
func (r *Repository) Workdir() string {
	return r.repo.Workdir()
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Head returns the commit the HEAD reference points at.
func (r *Repository) Head() (Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// Tip resolves the current tip of a branch, preferring the fetched remote
// tracking ref over a possibly stale local branch. Falls back to plain
// rev-parse so tags and raw hashes also resolve. Returns
// ErrRevisionNotFound when nothing matches.
func (r *Repository) Tip(branch string) (Hash, error) {
	for _, name := range []string{remoteBranchPrefix + branch, localBranchPrefix + branch} {
		ref, err := r.repo.References.Lookup(name)
		if err != nil {
			continue
		}

		target := ref.Target()
		ref.Free()

		if target != nil {
			return HashFromOid(target), nil
		}
	}

	obj, err := r.repo.RevparseSingle(branch)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %s", ErrRevisionNotFound, branch)
	}
	defer obj.Free()

	commit, err := obj.Peel(git2go.ObjectCommit)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %s does not point at a commit", ErrRevisionNotFound, branch)
	}
	defer commit.Free()

	return HashFromOid(commit.Id()), nil
}

// RevParse resolves an arbitrary revision spec against the local repository,
// matching `git rev-parse <spec>` (and `--short` when short is set).
func (r *Repository) RevParse(spec string, short bool) (string, error) {
	obj, err := r.repo.RevparseSingle(spec)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrRevisionNotFound, spec)
	}
	defer obj.Free()

	hash := HashFromOid(obj.Id())
	if short {
		return hash.Short(), nil
	}

	return hash.String(), nil
}

// lookupCommit returns the libgit2 commit for a resolved tip.
func (r *Repository) lookupCommit(hash Hash) (*git2go.Commit, error) {
	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup commit %s: %w", hash.Short(), err)
	}

	return commit, nil
}
