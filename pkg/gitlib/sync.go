package gitlib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	git2go "github.com/libgit2/git2go/v34"
)

// Fetch updates all remote branch tips from origin. It runs on every sync
// cycle so branch tips are current before any decision or checkout.
func (r *Repository) Fetch(ctx context.Context) error {
	err := ctx.Err()
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	remote, err := r.repo.Remotes.Lookup(originRemote)
	if err != nil {
		return fmt.Errorf("lookup remote %s: %w", originRemote, err)
	}
	defer remote.Free()

	err = remote.Fetch([]string{headsRefspec}, &git2go.FetchOptions{}, "")
	if err != nil {
		return fmt.Errorf("fetch %s: %w", originRemote, err)
	}

	return nil
}

// Checkout moves the local branch to the fetched tip of branch and checks
// out its tree, creating the local branch when it does not exist yet.
func (r *Repository) Checkout(ctx context.Context, branch string) error {
	err := ctx.Err()
	if err != nil {
		return fmt.Errorf("checkout %s: %w", branch, err)
	}

	tip, err := r.Tip(branch)
	if err != nil {
		return err
	}

	commit, err := r.lookupCommit(tip)
	if err != nil {
		return err
	}
	defer commit.Free()

	err = r.moveLocalBranch(branch, commit)
	if err != nil {
		return err
	}

	tree, err := commit.Tree()
	if err != nil {
		return fmt.Errorf("get tree of %s: %w", tip.Short(), err)
	}
	defer tree.Free()

	err = r.repo.CheckoutTree(tree, &git2go.CheckoutOptions{Strategy: git2go.CheckoutForce})
	if err != nil {
		return fmt.Errorf("checkout tree of %s: %w", branch, err)
	}

	err = r.repo.SetHead(localBranchPrefix + branch)
	if err != nil {
		return fmt.Errorf("set HEAD to %s: %w", branch, err)
	}

	return nil
}

// moveLocalBranch points refs/heads/<branch> at commit, creating it if absent.
func (r *Repository) moveLocalBranch(branch string, commit *git2go.Commit) error {
	local, err := r.repo.LookupBranch(branch, git2go.BranchLocal)
	if err != nil {
		created, createErr := r.repo.CreateBranch(branch, commit, false)
		if createErr != nil {
			return fmt.Errorf("create branch %s: %w", branch, createErr)
		}

		created.Free()

		return nil
	}
	defer local.Free()

	moved, err := local.Reference.SetTarget(commit.Id(), "sync to fetched tip")
	if err != nil {
		return fmt.Errorf("move branch %s: %w", branch, err)
	}

	moved.Free()

	return nil
}

// Merge integrates branch into the currently checked-out branch. Conflicts
// abort the merge, restore the worktree and return ErrMergeConflict; the
// caller decides whether that is fatal. Fast-forward merges move the current
// branch ref without creating a merge commit.
func (r *Repository) Merge(ctx context.Context, branch string) error {
	err := ctx.Err()
	if err != nil {
		return fmt.Errorf("merge %s: %w", branch, err)
	}

	tip, err := r.Tip(branch)
	if err != nil {
		return err
	}

	theirs, err := r.repo.LookupAnnotatedCommit(tip.ToOid())
	if err != nil {
		return fmt.Errorf("lookup merge head %s: %w", tip.Short(), err)
	}
	defer theirs.Free()

	analysis, _, err := r.repo.MergeAnalysis([]*git2go.AnnotatedCommit{theirs})
	if err != nil {
		return fmt.Errorf("analyze merge of %s: %w", branch, err)
	}

	if analysis&git2go.MergeAnalysisUpToDate != 0 {
		return nil
	}

	if analysis&git2go.MergeAnalysisFastForward != 0 {
		return r.fastForward(tip)
	}

	err = r.repo.Merge(
		[]*git2go.AnnotatedCommit{theirs},
		nil,
		&git2go.CheckoutOptions{Strategy: git2go.CheckoutSafe},
	)
	if err != nil {
		r.abortMerge()

		return fmt.Errorf("merge %s: %w: %v", branch, ErrMergeConflict, err)
	}

	return r.commitMerge(branch, tip)
}

// commitMerge finalizes a non-fast-forward merge, or aborts on conflicts.
func (r *Repository) commitMerge(branch string, tip Hash) error {
	index, err := r.repo.Index()
	if err != nil {
		return fmt.Errorf("get index: %w", err)
	}
	defer index.Free()

	if index.HasConflicts() {
		r.abortMerge()

		return fmt.Errorf("merge %s: %w", branch, ErrMergeConflict)
	}

	treeOid, err := index.WriteTree()
	if err != nil {
		return fmt.Errorf("write merge tree: %w", err)
	}

	tree, err := r.repo.LookupTree(treeOid)
	if err != nil {
		return fmt.Errorf("lookup merge tree: %w", err)
	}
	defer tree.Free()

	head, err := r.Head()
	if err != nil {
		return err
	}

	ours, err := r.lookupCommit(head)
	if err != nil {
		return err
	}
	defer ours.Free()

	theirs, err := r.lookupCommit(tip)
	if err != nil {
		return err
	}
	defer theirs.Free()

	sig := r.signature()

	_, err = r.repo.CreateCommit("HEAD", sig, sig, "Merge branch "+branch, tree, ours, theirs)
	if err != nil {
		return fmt.Errorf("create merge commit: %w", err)
	}

	err = r.repo.StateCleanup()
	if err != nil {
		return fmt.Errorf("cleanup merge state: %w", err)
	}

	return nil
}

// fastForward moves the current branch ref to tip and checks it out.
func (r *Repository) fastForward(tip Hash) error {
	ref, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	moved, err := ref.SetTarget(tip.ToOid(), "fast-forward merge")
	if err != nil {
		return fmt.Errorf("fast-forward to %s: %w", tip.Short(), err)
	}

	moved.Free()

	err = r.repo.CheckoutHead(&git2go.CheckoutOptions{Strategy: git2go.CheckoutForce})
	if err != nil {
		return fmt.Errorf("checkout fast-forwarded HEAD: %w", err)
	}

	return nil
}

// abortMerge drops in-progress merge state and restores the worktree. Errors
// here are secondary to the merge failure being reported.
func (r *Repository) abortMerge() {
	_ = r.repo.StateCleanup()
	_ = r.repo.CheckoutHead(&git2go.CheckoutOptions{Strategy: git2go.CheckoutForce})
}

// signature returns the configured committer identity, or a synthetic one
// when the workspace has no user configuration.
func (r *Repository) signature() *git2go.Signature {
	sig, err := r.repo.DefaultSignature()
	if err != nil {
		return &git2go.Signature{Name: "gitgate", Email: "gitgate@localhost", When: time.Now()}
	}

	return sig
}

// Clean removes untracked and ignored files from the workspace, the
// post-checkout scrub used when a project asks for pristine builds.
func (r *Repository) Clean() error {
	opts := &git2go.StatusOptions{
		Show: git2go.StatusShowWorkdirOnly,
		Flags: git2go.StatusOptIncludeUntracked |
			git2go.StatusOptRecurseUntrackedDirs |
			git2go.StatusOptIncludeIgnored,
	}

	list, err := r.repo.StatusList(opts)
	if err != nil {
		return fmt.Errorf("workspace status: %w", err)
	}
	defer list.Free()

	count, err := list.EntryCount()
	if err != nil {
		return fmt.Errorf("count status entries: %w", err)
	}

	for i := range count {
		entry, entryErr := list.ByIndex(i)
		if entryErr != nil {
			continue
		}

		if entry.Status&(git2go.StatusWtNew|git2go.StatusIgnored) == 0 {
			continue
		}

		path := entry.IndexToWorkdir.NewFile.Path
		if path == "" {
			continue
		}

		removeErr := os.RemoveAll(filepath.Join(r.Workdir(), path))
		if removeErr != nil {
			return fmt.Errorf("remove %s: %w", path, removeErr)
		}
	}

	return nil
}
