package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Action classifies a file change the way git name-status output does.
type Action int

const (
	// ActionAdd indicates a new file was added.
	ActionAdd Action = iota
	// ActionCopy indicates a file was copied.
	ActionCopy
	// ActionDelete indicates a file was removed.
	ActionDelete
	// ActionModify indicates file contents changed.
	ActionModify
	// ActionRename indicates a file moved.
	ActionRename
	// ActionTypeChange indicates the file type changed (e.g. file to symlink).
	ActionTypeChange
)

// Letter returns the single-letter name-status tag for the action.
func (a Action) Letter() byte {
	switch a {
	case ActionAdd:
		return 'A'
	case ActionCopy:
		return 'C'
	case ActionDelete:
		return 'D'
	case ActionModify:
		return 'M'
	case ActionRename:
		return 'R'
	case ActionTypeChange:
		return 'T'
	default:
		return 'M'
	}
}

// Change is one affected path of a commit.
type Change struct {
	Action Action

	// Path is the post-change path (the pre-change path for deletions).
	Path string
}

// Changes is the ordered list of affected paths of one commit.
type Changes []Change

// commitChanges diffs a commit against its first parent (or the empty tree
// for root commits). Merge commits report no changes, matching the
// name-status behavior of plain `git log`.
func (r *Repository) commitChanges(commit *git2go.Commit) (Changes, error) {
	if commit.ParentCount() > 1 {
		return nil, nil
	}

	newTree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("get commit tree: %w", err)
	}
	defer newTree.Free()

	var oldTree *git2go.Tree

	if commit.ParentCount() == 1 {
		parent := commit.Parent(0)
		defer parent.Free()

		oldTree, err = parent.Tree()
		if err != nil {
			return nil, fmt.Errorf("get parent tree: %w", err)
		}
		defer oldTree.Free()
	}

	return r.treeChanges(oldTree, newTree)
}

// treeChanges computes name-status changes between two trees. oldTree may be
// nil, in which case every file is an addition.
func (r *Repository) treeChanges(oldTree, newTree *git2go.Tree) (Changes, error) {
	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	diff, err := r.repo.DiffTreeToTree(oldTree, newTree, &opts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}
	defer diff.Free()

	numDeltas, err := diff.NumDeltas()
	if err != nil {
		return nil, fmt.Errorf("get num deltas: %w", err)
	}

	changes := make(Changes, 0, numDeltas)

	for i := range numDeltas {
		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			continue
		}

		change, ok := deltaChange(delta)
		if !ok {
			continue
		}

		changes = append(changes, change)
	}

	return changes, nil
}

// deltaChange maps a libgit2 delta onto a name-status change.
func deltaChange(delta git2go.DiffDelta) (Change, bool) {
	switch delta.Status {
	case git2go.DeltaAdded:
		return Change{Action: ActionAdd, Path: delta.NewFile.Path}, true
	case git2go.DeltaDeleted:
		return Change{Action: ActionDelete, Path: delta.OldFile.Path}, true
	case git2go.DeltaModified:
		return Change{Action: ActionModify, Path: delta.NewFile.Path}, true
	case git2go.DeltaRenamed:
		return Change{Action: ActionRename, Path: delta.NewFile.Path}, true
	case git2go.DeltaCopied:
		return Change{Action: ActionCopy, Path: delta.NewFile.Path}, true
	case git2go.DeltaTypeChange:
		return Change{Action: ActionTypeChange, Path: delta.NewFile.Path}, true
	case git2go.DeltaUnmodified, git2go.DeltaIgnored, git2go.DeltaUntracked,
		git2go.DeltaUnreadable, git2go.DeltaConflicted:
		return Change{}, false
	default:
		return Change{}, false
	}
}
