package workspace

import (
	"context"
	"fmt"
	"io"

	"github.com/forgeline/gitgate/pkg/gitlib"
)

// TestHash creates a deterministic hash for tests by repeating one byte.
func TestHash(b byte) gitlib.Hash {
	var h gitlib.Hash

	for i := range h {
		h[i] = b
	}

	return h
}

// TestRepo is an in-memory Repo that records the operations driven against
// it. It is used in unit tests where real git operations are not needed.
type TestRepo struct {
	// Ops records every primitive operation in call order.
	Ops []string

	// Branches maps branch names to their current tips.
	Branches map[string]gitlib.Hash

	// CurrentHead is the commit HEAD points at; Checkout and a
	// successful Merge move it.
	CurrentHead gitlib.Hash

	// CurrentBranch is the branch HEAD is attached to.
	CurrentBranch string

	// Submodules marks the repository as declaring submodules.
	Submodules bool

	// MergeCommit, when non-zero, is the new head a successful Merge
	// creates, simulating a diverged merge. The zero value makes Merge
	// fast-forward to the branch tip.
	MergeCommit gitlib.Hash

	// RawLogText is written verbatim by RawLog.
	RawLogText string

	// Freed is set once Free has been called.
	Freed bool

	// Injected failures.
	FetchErr    error
	CheckoutErr error
	MergeErr    error
	CleanErr    error
}

func (r *TestRepo) record(op string) {
	r.Ops = append(r.Ops, op)
}

// Fetch records the fetch.
func (r *TestRepo) Fetch(_ context.Context) error {
	r.record("fetch")

	return r.FetchErr
}

// Checkout moves HEAD to the branch tip.
func (r *TestRepo) Checkout(_ context.Context, branch string) error {
	r.record("checkout " + branch)

	if r.CheckoutErr != nil {
		return r.CheckoutErr
	}

	tip, ok := r.Branches[branch]
	if !ok {
		return fmt.Errorf("%w: %s", gitlib.ErrRevisionNotFound, branch)
	}

	r.CurrentHead = tip
	r.CurrentBranch = branch

	return nil
}

// Merge moves HEAD to MergeCommit when one is configured, otherwise
// fast-forwards to the branch tip. Fails when a failure is injected.
func (r *TestRepo) Merge(_ context.Context, branch string) error {
	r.record("merge " + branch)

	if r.MergeErr != nil {
		return r.MergeErr
	}

	tip, ok := r.Branches[branch]
	if !ok {
		return fmt.Errorf("%w: %s", gitlib.ErrRevisionNotFound, branch)
	}

	if r.MergeCommit.IsZero() {
		r.CurrentHead = tip
	} else {
		r.CurrentHead = r.MergeCommit
	}

	return nil
}

// Clean records the clean.
func (r *TestRepo) Clean() error {
	r.record("clean")

	return r.CleanErr
}

// Head returns the current head.
func (r *TestRepo) Head() (gitlib.Hash, error) {
	return r.CurrentHead, nil
}

// Tip resolves a branch tip.
func (r *TestRepo) Tip(branch string) (gitlib.Hash, error) {
	tip, ok := r.Branches[branch]
	if !ok {
		return gitlib.Hash{}, fmt.Errorf("%w: %s", gitlib.ErrRevisionNotFound, branch)
	}

	return tip, nil
}

// RevParse resolves specs against the branch map, falling back to HEAD.
func (r *TestRepo) RevParse(spec string, short bool) (string, error) {
	hash := r.CurrentHead

	if tip, ok := r.Branches[spec]; ok {
		hash = tip
	}

	if short {
		return hash.Short(), nil
	}

	return hash.String(), nil
}

// HasSubmodules reports the configured flag.
func (r *TestRepo) HasSubmodules() bool {
	return r.Submodules
}

// SubmoduleInit records the init.
func (r *TestRepo) SubmoduleInit() error {
	r.record("submodule-init")

	return nil
}

// SubmoduleUpdate records the update.
func (r *TestRepo) SubmoduleUpdate() error {
	r.record("submodule-update")

	return nil
}

// RawLog writes the configured raw log text.
func (r *TestRepo) RawLog(w io.Writer, from, to gitlib.Hash) error {
	r.record("rawlog " + from.Short() + ".." + to.Short())

	_, err := io.WriteString(w, r.RawLogText)

	return err
}

// Free marks the repository released.
func (r *TestRepo) Free() {
	r.Freed = true
}

// TestOpener hands out a single TestRepo and tracks probe/clone/open calls.
type TestOpener struct {
	Repo       *TestRepo
	Exists     bool
	CloneErr   error
	OpenCount  int
	CloneCount int
}

// IsRepository reports whether the fake clone exists.
func (o *TestOpener) IsRepository(_ string) bool {
	return o.Exists
}

// Open returns the fake repository.
func (o *TestOpener) Open(_ string) (Repo, error) {
	o.OpenCount++

	return o.Repo, nil
}

// Clone marks the clone as existing and returns the fake repository.
func (o *TestOpener) Clone(_ context.Context, _, _ string) (Repo, error) {
	if o.CloneErr != nil {
		return nil, o.CloneErr
	}

	o.CloneCount++
	o.Exists = true

	return o.Repo, nil
}
