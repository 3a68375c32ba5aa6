package workspace

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/forgeline/gitgate/pkg/changelog"
	"github.com/forgeline/gitgate/pkg/gitlib"
	"github.com/forgeline/gitgate/pkg/params"
)

// Outcome classifies how a converge call ended.
type Outcome int

const (
	// Converged means the workspace sits on the resolved branch at the
	// fetched tip and is ready to build.
	Converged Outcome = iota

	// IntegrationFailed means the target branch did not merge cleanly
	// onto the merge target. The workspace is left checked out on the
	// merge target. This is an expected outcome, not an error: the build
	// should not proceed, nothing crashed.
	IntegrationFailed
)

// Result describes the final workspace state after a converge call.
type Result struct {
	Outcome Outcome

	// Branch is the branch the workspace ended up checked out on, after
	// parameter expansion.
	Branch string

	// Tip is the tip of the resolved branch, the revision the build
	// consumes and callers persist as the last built revision. After a
	// merge this is the branch tip, not the merge commit HEAD points at.
	// Empty on integration failure.
	Tip string

	// Reason is a human-readable explanation for integration failures.
	Reason string
}

// Env variable names exported for builds running in the workspace.
const (
	EnvRevision      = "GIT_REVISION"
	EnvRevisionShort = "GIT_REVISION_SHORT"
)

// Synchronizer converges build workspaces. Safe for use from multiple
// goroutines as long as no two calls target the same workspace directory;
// serializing checkouts per project is the caller's job.
type Synchronizer struct {
	git    Opener
	logger *slog.Logger
}

// NewSynchronizer creates a Synchronizer on the given opener. A nil logger
// falls back to slog.Default.
func NewSynchronizer(git Opener, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Synchronizer{git: git, logger: logger}
}

// Sync performs the clone+fetch half of convergence: ensure the workspace
// directory exists, clone (with submodule init) when no repository is
// present, then unconditionally fetch so branch tips are current. The
// returned Repo is open; the caller must Free it.
func (s *Synchronizer) Sync(ctx context.Context, cfg Config, dir string) (Repo, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create workspace %s: %w", dir, err)
	}

	var repo Repo

	if s.git.IsRepository(dir) {
		repo, err = s.git.Open(dir)
		if err != nil {
			return nil, err
		}
	} else {
		s.logger.Info("cloning workspace", "source", cfg.Source, "dir", dir)

		repo, err = s.git.Clone(ctx, cfg.Source, dir)
		if err != nil {
			return nil, err
		}

		if repo.HasSubmodules() {
			err = repo.SubmoduleInit()
			if err != nil {
				repo.Free()

				return nil, err
			}
		}
	}

	err = repo.Fetch(ctx)
	if err != nil {
		repo.Free()

		return nil, err
	}

	return repo, nil
}

// Converge drives the workspace to the buildable state for cfg: sync,
// resolve branch names through the substitution collaborator, check out the
// target (or merge it onto the merge target) and optionally clean. The
// returned error is always an infrastructure failure; an unmergeable branch
// is reported through Result with Outcome IntegrationFailed.
func (s *Synchronizer) Converge(ctx context.Context, cfg Config, dir string, sub params.Substituter) (Result, error) {
	repo, err := s.Sync(ctx, cfg, dir)
	if err != nil {
		return Result{}, err
	}
	defer repo.Free()

	branch := params.Expand(sub, cfg.Branch)
	target := params.Expand(sub, cfg.MergeTarget)

	// Merging a branch onto itself is a no-op, so an expanded merge
	// target equal to the branch degrades to a plain checkout.
	merging := cfg.Merge && target != "" && target != branch

	if !merging {
		result, checkoutErr := s.checkout(ctx, repo, branch)
		if checkoutErr != nil {
			return Result{}, checkoutErr
		}

		return s.finish(cfg, repo, result)
	}

	result, err := s.checkout(ctx, repo, target)
	if err != nil {
		return Result{}, err
	}

	s.logger.Info("integrating branch", "branch", branch, "onto", target)

	err = repo.Merge(ctx, branch)
	if err != nil {
		// Any merge failure means the branch is not suitable for
		// integration; the workspace stays on the merge target.
		s.logger.Warn("branch does not merge cleanly", "branch", branch, "onto", target, "error", err)

		return Result{
			Outcome: IntegrationFailed,
			Branch:  target,
			Reason:  fmt.Sprintf("branch %s does not merge cleanly onto %s: %v", branch, target, err),
		}, nil
	}

	// HEAD now points at a freshly minted merge commit whose hash differs
	// on every run. Builds and the poll comparison key on the branch tip,
	// so that is what the result reports.
	tip, err := repo.Tip(branch)
	if err != nil {
		return Result{}, err
	}

	result.Tip = tip.String()

	return s.finish(cfg, repo, result)
}

// checkout moves the workspace onto branch and updates submodules.
func (s *Synchronizer) checkout(ctx context.Context, repo Repo, branch string) (Result, error) {
	s.logger.Info("checking out", "branch", branch)

	err := repo.Checkout(ctx, branch)
	if err != nil {
		return Result{}, err
	}

	if repo.HasSubmodules() {
		err = repo.SubmoduleUpdate()
		if err != nil {
			return Result{}, err
		}
	}

	head, err := repo.Head()
	if err != nil {
		return Result{}, err
	}

	return Result{Outcome: Converged, Branch: branch, Tip: head.String()}, nil
}

// finish applies the post-checkout clean step.
func (s *Synchronizer) finish(cfg Config, repo Repo, result Result) (Result, error) {
	if cfg.Clean {
		err := repo.Clean()
		if err != nil {
			return Result{}, err
		}
	}

	return result, nil
}

// Changes extracts the changelog for the exclusive-inclusive revision range
// (from, to] from an already-converged workspace. When either revision is
// absent, or both are equal, there is nothing to diff and an empty set is
// returned: the first build of a project has no prior revision to compare
// against.
func (s *Synchronizer) Changes(ctx context.Context, dir, from, to string) (changelog.Set, error) {
	if from == "" || to == "" || from == to {
		return nil, nil
	}

	err := ctx.Err()
	if err != nil {
		return nil, fmt.Errorf("extract changes: %w", err)
	}

	repo, err := s.git.Open(dir)
	if err != nil {
		return nil, err
	}
	defer repo.Free()

	fromHash, err := gitlib.ParseHash(from)
	if err != nil {
		return nil, err
	}

	toHash, err := gitlib.ParseHash(to)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	err = repo.RawLog(&buf, fromHash, toHash)
	if err != nil {
		return nil, err
	}

	return changelog.Parse(&buf)
}

// BuildEnv resolves the environment variables exported to builds: the full
// and abbreviated revision of the expanded target branch.
func (s *Synchronizer) BuildEnv(cfg Config, dir string, sub params.Substituter) (map[string]string, error) {
	repo, err := s.git.Open(dir)
	if err != nil {
		return nil, err
	}
	defer repo.Free()

	tip, err := repo.Tip(params.Expand(sub, cfg.Branch))
	if err != nil {
		return nil, err
	}

	return map[string]string{
		EnvRevision:      tip.String(),
		EnvRevisionShort: tip.Short(),
	}, nil
}
