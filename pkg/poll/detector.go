package poll

import (
	"context"
	"log/slog"

	"github.com/forgeline/gitgate/pkg/params"
	"github.com/forgeline/gitgate/pkg/workspace"
)

// BuildState answers whether a project currently has a build in flight.
// Polling while a build runs must never trigger another one.
type BuildState interface {
	Building(project string) bool
}

// AlwaysIdle is a BuildState for callers without a build queue, such as the
// one-shot poll command.
type AlwaysIdle struct{}

// Building always reports false.
func (AlwaysIdle) Building(string) bool { return false }

// Decision is the outcome of one poll cycle for one project.
type Decision struct {
	// Changed reports whether a build should run.
	Changed bool

	// Tip is the fetched tip of the configured branch.
	Tip string

	// Last is the last built revision, empty when none was recorded.
	Last string

	// Reason explains the decision in one line for logs and CLI output.
	Reason string
}

// Detector implements the poll decision: fetch, resolve the branch tip and
// compare it against the revision store. It never mutates the store; only a
// completed checkout records a new revision.
type Detector struct {
	sync   *workspace.Synchronizer
	store  RevisionStore
	builds BuildState
	logger *slog.Logger
}

// NewDetector creates a Detector. A nil builds falls back to AlwaysIdle, a
// nil logger to slog.Default.
func NewDetector(sync *workspace.Synchronizer, store RevisionStore, builds BuildState, logger *slog.Logger) *Detector {
	if builds == nil {
		builds = AlwaysIdle{}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Detector{sync: sync, store: store, builds: builds, logger: logger}
}

// ShouldBuild runs one poll cycle for the project in dir. A project with a
// build in flight never triggers, and a branch whose tip cannot be resolved
// counts as unchanged rather than failing the cycle.
func (d *Detector) ShouldBuild(ctx context.Context, cfg workspace.Config, project, dir string, sub params.Substituter) (Decision, error) {
	if d.builds.Building(project) {
		return Decision{Reason: "build in progress"}, nil
	}

	repo, err := d.sync.Sync(ctx, cfg, dir)
	if err != nil {
		return Decision{}, err
	}
	defer repo.Free()

	tip, err := repo.Tip(params.Expand(sub, cfg.Branch))
	if err != nil {
		d.logger.Warn("branch tip not found", "project", project, "branch", cfg.Branch, "error", err)

		return Decision{Reason: "branch not found"}, nil
	}

	last, err := d.store.Last(project)
	if err != nil {
		return Decision{}, err
	}

	decision := Decision{Tip: tip.String(), Last: last}

	switch {
	case last == "":
		decision.Changed = true
		decision.Reason = "no previous build"
	case last != decision.Tip:
		decision.Changed = true
		decision.Reason = "tip moved since last build"
	default:
		decision.Reason = "tip unchanged"
	}

	d.logger.Info("poll decision",
		"project", project,
		"changed", decision.Changed,
		"tip", decision.Tip,
		"last", last)

	return decision, nil
}
