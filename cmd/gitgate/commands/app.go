// Package commands implements CLI command handlers for gitgate.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/forgeline/gitgate/internal/changestore"
	"github.com/forgeline/gitgate/internal/config"
	"github.com/forgeline/gitgate/internal/observability"
	"github.com/forgeline/gitgate/pkg/params"
	"github.com/forgeline/gitgate/pkg/poll"
	"github.com/forgeline/gitgate/pkg/workspace"
)

// Sentinel results mapped to exit codes by main.
var (
	// ErrChangesDetected signals that polling found new revisions.
	ErrChangesDetected = errors.New("changes detected")

	// ErrIntegrationFailed signals that the branch did not merge cleanly.
	ErrIntegrationFailed = errors.New("integration failed")
)

// App wires the collaborators every command needs: configuration, the
// synchronizer, the revision store and the changelog archive.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Sync    *workspace.Synchronizer
	Store   *poll.FileStore
	Changes *changestore.Store
}

// NewApp loads configuration and constructs the command collaborators.
func NewApp(configPath string, verbose bool) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := buildLogger(cfg.Logging, verbose)

	store, err := poll.NewFileStore(cfg.StateDir)
	if err != nil {
		return nil, err
	}

	changes, err := changestore.New(cfg.ChangelogDir)
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(cfg.WorkspaceDir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create workspace dir %s: %w", cfg.WorkspaceDir, err)
	}

	return &App{
		Config:  cfg,
		Logger:  logger,
		Sync:    workspace.NewSynchronizer(workspace.GitOpener{}, logger),
		Store:   store,
		Changes: changes,
	}, nil
}

// ReadyChecks reports the daemon's readiness probes: the revision state,
// changelog and workspace directories must all exist for poll cycles and
// checkouts to make progress.
func (a *App) ReadyChecks() []observability.ReadyCheck {
	return []observability.ReadyCheck{
		dirCheck("state dir", a.Config.StateDir),
		dirCheck("changelog dir", a.Config.ChangelogDir),
		dirCheck("workspace dir", a.Config.WorkspaceDir),
	}
}

func dirCheck(name, dir string) observability.ReadyCheck {
	return func(_ context.Context) error {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}

		if !info.IsDir() {
			return fmt.Errorf("%s: %s is not a directory", name, dir)
		}

		return nil
	}
}

func buildLogger(cfg config.LoggingConfig, verbose bool) *slog.Logger {
	level := parseLevel(cfg.Level)
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Project resolves a named project from configuration.
func (a *App) Project(name string) (config.Project, error) {
	return a.Config.Lookup(name)
}

// WorkspaceDir is the checkout directory for a project.
func (a *App) WorkspaceDir(project string) string {
	return filepath.Join(a.Config.WorkspaceDir, project)
}

// Substituter combines a project's configured parameters with overrides
// given on the command line.
func Substituter(project config.Project, overrides map[string]string) params.Substituter {
	merged := make(params.Map, len(project.Parameters)+len(overrides))

	for k, v := range project.Parameters {
		merged[k] = v
	}

	for k, v := range overrides {
		merged[k] = v
	}

	return merged
}
