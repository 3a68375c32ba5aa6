package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgeline/gitgate/internal/config"
	"github.com/forgeline/gitgate/internal/observability"
	"github.com/forgeline/gitgate/pkg/poll"
	"github.com/forgeline/gitgate/pkg/version"
	"github.com/forgeline/gitgate/pkg/workspace"
)

// DaemonCommand runs the polling daemon: every interval it polls all
// configured projects and checks out the ones whose branch moved.
type DaemonCommand struct {
	configPath string
	verbose    bool

	otlpEndpoint string
	otlpInsecure bool
	environment  string
}

// NewDaemonCommand creates the daemon command.
func NewDaemonCommand(configPath *string, verbose *bool) *cobra.Command {
	dc := &DaemonCommand{}

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Poll all configured projects on an interval and keep their workspaces current",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dc.configPath = *configPath
			dc.verbose = *verbose

			return dc.run(cmd)
		},
	}

	cmd.Flags().StringVar(&dc.otlpEndpoint, "otlp-endpoint", "",
		"OTLP gRPC collector address for traces and metrics (empty disables export)")
	cmd.Flags().BoolVar(&dc.otlpInsecure, "otlp-insecure", false, "Disable TLS for the OTLP connection")
	cmd.Flags().StringVar(&dc.environment, "environment", "", "Deployment environment reported in telemetry")

	return cmd
}

func (dc *DaemonCommand) run(cmd *cobra.Command) error {
	obsCfg := observability.DefaultConfig()
	obsCfg.Mode = observability.ModeDaemon
	obsCfg.ServiceVersion = version.Version
	obsCfg.Environment = dc.environment
	obsCfg.OTLPEndpoint = dc.otlpEndpoint
	obsCfg.OTLPInsecure = dc.otlpInsecure
	obsCfg.LogJSON = true

	if dc.verbose {
		obsCfg.LogLevel = slog.LevelDebug
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return err
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("telemetry shutdown failed", "error", shutdownErr)
		}
	}()

	app, err := NewApp(dc.configPath, dc.verbose)
	if err != nil {
		return err
	}

	// The daemon logs through the telemetry-aware handler.
	app.Logger = providers.Logger
	app.Sync = workspace.NewSynchronizer(workspace.GitOpener{}, providers.Logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.PollerMetrics

	if app.Config.Diagnostics.Enabled {
		diag, diagErr := observability.NewDiagnosticsServer(app.Config.Diagnostics.Addr, app.ReadyChecks()...)
		if diagErr != nil {
			return diagErr
		}

		defer func() { _ = diag.Close() }()

		metrics = diag.Metrics
		app.Logger.Info("diagnostics listening", "addr", diag.Addr())
	}

	app.Logger.Info("daemon started",
		"projects", len(app.Config.Projects),
		"interval", app.Config.PollInterval,
		"version", version.Version)

	ticker := time.NewTicker(app.Config.PollInterval)
	defer ticker.Stop()

	for {
		dc.pollAll(ctx, app, metrics)

		select {
		case <-ctx.Done():
			app.Logger.Info("daemon stopping")

			return nil
		case <-ticker.C:
		}
	}
}

func (dc *DaemonCommand) pollAll(ctx context.Context, app *App, metrics *observability.PollerMetrics) {
	detector := poll.NewDetector(app.Sync, app.Store, nil, app.Logger)

	for _, project := range app.Config.Projects {
		if ctx.Err() != nil {
			return
		}

		dc.pollOne(ctx, app, detector, project, metrics)
	}
}

func (dc *DaemonCommand) pollOne(
	ctx context.Context,
	app *App,
	detector *poll.Detector,
	project config.Project,
	metrics *observability.PollerMetrics,
) {
	started := time.Now()
	dir := app.WorkspaceDir(project.Name)
	sub := Substituter(project, nil)

	decision, err := detector.ShouldBuild(ctx, project.Workspace(), project.Name, dir, sub)
	if err != nil {
		app.Logger.Error("poll failed", "project", project.Name, "error", err)

		if metrics != nil {
			metrics.RecordSyncFailure(ctx, project.Name)
		}

		return
	}

	if metrics != nil {
		defer func() {
			metrics.RecordCycle(ctx, project.Name, decision.Changed, time.Since(started))
		}()
	}

	if !decision.Changed {
		return
	}

	result, err := app.Sync.Converge(ctx, project.Workspace(), dir, sub)
	if err != nil {
		app.Logger.Error("checkout failed", "project", project.Name, "error", err)

		if metrics != nil {
			metrics.RecordSyncFailure(ctx, project.Name)
		}

		return
	}

	if result.Outcome == workspace.IntegrationFailed {
		app.Logger.Warn("integration failed", "project", project.Name, "reason", result.Reason)

		if metrics != nil {
			metrics.RecordMergeFailure(ctx, project.Name)
		}

		return
	}

	set, err := app.Sync.Changes(ctx, dir, decision.Last, result.Tip)
	if err != nil {
		app.Logger.Error("changelog extraction failed", "project", project.Name, "error", err)
	} else if len(set) > 0 {
		_, archiveErr := app.Changes.Write(project.Name, set)
		if archiveErr != nil {
			app.Logger.Error("changelog archive failed", "project", project.Name, "error", archiveErr)
		}
	}

	err = app.Store.SetLast(project.Name, result.Tip)
	if err != nil {
		app.Logger.Error("state update failed", "project", project.Name, "error", err)

		return
	}

	app.Logger.Info("workspace updated",
		"project", project.Name,
		"branch", result.Branch,
		"tip", result.Tip,
		"commits", len(set))
}
