package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricPollCycles    = "gitgate.poll.cycles"
	metricPollChanges   = "gitgate.poll.changes"
	metricSyncFailures  = "gitgate.sync.failures"
	metricMergeFailures = "gitgate.merge.failures"
	metricPollDuration  = "gitgate.poll.duration"

	attrProject = "project"
)

// PollerMetrics instruments the daemon poll loop.
type PollerMetrics struct {
	cycles        metric.Int64Counter
	changes       metric.Int64Counter
	syncFailures  metric.Int64Counter
	mergeFailures metric.Int64Counter
	duration      metric.Float64Histogram
}

// NewPollerMetrics creates the poll loop instruments on the given meter.
func NewPollerMetrics(mt metric.Meter) (*PollerMetrics, error) {
	cycles, err := mt.Int64Counter(metricPollCycles,
		metric.WithDescription("Completed poll cycles per project"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPollCycles, err)
	}

	changes, err := mt.Int64Counter(metricPollChanges,
		metric.WithDescription("Poll cycles that detected new revisions"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPollChanges, err)
	}

	syncFailures, err := mt.Int64Counter(metricSyncFailures,
		metric.WithDescription("Clone or fetch failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricSyncFailures, err)
	}

	mergeFailures, err := mt.Int64Counter(metricMergeFailures,
		metric.WithDescription("Branches that failed to integrate onto the merge target"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricMergeFailures, err)
	}

	duration, err := mt.Float64Histogram(metricPollDuration,
		metric.WithDescription("Wall time of one poll cycle"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPollDuration, err)
	}

	return &PollerMetrics{
		cycles:        cycles,
		changes:       changes,
		syncFailures:  syncFailures,
		mergeFailures: mergeFailures,
		duration:      duration,
	}, nil
}

// RecordCycle records one completed poll cycle for a project.
func (pm *PollerMetrics) RecordCycle(ctx context.Context, project string, changed bool, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String(attrProject, project))

	pm.cycles.Add(ctx, 1, attrs)
	pm.duration.Record(ctx, elapsed.Seconds(), attrs)

	if changed {
		pm.changes.Add(ctx, 1, attrs)
	}
}

// RecordSyncFailure records a clone or fetch failure for a project.
func (pm *PollerMetrics) RecordSyncFailure(ctx context.Context, project string) {
	pm.syncFailures.Add(ctx, 1, metric.WithAttributes(attribute.String(attrProject, project)))
}

// RecordMergeFailure records an integration failure for a project.
func (pm *PollerMetrics) RecordMergeFailure(ctx context.Context, project string) {
	pm.mergeFailures.Add(ctx, 1, metric.WithAttributes(attribute.String(attrProject, project)))
}
