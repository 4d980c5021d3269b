package indexer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/indexd/internal/indexer"

var tracer = otel.Tracer(instrumentationName)

// syncMetrics holds sync-related instruments.
type syncMetrics struct {
	syncsTotal   metric.Int64Counter
	filesIndexed metric.Int64Counter
	syncDuration metric.Float64Histogram
}

func newSyncMetrics(logger *zap.Logger) *syncMetrics {
	meter := otel.Meter(instrumentationName)
	m := &syncMetrics{}
	var err error

	m.syncsTotal, err = meter.Int64Counter(
		"indexd.sync.total",
		metric.WithDescription("Repository syncs completed, labeled by action (full, incremental, noop) and outcome."),
		metric.WithUnit("{sync}"),
	)
	if err != nil {
		logger.Warn("failed to create sync counter", zap.Error(err))
	}

	m.filesIndexed, err = meter.Int64Counter(
		"indexd.sync.files_indexed",
		metric.WithDescription("Files written into repository indexes across all syncs."),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		logger.Warn("failed to create files counter", zap.Error(err))
	}

	m.syncDuration, err = meter.Float64Histogram(
		"indexd.sync.duration_seconds",
		metric.WithDescription("Wall-clock duration of repository syncs, labeled by action."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0, 60.0, 300.0),
	)
	if err != nil {
		logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	return m
}

func (m *syncMetrics) record(ctx context.Context, action Action, outcome string, files int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("action", string(action)),
		attribute.String("outcome", outcome),
	)
	if m.syncsTotal != nil {
		m.syncsTotal.Add(ctx, 1, attrs)
	}
	if m.filesIndexed != nil && files > 0 {
		m.filesIndexed.Add(ctx, int64(files))
	}
	if m.syncDuration != nil {
		m.syncDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("action", string(action))))
	}
}
