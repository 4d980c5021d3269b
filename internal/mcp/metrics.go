package mcp

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/indexd/internal/mcp"

// toolMetrics records per-tool invocation telemetry.
type toolMetrics struct {
	invocations metric.Int64Counter
	duration    metric.Float64Histogram
	active      metric.Int64UpDownCounter
}

func newToolMetrics(logger *zap.Logger) *toolMetrics {
	meter := otel.Meter(instrumentationName)
	m := &toolMetrics{}
	var err error

	m.invocations, err = meter.Int64Counter(
		"indexd.mcp.tool_invocations_total",
		metric.WithDescription("MCP tool invocations, labeled by tool name and outcome."),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		logger.Warn("failed to create invocations counter", zap.Error(err))
	}

	m.duration, err = meter.Float64Histogram(
		"indexd.mcp.tool_duration_seconds",
		metric.WithDescription("MCP tool handler duration in seconds, labeled by tool name."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0, 120.0),
	)
	if err != nil {
		logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.active, err = meter.Int64UpDownCounter(
		"indexd.mcp.active_tools",
		metric.WithDescription("Number of MCP tool handlers currently executing."),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		logger.Warn("failed to create active gauge", zap.Error(err))
	}

	return m
}

// track instruments one tool invocation; the returned func takes the
// handler's terminal error.
func (m *toolMetrics) track(ctx context.Context, tool string) func(error) {
	start := time.Now()
	if m.active != nil {
		m.active.Add(ctx, 1)
	}
	return func(err error) {
		if m.active != nil {
			m.active.Add(ctx, -1)
		}
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		if m.invocations != nil {
			m.invocations.Add(ctx, 1, metric.WithAttributes(
				attribute.String("tool", tool),
				attribute.String("outcome", outcome),
			))
		}
		if m.duration != nil {
			m.duration.Record(ctx, time.Since(start).Seconds(),
				metric.WithAttributes(attribute.String("tool", tool)))
		}
	}
}
