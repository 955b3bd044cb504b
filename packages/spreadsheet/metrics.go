package spreadsheet

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// package-level tracer and meter for edit transactions. both resolve through
// the global providers, so they are no-ops until telemetry is configured.
var (
	tracer = otel.Tracer("gridcalc.spreadsheet")
	meter  = otel.Meter("gridcalc.spreadsheet")
)

var (
	editLatency    metric.Float64Histogram
	editTotal      metric.Int64Counter
	recomputed     metric.Int64Histogram
	parallelLevels metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		editLatency, err = meter.Float64Histogram(
			"gridcalc_edit_duration_seconds",
			metric.WithDescription("Duration of edit transactions, validation through recomputation"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		editTotal, err = meter.Int64Counter(
			"gridcalc_edits",
			metric.WithDescription("Edit transactions by resulting status"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		recomputed, err = meter.Int64Histogram(
			"gridcalc_recomputed_cells",
			metric.WithDescription("Cells re-evaluated per committed edit"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parallelLevels, err = meter.Int64Counter(
			"gridcalc_parallel_levels",
			metric.WithDescription("Recalculation levels evaluated concurrently"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordEditMetrics records metrics for one edit transaction
func recordEditMetrics(ctx context.Context, status Status, cells, parallel int, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("status", statusLabel(status)))
	editLatency.Record(ctx, duration.Seconds(), attrs)
	editTotal.Add(ctx, 1, attrs)

	if status == StatusOK {
		recomputed.Record(ctx, int64(cells))
		if parallel > 0 {
			parallelLevels.Add(ctx, int64(parallel))
		}
	}
}

// statusLabel is a metric-safe status name; the user-facing strings collide
func statusLabel(status Status) string {
	switch status {
	case StatusOK:
		return "ok"
	case StatusInvalidInput:
		return "invalid_input"
	case StatusCyclicDependency:
		return "cyclic_dependency"
	default:
		return "none"
	}
}
