package stability

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metric instruments — no-ops until InitMetrics is called.
var (
	evalCounter      metric.Int64Counter     = noop.Int64Counter{}
	evalHistogram    metric.Float64Histogram = noop.Float64Histogram{}
	nonFiniteCounter metric.Int64Counter     = noop.Int64Counter{}
	errorCounter     metric.Int64Counter     = noop.Int64Counter{}
	reportCounter    metric.Int64Counter     = noop.Int64Counter{}
	factorGauge      metric.Float64Gauge     = noop.Float64Gauge{}
)

// InitMetrics registers custom OTel metric instruments for the stability domain.
// Call this once at startup (after observability.InitMetrics).
func InitMetrics() error {
	meter := otel.Meter("stability")

	var err error

	evalCounter, err = meter.Int64Counter("stability.evaluations.total",
		metric.WithDescription("Total number of dam stability evaluations"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return fmt.Errorf("creating evaluation counter: %w", err)
	}

	evalHistogram, err = meter.Float64Histogram("stability.evaluation.duration",
		metric.WithDescription("Duration of dam stability evaluations in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 10),
	)
	if err != nil {
		return fmt.Errorf("creating evaluation histogram: %w", err)
	}

	nonFiniteCounter, err = meter.Int64Counter("stability.non_finite.total",
		metric.WithDescription("Evaluations that produced a NaN or infinite quantity"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return fmt.Errorf("creating non-finite counter: %w", err)
	}

	errorCounter, err = meter.Int64Counter("stability.errors.total",
		metric.WithDescription("Total number of stability API errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return fmt.Errorf("creating error counter: %w", err)
	}

	reportCounter, err = meter.Int64Counter("stability.reports.total",
		metric.WithDescription("Total number of rendered assessment reports"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return fmt.Errorf("creating report counter: %w", err)
	}

	factorGauge, err = meter.Float64Gauge("stability.last_factor",
		metric.WithDescription("Safety factors of the last finite evaluation"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("creating factor gauge: %w", err)
	}

	return nil
}
