package analysis

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metric instruments — no-ops until InitMetrics is called.
var (
	requestCounter    metric.Int64Counter     = noop.Int64Counter{}
	failureCounter    metric.Int64Counter     = noop.Int64Counter{}
	durationHistogram metric.Float64Histogram = noop.Float64Histogram{}
)

// InitMetrics registers the OTel instruments for outbound analysis requests.
// Call this once at startup (after observability.InitMetrics).
func InitMetrics() error {
	meter := otel.Meter("analysis")

	var err error

	requestCounter, err = meter.Int64Counter("analysis.requests.total",
		metric.WithDescription("Total number of analysis requests sent"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return fmt.Errorf("creating request counter: %w", err)
	}

	failureCounter, err = meter.Int64Counter("analysis.failures.total",
		metric.WithDescription("Total number of analysis requests that produced no narrative"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return fmt.Errorf("creating failure counter: %w", err)
	}

	durationHistogram, err = meter.Float64Histogram("analysis.request.duration",
		metric.WithDescription("Duration of analysis requests in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000),
	)
	if err != nil {
		return fmt.Errorf("creating duration histogram: %w", err)
	}

	return nil
}
