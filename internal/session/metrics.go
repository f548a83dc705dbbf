package session

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metric instruments — no-ops until InitMetrics is called.
var (
	transitionCounter metric.Int64Counter       = noop.Int64Counter{}
	errorCounter      metric.Int64Counter       = noop.Int64Counter{}
	staleCounter      metric.Int64Counter       = noop.Int64Counter{}
	activeSessions    metric.Int64UpDownCounter = noop.Int64UpDownCounter{}
)

// InitMetrics registers the OTel instruments for session flows.
// Call this once at startup (after observability.InitMetrics).
func InitMetrics() error {
	meter := otel.Meter("session")

	var err error

	transitionCounter, err = meter.Int64Counter("session.transitions.total",
		metric.WithDescription("Total number of applied screen transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return fmt.Errorf("creating transition counter: %w", err)
	}

	errorCounter, err = meter.Int64Counter("session.errors.total",
		metric.WithDescription("Total number of rejected session requests"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return fmt.Errorf("creating error counter: %w", err)
	}

	staleCounter, err = meter.Int64Counter("session.analysis.stale.total",
		metric.WithDescription("Analysis results dropped because a newer submission or reset superseded them"),
		metric.WithUnit("{result}"),
	)
	if err != nil {
		return fmt.Errorf("creating stale counter: %w", err)
	}

	activeSessions, err = meter.Int64UpDownCounter("session.active",
		metric.WithDescription("Number of sessions currently held in memory"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return fmt.Errorf("creating active sessions counter: %w", err)
	}

	return nil
}
