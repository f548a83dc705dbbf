package main

import (
	"context"

	"dam-stability/internal/analysis"
	"dam-stability/internal/observability"
	"dam-stability/internal/session"
	"dam-stability/internal/stability"
)

// initMetrics initialises all metric providers and application-specific
// metric instruments. Add new domain InitMetrics calls here as the project grows.
func initMetrics(ctx context.Context) (func(context.Context) error, error) {
	shutdown, err := observability.InitMetrics(ctx)
	if err != nil {
		return nil, err
	}

	if err := stability.InitMetrics(); err != nil {
		return nil, err
	}
	if err := session.InitMetrics(); err != nil {
		return nil, err
	}
	if err := analysis.InitMetrics(); err != nil {
		return nil, err
	}

	return shutdown, nil
}
