package main

import (
	"context"
	"fmt"
	"time"

	"dam-stability/internal/analysis"
	"dam-stability/internal/assessment"
	"dam-stability/internal/config"
	"dam-stability/internal/dam"
	"dam-stability/internal/observability"
	"dam-stability/internal/server"
	"dam-stability/internal/session"
	"dam-stability/internal/stability"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// sweepInterval is how often idle sessions and rate limit buckets are
// collected.
const sweepInterval = time.Minute

// limiterIdle is how long a client's rate limit bucket outlives its last
// request.
const limiterIdle = 10 * time.Minute

// openRepository returns the PostgreSQL repository when a database URL is
// configured and the in-memory one otherwise. The returned func releases it.
func openRepository(ctx context.Context, cfg config.Config) (assessment.Repository, func() error, error) {
	if cfg.DatabaseURL == "" {
		observability.Logger.Info("storing assessments in memory")
		return assessment.NewMemoryRepository(), func() error { return nil }, nil
	}

	db, err := assessment.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	repo := assessment.NewPostgresRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}

	observability.Logger.Info("storing assessments in postgres")
	return repo, db.Close, nil
}

// buildDeps wires the domain handlers. The returned store must be swept by
// the caller.
func buildDeps(cfg config.Config, repo assessment.Repository) (server.Deps, *session.Store, error) {
	client := analysis.NewClient(cfg.AnalysisBaseURL, cfg.AnalysisTimeout)
	evaluator := dam.NewEvaluator(cfg.FactorMode, cfg.DefaultFriction)

	store := session.NewStore(func() *session.Controller {
		return session.NewController(session.Options{
			Evaluator:  evaluator,
			Requester:  client,
			ResetDelay: cfg.ResetDelay,
			OnSettled:  session.RecordTo(repo),
		})
	}, cfg.SessionTTL)

	signer, err := session.NewSigner([]byte(cfg.SessionKey), cfg.SessionTTL)
	if err != nil {
		return server.Deps{}, nil, err
	}
	if cfg.SessionKey == "" {
		observability.Logger.Warn("SESSION_KEY not set, sessions will not survive a restart")
	}

	deps := server.Deps{
		Stability: stability.NewHandler(repo, client, cfg.FactorMode, cfg.DefaultFriction),
		Session:   session.NewHandler(store, signer),
	}
	if cfg.RateLimitRPS > 0 {
		deps.Limiter = server.NewIPRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	observability.Logger.Info("analysis service configured",
		zap.String("endpoint", client.Endpoint()),
		zap.String("factor_mode", string(cfg.FactorMode)),
	)
	return deps, store, nil
}
