package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"dam-stability/internal/handlers"
	"dam-stability/internal/observability"
	"dam-stability/internal/session"
	"dam-stability/internal/stability"
)

// Deps are the domain handlers mounted by NewRouter. A nil Limiter disables
// rate limiting.
type Deps struct {
	Stability *stability.Handler
	Session   *session.Handler
	Limiter   *IPRateLimiter
}

func NewRouter(deps Deps) http.Handler {

	r := chi.NewRouter()

	r.Use(observability.RequestIDMiddleware)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.LoggingMiddleware)

	r.Get("/health", handlers.Health)

	r.Handle("/metrics", observability.PrometheusHandler())

	r.Group(func(r chi.Router) {
		if deps.Limiter != nil {
			r.Use(deps.Limiter.Middleware)
		}
		if deps.Stability != nil {
			deps.Stability.RegisterRoutes(r)
		}
		if deps.Session != nil {
			deps.Session.RegisterRoutes(r)
		}
	})

	return r
}
