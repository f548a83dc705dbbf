package session

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts the session flow under the /session prefix.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/session", func(r chi.Router) {
		r.Use(h.Middleware)

		r.Get("/", h.Get)
		r.Post("/start", h.Start)
		r.Post("/back", h.Back)
		r.Patch("/fields", h.UpdateFields)
		r.Post("/submit", h.Submit)
		r.Post("/reset", h.Reset)
		r.Post("/new", h.NewAssessment)
	})
}
