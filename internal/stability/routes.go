package stability

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts all stability endpoints onto the given router
// under the /stability prefix.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/stability", func(r chi.Router) {
		r.Post("/evaluate", h.Evaluate)
		r.Post("/import", h.Import)

		r.Get("/assessments", h.ListAssessments)
		r.Get("/assessments/{id}", h.GetAssessment)
		r.Get("/assessments/{id}/report.pdf", h.ReportPDF)
		r.Get("/assessments/{id}/report.xlsx", h.ReportXLSX)
	})
}
