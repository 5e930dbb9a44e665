package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all analysis routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/analyze", h.HandleAnalyze)

	r.Route("/analyses", func(r chi.Router) {
		r.Get("/", h.HandleListAnalyses)
		r.Get("/{id}", h.HandleGetAnalysis)
		r.Get("/{id}/logs", h.HandleGetAnalysisLogs)
	})
}
