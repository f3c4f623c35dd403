package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all KPI routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/kpi", func(r chi.Router) {
		r.Get("/features", h.HandleGetFeatures)
		r.Get("/portfolio", h.HandleGetPortfolio)

		r.Get("/projects", h.HandleGetProjects)
		r.Get("/projects/{projectID}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetProject(w, r, chi.URLParam(r, "projectID"))
		})

		r.Route("/summary", func(r chi.Router) {
			r.Get("/projects", h.HandleGetProjectSummaries)
			r.Get("/cost-codes", h.HandleGetCostCodeSummaries)
		})
	})
}
