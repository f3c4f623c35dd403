package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all alert routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/alerts", func(r chi.Router) {
		r.Post("/evaluate", h.HandleEvaluate)
		r.Get("/latest", h.HandleGetLatest)
		r.Get("/critical", h.HandleGetCriticalProjects)

		r.Get("/runs", h.HandleGetRuns)
		r.Route("/runs/{id}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetRun(w, r, chi.URLParam(r, "id"))
			})
			r.Get("/alerts", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetRunAlerts(w, r, chi.URLParam(r, "id"))
			})
			r.Get("/report", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetReport(w, r, chi.URLParam(r, "id"))
			})
		})
	})
}
