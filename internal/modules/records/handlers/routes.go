package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all record routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/records", func(r chi.Router) {
		r.Post("/import", h.HandleImport)

		r.Get("/projects", h.HandleGetProjects)
		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetProjectRecords(w, r, chi.URLParam(r, "projectID"))
			})
			r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				h.HandleDeleteProject(w, r, chi.URLParam(r, "projectID"))
			})
		})
	})
}
