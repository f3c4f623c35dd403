// Package handlers provides HTTP handlers for KPI and feature views.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/manchuphon/Alert-Dashboard/internal/modules/features"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/kpi"
	"github.com/rs/zerolog"
)

// Views computes the dashboard views from the stored records
type Views interface {
	Features(ctx context.Context, projectID string) (features.Result, error)
	ProjectKPI(ctx context.Context, projectID string) (kpi.ProjectKPI, error)
	ProjectKPIs(ctx context.Context) ([]kpi.ProjectKPI, error)
	Portfolio(ctx context.Context) (kpi.PortfolioSummary, error)
	ProjectSummaries(ctx context.Context) ([]kpi.ProjectSummary, error)
	CostCodeSummaries(ctx context.Context) ([]kpi.CostCodeSummary, error)
}

// Handler handles KPI HTTP requests
type Handler struct {
	views Views
	log   zerolog.Logger
}

// NewHandler creates a new KPI handler
func NewHandler(views Views, log zerolog.Logger) *Handler {
	return &Handler{
		views: views,
		log:   log.With().Str("handler", "kpi").Logger(),
	}
}

// HandleGetFeatures handles GET /api/kpi/features?project_id=
func (h *Handler) HandleGetFeatures(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")
	result, err := h.views.Features(r.Context(), projectID)
	if err != nil {
		h.log.Error().Err(err).Str("project_id", projectID).Msg("Failed to build features")
		http.Error(w, "Failed to build features", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"rows":    result.Rows,
		"count":   len(result.Rows),
		"skipped": result.Skipped,
	}))
}

// HandleGetProjects handles GET /api/kpi/projects
func (h *Handler) HandleGetProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.views.ProjectKPIs(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute project KPIs")
		http.Error(w, "Failed to compute project KPIs", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"projects": projects,
		"count":    len(projects),
	}))
}

// HandleGetProject handles GET /api/kpi/projects/{projectID}.
// A project without records answers 200 with the empty default.
func (h *Handler) HandleGetProject(w http.ResponseWriter, r *http.Request, projectID string) {
	project, err := h.views.ProjectKPI(r.Context(), projectID)
	if err != nil {
		h.log.Error().Err(err).Str("project_id", projectID).Msg("Failed to compute project KPI")
		http.Error(w, "Failed to compute project KPI", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(project))
}

// HandleGetPortfolio handles GET /api/kpi/portfolio
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	summary, err := h.views.Portfolio(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute portfolio summary")
		http.Error(w, "Failed to compute portfolio summary", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(summary))
}

// HandleGetProjectSummaries handles GET /api/kpi/summary/projects
func (h *Handler) HandleGetProjectSummaries(w http.ResponseWriter, r *http.Request) {
	rows, err := h.views.ProjectSummaries(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute project summaries")
		http.Error(w, "Failed to compute project summaries", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"projects": rows,
		"count":    len(rows),
	}))
}

// HandleGetCostCodeSummaries handles GET /api/kpi/summary/cost-codes
func (h *Handler) HandleGetCostCodeSummaries(w http.ResponseWriter, r *http.Request) {
	rows, err := h.views.CostCodeSummaries(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute cost code summaries")
		http.Error(w, "Failed to compute cost code summaries", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"cost_codes": rows,
		"count":      len(rows),
	}))
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
