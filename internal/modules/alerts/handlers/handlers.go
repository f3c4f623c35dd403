// Package handlers provides HTTP handlers for alert evaluation runs.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/manchuphon/Alert-Dashboard/internal/modules/alerts"
	"github.com/rs/zerolog"
)

// RunReader reads stored evaluation runs
type RunReader interface {
	Get(ctx context.Context, id string) (*alerts.Run, error)
	Latest(ctx context.Context) (*alerts.Run, error)
	List(ctx context.Context, limit int) ([]alerts.Run, error)
	ListAlerts(ctx context.Context, runID string, filter alerts.AlertFilter) ([]alerts.Alert, error)
}

// Runner triggers an evaluation pass
type Runner interface {
	Evaluate(ctx context.Context, source string) (*alerts.Run, error)
}

// Handler handles alert HTTP requests
type Handler struct {
	runs   RunReader
	runner Runner
	log    zerolog.Logger
}

// NewHandler creates a new alerts handler
func NewHandler(
	runs RunReader,
	runner Runner,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		runs:   runs,
		runner: runner,
		log:    log.With().Str("handler", "alerts").Logger(),
	}
}

const maxRunsLimit = 500

// HandleEvaluate handles POST /api/alerts/evaluate
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	run, err := h.runner.Evaluate(r.Context(), "api")
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to run evaluation")
		http.Error(w, "Failed to run evaluation", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(run))
}

// HandleGetRuns handles GET /api/alerts/runs
func (h *Handler) HandleGetRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50 // default
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}
	if limit > maxRunsLimit {
		limit = maxRunsLimit
	}

	runs, err := h.runs.List(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	}))
}

// HandleGetRun handles GET /api/alerts/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request, id string) {
	run, ok := h.lookup(w, r, id)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(run))
}

// HandleGetLatest handles GET /api/alerts/latest
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r, "")
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(run))
}

// HandleGetRunAlerts handles GET /api/alerts/runs/{id}/alerts?project_id=&severity=&type=
func (h *Handler) HandleGetRunAlerts(w http.ResponseWriter, r *http.Request, id string) {
	q := r.URL.Query()
	filter := alerts.AlertFilter{
		ProjectID: q.Get("project_id"),
		Severity:  alerts.Severity(q.Get("severity")),
		AlertType: alerts.AlertType(q.Get("type")),
	}
	if filter.Severity != "" && !filter.Severity.IsValid() {
		http.Error(w, "Invalid severity", http.StatusBadRequest)
		return
	}
	if filter.AlertType != "" && !filter.AlertType.IsValid() {
		http.Error(w, "Invalid alert type", http.StatusBadRequest)
		return
	}

	if _, ok := h.lookup(w, r, id); !ok {
		return
	}

	list, err := h.runs.ListAlerts(r.Context(), id, filter)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to list alerts")
		http.Error(w, "Failed to list alerts", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"run_id": id,
		"alerts": alerts.SortBySeverity(list),
		"count":  len(list),
	}))
}

// HandleGetCriticalProjects handles GET /api/alerts/critical of the latest run
func (h *Handler) HandleGetCriticalProjects(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r, "")
	if !ok {
		return
	}

	projects := alerts.CriticalProjects(run.Alerts)
	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"run_id":   run.ID,
		"projects": projects,
		"count":    len(projects),
	}))
}

// HandleGetReport handles GET /api/alerts/runs/{id}/report?format=json|msgpack
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request, id string) {
	format := alerts.FormatJSON
	if f := r.URL.Query().Get("format"); f != "" {
		format = alerts.Format(f)
	}
	if !format.IsValid() {
		http.Error(w, "Invalid report format", http.StatusBadRequest)
		return
	}

	run, ok := h.lookup(w, r, id)
	if !ok {
		return
	}

	contentType := "application/json"
	if format == alerts.FormatMsgpack {
		contentType = "application/msgpack"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if err := run.Report().Encode(w, format); err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to encode report")
	}
}

// lookup fetches a run by id, or the latest run for an empty id, and writes the error response
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request, id string) (*alerts.Run, bool) {
	var run *alerts.Run
	var err error
	if id == "" {
		run, err = h.runs.Latest(r.Context())
	} else {
		run, err = h.runs.Get(r.Context(), id)
	}
	if errors.Is(err, alerts.ErrRunNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to get run")
		http.Error(w, "Failed to get run", http.StatusInternalServerError)
		return nil, false
	}
	return run, true
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
