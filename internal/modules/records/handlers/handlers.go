// Package handlers provides HTTP handlers for record ingestion.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/manchuphon/Alert-Dashboard/internal/domain"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/records"
	"github.com/rs/zerolog"
)

// maxImportBytes bounds the size of one CSV upload
const maxImportBytes = 32 << 20

// RecordService imports and reads stored records
type RecordService interface {
	Import(ctx context.Context, r io.Reader) (records.ImportResult, error)
	Project(ctx context.Context, projectID string) ([]domain.ProjectPeriodRecord, error)
	Projects(ctx context.Context) ([]records.ProjectInfo, error)
	DeleteProject(ctx context.Context, projectID string) (int64, error)
}

// ImportObserver receives import outcome counts
type ImportObserver interface {
	ObserveImport(stored, skipped, duplicates int)
}

// Handler handles record HTTP requests
type Handler struct {
	service  RecordService
	observer ImportObserver
	log      zerolog.Logger
}

// NewHandler creates a new records handler. observer may be nil.
func NewHandler(
	service RecordService,
	observer ImportObserver,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service:  service,
		observer: observer,
		log:      log.With().Str("handler", "records").Logger(),
	}
}

// HandleImport handles POST /api/records/import.
// The CSV is read from the "file" part of a multipart form, or from the raw body.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var body io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "Missing file field", http.StatusBadRequest)
			return
		}
		defer file.Close()
		body = file
	}

	result, err := h.service.Import(r.Context(), body)
	if errors.Is(err, records.ErrInvalidImport) {
		h.log.Warn().Err(err).Msg("Rejected record import")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to import records")
		http.Error(w, "Failed to import records", http.StatusInternalServerError)
		return
	}

	if h.observer != nil {
		h.observer.ObserveImport(result.Stored, result.Skipped, result.Duplicates)
	}

	h.writeJSON(w, http.StatusOK, envelope(result))
}

// HandleGetProjects handles GET /api/records/projects
func (h *Handler) HandleGetProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.Projects(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list projects")
		http.Error(w, "Failed to list projects", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"projects": projects,
		"count":    len(projects),
	}))
}

// HandleGetProjectRecords handles GET /api/records/projects/{projectID}
func (h *Handler) HandleGetProjectRecords(w http.ResponseWriter, r *http.Request, projectID string) {
	recs, err := h.service.Project(r.Context(), projectID)
	if err != nil {
		h.log.Error().Err(err).Str("project_id", projectID).Msg("Failed to list records")
		http.Error(w, "Failed to list records", http.StatusInternalServerError)
		return
	}
	if len(recs) == 0 {
		http.Error(w, "Project not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"project_id": projectID,
		"records":    recs,
		"count":      len(recs),
	}))
}

// HandleDeleteProject handles DELETE /api/records/projects/{projectID}
func (h *Handler) HandleDeleteProject(w http.ResponseWriter, r *http.Request, projectID string) {
	removed, err := h.service.DeleteProject(r.Context(), projectID)
	if err != nil {
		h.log.Error().Err(err).Str("project_id", projectID).Msg("Failed to delete project")
		http.Error(w, "Failed to delete project", http.StatusInternalServerError)
		return
	}
	if removed == 0 {
		http.Error(w, "Project not found", http.StatusNotFound)
		return
	}

	h.log.Info().Str("project_id", projectID).Int64("records", removed).Msg("Deleted project records")
	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"project_id": projectID,
		"deleted":    removed,
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
