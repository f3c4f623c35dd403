package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/manchuphon/Alert-Dashboard/internal/database"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/alerts"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	repo *alerts.RunRepository
	err  error
}

func (f *fakeRunner) Evaluate(ctx context.Context, source string) (*alerts.Run, error) {
	if f.err != nil {
		return nil, f.err
	}
	run := sampleRun(time.Now().UTC().Truncate(time.Millisecond))
	run.Source = source
	id, err := f.repo.Save(ctx, run)
	if err != nil {
		return nil, err
	}
	run.ID = id
	return &run, nil
}

func sampleRun(created time.Time) alerts.Run {
	list := []alerts.Alert{
		{ProjectID: "P1", ProjectName: "Tower", AlertType: alerts.AlertHighVariance, Severity: alerts.SeverityMedium, Message: "variance"},
		{ProjectID: "P1", ProjectName: "Tower", AlertType: alerts.AlertProfitRisk, Severity: alerts.SeverityCritical, Message: "margin"},
		{ProjectID: "P2", ProjectName: "Bridge", AlertType: alerts.AlertCostOverrun, Severity: alerts.SeverityHigh, Message: "overrun"},
	}
	return alerts.Run{
		CreatedAt:     created,
		Source:        "test",
		RowsEvaluated: 3,
		Summary:       alerts.Summarize(list),
		Thresholds:    alerts.DefaultThresholds(),
		Alerts:        list,
	}
}

func setupHandler(t *testing.T) (*Handler, *alerts.RunRepository, chi.Router) {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, database.ApplySchema(db, database.NameAlerts))
	t.Cleanup(func() { db.Close() })

	repo := alerts.NewRunRepository(db, logger)
	handler := NewHandler(repo, &fakeRunner{repo: repo}, logger)

	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return handler, repo, router
}

func serve(router http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Contains(t, response, "metadata")
	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok)
	return data
}

func TestHandleEvaluate(t *testing.T) {
	_, repo, router := setupHandler(t)

	w := serve(router, http.MethodPost, "/alerts/evaluate")

	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "api", data["source"])

	runs, err := repo.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestHandleEvaluate_Failure(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	handler := NewHandler(nil, &fakeRunner{err: errors.New("boom")}, logger)

	w := httptest.NewRecorder()
	handler.HandleEvaluate(w, httptest.NewRequest(http.MethodPost, "/alerts/evaluate", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleGetLatest_NoRuns(t *testing.T) {
	_, _, router := setupHandler(t)

	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/alerts/latest").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/alerts/critical").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/alerts/runs/missing").Code)
}

func TestHandleGetRuns(t *testing.T) {
	_, repo, router := setupHandler(t)
	ctx := context.Background()
	base := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := repo.Save(ctx, sampleRun(base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	tests := []struct {
		name  string
		query string
		want  float64
	}{
		{"default limit", "", 3},
		{"with limit", "?limit=2", 2},
		{"invalid limit ignored", "?limit=abc", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, http.MethodGet, "/alerts/runs"+tt.query)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, decodeData(t, w)["count"])
		})
	}
}

func TestHandleGetRunAlerts(t *testing.T) {
	_, repo, router := setupHandler(t)
	id, err := repo.Save(context.Background(), sampleRun(time.Now()))
	require.NoError(t, err)

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		count          float64
	}{
		{"all", "", http.StatusOK, 3},
		{"by project", "?project_id=P2", http.StatusOK, 1},
		{"by severity", "?severity=Critical", http.StatusOK, 1},
		{"by type", "?type=high_variance", http.StatusOK, 1},
		{"invalid severity", "?severity=Severe", http.StatusBadRequest, 0},
		{"invalid type", "?type=nope", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, http.MethodGet, "/alerts/runs/"+id+"/alerts"+tt.query)
			require.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, tt.count, decodeData(t, w)["count"])
			}
		})
	}
}

func TestHandleGetRunAlerts_OrderedBySeverity(t *testing.T) {
	_, repo, router := setupHandler(t)
	id, err := repo.Save(context.Background(), sampleRun(time.Now()))
	require.NoError(t, err)

	w := serve(router, http.MethodGet, "/alerts/runs/"+id+"/alerts")
	require.Equal(t, http.StatusOK, w.Code)

	list := decodeData(t, w)["alerts"].([]interface{})
	require.Len(t, list, 3)
	assert.Equal(t, "Critical", list[0].(map[string]interface{})["severity"])
	assert.Equal(t, "High", list[1].(map[string]interface{})["severity"])
}

func TestHandleGetCriticalProjects(t *testing.T) {
	_, repo, router := setupHandler(t)
	_, err := repo.Save(context.Background(), sampleRun(time.Now()))
	require.NoError(t, err)

	w := serve(router, http.MethodGet, "/alerts/critical")
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeData(t, w)
	assert.Equal(t, float64(1), data["count"])
	project := data["projects"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "P1", project["project_id"])
}

func TestHandleGetReport(t *testing.T) {
	_, repo, router := setupHandler(t)
	created := time.Date(2024, 11, 1, 8, 0, 0, 0, time.UTC)
	id, err := repo.Save(context.Background(), sampleRun(created))
	require.NoError(t, err)

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		format         alerts.Format
	}{
		{"default json", "", http.StatusOK, alerts.FormatJSON},
		{"msgpack", "?format=msgpack", http.StatusOK, alerts.FormatMsgpack},
		{"unknown format", "?format=xml", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, http.MethodGet, "/alerts/runs/"+id+"/report"+tt.query)
			require.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				return
			}

			report, err := alerts.DecodeReport(bytes.NewReader(w.Body.Bytes()), tt.format)
			require.NoError(t, err)
			assert.True(t, created.Equal(report.Timestamp))
			assert.Equal(t, 3, report.Summary.Total)
			assert.Equal(t, alerts.SeverityCritical, report.Alerts[0].Severity)
		})
	}
}
