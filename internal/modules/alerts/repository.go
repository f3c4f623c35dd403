package alerts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/manchuphon/Alert-Dashboard/internal/database"
	"github.com/rs/zerolog"
)

// ErrRunNotFound is returned when a run id does not exist
var ErrRunNotFound = errors.New("alert run not found")

// Run is one stored evaluation pass
type Run struct {
	ID            string     `json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	Source        string     `json:"source"` // "api", "scheduler", "cli"
	RowsEvaluated int        `json:"rows_evaluated"`
	RowsSkipped   int        `json:"rows_skipped"`
	Summary       Summary    `json:"summary"`
	Thresholds    Thresholds `json:"thresholds"`
	Alerts        []Alert    `json:"alerts,omitempty"`
}

// Report returns the export document of the run
func (r Run) Report() Report {
	return Report{
		Timestamp: r.CreatedAt,
		Summary:   r.Summary,
		Alerts:    SortBySeverity(r.Alerts),
	}
}

// AlertFilter narrows ListAlerts. Zero values match everything.
type AlertFilter struct {
	ProjectID string
	Severity  Severity
	AlertType AlertType
}

// RunRepository stores evaluation runs and their alerts
// Database: alerts.db (alert_runs, alerts tables)
type RunRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		db:  db,
		log: log.With().Str("repository", "alert_runs").Logger(),
	}
}

// Save stores a run with all its alerts in one transaction.
// A missing id is generated; the stored id is returned.
func (r *RunRepository) Save(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	summaryJSON, err := json.Marshal(run.Summary)
	if err != nil {
		return "", fmt.Errorf("failed to marshal run summary: %w", err)
	}
	thresholdsJSON, err := json.Marshal(run.Thresholds)
	if err != nil {
		return "", fmt.Errorf("failed to marshal run thresholds: %w", err)
	}

	err = database.WithTransaction(r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO alert_runs
			(id, created_at, source, rows_evaluated, rows_skipped, total_alerts, summary_json, thresholds_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			run.CreatedAt.UnixMilli(),
			run.Source,
			run.RowsEvaluated,
			run.RowsSkipped,
			len(run.Alerts),
			string(summaryJSON),
			string(thresholdsJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO alerts
			(run_id, seq, project_id, project_name, alert_type, severity, message,
			 actual_value, threshold, variance, details_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare alert insert: %w", err)
		}
		defer stmt.Close()

		for i, a := range run.Alerts {
			detailsJSON, err := json.Marshal(a.Details)
			if err != nil {
				return fmt.Errorf("failed to marshal alert details: %w", err)
			}
			if _, err := stmt.ExecContext(ctx,
				run.ID, i, a.ProjectID, a.ProjectName, string(a.AlertType), string(a.Severity), a.Message,
				a.ActualValue, a.Threshold, a.Variance, string(detailsJSON),
			); err != nil {
				return fmt.Errorf("failed to insert alert %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	r.log.Debug().
		Str("run_id", run.ID).
		Int("alerts", len(run.Alerts)).
		Msg("Stored alert run")

	return run.ID, nil
}

const runColumns = `id, created_at, source, rows_evaluated, rows_skipped, summary_json, thresholds_json`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s rowScanner) (Run, error) {
	var run Run
	var createdAt int64
	var summaryJSON, thresholdsJSON string
	if err := s.Scan(&run.ID, &createdAt, &run.Source, &run.RowsEvaluated, &run.RowsSkipped, &summaryJSON, &thresholdsJSON); err != nil {
		return Run{}, err
	}
	run.CreatedAt = time.UnixMilli(createdAt).UTC()
	if err := json.Unmarshal([]byte(summaryJSON), &run.Summary); err != nil {
		return Run{}, fmt.Errorf("failed to decode summary of run %s: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(thresholdsJSON), &run.Thresholds); err != nil {
		return Run{}, fmt.Errorf("failed to decode thresholds of run %s: %w", run.ID, err)
	}
	return run, nil
}

// Get returns a run with its alerts in stored order
func (r *RunRepository) Get(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM alert_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}

	run.Alerts, err = r.ListAlerts(ctx, id, AlertFilter{})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Latest returns the most recent run with its alerts
func (r *RunRepository) Latest(ctx context.Context) (*Run, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM alert_runs ORDER BY created_at DESC, rowid DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no runs stored", ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest run: %w", err)
	}
	return r.Get(ctx, id)
}

// List returns the most recent runs without their alerts, newest first
func (r *RunRepository) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM alert_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// ListAlerts returns the alerts of a run matching the filter, in stored order
func (r *RunRepository) ListAlerts(ctx context.Context, runID string, filter AlertFilter) ([]Alert, error) {
	query := `
		SELECT project_id, project_name, alert_type, severity, message,
		       actual_value, threshold, variance, details_json
		FROM alerts
		WHERE run_id = ?`
	args := []interface{}{runID}
	if filter.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, filter.ProjectID)
	}
	if filter.Severity != "" {
		query += ` AND severity = ?`
		args = append(args, string(filter.Severity))
	}
	if filter.AlertType != "" {
		query += ` AND alert_type = ?`
		args = append(args, string(filter.AlertType))
	}
	query += ` ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts of run %s: %w", runID, err)
	}
	defer rows.Close()

	alerts := []Alert{}
	for rows.Next() {
		var a Alert
		var alertType, severity, detailsJSON string
		if err := rows.Scan(&a.ProjectID, &a.ProjectName, &alertType, &severity, &a.Message,
			&a.ActualValue, &a.Threshold, &a.Variance, &detailsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.AlertType = AlertType(alertType)
		a.Severity = Severity(severity)
		if err := json.Unmarshal([]byte(detailsJSON), &a.Details); err != nil {
			return nil, fmt.Errorf("failed to decode alert details: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}
	return alerts, nil
}

// Prune deletes all but the newest keep runs and returns how many were removed
func (r *RunRepository) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	var removed int64
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stale := `SELECT id FROM alert_runs ORDER BY created_at DESC, rowid DESC LIMIT -1 OFFSET ?`
		if _, err := tx.ExecContext(ctx, `DELETE FROM alerts WHERE run_id IN (`+stale+`)`, keep); err != nil {
			return fmt.Errorf("failed to delete stale alerts: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM alert_runs WHERE id IN (`+stale+`)`, keep)
		if err != nil {
			return fmt.Errorf("failed to delete stale runs: %w", err)
		}
		removed, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		r.log.Info().Int64("removed", removed).Int("kept", keep).Msg("Pruned alert runs")
	}
	return removed, nil
}
