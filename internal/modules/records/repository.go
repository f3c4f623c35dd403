package records

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/manchuphon/Alert-Dashboard/internal/database"
	"github.com/manchuphon/Alert-Dashboard/internal/domain"
	"github.com/rs/zerolog"
)

// ProjectInfo is one row of the project listing
type ProjectInfo struct {
	ProjectID   string        `json:"project_id"`
	ProjectName string        `json:"project_name"`
	Records     int           `json:"records"`
	FirstPeriod domain.Period `json:"first_period"`
	LastPeriod  domain.Period `json:"last_period"`
}

// Repository stores project period records
// Database: records.db (project_period_records table)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new records repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "records").Logger(),
	}
}

// Upsert inserts records, replacing any stored record with the same key.
// It returns the number of records written.
func (r *Repository) Upsert(ctx context.Context, recs []domain.ProjectPeriodRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	now := time.Now().Unix()

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO project_period_records
			(project_id, project_name, g_code, s_code, year, month, total_budget, total_actual,
			 progress_percentage, progress_submit, certificate, submit_balance, contract_value, bcwp,
			 schedule_start, schedule_end, imported_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare record upsert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range recs {
			var start, end sql.NullInt64
			if rec.Schedule != nil {
				start = sql.NullInt64{Int64: rec.Schedule.Start.Unix(), Valid: true}
				end = sql.NullInt64{Int64: rec.Schedule.End.Unix(), Valid: true}
			}
			_, err := stmt.ExecContext(ctx,
				rec.ProjectID,
				nullString(rec.ProjectName),
				rec.CostCode.GCode,
				rec.CostCode.SCode,
				rec.Period.Year,
				rec.Period.Month,
				rec.TotalBudget,
				rec.TotalActual,
				nullFloat(rec.ProgressPercentage),
				nullFloat(rec.ProgressSubmit),
				nullFloat(rec.Certificate),
				nullFloat(rec.SubmitBalance),
				nullFloat(rec.ContractValue),
				nullFloat(rec.UpstreamBCWP),
				start,
				end,
				now,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert record %s %s %s: %w",
					rec.ProjectID, rec.CostCode, rec.Period, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.log.Debug().Int("count", len(recs)).Msg("Upserted records")
	return len(recs), nil
}

const recordColumns = `project_id, project_name, g_code, s_code, year, month, total_budget, total_actual,
	progress_percentage, progress_submit, certificate, submit_balance, contract_value, bcwp,
	schedule_start, schedule_end`

const recordOrder = ` ORDER BY project_id, year, month, g_code, s_code`

// List returns every stored record ordered by project and period
func (r *Repository) List(ctx context.Context) ([]domain.ProjectPeriodRecord, error) {
	return r.query(ctx, `SELECT `+recordColumns+` FROM project_period_records`+recordOrder)
}

// ListByProject returns the records of one project ordered by period.
// An unknown project yields an empty slice.
func (r *Repository) ListByProject(ctx context.Context, projectID string) ([]domain.ProjectPeriodRecord, error) {
	return r.query(ctx, `SELECT `+recordColumns+` FROM project_period_records WHERE project_id = ?`+recordOrder, projectID)
}

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) ([]domain.ProjectPeriodRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	recs := []domain.ProjectPeriodRecord{}
	for rows.Next() {
		var rec domain.ProjectPeriodRecord
		var name sql.NullString
		var pct, submit, cert, balance, contract, bcwp sql.NullFloat64
		var start, end sql.NullInt64
		if err := rows.Scan(
			&rec.ProjectID, &name, &rec.CostCode.GCode, &rec.CostCode.SCode,
			&rec.Period.Year, &rec.Period.Month, &rec.TotalBudget, &rec.TotalActual,
			&pct, &submit, &cert, &balance, &contract, &bcwp, &start, &end,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.ProjectName = name.String
		rec.ProgressPercentage = optional(pct)
		rec.ProgressSubmit = optional(submit)
		rec.Certificate = optional(cert)
		rec.SubmitBalance = optional(balance)
		rec.ContractValue = optional(contract)
		rec.UpstreamBCWP = optional(bcwp)
		if start.Valid && end.Valid {
			rec.Schedule = &domain.Schedule{
				Start: time.Unix(start.Int64, 0).UTC(),
				End:   time.Unix(end.Int64, 0).UTC(),
			}
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return recs, nil
}

// Projects lists stored projects with their record counts and period range
func (r *Repository) Projects(ctx context.Context) ([]ProjectInfo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT project_id, COALESCE(MAX(project_name), ''), COUNT(*),
		       MIN(year * 100 + month), MAX(year * 100 + month)
		FROM project_period_records
		GROUP BY project_id
		ORDER BY project_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	projects := []ProjectInfo{}
	for rows.Next() {
		var p ProjectInfo
		var first, last int
		if err := rows.Scan(&p.ProjectID, &p.ProjectName, &p.Records, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p.FirstPeriod = domain.Period{Year: first / 100, Month: first % 100}
		p.LastPeriod = domain.Period{Year: last / 100, Month: last % 100}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

// DeleteProject removes all records of a project and returns how many were removed
func (r *Repository) DeleteProject(ctx context.Context, projectID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM project_period_records WHERE project_id = ?`, projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete project %s: %w", projectID, err)
	}
	n, _ := res.RowsAffected()
	r.log.Info().Str("project_id", projectID).Int64("removed", n).Msg("Deleted project records")
	return n, nil
}

// Count returns the number of stored records
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM project_period_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(o domain.Optional) sql.NullFloat64 {
	return sql.NullFloat64{Float64: o.Value, Valid: o.Valid}
}

func optional(n sql.NullFloat64) domain.Optional {
	if !n.Valid {
		return domain.None()
	}
	return domain.Some(n.Float64)
}
