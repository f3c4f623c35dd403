// Package records ingests project period records from CSV exports and stores them in SQLite.
package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/manchuphon/Alert-Dashboard/internal/domain"
)

// DateLayout is the layout of schedule_start and schedule_end columns
const DateLayout = "2006-01-02"

var requiredColumns = []string{"project_id", "g_code", "year", "month", "total_budget", "total_actual"}

// columnAliases maps alternative header spellings to canonical column names
var columnAliases = map[string]string{
	"project":         "project_id",
	"budget":          "total_budget",
	"actual":          "total_actual",
	"actual_cost":     "total_actual",
	"progress":        "progress_percentage",
	"progress_pct":    "progress_percentage",
	"submit":          "progress_submit",
	"certificate_amt": "certificate",
	"contract":        "contract_value",
	"upstream_bcwp":   "bcwp",
	"start_date":      "schedule_start",
	"end_date":        "schedule_end",
	"planned_start":   "schedule_start",
	"planned_end":     "schedule_end",
	"sub_code":        "s_code",
	"cost_category":   "g_code",
	"project_name_th": "project_name",
	"name":            "project_name",
}

// RowError describes a CSV line that could not be turned into a record
type RowError struct {
	Line int    `json:"line"`
	Err  string `json:"error"`
}

// ParseResult is the outcome of parsing one CSV document
type ParseResult struct {
	Records    []domain.ProjectPeriodRecord `json:"-"`
	Rows       int                          `json:"rows"`
	Skipped    int                          `json:"skipped"`
	Duplicates int                          `json:"duplicates"`
	Errors     []RowError                   `json:"errors,omitempty"`
}

type header map[string]int

func (h header) get(row []string, column string) string {
	idx, ok := h[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func canonical(name string) string {
	name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF")))
	name = strings.ReplaceAll(name, " ", "_")
	if alias, ok := columnAliases[name]; ok {
		return alias
	}
	return name
}

// ParseCSV reads a flat CSV export with a header row.
// Malformed rows are skipped and reported; exact duplicate rows are dropped.
// Only a missing required column or unreadable input is an error.
func ParseCSV(r io.Reader) (ParseResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	first, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return ParseResult{}, fmt.Errorf("csv has no header row")
	}
	if err != nil {
		return ParseResult{}, fmt.Errorf("failed to read csv header: %w", err)
	}

	h := make(header, len(first))
	for i, name := range first {
		h[canonical(name)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := h[col]; !ok {
			return ParseResult{}, fmt.Errorf("csv is missing required column %q", col)
		}
	}

	var result ParseResult
	seen := make(map[string]struct{})
	line := 1

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			result.Rows++
			result.Skipped++
			result.Errors = append(result.Errors, RowError{Line: line, Err: err.Error()})
			continue
		}
		if isBlank(row) {
			continue
		}
		result.Rows++

		fingerprint := strings.Join(row, "\x1f")
		if _, dup := seen[fingerprint]; dup {
			result.Duplicates++
			continue
		}
		seen[fingerprint] = struct{}{}

		rec, err := parseRow(h, row)
		if err == nil {
			err = rec.Validate()
		}
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, RowError{Line: line, Err: err.Error()})
			continue
		}
		result.Records = append(result.Records, rec)
	}

	return result, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseRow(h header, row []string) (domain.ProjectPeriodRecord, error) {
	rec := domain.ProjectPeriodRecord{
		ProjectID:   h.get(row, "project_id"),
		ProjectName: h.get(row, "project_name"),
		CostCode: domain.CostCode{
			GCode: h.get(row, "g_code"),
			SCode: h.get(row, "s_code"),
		},
	}

	year, err := parseInt(h.get(row, "year"))
	if err != nil {
		return rec, fmt.Errorf("invalid year: %w", err)
	}
	month, err := parseInt(h.get(row, "month"))
	if err != nil {
		return rec, fmt.Errorf("invalid month: %w", err)
	}
	rec.Period = domain.Period{Year: year, Month: month}

	if rec.TotalBudget, err = parseAmount(h.get(row, "total_budget")); err != nil {
		return rec, fmt.Errorf("invalid total_budget: %w", err)
	}
	if rec.TotalActual, err = parseAmount(h.get(row, "total_actual")); err != nil {
		return rec, fmt.Errorf("invalid total_actual: %w", err)
	}

	optionals := []struct {
		column string
		dst    *domain.Optional
	}{
		{"progress_percentage", &rec.ProgressPercentage},
		{"progress_submit", &rec.ProgressSubmit},
		{"certificate", &rec.Certificate},
		{"submit_balance", &rec.SubmitBalance},
		{"contract_value", &rec.ContractValue},
		{"bcwp", &rec.UpstreamBCWP},
	}
	for _, o := range optionals {
		v, err := parseOptional(h.get(row, o.column))
		if err != nil {
			return rec, fmt.Errorf("invalid %s: %w", o.column, err)
		}
		*o.dst = v
	}

	start, end := h.get(row, "schedule_start"), h.get(row, "schedule_end")
	if start != "" && end != "" {
		s, err := time.Parse(DateLayout, start)
		if err != nil {
			return rec, fmt.Errorf("invalid schedule_start: %w", err)
		}
		e, err := time.Parse(DateLayout, end)
		if err != nil {
			return rec, fmt.Errorf("invalid schedule_end: %w", err)
		}
		rec.Schedule = &domain.Schedule{Start: s, End: e}
	}

	return rec, nil
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	// exports sometimes write integers as 6.0
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("%q is out of range", s)
	}
	return int(f), nil
}

func parseAmount(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

func parseOptional(s string) (domain.Optional, error) {
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return domain.None(), nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return domain.None(), err
	}
	return domain.Some(v), nil
}
