// Package domain defines the records exchanged between the ingestion layer and the EVM engine.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Optional is a value that may be absent in the source data.
// Formula selection branches on Valid instead of probing for columns.
type Optional struct {
	Value float64
	Valid bool
}

// Some wraps a present value
func Some(v float64) Optional {
	return Optional{Value: v, Valid: true}
}

// None returns an absent value
func None() Optional {
	return Optional{}
}

// Or returns Value when present, otherwise fallback
func (o Optional) Or(fallback float64) float64 {
	if o.Valid {
		return o.Value
	}
	return fallback
}

// Positive reports whether the value is present and greater than zero
func (o Optional) Positive() bool {
	return o.Valid && o.Value > 0
}

// MarshalJSON encodes absent values as null
func (o Optional) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UnmarshalJSON decodes null as absent
func (o *Optional) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = None()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("failed to decode optional value: %w", err)
	}
	*o = Some(v)
	return nil
}

// Period identifies a reporting month
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// Before orders periods chronologically
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

// End returns the last instant of the period (UTC)
func (p Period) End() time.Time {
	return time.Date(p.Year, time.Month(p.Month)+1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
}

// String formats the period as YYYY-MM
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// CostCode identifies a cost line within a project
type CostCode struct {
	GCode string `json:"g_code"`
	SCode string `json:"s_code,omitempty"` // empty when the source has no sub-category
}

// String formats the cost code as G-S (G when no sub-category)
func (c CostCode) String() string {
	if c.SCode == "" {
		return c.GCode
	}
	return c.GCode + "-" + c.SCode
}

// Schedule is the planned window of a project
type Schedule struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ElapsedFraction returns how much of the window has passed at the given instant, clamped to [0, 1].
// ok is false when the window is empty or inverted.
func (s Schedule) ElapsedFraction(at time.Time) (fraction float64, ok bool) {
	total := s.End.Sub(s.Start)
	if s.Start.IsZero() || s.End.IsZero() || total <= 0 {
		return 0, false
	}
	elapsed := at.Sub(s.Start)
	fraction = float64(elapsed) / float64(total)
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return fraction, true
}

// ProjectPeriodRecord is one (project, cost code, month) observation.
// Records are immutable once handed to the engine.
type ProjectPeriodRecord struct {
	ProjectID   string   `json:"project_id"`
	ProjectName string   `json:"project_name"`
	CostCode    CostCode `json:"cost_code"`
	Period      Period   `json:"period"`

	TotalBudget float64 `json:"total_budget"` // BAC of the cost line
	TotalActual float64 `json:"total_actual"` // cumulative actual cost to date (or periodic, see ActualsMode)

	ProgressPercentage Optional `json:"progress_percentage"` // direct-reported completion, may regress in raw data
	ProgressSubmit     Optional `json:"progress_submit"`     // amount claimed in the period
	Certificate        Optional `json:"certificate"`         // amount certified in the period
	SubmitBalance      Optional `json:"submit_balance"`
	ContractValue      Optional `json:"contract_value"`
	UpstreamBCWP       Optional `json:"bcwp"` // earned value already computed by the source system

	Schedule *Schedule `json:"schedule,omitempty"` // nil when no planned window is known
}

// Key identifies a record uniquely
type Key struct {
	ProjectID string   `json:"project_id"`
	CostCode  CostCode `json:"cost_code"`
	Period    Period   `json:"period"`
}

// Key returns the record's identity
func (r ProjectPeriodRecord) Key() Key {
	return Key{ProjectID: r.ProjectID, CostCode: r.CostCode, Period: r.Period}
}

// DisplayName returns the project name, or a generated one when absent
func (r ProjectPeriodRecord) DisplayName() string {
	if r.ProjectName != "" {
		return r.ProjectName
	}
	return "Project " + r.ProjectID
}

// Validate reports whether the record carries the identifiers the engine needs
func (r ProjectPeriodRecord) Validate() error {
	if r.ProjectID == "" {
		return fmt.Errorf("record has no project_id")
	}
	if r.CostCode.GCode == "" {
		return fmt.Errorf("record %s has no g_code", r.ProjectID)
	}
	if r.Period.Month < 1 || r.Period.Month > 12 {
		return fmt.Errorf("record %s has invalid month %d", r.ProjectID, r.Period.Month)
	}
	return nil
}

// ActualsMode states how TotalActual is reported by the source
type ActualsMode string

const (
	// ActualsCumulative means TotalActual is cumulative cost to date
	ActualsCumulative ActualsMode = "cumulative"
	// ActualsPeriodic means TotalActual is the cost incurred within the period
	ActualsPeriodic ActualsMode = "periodic"
)

// IsValid returns true if the mode is a known value
func (m ActualsMode) IsValid() bool {
	return m == ActualsCumulative || m == ActualsPeriodic
}
