// Package features derives per-record earned value metrics, efficiency and risk scores,
// and cash-flow forecasts from project period records.
package features

import (
	"github.com/manchuphon/Alert-Dashboard/internal/domain"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/progress"
	"github.com/manchuphon/Alert-Dashboard/pkg/formulas"
)

// Flag marks a data-quality correction applied to a record
type Flag string

const (
	FlagNegativeBudgetClipped   Flag = "negative_budget_clipped"
	FlagNegativeActualClipped   Flag = "negative_actual_clipped"
	FlagNegativeContractClipped Flag = "negative_contract_clipped"
	FlagProgressRatcheted       Flag = "progress_ratcheted"
	FlagProgressClamped         Flag = "progress_clamped"
	FlagProgressSynthetic       Flag = "progress_synthetic"
	FlagNoProgressData          Flag = "no_progress_data"
	FlagProgressRegression      Flag = "progress_regression"
)

var progressFlags = map[progress.Flag]Flag{
	progress.FlagRatcheted:      FlagProgressRatcheted,
	progress.FlagClamped:        FlagProgressClamped,
	progress.FlagSynthetic:      FlagProgressSynthetic,
	progress.FlagNoProgressData: FlagNoProgressData,
	progress.FlagRegression:     FlagProgressRegression,
}

// DerivedMetrics is every value computed for one record.
// EAC/VAC follow the CPI-constant method; EACRemaining/VACRemaining follow remaining-work-at-budget.
type DerivedMetrics struct {
	PercentComplete    float64         `json:"percent_complete"`
	ProgressMethod     progress.Method `json:"progress_method"`
	ProgressRegression float64         `json:"progress_regression,omitempty"` // percentage points masked by the ratchet
	ExpectedPercent    float64         `json:"expected_percent"`

	BCWP             float64          `json:"bcwp"`
	ACWP             float64          `json:"acwp"`
	BCWS             float64          `json:"bcws"`
	CPI              formulas.Measure `json:"cpi"`
	SPI              formulas.Measure `json:"spi"`
	EAC              formulas.Measure `json:"eac"`
	EACRemaining     float64          `json:"eac_remaining"`
	VAC              formulas.Measure `json:"vac"`
	VACRemaining     float64          `json:"vac_remaining"`
	TCPI             formulas.Measure `json:"tcpi"`
	CostVariance     float64          `json:"cost_variance"`
	ScheduleVariance float64          `json:"schedule_variance"`
	CostVariancePct  float64          `json:"cost_variance_pct"`

	BudgetUtilizationPct float64          `json:"budget_utilization_pct"`
	ProfitMargin         formulas.Measure `json:"profit_margin"`

	CostEfficiency     float64 `json:"cost_efficiency"`
	ProgressEfficiency float64 `json:"progress_efficiency"`
	EfficiencyScore    float64 `json:"efficiency_score"`

	CostRiskScore     float64 `json:"cost_risk_score"`
	ScheduleRiskScore float64 `json:"schedule_risk_score"`
	OverallRiskScore  float64 `json:"overall_risk_score"`

	MonthlyBurnRate        float64 `json:"monthly_burn_rate"`
	ProjectedNextMonthCost float64 `json:"projected_next_month_cost"`
	CashFlow3MForecast     float64 `json:"cash_flow_3m_forecast"`

	HealthStatus        HealthStatus        `json:"health_status"`
	PerformanceCategory PerformanceCategory `json:"performance_category"`
}

// Row is a cleaned record together with its derived metrics
type Row struct {
	Record domain.ProjectPeriodRecord `json:"-" msgpack:"-"`

	ProjectID     string         `json:"project_id"`
	ProjectName   string         `json:"project_name"`
	CostCode      string         `json:"cost_code"`
	Period        domain.Period  `json:"period"`
	TotalBudget   float64        `json:"total_budget"`
	TotalActual   float64        `json:"total_actual"`
	ContractValue *float64       `json:"contract_value,omitempty"`
	Metrics       DerivedMetrics `json:"metrics"`
	Flags         []Flag         `json:"flags,omitempty"`
}

// HasFlag reports whether the row carries the flag
func (r Row) HasFlag(flag Flag) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Result is the output of one build pass
type Result struct {
	Rows    []Row `json:"rows"`
	Skipped int   `json:"skipped"` // malformed records excluded from computation
}
