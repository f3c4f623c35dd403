// Package kpi rolls feature rows up to project and portfolio key performance indicators.
package kpi

import (
	"github.com/manchuphon/Alert-Dashboard/internal/domain"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/alerts"
	"github.com/manchuphon/Alert-Dashboard/pkg/formulas"
)

// PerformanceStatus classifies a project from its CPI and SPI
type PerformanceStatus string

const (
	StatusOnTrack     PerformanceStatus = "On Track"
	StatusMinorIssues PerformanceStatus = "Minor Issues"
	StatusAtRisk      PerformanceStatus = "At Risk"
	StatusCritical    PerformanceStatus = "Critical"
	StatusUnknown     PerformanceStatus = "Unknown"
)

// RiskLevel buckets the 0..8 risk score
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Interpretation is the plain reading of an index for dashboards
type Interpretation string

const (
	NoData         Interpretation = "no_data"
	OnSchedule     Interpretation = "on_schedule"
	BehindSchedule Interpretation = "behind_schedule"
	UnderBudget    Interpretation = "under_budget"
	OverBudget     Interpretation = "over_budget"
	Saving         Interpretation = "saving"
	Overrun        Interpretation = "overrun"
)

// Interpretations reads SPI, CPI and VAC of a snapshot
type Interpretations struct {
	SPI Interpretation `json:"spi"`
	CPI Interpretation `json:"cpi"`
	VAC Interpretation `json:"vac"`
}

// Snapshot holds the project-level indicators at the latest period.
// Cost lines without a record in that period carry their last reported values.
type Snapshot struct {
	Period          *domain.Period   `json:"period"`
	BAC             float64          `json:"bac"`
	ACWP            float64          `json:"acwp"`
	BCWP            float64          `json:"bcwp"`
	BCWS            float64          `json:"bcws"`
	CPI             formulas.Measure `json:"cpi"`
	SPI             formulas.Measure `json:"spi"`
	EAC             formulas.Measure `json:"eac"`
	VAC             formulas.Measure `json:"vac"`
	TCPI            formulas.Measure `json:"tcpi"`
	PercentComplete float64          `json:"percent_complete"`
	PercentSpent    float64          `json:"percent_spent"`
}

// Contribution is what one period added to the cumulative totals
type Contribution struct {
	Period domain.Period    `json:"period"`
	ACWP   float64          `json:"acwp"`
	BCWP   float64          `json:"bcwp"`
	BCWS   float64          `json:"bcws"`
	CPI    formulas.Measure `json:"cpi"` // cumulative CPI at the end of the period
}

// Cumulative is the whole-history view. Totals are the sums of the monthly contributions.
type Cumulative struct {
	ACWP    float64        `json:"acwp"`
	BCWP    float64        `json:"bcwp"`
	BCWS    float64        `json:"bcws"`
	Monthly []Contribution `json:"monthly"`
}

// ProjectKPI is the dashboard view of one project
type ProjectKPI struct {
	ProjectID         string            `json:"project_id"`
	ProjectName       string            `json:"project_name"`
	HasData           bool              `json:"has_data"`
	Snapshot          Snapshot          `json:"snapshot"`
	Cumulative        Cumulative        `json:"cumulative"`
	Interpretations   Interpretations   `json:"interpretations"`
	PerformanceStatus PerformanceStatus `json:"performance_status"`
	RiskScore         int               `json:"risk_score"`
	RiskLevel         RiskLevel         `json:"risk_level"`
	CPITrend          *float64          `json:"cpi_trend"`
	BurnRateTrend     *float64          `json:"burn_rate_trend"`
}

// ProblemProject is a project with CPI or SPI below the watch line
type ProblemProject struct {
	ProjectID   string           `json:"project_id"`
	ProjectName string           `json:"project_name"`
	CPI         formulas.Measure `json:"cpi"`
	SPI         formulas.Measure `json:"spi"`
}

// PortfolioSummary rolls every project up
type PortfolioSummary struct {
	Projects        int                       `json:"projects"`
	TotalBudget     float64                   `json:"total_budget"`
	TotalACWP       float64                   `json:"total_acwp"`
	TotalBCWP       float64                   `json:"total_bcwp"`
	OverallCPI      formulas.Measure          `json:"overall_cpi"`
	MeanSPI         formulas.Measure          `json:"mean_spi"`
	MeanProgress    float64                   `json:"mean_progress"`
	StatusCounts    map[PerformanceStatus]int `json:"status_counts"`
	RiskCounts      map[RiskLevel]int         `json:"risk_counts"`
	ProblemProjects []ProblemProject          `json:"problem_projects"`
}

// ProjectSummary is one row of the project summary table
type ProjectSummary struct {
	ProjectID        string       `json:"project_id"`
	ProjectName      string       `json:"project_name"`
	TotalBudget      float64      `json:"total_budget"`
	TotalActual      float64      `json:"total_actual"`
	MeanProgress     float64      `json:"mean_progress"`
	MeanEfficiency   float64      `json:"mean_efficiency_score"`
	MeanOverallRisk  float64      `json:"mean_overall_risk_score"`
	TotalAlerts      int          `json:"total_alerts"`
	CommonAlertLevel alerts.Level `json:"alert_level"`
}

// CostCodeSummary is one row of the cost code summary table
type CostCodeSummary struct {
	CostCode        string  `json:"cost_code"`
	TotalBudget     float64 `json:"total_budget"`
	TotalActual     float64 `json:"total_actual"`
	MeanUtilization float64 `json:"mean_budget_utilization_pct"`
	MeanCostRisk    float64 `json:"mean_cost_risk_score"`
	TotalAlerts     int     `json:"total_alerts"`
}
