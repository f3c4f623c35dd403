// Package alerts applies threshold checks to derived features, rolls the findings up per record
// and summarizes them by severity, type and project.
package alerts

import (
	"time"
)

// AlertType identifies the check that produced an alert
type AlertType string

const (
	AlertCostOverrun        AlertType = "cost_overrun"
	AlertProgressLag        AlertType = "progress_lag"
	AlertScheduleDelay      AlertType = "schedule_delay"
	AlertLowEfficiency      AlertType = "low_efficiency"
	AlertProfitRisk         AlertType = "profit_risk"
	AlertHighVariance       AlertType = "high_variance"
	AlertCashFlowRisk       AlertType = "cash_flow_risk"
	AlertForecastOverrun    AlertType = "forecast_overrun"
	AlertProgressRegression AlertType = "progress_regression"
)

// AllAlertTypes lists every alert type in evaluation order
var AllAlertTypes = []AlertType{
	AlertCostOverrun,
	AlertProgressLag,
	AlertScheduleDelay,
	AlertLowEfficiency,
	AlertProfitRisk,
	AlertHighVariance,
	AlertCashFlowRisk,
	AlertForecastOverrun,
	AlertProgressRegression,
}

// String returns the string representation of the alert type
func (t AlertType) String() string {
	return string(t)
}

// IsValid returns true if the alert type is a known value
func (t AlertType) IsValid() bool {
	for _, known := range AllAlertTypes {
		if t == known {
			return true
		}
	}
	return false
}

// CriticalTier reports whether the type counts toward the critical axis of the record roll-up
func (t AlertType) CriticalTier() bool {
	switch t {
	case AlertCostOverrun, AlertProfitRisk, AlertForecastOverrun:
		return true
	default:
		return false
	}
}

// DataQuality reports whether the alert describes the input data rather than project performance.
// Data-quality alerts are listed but excluded from the record roll-up.
func (t AlertType) DataQuality() bool {
	return t == AlertProgressRegression
}

// Severity represents how urgent an alert is
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

// Severities lists the severities from most to least urgent
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// String returns the string representation of the severity
func (s Severity) String() string {
	return string(s)
}

// IsValid returns true if the severity is a known value
func (s Severity) IsValid() bool {
	return s.Rank() < len(Severities)
}

// Rank orders severities: 0 is the most urgent. Unknown severities sort last.
func (s Severity) Rank() int {
	for i, known := range Severities {
		if s == known {
			return i
		}
	}
	return len(Severities)
}

// Level is the traffic-light color shown for a record
type Level string

const (
	LevelRed    Level = "Red"
	LevelYellow Level = "Yellow"
	LevelGreen  Level = "Green"
)

// Level maps a roll-up severity to its traffic light
func (s Severity) Level() Level {
	switch s {
	case SeverityCritical, SeverityHigh:
		return LevelRed
	case SeverityMedium:
		return LevelYellow
	default:
		return LevelGreen
	}
}

// Details carries the context an alert was raised in
type Details struct {
	CostCode string             `json:"cost_code" msgpack:"cost_code"`
	Period   string             `json:"period" msgpack:"period"`
	Month    int                `json:"month" msgpack:"month"`
	Inputs   map[string]float64 `json:"inputs" msgpack:"inputs"`
}

// Alert is one finding on one record. Variance is always ActualValue - Threshold.
type Alert struct {
	ProjectID   string    `json:"project_id" msgpack:"project_id"`
	ProjectName string    `json:"project_name" msgpack:"project_name"`
	AlertType   AlertType `json:"alert_type" msgpack:"alert_type"`
	Severity    Severity  `json:"severity" msgpack:"severity"`
	Message     string    `json:"message" msgpack:"message"`
	ActualValue float64   `json:"actual_value" msgpack:"actual_value"`
	Threshold   float64   `json:"threshold" msgpack:"threshold"`
	Variance    float64   `json:"variance" msgpack:"variance"`
	Details     Details   `json:"details" msgpack:"details"`
}

// Assessment is the roll-up of every alert raised on one record
type Assessment struct {
	ProjectID      string      `json:"project_id"`
	CostCode       string      `json:"cost_code"`
	Period         string      `json:"period"`
	Types          []AlertType `json:"alert_types"`
	TotalAlerts    int         `json:"total_alerts"`
	CriticalAlerts int         `json:"critical_alerts"`
	Severity       Severity    `json:"alert_severity"`
	Level          Level       `json:"alert_level"`
}

// Summary counts alerts by severity, type and project
type Summary struct {
	Total      int               `json:"total" msgpack:"total"`
	BySeverity map[Severity]int  `json:"by_severity" msgpack:"by_severity"`
	ByType     map[AlertType]int `json:"by_type" msgpack:"by_type"`
	ByProject  map[string]int    `json:"by_project" msgpack:"by_project"`
}

// Evaluation is the complete output of one evaluation pass
type Evaluation struct {
	Alerts      []Alert      `json:"alerts"`
	Assessments []Assessment `json:"assessments"`
	Summary     Summary      `json:"summary"`
}

// Report is the stable export document of an evaluation pass
type Report struct {
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
	Summary   Summary   `json:"summary" msgpack:"summary"`
	Alerts    []Alert   `json:"alerts" msgpack:"alerts"`
}

// CriticalProject groups the Critical alerts of one project
type CriticalProject struct {
	ProjectID   string  `json:"project_id"`
	ProjectName string  `json:"project_name"`
	Alerts      []Alert `json:"alerts"`
}
