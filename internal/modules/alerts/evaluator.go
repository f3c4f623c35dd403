package alerts

import (
	"fmt"
	"math"
	"sort"

	"github.com/manchuphon/Alert-Dashboard/internal/modules/features"
	"github.com/rs/zerolog"
)

// Roll-up cutoffs. A record escalates on either axis.
const (
	criticalTierForCritical = 2
	totalForCritical        = 5
	criticalTierForHigh     = 1
	totalForHigh            = 3
)

// Escalate returns the record severity for a count of critical-tier alerts and a total alert count
func Escalate(criticalTier, total int) Severity {
	switch {
	case criticalTier >= criticalTierForCritical || total >= totalForCritical:
		return SeverityCritical
	case criticalTier >= criticalTierForHigh || total >= totalForHigh:
		return SeverityHigh
	case total >= 1:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Evaluator applies a fixed threshold policy to feature rows.
// It performs no I/O and is safe for concurrent use.
type Evaluator struct {
	th  Thresholds
	log zerolog.Logger
}

// NewEvaluator creates an evaluator with a validated copy of the thresholds
func NewEvaluator(th Thresholds, log zerolog.Logger) (*Evaluator, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{
		th:  th,
		log: log.With().Str("service", "alert_evaluator").Logger(),
	}, nil
}

// Thresholds returns the policy the evaluator was built with
func (e *Evaluator) Thresholds() Thresholds {
	return e.th
}

type check func(row features.Row) *Alert

func (e *Evaluator) checks() []check {
	return []check{
		e.checkCostOverrun,
		e.checkProgressLag,
		e.checkScheduleDelay,
		e.checkLowEfficiency,
		e.checkProfitRisk,
		e.checkHighVariance,
		e.checkCashFlowRisk,
		e.checkForecastOverrun,
		e.checkProgressRegression,
	}
}

// Check runs every check against one row
func (e *Evaluator) Check(row features.Row) []Alert {
	var out []Alert
	for _, c := range e.checks() {
		if alert := c(row); alert != nil {
			out = append(out, *alert)
		}
	}
	return out
}

// Assess rolls up the alerts of one row. Data-quality alerts are not counted.
func Assess(row features.Row, alerts []Alert) Assessment {
	a := Assessment{
		ProjectID: row.ProjectID,
		CostCode:  row.CostCode,
		Period:    row.Period.String(),
	}
	for _, alert := range alerts {
		if alert.AlertType.DataQuality() {
			continue
		}
		a.Types = append(a.Types, alert.AlertType)
		a.TotalAlerts++
		if alert.AlertType.CriticalTier() {
			a.CriticalAlerts++
		}
	}
	a.Severity = Escalate(a.CriticalAlerts, a.TotalAlerts)
	a.Level = a.Severity.Level()
	return a
}

// Evaluate checks every row and summarizes the findings.
// Alerts are returned in row order, one assessment per row.
func (e *Evaluator) Evaluate(rows []features.Row) Evaluation {
	ev := Evaluation{
		Alerts:      []Alert{},
		Assessments: make([]Assessment, 0, len(rows)),
	}
	for _, row := range rows {
		found := e.Check(row)
		ev.Alerts = append(ev.Alerts, found...)
		ev.Assessments = append(ev.Assessments, Assess(row, found))
	}
	ev.Summary = Summarize(ev.Alerts)

	e.log.Info().
		Int("rows", len(rows)).
		Int("alerts", ev.Summary.Total).
		Int("critical", ev.Summary.BySeverity[SeverityCritical]).
		Int("projects", len(ev.Summary.ByProject)).
		Msg("Evaluated alerts")

	return ev
}

// Summarize counts alerts by severity, type and project.
// Every severity appears in BySeverity, with zero when absent.
func Summarize(alerts []Alert) Summary {
	s := Summary{
		Total:      len(alerts),
		BySeverity: make(map[Severity]int, len(Severities)),
		ByType:     make(map[AlertType]int),
		ByProject:  make(map[string]int),
	}
	for _, sev := range Severities {
		s.BySeverity[sev] = 0
	}
	for _, a := range alerts {
		s.BySeverity[a.Severity]++
		s.ByType[a.AlertType]++
		s.ByProject[a.ProjectID]++
	}
	return s
}

// SortBySeverity returns a copy of alerts ordered Critical first.
// Alerts of equal severity keep their relative order.
func SortBySeverity(alerts []Alert) []Alert {
	out := make([]Alert, len(alerts))
	copy(out, alerts)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Rank() < out[j].Severity.Rank()
	})
	return out
}

// CriticalProjects groups Critical alerts by project, ordered by project id
func CriticalProjects(alerts []Alert) []CriticalProject {
	byProject := make(map[string]*CriticalProject)
	for _, a := range alerts {
		if a.Severity != SeverityCritical {
			continue
		}
		p, ok := byProject[a.ProjectID]
		if !ok {
			p = &CriticalProject{ProjectID: a.ProjectID, ProjectName: a.ProjectName}
			byProject[a.ProjectID] = p
		}
		p.Alerts = append(p.Alerts, a)
	}

	out := make([]CriticalProject, 0, len(byProject))
	for _, p := range byProject {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out
}

func newAlert(row features.Row, t AlertType, sev Severity, actual, threshold float64, msg string, inputs map[string]float64) *Alert {
	return &Alert{
		ProjectID:   row.ProjectID,
		ProjectName: row.ProjectName,
		AlertType:   t,
		Severity:    sev,
		Message:     msg,
		ActualValue: actual,
		Threshold:   threshold,
		Variance:    actual - threshold,
		Details: Details{
			CostCode: row.CostCode,
			Period:   row.Period.String(),
			Month:    row.Period.Month,
			Inputs:   inputs,
		},
	}
}

func (e *Evaluator) checkCostOverrun(row features.Row) *Alert {
	if row.TotalBudget <= 0 {
		return nil
	}
	band := e.th.CostOverrun
	utilization := row.Metrics.BudgetUtilizationPct
	if utilization <= band.Trigger {
		return nil
	}
	return newAlert(row, AlertCostOverrun, band.Grade(utilization), utilization, band.Trigger,
		fmt.Sprintf("Budget utilization %.1f%% (budget %.0f, actual %.0f)", utilization, row.TotalBudget, row.TotalActual),
		map[string]float64{
			"budget":   row.TotalBudget,
			"actual":   row.TotalActual,
			"progress": row.Metrics.PercentComplete,
		})
}

func (e *Evaluator) checkProgressLag(row features.Row) *Alert {
	m := row.Metrics
	if m.PercentComplete <= 0 || row.TotalBudget <= 0 {
		return nil
	}
	band := e.th.ProgressLag
	costRatio := row.TotalActual / m.BCWP * 100
	if costRatio <= band.Trigger {
		return nil
	}
	return newAlert(row, AlertProgressLag, band.Grade(costRatio), costRatio, band.Trigger,
		fmt.Sprintf("Spent %.1f%% of earned value at %.1f%% complete", costRatio, m.PercentComplete),
		map[string]float64{
			"progress":   m.PercentComplete,
			"bcwp":       m.BCWP,
			"actual":     row.TotalActual,
			"cost_ratio": costRatio,
		})
}

func (e *Evaluator) checkScheduleDelay(row features.Row) *Alert {
	m := row.Metrics
	band := e.th.ScheduleDelay
	delay := m.ExpectedPercent - m.PercentComplete
	if delay <= band.Trigger {
		return nil
	}
	return newAlert(row, AlertScheduleDelay, band.Grade(delay), delay, band.Trigger,
		fmt.Sprintf("Behind plan by %.1f points (expected %.1f%%, actual %.1f%%)", delay, m.ExpectedPercent, m.PercentComplete),
		map[string]float64{
			"expected_progress": m.ExpectedPercent,
			"actual_progress":   m.PercentComplete,
		})
}

func (e *Evaluator) checkLowEfficiency(row features.Row) *Alert {
	band := e.th.LowEfficiency
	score := row.Metrics.EfficiencyScore
	if score >= band.Trigger {
		return nil
	}
	return newAlert(row, AlertLowEfficiency, band.Grade(score), score, band.Trigger,
		fmt.Sprintf("Efficiency score %.1f is below %.0f", score, band.Trigger),
		map[string]float64{
			"efficiency_score":    score,
			"cost_efficiency":     row.Metrics.CostEfficiency,
			"progress_efficiency": row.Metrics.ProgressEfficiency,
		})
}

func (e *Evaluator) checkProfitRisk(row features.Row) *Alert {
	margin := row.Metrics.ProfitMargin
	if !margin.Defined() || margin.Value >= e.th.ProfitMarginPct {
		return nil
	}
	return newAlert(row, AlertProfitRisk, SeverityCritical, margin.Value, e.th.ProfitMarginPct,
		fmt.Sprintf("Profit margin %.1f%% is below %.1f%%", margin.Value, e.th.ProfitMarginPct),
		map[string]float64{
			"profit_margin": margin.Value,
			"actual":        row.TotalActual,
		})
}

func (e *Evaluator) checkHighVariance(row features.Row) *Alert {
	variance := math.Abs(row.Metrics.CostVariancePct)
	if variance <= e.th.HighVariancePct {
		return nil
	}
	return newAlert(row, AlertHighVariance, SeverityMedium, variance, e.th.HighVariancePct,
		fmt.Sprintf("Cost variance %.1f%% of earned value", row.Metrics.CostVariancePct),
		map[string]float64{
			"cost_variance":     row.Metrics.CostVariance,
			"cost_variance_pct": row.Metrics.CostVariancePct,
			"bcwp":              row.Metrics.BCWP,
		})
}

func (e *Evaluator) checkCashFlowRisk(row features.Row) *Alert {
	var limit float64
	switch {
	case row.ContractValue != nil && *row.ContractValue > 0:
		limit = *row.ContractValue * e.th.CashFlowContractRatio
	case row.TotalBudget > 0:
		limit = row.TotalBudget * e.th.CashFlowBudgetRatio
	default:
		return nil
	}
	forecast := row.Metrics.CashFlow3MForecast
	if forecast <= limit {
		return nil
	}
	return newAlert(row, AlertCashFlowRisk, SeverityMedium, forecast, limit,
		fmt.Sprintf("Projected spend %.0f over the forecast window exceeds %.0f", forecast, limit),
		map[string]float64{
			"monthly_burn_rate":     row.Metrics.MonthlyBurnRate,
			"cash_flow_3m_forecast": forecast,
		})
}

func (e *Evaluator) checkForecastOverrun(row features.Row) *Alert {
	if row.TotalBudget <= 0 {
		return nil
	}
	var eac float64
	switch e.th.ForecastEACMethod {
	case EACByRemaining:
		eac = row.Metrics.EACRemaining
	default:
		if !row.Metrics.EAC.Defined() {
			return nil
		}
		eac = row.Metrics.EAC.Value
	}
	limit := row.TotalBudget * e.th.ForecastOverrunRatio
	if eac <= limit {
		return nil
	}
	inputs := map[string]float64{
		"eac":    eac,
		"budget": row.TotalBudget,
	}
	if row.Metrics.CPI.Defined() {
		inputs["cpi"] = row.Metrics.CPI.Value
	}
	return newAlert(row, AlertForecastOverrun, SeverityHigh, eac, limit,
		fmt.Sprintf("Estimate at completion %.0f exceeds budget %.0f (%s method)", eac, row.TotalBudget, e.th.ForecastEACMethod),
		inputs)
}

func (e *Evaluator) checkProgressRegression(row features.Row) *Alert {
	drop := row.Metrics.ProgressRegression
	if drop <= 0 || drop <= e.th.RegressionMinPoints {
		return nil
	}
	return newAlert(row, AlertProgressRegression, SeverityLow, drop, e.th.RegressionMinPoints,
		fmt.Sprintf("Cumulative %s progress fell by %.1f points and was held at %.1f%%", row.Metrics.ProgressMethod, drop, row.Metrics.PercentComplete),
		map[string]float64{
			"masked_drop":      drop,
			"percent_complete": row.Metrics.PercentComplete,
		})
}
