package kpi

import (
	"math"
	"sort"

	"github.com/manchuphon/Alert-Dashboard/internal/domain"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/alerts"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/features"
	"github.com/manchuphon/Alert-Dashboard/pkg/formulas"
	"github.com/rs/zerolog"
)

// DefaultTrendLength is the EMA/SMA window used for CPI and burn rate trends
const DefaultTrendLength = 3

// ProblemIndexLine marks a project for follow-up when its CPI or SPI falls below it
const ProblemIndexLine = 0.9

// Aggregator rolls feature rows up to KPIs. It holds no state between calls.
type Aggregator struct {
	trendLength int
	log         zerolog.Logger
}

// NewAggregator creates a KPI aggregator
func NewAggregator(trendLength int, log zerolog.Logger) *Aggregator {
	if trendLength < 1 {
		trendLength = DefaultTrendLength
	}
	return &Aggregator{
		trendLength: trendLength,
		log:         log.With().Str("service", "kpi_aggregator").Logger(),
	}
}

type totals struct {
	period domain.Period
	bac    float64
	acwp   float64
	bcwp   float64
	bcws   float64
}

// periodTotals sums a project's cost lines per period, in period order.
// A cost line without a record in a period contributes its last reported values.
func periodTotals(rows []features.Row) []totals {
	byPeriod := make(map[domain.Period][]features.Row)
	for _, row := range rows {
		byPeriod[row.Period] = append(byPeriod[row.Period], row)
	}
	periods := make([]domain.Period, 0, len(byPeriod))
	for p := range byPeriod {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })

	lines := make(map[string]features.Row)
	var codes []string
	out := make([]totals, 0, len(periods))
	for _, p := range periods {
		for _, row := range byPeriod[p] {
			if _, seen := lines[row.CostCode]; !seen {
				codes = append(codes, row.CostCode)
			}
			lines[row.CostCode] = row
		}
		sort.Strings(codes)
		t := totals{period: p}
		for _, code := range codes {
			row := lines[code]
			t.bac += row.TotalBudget
			t.acwp += row.Metrics.ACWP
			t.bcwp += row.Metrics.BCWP
			t.bcws += row.Metrics.BCWS
		}
		out = append(out, t)
	}
	return out
}

func filterProject(projectID string, rows []features.Row) []features.Row {
	var out []features.Row
	for _, row := range rows {
		if row.ProjectID == projectID {
			out = append(out, row)
		}
	}
	return out
}

func groupByProject(rows []features.Row) ([]string, map[string][]features.Row) {
	groups := make(map[string][]features.Row)
	for _, row := range rows {
		groups[row.ProjectID] = append(groups[row.ProjectID], row)
	}
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, groups
}

// Default returns the zeroed KPI of a project without records
func Default(projectID string) ProjectKPI {
	return ProjectKPI{
		ProjectID:   projectID,
		ProjectName: "Project " + projectID,
		Snapshot: Snapshot{
			CPI:  formulas.Undefined(formulas.StateUndefined),
			SPI:  formulas.Undefined(formulas.StateUndefined),
			EAC:  formulas.Measured(0),
			VAC:  formulas.Measured(0),
			TCPI: formulas.Undefined(formulas.StateUndefined),
		},
		Cumulative:        Cumulative{Monthly: []Contribution{}},
		Interpretations:   Interpretations{SPI: NoData, CPI: NoData, VAC: NoData},
		PerformanceStatus: StatusUnknown,
		RiskLevel:         RiskLow,
	}
}

// Project computes the KPI of one project. rows may contain other projects; they are ignored.
// A project without rows yields Default.
func (a *Aggregator) Project(projectID string, rows []features.Row) ProjectKPI {
	own := filterProject(projectID, rows)
	if len(own) == 0 {
		return Default(projectID)
	}
	return a.project(projectID, own)
}

func (a *Aggregator) project(projectID string, rows []features.Row) ProjectKPI {
	series := periodTotals(rows)
	latest := series[len(series)-1]

	kpi := ProjectKPI{
		ProjectID:   projectID,
		ProjectName: rows[len(rows)-1].ProjectName,
		HasData:     true,
		Snapshot:    snapshot(latest),
		Cumulative:  Cumulative{Monthly: make([]Contribution, 0, len(series))},
	}

	var prev totals
	cpis := make([]formulas.Measure, 0, len(series))
	burn := make([]float64, 0, len(series))
	for _, t := range series {
		c := Contribution{
			Period: t.period,
			ACWP:   t.acwp - prev.acwp,
			BCWP:   t.bcwp - prev.bcwp,
			BCWS:   t.bcws - prev.bcws,
			CPI:    formulas.CPI(t.bcwp, t.acwp),
		}
		kpi.Cumulative.Monthly = append(kpi.Cumulative.Monthly, c)
		kpi.Cumulative.ACWP += c.ACWP
		kpi.Cumulative.BCWP += c.BCWP
		kpi.Cumulative.BCWS += c.BCWS
		cpis = append(cpis, c.CPI)
		burn = append(burn, c.ACWP)
		prev = t
	}

	s := kpi.Snapshot
	kpi.Interpretations = Interpret(s)
	kpi.PerformanceStatus = Status(s.CPI, s.SPI)
	kpi.RiskScore = RiskScore(s.CPI, s.SPI, s.BCWP-s.ACWP, s.BAC)
	kpi.RiskLevel = Level(kpi.RiskScore)
	kpi.CPITrend = formulas.MeasureTrend(cpis, a.trendLength)
	kpi.BurnRateTrend = formulas.CalculateSMA(burn, a.trendLength)
	return kpi
}

func snapshot(t totals) Snapshot {
	period := t.period
	s := Snapshot{
		Period: &period,
		BAC:    t.bac,
		ACWP:   t.acwp,
		BCWP:   t.bcwp,
		BCWS:   t.bcws,
		CPI:    formulas.CPI(t.bcwp, t.acwp),
		SPI:    formulas.SPI(t.bcwp, t.bcws),
		TCPI:   formulas.TCPI(t.bac, t.bcwp, t.acwp),
	}
	s.EAC = formulas.EACByCPI(t.bac, s.CPI)
	s.VAC = formulas.VAC(t.bac, s.EAC)
	s.PercentComplete = formulas.ClampPercent(formulas.SafeRatio(t.bcwp, t.bac, 0) * 100)
	s.PercentSpent = formulas.Utilization(t.acwp, t.bac)
	return s
}

// Interpret reads the snapshot indices; undefined values read as no data
func Interpret(s Snapshot) Interpretations {
	in := Interpretations{SPI: NoData, CPI: NoData, VAC: NoData}
	if s.SPI.Defined() {
		in.SPI = BehindSchedule
		if s.SPI.Value >= 1 {
			in.SPI = OnSchedule
		}
	}
	if s.CPI.Defined() {
		in.CPI = OverBudget
		if s.CPI.Value >= 1 {
			in.CPI = UnderBudget
		}
	}
	if s.VAC.Defined() {
		in.VAC = Overrun
		if s.VAC.Value > 0 {
			in.VAC = Saving
		}
	}
	return in
}

// Status classifies a project from CPI and SPI. Unknown when either has no value.
func Status(cpi, spi formulas.Measure) PerformanceStatus {
	if !cpi.Defined() || !spi.Defined() {
		return StatusUnknown
	}
	c, s := cpi.Value, spi.Value
	switch {
	case c >= 1 && s >= 1:
		return StatusOnTrack
	case c >= 0.9 && s >= 0.9:
		return StatusMinorIssues
	case c >= 0.8 || s >= 0.8:
		return StatusAtRisk
	default:
		return StatusCritical
	}
}

func indexPoints(m formulas.Measure) int {
	if !m.Defined() {
		return 0
	}
	switch {
	case m.Value < 0.8:
		return 3
	case m.Value < 0.9:
		return 2
	case m.Value < 1:
		return 1
	default:
		return 0
	}
}

// RiskScore adds up to 3 points each for a weak CPI and SPI and up to 2 for a large cost variance
func RiskScore(cpi, spi formulas.Measure, costVariance, bac float64) int {
	score := indexPoints(cpi) + indexPoints(spi)
	cv := math.Abs(costVariance)
	switch {
	case cv > bac*0.2:
		score += 2
	case cv > bac*0.1:
		score++
	}
	return score
}

// Level buckets a risk score
func Level(score int) RiskLevel {
	switch {
	case score >= 5:
		return RiskHigh
	case score >= 3:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Projects computes the KPI of every project in rows, ordered by project id
func (a *Aggregator) Projects(rows []features.Row) []ProjectKPI {
	ids, groups := groupByProject(rows)
	out := make([]ProjectKPI, 0, len(ids))
	for _, id := range ids {
		out = append(out, a.project(id, groups[id]))
	}
	return out
}

// Portfolio rolls every project up. Overall CPI is the ratio of summed earned value to summed
// actual cost; mean SPI skips projects whose SPI has no value.
func (a *Aggregator) Portfolio(rows []features.Row) PortfolioSummary {
	projects := a.Projects(rows)

	summary := PortfolioSummary{
		Projects:        len(projects),
		StatusCounts:    make(map[PerformanceStatus]int),
		RiskCounts:      map[RiskLevel]int{RiskLow: 0, RiskMedium: 0, RiskHigh: 0},
		ProblemProjects: []ProblemProject{},
		OverallCPI:      formulas.Undefined(formulas.StateUndefined),
		MeanSPI:         formulas.Undefined(formulas.StateUndefined),
	}
	if len(projects) == 0 {
		return summary
	}

	spis := make([]formulas.Measure, 0, len(projects))
	progress := make([]float64, 0, len(projects))
	for _, p := range projects {
		s := p.Snapshot
		summary.TotalBudget += s.BAC
		summary.TotalACWP += s.ACWP
		summary.TotalBCWP += s.BCWP
		spis = append(spis, s.SPI)
		progress = append(progress, s.PercentComplete)
		summary.StatusCounts[p.PerformanceStatus]++
		summary.RiskCounts[p.RiskLevel]++

		if below(s.CPI) || below(s.SPI) {
			summary.ProblemProjects = append(summary.ProblemProjects, ProblemProject{
				ProjectID:   p.ProjectID,
				ProjectName: p.ProjectName,
				CPI:         s.CPI,
				SPI:         s.SPI,
			})
		}
	}
	summary.OverallCPI = formulas.CPI(summary.TotalBCWP, summary.TotalACWP)
	summary.MeanSPI = formulas.MeanMeasure(spis)
	summary.MeanProgress = formulas.Mean(progress)

	a.log.Debug().
		Int("projects", summary.Projects).
		Int("problem_projects", len(summary.ProblemProjects)).
		Msg("Aggregated portfolio")

	return summary
}

func below(m formulas.Measure) bool {
	return m.Defined() && m.Value < ProblemIndexLine
}

func alertTally(rows []features.Row, assessments []alerts.Assessment) func(i int) (int, alerts.Level, bool) {
	aligned := len(assessments) == len(rows)
	return func(i int) (int, alerts.Level, bool) {
		if !aligned {
			return 0, alerts.LevelGreen, false
		}
		return assessments[i].TotalAlerts, assessments[i].Level, true
	}
}

// commonLevel returns the most frequent level, the more severe one on ties, Green when empty
func commonLevel(counts map[alerts.Level]int) alerts.Level {
	best := alerts.LevelGreen
	bestCount := 0
	for _, level := range []alerts.Level{alerts.LevelRed, alerts.LevelYellow, alerts.LevelGreen} {
		if counts[level] > bestCount {
			best, bestCount = level, counts[level]
		}
	}
	return best
}

// ProjectSummaries builds the project summary table. assessments, when given, must be aligned
// with rows (one per row, as produced by alerts.Evaluator.Evaluate); otherwise alerts count as zero.
// Budget and actual are the latest values of every cost line.
func (a *Aggregator) ProjectSummaries(rows []features.Row, assessments []alerts.Assessment) []ProjectSummary {
	tally := alertTally(rows, assessments)

	type acc struct {
		name       string
		progress   []float64
		efficiency []float64
		risk       []float64
		alertCount int
		levels     map[alerts.Level]int
		rows       []features.Row
	}
	groups := make(map[string]*acc)
	for i, row := range rows {
		g, ok := groups[row.ProjectID]
		if !ok {
			g = &acc{levels: make(map[alerts.Level]int)}
			groups[row.ProjectID] = g
		}
		g.name = row.ProjectName
		g.rows = append(g.rows, row)
		g.progress = append(g.progress, row.Metrics.PercentComplete)
		g.efficiency = append(g.efficiency, row.Metrics.EfficiencyScore)
		g.risk = append(g.risk, row.Metrics.OverallRiskScore)
		if n, level, ok := tally(i); ok {
			g.alertCount += n
			g.levels[level]++
		}
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]ProjectSummary, 0, len(ids))
	for _, id := range ids {
		g := groups[id]
		series := periodTotals(g.rows)
		latest := series[len(series)-1]
		out = append(out, ProjectSummary{
			ProjectID:        id,
			ProjectName:      g.name,
			TotalBudget:      latest.bac,
			TotalActual:      latest.acwp,
			MeanProgress:     formulas.Mean(g.progress),
			MeanEfficiency:   formulas.Mean(g.efficiency),
			MeanOverallRisk:  formulas.Mean(g.risk),
			TotalAlerts:      g.alertCount,
			CommonAlertLevel: commonLevel(g.levels),
		})
	}
	return out
}

// CostCodeSummaries builds the cost code summary table across projects.
// Budget and actual add up the latest record of every (project, cost code) line.
func (a *Aggregator) CostCodeSummaries(rows []features.Row, assessments []alerts.Assessment) []CostCodeSummary {
	tally := alertTally(rows, assessments)

	type lineKey struct{ projectID, costCode string }
	type acc struct {
		utilization []float64
		costRisk    []float64
		alertCount  int
		latest      map[lineKey]features.Row
	}
	groups := make(map[string]*acc)
	for i, row := range rows {
		g, ok := groups[row.CostCode]
		if !ok {
			g = &acc{latest: make(map[lineKey]features.Row)}
			groups[row.CostCode] = g
		}
		g.utilization = append(g.utilization, row.Metrics.BudgetUtilizationPct)
		g.costRisk = append(g.costRisk, row.Metrics.CostRiskScore)
		if n, _, ok := tally(i); ok {
			g.alertCount += n
		}
		k := lineKey{row.ProjectID, row.CostCode}
		if prev, seen := g.latest[k]; !seen || !row.Period.Before(prev.Period) {
			g.latest[k] = row
		}
	}

	codes := make([]string, 0, len(groups))
	for code := range groups {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	out := make([]CostCodeSummary, 0, len(codes))
	for _, code := range codes {
		g := groups[code]
		s := CostCodeSummary{
			CostCode:        code,
			MeanUtilization: formulas.Mean(g.utilization),
			MeanCostRisk:    formulas.Mean(g.costRisk),
			TotalAlerts:     g.alertCount,
		}
		lines := make([]lineKey, 0, len(g.latest))
		for k := range g.latest {
			lines = append(lines, k)
		}
		sort.Slice(lines, func(i, j int) bool { return lines[i].projectID < lines[j].projectID })
		for _, k := range lines {
			row := g.latest[k]
			s.TotalBudget += row.TotalBudget
			s.TotalActual += row.TotalActual
		}
		out = append(out, s)
	}
	return out
}
