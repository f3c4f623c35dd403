package features

import (
	"math"
	"sort"

	"github.com/manchuphon/Alert-Dashboard/internal/domain"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/progress"
	"github.com/manchuphon/Alert-Dashboard/pkg/formulas"
	"github.com/rs/zerolog"
)

// Builder computes derived metrics for every record of a snapshot.
// It holds no state between calls; the same input always yields the same rows.
type Builder struct {
	consts    Constants
	estimator *progress.Estimator
	pool      *WorkerPool
	log       zerolog.Logger
}

// NewBuilder creates a feature builder. The constants are validated and copied.
func NewBuilder(consts Constants, estimator *progress.Estimator, pool *WorkerPool, log zerolog.Logger) (*Builder, error) {
	if err := consts.Validate(); err != nil {
		return nil, err
	}
	if estimator == nil {
		estimator = progress.NewEstimator(log)
	}
	if pool == nil {
		pool = NewWorkerPool(0)
	}
	return &Builder{
		consts:    consts,
		estimator: estimator,
		pool:      pool,
		log:       log.With().Str("service", "feature_builder").Logger(),
	}, nil
}

// Constants returns the constants the builder was configured with
func (b *Builder) Constants() Constants {
	return b.consts
}

// Build cleans the records, resolves progress per project and derives metrics per record.
// Malformed records are skipped and counted. Rows are ordered by project, period, cost code.
func (b *Builder) Build(records []domain.ProjectPeriodRecord) Result {
	byProject := make(map[string][]domain.ProjectPeriodRecord)
	flags := make(map[domain.Key][]Flag)
	skipped := 0

	for _, r := range records {
		if err := r.Validate(); err != nil {
			skipped++
			b.log.Warn().Err(err).Msg("Skipping malformed record")
			continue
		}
		cleaned, recordFlags := Clean(r)
		if len(recordFlags) > 0 {
			flags[cleaned.Key()] = recordFlags
		}
		byProject[cleaned.ProjectID] = append(byProject[cleaned.ProjectID], cleaned)
	}

	projectIDs := make([]string, 0, len(byProject))
	for id := range byProject {
		projectIDs = append(projectIDs, id)
	}
	sort.Strings(projectIDs)

	batches := make([]projectBatch, len(projectIDs))
	for i, id := range projectIDs {
		batches[i] = projectBatch{projectID: id, records: byProject[id]}
	}

	partitions := b.pool.BuildBatch(batches, func(batch projectBatch) []Row {
		return b.buildProject(batch, flags)
	})

	result := Result{Rows: make([]Row, 0, len(records)-skipped), Skipped: skipped}
	for _, rows := range partitions {
		result.Rows = append(result.Rows, rows...)
	}

	b.log.Info().
		Int("records", len(records)).
		Int("rows", len(result.Rows)).
		Int("skipped", skipped).
		Int("projects", len(projectIDs)).
		Msg("Built derived features")

	return result
}

// buildProject derives the rows of one project. flags is only read.
func (b *Builder) buildProject(batch projectBatch, flags map[domain.Key][]Flag) []Row {
	resolution := b.estimator.Resolve(progress.BuildSeries(batch.projectID, batch.records))

	var projectFlags []Flag
	for _, f := range resolution.Flags {
		if mapped, ok := progressFlags[f]; ok {
			projectFlags = append(projectFlags, mapped)
		}
	}

	records := make([]domain.ProjectPeriodRecord, len(batch.records))
	copy(records, batch.records)
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Period != records[j].Period {
			return records[i].Period.Before(records[j].Period)
		}
		return records[i].CostCode.String() < records[j].CostCode.String()
	})

	rows := make([]Row, 0, len(records))
	for _, r := range records {
		pp, _ := resolution.PercentFor(r.Period)

		rowFlags := append([]Flag(nil), flags[r.Key()]...)
		for _, f := range projectFlags {
			// regression and ratchet flags only describe the periods they masked
			if (f == FlagProgressRegression && pp.Regression == 0) || (f == FlagProgressRatcheted && !pp.Ratcheted) {
				continue
			}
			rowFlags = append(rowFlags, f)
		}

		metrics := b.Derive(r, pp.Percent)
		metrics.ProgressMethod = resolution.Method
		metrics.ProgressRegression = pp.Regression

		row := Row{
			Record:      r,
			ProjectID:   r.ProjectID,
			ProjectName: r.DisplayName(),
			CostCode:    r.CostCode.String(),
			Period:      r.Period,
			TotalBudget: r.TotalBudget,
			TotalActual: r.TotalActual,
			Metrics:     metrics,
			Flags:       rowFlags,
		}
		if r.ContractValue.Valid {
			v := r.ContractValue.Value
			row.ContractValue = &v
		}
		rows = append(rows, row)
	}
	return rows
}

// Derive computes the metrics of one record given its resolved percent complete
func (b *Builder) Derive(r domain.ProjectPeriodRecord, percentComplete float64) DerivedMetrics {
	c := b.consts
	budget := r.TotalBudget
	actual := r.TotalActual
	pct := formulas.ClampPercent(percentComplete)
	expected := b.ExpectedPercent(r, pct)

	m := DerivedMetrics{
		PercentComplete: pct,
		ExpectedPercent: expected,
		BCWP:            formulas.BCWP(budget, pct),
		ACWP:            formulas.ACWP(actual),
		BCWS:            formulas.BCWS(budget, expected),
	}

	m.CPI = formulas.CPI(m.BCWP, m.ACWP)
	m.SPI = formulas.SPI(m.BCWP, m.BCWS)
	m.CostVariance = formulas.CostVariance(m.BCWP, m.ACWP)
	m.ScheduleVariance = formulas.ScheduleVariance(m.BCWP, m.BCWS)
	m.CostVariancePct = formulas.CostVariancePct(m.CostVariance, m.BCWP)
	m.EAC = formulas.EACByCPI(budget, m.CPI)
	m.EACRemaining = formulas.EACByRemaining(budget, m.ACWP, m.BCWP)
	m.VAC = formulas.VAC(budget, m.EAC)
	m.VACRemaining = budget - m.EACRemaining
	m.TCPI = formulas.TCPI(budget, m.BCWP, m.ACWP)

	m.BudgetUtilizationPct = formulas.Utilization(actual, budget)
	m.ProfitMargin = ProfitMargin(r)

	m.CostEfficiency = formulas.SafeRatio(budget, actual, 1.0)
	m.ProgressEfficiency = formulas.SafeRatio(pct, expected, 1.0)
	m.EfficiencyScore = b.efficiencyScore(m.CostEfficiency, m.ProgressEfficiency, m.CPI)

	m.CostRiskScore = b.costRisk(m.BudgetUtilizationPct, budget)
	m.ScheduleRiskScore = b.scheduleRisk(expected, pct)
	m.OverallRiskScore = formulas.ClampPercent(c.CostRiskWeight*m.CostRiskScore + c.ScheduleRiskWeight*m.ScheduleRiskScore)

	if r.Period.Month > 0 {
		m.MonthlyBurnRate = actual / float64(r.Period.Month)
	}
	m.ProjectedNextMonthCost = m.MonthlyBurnRate * c.BurnGrowth
	m.CashFlow3MForecast = m.ProjectedNextMonthCost * float64(c.ForecastMonths)

	m.HealthStatus = c.Health(m.OverallRiskScore)
	m.PerformanceCategory = c.Performance(m.EfficiencyScore)

	return m
}

// ExpectedPercent returns the percent complete the plan called for at the end of the record's period.
// A planned schedule window wins; otherwise the configured schedule basis applies.
func (b *Builder) ExpectedPercent(r domain.ProjectPeriodRecord, percentComplete float64) float64 {
	if r.Schedule != nil {
		if fraction, ok := r.Schedule.ElapsedFraction(r.Period.End()); ok {
			return fraction * 100
		}
	}
	if b.consts.ScheduleBasis == ScheduleProgressProxy {
		return formulas.ClampPercent(percentComplete)
	}
	return formulas.ClampPercent(float64(r.Period.Month) / float64(b.consts.ScheduleMonths) * 100)
}

// efficiencyScore blends cost efficiency, progress efficiency and CPI into 0..100.
// A CPI without arithmetic value counts as neutral 1.0.
func (b *Builder) efficiencyScore(costEfficiency, progressEfficiency float64, cpi formulas.Measure) float64 {
	c := b.consts
	score := c.EfficiencyScale * (c.CostEfficiencyWeight*formulas.Clamp(costEfficiency, 0, c.EfficiencyCap) +
		c.ProgressEfficiencyWeight*formulas.Clamp(progressEfficiency, 0, c.EfficiencyCap) +
		c.CPIWeight*formulas.Clamp(cpi.Or(1.0), 0, c.EfficiencyCap))
	return formulas.ClampPercent(score)
}

// costRisk rises above 100% utilization and also when utilization is suspiciously low.
// A zero budget is treated as no data.
func (b *Builder) costRisk(utilization, budget float64) float64 {
	if budget <= 0 {
		return 0
	}
	c := b.consts
	if utilization > 100 {
		return math.Min(100, (utilization-100)*c.OverrunRiskRate)
	}
	return formulas.ClampPercent(c.UnderExecutionBase - utilization*c.UnderExecutionRate)
}

func (b *Builder) scheduleRisk(expected, actual float64) float64 {
	if actual >= expected {
		return 0
	}
	return math.Min(100, (expected-actual)*b.consts.ScheduleRiskRate)
}

// ProfitMargin returns (base - actual) / base * 100 where base is the contract value when known,
// otherwise the budget. Undefined when neither is positive.
func ProfitMargin(r domain.ProjectPeriodRecord) formulas.Measure {
	base := r.TotalBudget
	if r.ContractValue.Positive() {
		base = r.ContractValue.Value
	}
	if base <= 0 {
		return formulas.Undefined(formulas.StateUndefined)
	}
	return formulas.Measured((base - r.TotalActual) / base * 100)
}

// Clean clips negative money fields to zero and reports what was corrected.
// Certificates and submissions keep their sign: a negative amount is a reversal.
func Clean(r domain.ProjectPeriodRecord) (domain.ProjectPeriodRecord, []Flag) {
	var flags []Flag
	if r.TotalBudget < 0 || math.IsNaN(r.TotalBudget) {
		r.TotalBudget = 0
		flags = append(flags, FlagNegativeBudgetClipped)
	}
	if r.TotalActual < 0 || math.IsNaN(r.TotalActual) {
		r.TotalActual = 0
		flags = append(flags, FlagNegativeActualClipped)
	}
	if r.ContractValue.Valid && r.ContractValue.Value < 0 {
		r.ContractValue = domain.Some(0)
		flags = append(flags, FlagNegativeContractClipped)
	}
	if r.SubmitBalance.Valid && r.SubmitBalance.Value < 0 {
		r.SubmitBalance = domain.Some(0)
	}
	return r, flags
}
