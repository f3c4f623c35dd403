package features

import (
	"math/rand"
	"testing"
	"time"

	"github.com/manchuphon/Alert-Dashboard/internal/domain"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/progress"
	"github.com/manchuphon/Alert-Dashboard/pkg/formulas"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder(DefaultConstants(), nil, NewWorkerPool(4), zerolog.Nop())
	require.NoError(t, err)
	return b
}

func reported(projectID string, month int, budget, actual, pct float64) domain.ProjectPeriodRecord {
	return domain.ProjectPeriodRecord{
		ProjectID:          projectID,
		CostCode:           domain.CostCode{GCode: "G1", SCode: "S1"},
		Period:             domain.Period{Year: 2024, Month: month},
		TotalBudget:        budget,
		TotalActual:        actual,
		ProgressPercentage: domain.Some(pct),
	}
}

func TestBuild_HealthyProject(t *testing.T) {
	b := newTestBuilder(t)

	result := b.Build([]domain.ProjectPeriodRecord{reported("PRJ001", 6, 500_000, 250_000, 50)})

	require.Len(t, result.Rows, 1)
	m := result.Rows[0].Metrics
	assert.Equal(t, progress.MethodDirectReport, m.ProgressMethod)
	assert.InDelta(t, 50, m.ExpectedPercent, 1e-9)
	assert.InDelta(t, 250_000, m.BCWP, 1e-6)
	assert.InDelta(t, 250_000, m.BCWS, 1e-6)
	assert.Equal(t, formulas.Measured(1.0), m.CPI)
	assert.Equal(t, formulas.Measured(1.0), m.SPI)
	assert.InDelta(t, 70, m.EfficiencyScore, 1e-9)
	assert.InDelta(t, 25, m.CostRiskScore, 1e-9)
	assert.InDelta(t, 0, m.ScheduleRiskScore, 1e-9)
	assert.InDelta(t, 15, m.OverallRiskScore, 1e-9)
	assert.Equal(t, StatusHealthy, m.HealthStatus)
	assert.Equal(t, CategoryGood, m.PerformanceCategory)
}

func TestBuild_StandardOverrun(t *testing.T) {
	b := newTestBuilder(t)

	result := b.Build([]domain.ProjectPeriodRecord{reported("PRJ001", 10, 1_000_000, 1_200_000, 80)})

	require.Len(t, result.Rows, 1)
	m := result.Rows[0].Metrics
	assert.InDelta(t, 800_000, m.BCWP, 1e-6)
	assert.InDelta(t, 120, m.BudgetUtilizationPct, 1e-9)
	assert.InDelta(t, 0.6667, m.CPI.Value, 1e-4)
	require.True(t, m.EAC.Defined())
	assert.InDelta(t, 1_500_000, m.EAC.Value, 1)
	assert.InDelta(t, 1_400_000, m.EACRemaining, 1e-6)
	assert.InDelta(t, -500_000, m.VAC.Value, 1)
	assert.InDelta(t, -400_000, m.CostVariance, 1e-6)
	assert.InDelta(t, -50, m.CostVariancePct, 1e-9)
	assert.InDelta(t, 40, m.CostRiskScore, 1e-9)
	assert.InDelta(t, -20, m.ProfitMargin.Value, 1e-9)
}

func TestDerive_ZeroActualKeepsSentinel(t *testing.T) {
	b := newTestBuilder(t)
	r := reported("PRJ001", 6, 100, 0, 50)

	m := b.Derive(r, 50)

	assert.Equal(t, formulas.StateUndefinedFavorable, m.CPI.State)
	assert.False(t, m.EAC.Defined())
	assert.False(t, m.VAC.Defined())
	assert.InDelta(t, 1.0, m.CostEfficiency, 1e-9)
	// cost efficiency 1, progress efficiency 1, CPI counted as neutral 1
	assert.InDelta(t, 50, m.EfficiencyScore, 1e-9)
}

func TestDerive_ZeroBudgetIsNoData(t *testing.T) {
	b := newTestBuilder(t)

	m := b.Derive(reported("PRJ001", 6, 0, 1000, 0), 0)

	assert.Zero(t, m.BudgetUtilizationPct)
	assert.Zero(t, m.CostRiskScore)
	assert.False(t, m.ProfitMargin.Defined())
	assert.Equal(t, formulas.Measured(0), m.TCPI)
}

func TestExpectedPercent(t *testing.T) {
	b := newTestBuilder(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	withSchedule := reported("PRJ001", 6, 100, 0, 10)
	withSchedule.Schedule = &domain.Schedule{Start: start, End: start.AddDate(2, 0, 0)}

	tests := []struct {
		name     string
		builder  *Builder
		record   domain.ProjectPeriodRecord
		pct      float64
		expected float64
		delta    float64
	}{
		{"calendar month", b, reported("PRJ001", 3, 100, 0, 10), 10, 25, 1e-9},
		{"schedule window wins", b, withSchedule, 10, 25, 0.5},
	}

	proxyConsts := DefaultConstants()
	proxyConsts.ScheduleBasis = ScheduleProgressProxy
	proxy, err := NewBuilder(proxyConsts, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	tests = append(tests, struct {
		name     string
		builder  *Builder
		record   domain.ProjectPeriodRecord
		pct      float64
		expected float64
		delta    float64
	}{"progress proxy", proxy, reported("PRJ001", 3, 100, 0, 10), 10, 10, 1e-9})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, tt.builder.ExpectedPercent(tt.record, tt.pct), tt.delta)
		})
	}
}

func TestBuild_SkipsMalformedAndClipsNegatives(t *testing.T) {
	b := newTestBuilder(t)
	noProject := reported("", 1, 100, 10, 10)
	noGCode := reported("PRJ001", 1, 100, 10, 10)
	noGCode.CostCode = domain.CostCode{}
	negative := reported("PRJ002", 1, 100, -40, 10)

	result := b.Build([]domain.ProjectPeriodRecord{noProject, noGCode, negative})

	assert.Equal(t, 2, result.Skipped)
	require.Len(t, result.Rows, 1)
	assert.Zero(t, result.Rows[0].TotalActual)
	assert.True(t, result.Rows[0].HasFlag(FlagNegativeActualClipped))
}

func TestBuild_RegressionFlaggedOnMaskedPeriod(t *testing.T) {
	b := newTestBuilder(t)
	records := make([]domain.ProjectPeriodRecord, 3)
	certs := []float64{300, -100, 200}
	for i := range records {
		records[i] = reported("PRJ001", i+1, 1000, 100, 0)
		records[i].Certificate = domain.Some(certs[i])
	}

	result := b.Build(records)

	require.Len(t, result.Rows, 3)
	assert.False(t, result.Rows[0].HasFlag(FlagProgressRegression))
	assert.True(t, result.Rows[1].HasFlag(FlagProgressRegression))
	assert.InDelta(t, 10, result.Rows[1].Metrics.ProgressRegression, 1e-9)
	assert.False(t, result.Rows[2].HasFlag(FlagProgressRegression))
	assert.Equal(t, progress.MethodCertificate, result.Rows[1].Metrics.ProgressMethod)
}

func TestBuild_Idempotent(t *testing.T) {
	b := newTestBuilder(t)
	records := randomRecords(rand.New(rand.NewSource(7)), 200)

	first := b.Build(records)
	second := b.Build(records)

	assert.Equal(t, first, second)
}

func TestBuild_ScoresBounded(t *testing.T) {
	b := newTestBuilder(t)
	records := randomRecords(rand.New(rand.NewSource(11)), 500)

	result := b.Build(records)

	for _, row := range result.Rows {
		m := row.Metrics
		for name, v := range map[string]float64{
			"percent_complete": m.PercentComplete,
			"efficiency":       m.EfficiencyScore,
			"cost_risk":        m.CostRiskScore,
			"schedule_risk":    m.ScheduleRiskScore,
			"overall_risk":     m.OverallRiskScore,
		} {
			assert.GreaterOrEqual(t, v, 0.0, "%s %s", row.ProjectID, name)
			assert.LessOrEqual(t, v, 100.0, "%s %s", row.ProjectID, name)
		}
	}
}

func TestBuild_RowOrder(t *testing.T) {
	b := newTestBuilder(t)
	records := []domain.ProjectPeriodRecord{
		reported("PRJ002", 2, 100, 10, 10),
		reported("PRJ001", 3, 100, 10, 10),
		reported("PRJ001", 1, 100, 10, 10),
	}

	result := b.Build(records)

	require.Len(t, result.Rows, 3)
	assert.Equal(t, "PRJ001", result.Rows[0].ProjectID)
	assert.Equal(t, 1, result.Rows[0].Period.Month)
	assert.Equal(t, 3, result.Rows[1].Period.Month)
	assert.Equal(t, "PRJ002", result.Rows[2].ProjectID)
}

func TestNewBuilder_RejectsInvalidConstants(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Constants)
	}{
		{"health thresholds out of order", func(c *Constants) { c.HealthWarning = 80 }},
		{"negative weight", func(c *Constants) { c.CPIWeight = -0.1 }},
		{"unknown schedule basis", func(c *Constants) { c.ScheduleBasis = "weekly" }},
		{"zero forecast months", func(c *Constants) { c.ForecastMonths = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConstants()
			tt.mutate(&c)
			_, err := NewBuilder(c, nil, nil, zerolog.Nop())
			assert.Error(t, err)
		})
	}
}

func TestConstants_Classification(t *testing.T) {
	c := DefaultConstants()

	assert.Equal(t, StatusCritical, c.Health(70))
	assert.Equal(t, StatusWarning, c.Health(40))
	assert.Equal(t, StatusCaution, c.Health(20))
	assert.Equal(t, StatusHealthy, c.Health(19.99))

	assert.Equal(t, CategoryExcellent, c.Performance(80))
	assert.Equal(t, CategoryGood, c.Performance(60))
	assert.Equal(t, CategoryFair, c.Performance(40))
	assert.Equal(t, CategoryPoor, c.Performance(39.9))
}

func TestWorkerPool_PreservesOrder(t *testing.T) {
	pool := NewWorkerPool(3)
	batches := make([]projectBatch, 20)
	for i := range batches {
		batches[i] = projectBatch{projectID: string(rune('A' + i))}
	}

	out := pool.BuildBatch(batches, func(b projectBatch) []Row {
		return []Row{{ProjectID: b.projectID}}
	})

	require.Len(t, out, 20)
	for i, rows := range out {
		assert.Equal(t, string(rune('A'+i)), rows[0].ProjectID)
	}
	assert.Empty(t, pool.BuildBatch(nil, nil))
}

func randomRecords(rng *rand.Rand, n int) []domain.ProjectPeriodRecord {
	records := make([]domain.ProjectPeriodRecord, 0, n)
	for i := 0; i < n; i++ {
		r := domain.ProjectPeriodRecord{
			ProjectID:   []string{"PRJ001", "PRJ002", "PRJ003", "PRJ004"}[i%4],
			CostCode:    domain.CostCode{GCode: []string{"G1", "G2"}[rng.Intn(2)], SCode: "S1"},
			Period:      domain.Period{Year: 2024, Month: i/4%12 + 1},
			TotalBudget: rng.Float64() * 1_000_000,
			TotalActual: rng.Float64() * 2_000_000,
		}
		switch rng.Intn(4) {
		case 0:
			r.ProgressPercentage = domain.Some(rng.Float64() * 120)
		case 1:
			r.Certificate = domain.Some(rng.Float64()*200_000 - 50_000)
		case 2:
			r.ContractValue = domain.Some(rng.Float64() * 1_500_000)
			r.ProgressSubmit = domain.Some(rng.Float64() * 100_000)
		}
		records = append(records, r)
	}
	return records
}
