package kpi

import (
	"math/rand"
	"testing"

	"github.com/manchuphon/Alert-Dashboard/internal/domain"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/alerts"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/features"
	"github.com/manchuphon/Alert-Dashboard/pkg/formulas"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRows(t *testing.T, records ...domain.ProjectPeriodRecord) []features.Row {
	t.Helper()
	b, err := features.NewBuilder(features.DefaultConstants(), nil, nil, zerolog.Nop())
	require.NoError(t, err)
	return b.Build(records).Rows
}

func line(projectID, g string, month int, budget, actual, pct float64) domain.ProjectPeriodRecord {
	return domain.ProjectPeriodRecord{
		ProjectID:          projectID,
		ProjectName:        "Project " + projectID,
		CostCode:           domain.CostCode{GCode: g},
		Period:             domain.Period{Year: 2024, Month: month},
		TotalBudget:        budget,
		TotalActual:        actual,
		ProgressPercentage: domain.Some(pct),
	}
}

func TestProject_EmptyReturnsDefault(t *testing.T) {
	a := NewAggregator(0, zerolog.Nop())

	kpi := a.Project("X", nil)

	assert.Equal(t, Default("X"), kpi)
	assert.False(t, kpi.HasData)
	assert.Nil(t, kpi.Snapshot.Period)
	assert.Zero(t, kpi.Snapshot.BAC)
	assert.False(t, kpi.Snapshot.CPI.Defined())
	assert.Equal(t, NoData, kpi.Interpretations.CPI)
	assert.Equal(t, StatusUnknown, kpi.PerformanceStatus)
	assert.NotNil(t, kpi.Cumulative.Monthly)

	rows := buildRows(t, line("PRJ001", "G1", 6, 100, 50, 50))
	assert.Equal(t, Default("X"), a.Project("X", rows))
}

func TestProject_HealthySnapshot(t *testing.T) {
	a := NewAggregator(3, zerolog.Nop())
	rows := buildRows(t, line("PRJ001", "G1", 6, 500_000, 250_000, 50))

	kpi := a.Project("PRJ001", rows)

	require.True(t, kpi.HasData)
	s := kpi.Snapshot
	assert.Equal(t, domain.Period{Year: 2024, Month: 6}, *s.Period)
	assert.InDelta(t, 500_000, s.BAC, 1e-6)
	assert.InDelta(t, 250_000, s.BCWP, 1e-6)
	assert.InDelta(t, 250_000, s.BCWS, 1e-6)
	assert.Equal(t, formulas.Measured(1), s.CPI)
	assert.Equal(t, formulas.Measured(1), s.SPI)
	assert.InDelta(t, 500_000, s.EAC.Value, 1e-6)
	assert.InDelta(t, 0, s.VAC.Value, 1e-6)
	assert.InDelta(t, 50, s.PercentComplete, 1e-9)
	assert.Equal(t, StatusOnTrack, kpi.PerformanceStatus)
	assert.Equal(t, 0, kpi.RiskScore)
	assert.Equal(t, RiskLow, kpi.RiskLevel)
	assert.Equal(t, Interpretations{SPI: OnSchedule, CPI: UnderBudget, VAC: Overrun}, kpi.Interpretations)
}

func TestProject_CumulativeEqualsSumOfContributions(t *testing.T) {
	a := NewAggregator(3, zerolog.Nop())
	rng := rand.New(rand.NewSource(3))

	var records []domain.ProjectPeriodRecord
	actual := map[string]float64{}
	for month := 1; month <= 12; month++ {
		for _, g := range []string{"G1", "G2", "G3"} {
			// G3 skips odd months to exercise carry-forward
			if g == "G3" && month%2 == 1 {
				continue
			}
			actual[g] += rng.Float64() * 50_000
			records = append(records, line("PRJ001", g, month, 400_000, actual[g], float64(month)*8))
		}
	}

	kpi := a.Project("PRJ001", buildRows(t, records...))

	require.Len(t, kpi.Cumulative.Monthly, 12)
	var acwp, bcwp, bcws float64
	for _, c := range kpi.Cumulative.Monthly {
		acwp += c.ACWP
		bcwp += c.BCWP
		bcws += c.BCWS
	}
	assert.InDelta(t, acwp, kpi.Cumulative.ACWP, 1e-6)
	assert.InDelta(t, kpi.Snapshot.ACWP, kpi.Cumulative.ACWP, 1e-6)
	assert.InDelta(t, kpi.Snapshot.BCWP, kpi.Cumulative.BCWP, 1e-6)
	assert.InDelta(t, kpi.Snapshot.BCWS, kpi.Cumulative.BCWS, 1e-6)
	assert.InDelta(t, bcwp, kpi.Cumulative.BCWP, 1e-6)
	assert.InDelta(t, bcws, kpi.Cumulative.BCWS, 1e-6)
	assert.InDelta(t, actual["G1"]+actual["G2"]+actual["G3"], kpi.Snapshot.ACWP, 1e-6)
	assert.InDelta(t, 1_200_000, kpi.Snapshot.BAC, 1e-6)
	require.NotNil(t, kpi.CPITrend)
	require.NotNil(t, kpi.BurnRateTrend)
}

func TestProject_CarriesMissingLinesForward(t *testing.T) {
	a := NewAggregator(3, zerolog.Nop())
	rows := buildRows(t,
		line("PRJ001", "G1", 1, 100, 10, 10),
		line("PRJ001", "G2", 1, 100, 20, 10),
		line("PRJ001", "G1", 2, 100, 30, 30),
	)

	kpi := a.Project("PRJ001", rows)

	require.Len(t, kpi.Cumulative.Monthly, 2)
	assert.InDelta(t, 30, kpi.Cumulative.Monthly[0].ACWP, 1e-9)
	assert.InDelta(t, 20, kpi.Cumulative.Monthly[1].ACWP, 1e-9)
	assert.InDelta(t, 50, kpi.Snapshot.ACWP, 1e-9)
	assert.InDelta(t, 200, kpi.Snapshot.BAC, 1e-9)
	assert.Nil(t, kpi.BurnRateTrend)
}

func TestStatus(t *testing.T) {
	m := formulas.Measured
	undefined := formulas.Undefined(formulas.StateUndefinedFavorable)

	tests := []struct {
		name string
		cpi  formulas.Measure
		spi  formulas.Measure
		want PerformanceStatus
	}{
		{"on track", m(1.1), m(1), StatusOnTrack},
		{"neutral counts as on plan", formulas.Neutral(), formulas.Neutral(), StatusOnTrack},
		{"minor", m(0.95), m(1.2), StatusMinorIssues},
		{"at risk", m(0.85), m(0.5), StatusAtRisk},
		{"critical", m(0.7), m(0.6), StatusCritical},
		{"unknown cpi", undefined, m(1), StatusUnknown},
		{"unknown spi", m(1), undefined, StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.cpi, tt.spi))
		})
	}
}

func TestRiskScore(t *testing.T) {
	m := formulas.Measured

	tests := []struct {
		name  string
		cpi   formulas.Measure
		spi   formulas.Measure
		cv    float64
		want  int
		level RiskLevel
	}{
		{"healthy", m(1), m(1), 0, 0, RiskLow},
		{"slightly weak", m(0.95), m(0.95), -50, 2, RiskLow},
		{"medium", m(0.85), m(0.95), -150, 4, RiskMedium},
		{"maximum", m(0.5), m(0.5), -500, 8, RiskHigh},
		{"undefined indices score nothing", formulas.Undefined(formulas.StateUndefinedFavorable), m(1), 0, 0, RiskLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := RiskScore(tt.cpi, tt.spi, tt.cv, 1000)
			assert.Equal(t, tt.want, score)
			assert.Equal(t, tt.level, Level(score))
		})
	}
}

func TestInterpret(t *testing.T) {
	s := Snapshot{
		CPI: formulas.Measured(0.8),
		SPI: formulas.Undefined(formulas.StateUndefinedFavorable),
		VAC: formulas.Measured(10),
	}
	assert.Equal(t, Interpretations{SPI: NoData, CPI: OverBudget, VAC: Saving}, Interpret(s))
}

func TestPortfolio(t *testing.T) {
	a := NewAggregator(3, zerolog.Nop())
	rows := buildRows(t,
		line("PRJ001", "G1", 6, 500_000, 250_000, 50),
		line("PRJ002", "G1", 10, 1_000_000, 1_200_000, 80),
		line("PRJ003", "G1", 6, 100, 0, 50),
	)

	p := a.Portfolio(rows)

	assert.Equal(t, 3, p.Projects)
	assert.InDelta(t, 1_500_100, p.TotalBudget, 1e-6)
	assert.InDelta(t, 1_450_000, p.TotalACWP, 1e-6)
	assert.InDelta(t, 250_000+800_000+50, p.TotalBCWP, 1e-6)
	assert.InDelta(t, (250_000.0+800_000+50)/1_450_000, p.OverallCPI.Value, 1e-9)
	assert.Equal(t, 1, p.StatusCounts[StatusOnTrack])
	assert.Equal(t, 1, p.StatusCounts[StatusUnknown])
	assert.Len(t, p.RiskCounts, 3)

	require.Len(t, p.ProblemProjects, 1)
	assert.Equal(t, "PRJ002", p.ProblemProjects[0].ProjectID)

	// PRJ003 has zero actual so its CPI is excluded; SPI values of all three are defined
	assert.True(t, p.MeanSPI.Defined())
}

func TestPortfolio_Empty(t *testing.T) {
	p := NewAggregator(3, zerolog.Nop()).Portfolio(nil)

	assert.Zero(t, p.Projects)
	assert.False(t, p.OverallCPI.Defined())
	assert.False(t, p.MeanSPI.Defined())
	assert.NotNil(t, p.ProblemProjects)
}

func TestProjectSummaries(t *testing.T) {
	a := NewAggregator(3, zerolog.Nop())
	rows := buildRows(t,
		line("PRJ001", "G1", 1, 1000, 100, 10),
		line("PRJ001", "G1", 2, 1000, 300, 20),
		line("PRJ002", "G1", 1, 500, 50, 10),
	)
	assessments := []alerts.Assessment{
		{TotalAlerts: 1, Level: alerts.LevelYellow},
		{TotalAlerts: 3, Level: alerts.LevelRed},
		{TotalAlerts: 0, Level: alerts.LevelGreen},
	}

	summaries := a.ProjectSummaries(rows, assessments)

	require.Len(t, summaries, 2)
	first := summaries[0]
	assert.Equal(t, "PRJ001", first.ProjectID)
	assert.InDelta(t, 1000, first.TotalBudget, 1e-9)
	assert.InDelta(t, 300, first.TotalActual, 1e-9)
	assert.InDelta(t, 15, first.MeanProgress, 1e-9)
	assert.Equal(t, 4, first.TotalAlerts)
	// Yellow and Red tie; the more severe wins
	assert.Equal(t, alerts.LevelRed, first.CommonAlertLevel)
	assert.Equal(t, alerts.LevelGreen, summaries[1].CommonAlertLevel)

	unaligned := a.ProjectSummaries(rows, nil)
	assert.Zero(t, unaligned[0].TotalAlerts)
	assert.Equal(t, alerts.LevelGreen, unaligned[0].CommonAlertLevel)
}

func TestCostCodeSummaries(t *testing.T) {
	a := NewAggregator(3, zerolog.Nop())
	rows := buildRows(t,
		line("PRJ001", "G1", 1, 1000, 100, 10),
		line("PRJ001", "G1", 2, 1000, 300, 20),
		line("PRJ002", "G1", 1, 500, 50, 10),
		line("PRJ002", "G2", 1, 200, 20, 10),
	)

	summaries := a.CostCodeSummaries(rows, nil)

	require.Len(t, summaries, 2)
	assert.Equal(t, "G1", summaries[0].CostCode)
	assert.InDelta(t, 1500, summaries[0].TotalBudget, 1e-9)
	assert.InDelta(t, 350, summaries[0].TotalActual, 1e-9)
	assert.InDelta(t, (10.0+30+10)/3, summaries[0].MeanUtilization, 1e-9)
	assert.Equal(t, "G2", summaries[1].CostCode)
}

func TestCostCodeSummaries_StableTotals(t *testing.T) {
	a := NewAggregator(3, zerolog.Nop())
	budgets := []float64{1e16, 1, 1, 1, 0.1, 0.2, 0.3, 1, 1, 1}
	var records []domain.ProjectPeriodRecord
	for i, b := range budgets {
		records = append(records, line(string(rune('A'+i)), "G1", 1, b, b/2, 10))
	}
	rows := buildRows(t, records...)

	var wantBudget, wantActual float64
	for _, b := range budgets {
		wantBudget += b
		wantActual += b / 2
	}

	for i := 0; i < 50; i++ {
		summaries := a.CostCodeSummaries(rows, nil)
		require.Len(t, summaries, 1)
		assert.Equal(t, wantBudget, summaries[0].TotalBudget)
		assert.Equal(t, wantActual, summaries[0].TotalActual)
	}
}
