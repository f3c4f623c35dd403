package records

import (
	"testing"

	"github.com/manchuphon/Alert-Dashboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(project, g string, month int, actual float64) domain.ProjectPeriodRecord {
	return domain.ProjectPeriodRecord{
		ProjectID:   project,
		CostCode:    domain.CostCode{GCode: g},
		Period:      domain.Period{Year: 2024, Month: month},
		TotalBudget: 1000,
		TotalActual: actual,
	}
}

func TestDedupe_KeepsLastValue(t *testing.T) {
	in := []domain.ProjectPeriodRecord{
		rec("P1", "G1", 1, 10),
		rec("P1", "G1", 2, 20),
		rec("P1", "G1", 1, 15),
	}

	out, replaced := Dedupe(in)
	require.Len(t, out, 2)
	assert.Equal(t, 1, replaced)
	assert.Equal(t, 15.0, out[0].TotalActual)
	assert.Equal(t, 2, out[1].Period.Month)
}

func TestToCumulative(t *testing.T) {
	in := []domain.ProjectPeriodRecord{
		rec("P1", "G1", 3, 30),
		rec("P1", "G2", 1, 5),
		rec("P1", "G1", 1, 10),
		rec("P1", "G1", 2, -5),
		rec("P2", "G1", 1, 7),
	}

	t.Run("periodic", func(t *testing.T) {
		out := ToCumulative(in, domain.ActualsPeriodic)
		require.Len(t, out, 5)

		got := map[string][]float64{}
		for _, r := range out {
			got[r.ProjectID+"/"+r.CostCode.GCode] = append(got[r.ProjectID+"/"+r.CostCode.GCode], r.TotalActual)
		}
		assert.Equal(t, []float64{10, 10, 40}, got["P1/G1"])
		assert.Equal(t, []float64{5}, got["P1/G2"])
		assert.Equal(t, []float64{7}, got["P2/G1"])
		// input untouched
		assert.Equal(t, 30.0, in[0].TotalActual)
	})

	t.Run("cumulative", func(t *testing.T) {
		out := ToCumulative(in, domain.ActualsCumulative)
		assert.Equal(t, in, out)
	})
}

func TestToPeriodic_InvertsCumulative(t *testing.T) {
	in := []domain.ProjectPeriodRecord{
		rec("P1", "G1", 2, 30),
		rec("P1", "G1", 1, 10),
		rec("P1", "G2", 1, 5),
		rec("P1", "G1", 3, 45),
	}

	out := ToPeriodic(in)
	require.Len(t, out, 4)
	assert.Equal(t, []float64{10, 20, 15, 5}, []float64{
		out[0].TotalActual, out[1].TotalActual, out[2].TotalActual, out[3].TotalActual,
	})

	back := ToCumulative(out, domain.ActualsPeriodic)
	assert.Equal(t, []float64{10, 30, 45, 5}, []float64{
		back[0].TotalActual, back[1].TotalActual, back[2].TotalActual, back[3].TotalActual,
	})
}
