package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriod_Before(t *testing.T) {
	tests := []struct {
		name     string
		a        Period
		b        Period
		expected bool
	}{
		{"earlier month same year", Period{2024, 3}, Period{2024, 4}, true},
		{"later month same year", Period{2024, 5}, Period{2024, 4}, false},
		{"earlier year later month", Period{2023, 12}, Period{2024, 1}, true},
		{"same period", Period{2024, 1}, Period{2024, 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.Before(tt.b))
		})
	}
}

func TestPeriod_End(t *testing.T) {
	end := Period{Year: 2024, Month: 2}.End()
	assert.Equal(t, 29, end.Day())
	assert.Equal(t, time.February, end.Month())
	assert.Equal(t, "2024-02", Period{Year: 2024, Month: 2}.String())
}

func TestSchedule_ElapsedFraction(t *testing.T) {
	s := Schedule{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
	}

	f, ok := s.ElapsedFraction(time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC))
	assert.True(t, ok)
	assert.InDelta(t, 0.5, f, 1e-9)

	f, ok = s.ElapsedFraction(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, ok)
	assert.Equal(t, 1.0, f)

	f, ok = s.ElapsedFraction(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, ok)
	assert.Equal(t, 0.0, f)

	_, ok = Schedule{Start: s.End, End: s.Start}.ElapsedFraction(s.End)
	assert.False(t, ok, "inverted window is unusable")
}

func TestProjectPeriodRecord_Validate(t *testing.T) {
	valid := ProjectPeriodRecord{ProjectID: "PRJ001", CostCode: CostCode{GCode: "G1"}, Period: Period{2024, 6}}
	assert.NoError(t, valid.Validate())

	noProject := valid
	noProject.ProjectID = ""
	assert.Error(t, noProject.Validate())

	noGCode := valid
	noGCode.CostCode.GCode = ""
	assert.Error(t, noGCode.Validate())

	badMonth := valid
	badMonth.Period.Month = 13
	assert.Error(t, badMonth.Validate())
}

func TestOptional(t *testing.T) {
	assert.Equal(t, 5.0, Some(5).Or(1))
	assert.Equal(t, 1.0, None().Or(1))
	assert.True(t, Some(1).Positive())
	assert.False(t, Some(0).Positive())
	assert.False(t, None().Positive())
}

func TestOptional_JSON(t *testing.T) {
	rec := ProjectPeriodRecord{ProjectID: "P1", Certificate: Some(250)}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"certificate":250`)
	assert.Contains(t, string(data), `"contract_value":null`)
	assert.NotContains(t, string(data), `"schedule"`)

	var got ProjectPeriodRecord
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, rec, got)
}

func TestCostCodeAndDisplayName(t *testing.T) {
	assert.Equal(t, "G1-S2", CostCode{GCode: "G1", SCode: "S2"}.String())
	assert.Equal(t, "G1", CostCode{GCode: "G1"}.String())
	assert.Equal(t, "Project PRJ9", ProjectPeriodRecord{ProjectID: "PRJ9"}.DisplayName())
	assert.Equal(t, "Tower A", ProjectPeriodRecord{ProjectID: "PRJ9", ProjectName: "Tower A"}.DisplayName())
}
