package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 2.5, Mean([]float64{1, 2, 3, 4}), 1e-9)
}

func TestWeightedMean(t *testing.T) {
	tests := []struct {
		name     string
		data     []float64
		weights  []float64
		expected float64
	}{
		{"weighted", []float64{10, 50}, []float64{3, 1}, 20},
		{"zero weights fall back to mean", []float64{10, 50}, []float64{0, 0}, 30},
		{"mismatched lengths fall back to mean", []float64{10, 50}, []float64{1}, 30},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, WeightedMean(tt.data, tt.weights), 1e-9)
		})
	}
}

func TestMeanMeasure_NoDefinedValues(t *testing.T) {
	m := MeanMeasure([]Measure{Undefined(StateUndefinedFavorable)})
	assert.False(t, m.Defined())
}

func TestCalculateEMA(t *testing.T) {
	assert.Nil(t, CalculateEMA(nil, 3))

	short := CalculateEMA([]float64{1, 2}, 3)
	require.NotNil(t, short)
	assert.InDelta(t, 1.5, *short, 1e-9)

	constant := CalculateEMA([]float64{0.9, 0.9, 0.9, 0.9, 0.9, 0.9}, 3)
	require.NotNil(t, constant)
	assert.InDelta(t, 0.9, *constant, 1e-9)
}

func TestCalculateSMA(t *testing.T) {
	assert.Nil(t, CalculateSMA([]float64{1}, 2))

	sma := CalculateSMA([]float64{1, 2, 3, 4}, 2)
	require.NotNil(t, sma)
	assert.InDelta(t, 3.5, *sma, 1e-9)
}

func TestMeasureTrend_SkipsUndefined(t *testing.T) {
	trend := MeasureTrend([]Measure{Measured(1), Undefined(StateUndefinedFavorable), Measured(1)}, 2)
	require.NotNil(t, trend)
	assert.InDelta(t, 1.0, *trend, 1e-9)
}
