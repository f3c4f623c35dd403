package formulas

import (
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// WeightedMean calculates the weighted mean, falling back to the plain mean when weights sum to zero
func WeightedMean(data, weights []float64) float64 {
	if len(data) == 0 || len(data) != len(weights) {
		return Mean(data)
	}
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return Mean(data)
	}
	return stat.Mean(data, weights)
}

// DefinedValues returns the values of all defined measures
func DefinedValues(measures []Measure) []float64 {
	values := make([]float64, 0, len(measures))
	for _, m := range measures {
		if m.Defined() {
			values = append(values, m.Value)
		}
	}
	return values
}

// MeanMeasure averages the defined measures only. Undefined when none are defined.
func MeanMeasure(measures []Measure) Measure {
	values := DefinedValues(measures)
	if len(values) == 0 {
		return Undefined(StateUndefined)
	}
	return Measured(Mean(values))
}

// Sum adds all values
func Sum(data []float64) float64 {
	total := 0.0
	for _, v := range data {
		total += v
	}
	return total
}
