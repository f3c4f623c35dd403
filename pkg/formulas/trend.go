package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// CalculateEMA returns the latest Exponential Moving Average of a series.
// Falls back to the simple mean when the series is shorter than length.
// Returns nil for an empty series.
func CalculateEMA(values []float64, length int) *float64 {
	if len(values) == 0 {
		return nil
	}
	if length < 2 || len(values) < length {
		mean := Mean(values)
		return &mean
	}

	ema := talib.Ema(values, length)
	if len(ema) > 0 && !math.IsNaN(ema[len(ema)-1]) {
		result := ema[len(ema)-1]
		return &result
	}

	mean := Mean(values[len(values)-length:])
	return &mean
}

// CalculateSMA returns the latest Simple Moving Average, or nil with insufficient data
func CalculateSMA(values []float64, length int) *float64 {
	if length < 1 || len(values) < length {
		return nil
	}

	sma := talib.Sma(values, length)
	if len(sma) > 0 && !math.IsNaN(sma[len(sma)-1]) {
		result := sma[len(sma)-1]
		return &result
	}
	return nil
}

// MeasureTrend computes the EMA over the defined measures of a period series
func MeasureTrend(series []Measure, length int) *float64 {
	return CalculateEMA(DefinedValues(series), length)
}
