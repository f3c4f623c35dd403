// Package formulas holds the pure earned-value and statistics formulas used by the engine.
// Every function is total: degenerate inputs map to a documented Measure state instead of NaN or Inf.
package formulas

import "math"

// Clamp limits v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// ClampPercent limits a percentage to [0, 100]
func ClampPercent(pct float64) float64 {
	return Clamp(pct, 0, 100)
}

// BCWP calculates earned value (Budgeted Cost of Work Performed)
//
// Formula: budget * (percentComplete / 100), percentComplete clamped to [0, 100]
func BCWP(budget, percentComplete float64) float64 {
	return budget * (ClampPercent(percentComplete) / 100)
}

// ACWP is the actual cost of work performed, i.e. the cumulative actual cost to date
func ACWP(actualCost float64) float64 {
	return actualCost
}

// BCWS calculates planned value (Budgeted Cost of Work Scheduled)
//
// Formula: budget * (expectedPercent / 100)
func BCWS(budget, expectedPercent float64) float64 {
	return budget * (ClampPercent(expectedPercent) / 100)
}

// PerformanceIndex divides earned value by a cost or schedule baseline.
//
//	denominator > 0:                 numerator / denominator
//	denominator == 0, numerator == 0: neutral 1.0
//	denominator == 0, numerator > 0:  undefined-favorable (no arithmetic value)
func PerformanceIndex(numerator, denominator float64) Measure {
	if denominator > 0 {
		return Measured(numerator / denominator)
	}
	if numerator <= 0 {
		return Neutral()
	}
	return Undefined(StateUndefinedFavorable)
}

// CPI calculates the Cost Performance Index: BCWP / ACWP
func CPI(bcwp, acwp float64) Measure {
	return PerformanceIndex(bcwp, acwp)
}

// SPI calculates the Schedule Performance Index: BCWP / BCWS
func SPI(bcwp, bcws float64) Measure {
	return PerformanceIndex(bcwp, bcws)
}

// CostVariance calculates CV = BCWP - ACWP (positive = under budget)
func CostVariance(bcwp, acwp float64) float64 {
	return bcwp - acwp
}

// ScheduleVariance calculates SV = BCWP - BCWS (positive = ahead of schedule)
func ScheduleVariance(bcwp, bcws float64) float64 {
	return bcwp - bcws
}

// EACByCPI estimates cost at completion assuming the current CPI holds: budget / CPI.
// Undefined when CPI is zero or has no arithmetic value.
func EACByCPI(budget float64, cpi Measure) Measure {
	if !cpi.Defined() || cpi.Value <= 0 {
		return Undefined(StateUndefined)
	}
	return Measured(budget / cpi.Value)
}

// EACByRemaining estimates cost at completion assuming the remaining work is done at budget:
// ACWP + (budget - BCWP). Floors at ACWP once earned value exceeds budget.
func EACByRemaining(budget, acwp, bcwp float64) float64 {
	if bcwp > budget {
		return acwp
	}
	return acwp + (budget - bcwp)
}

// VAC calculates Variance at Completion: budget - EAC. Inherits EAC's undefined state.
func VAC(budget float64, eac Measure) Measure {
	if !eac.Defined() {
		return Undefined(eac.State)
	}
	return Measured(budget - eac.Value)
}

// TCPI calculates the To-Complete Performance Index: (budget - BCWP) / (budget - ACWP)
//
// When no budget remains (denominator <= 0) the index is unbounded if work remains, otherwise 0.
func TCPI(budget, bcwp, acwp float64) Measure {
	workRemaining := budget - bcwp
	budgetRemaining := budget - acwp
	if budgetRemaining <= 0 {
		if workRemaining > 0 {
			return Undefined(StateUnbounded)
		}
		return Measured(0)
	}
	return Measured(workRemaining / budgetRemaining)
}

// Utilization returns actual / budget * 100, or 0 when budget is not positive
func Utilization(actual, budget float64) float64 {
	if budget <= 0 {
		return 0
	}
	return actual / budget * 100
}

// CostVariancePct returns CV / BCWP * 100, or 0 when BCWP is not positive
func CostVariancePct(costVariance, bcwp float64) float64 {
	if bcwp <= 0 {
		return 0
	}
	return costVariance / bcwp * 100
}

// SafeRatio returns numerator / denominator, or fallback when denominator is not positive
func SafeRatio(numerator, denominator, fallback float64) float64 {
	if denominator <= 0 {
		return fallback
	}
	return numerator / denominator
}

// SCurve returns the idealized cumulative completion percentage at t in [0, 1]:
// 100 * (3t^2 - 2t^3)
func SCurve(t float64) float64 {
	t = Clamp(t, 0, 1)
	return 100 * (3*t*t - 2*t*t*t)
}
