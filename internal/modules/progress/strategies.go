package progress

import (
	"github.com/manchuphon/Alert-Dashboard/pkg/formulas"
)

// Method names the data source percent complete was resolved from
type Method string

const (
	MethodCertificate  Method = "certificate"
	MethodSubmission   Method = "submission"
	MethodBCWPRatio    Method = "bcwp_ratio"
	MethodDirectReport Method = "direct_report"
	MethodSCurve       Method = "s_curve"
	MethodNone         Method = "none"
)

// String returns the string representation of the method
func (m Method) String() string {
	return string(m)
}

// Synthetic reports whether the method models progress instead of measuring it
func (m Method) Synthetic() bool {
	return m == MethodSCurve
}

// Cumulative reports whether the method accumulates period amounts.
// A decrease under these methods means an amount was reversed.
func (m Method) Cumulative() bool {
	return m == MethodCertificate || m == MethodSubmission
}

// Strategy is one candidate source of percent complete.
// Applicable must be checked before Resolve; Resolve returns one raw value per period.
type Strategy interface {
	Method() Method
	Applicable(s Series) bool
	Resolve(s Series) []float64
}

// DefaultStrategies returns the sources in priority order:
// certificate > submission > BCWP ratio > direct report > S-curve
func DefaultStrategies() []Strategy {
	return []Strategy{
		CertificateStrategy{},
		SubmissionStrategy{},
		BCWPRatioStrategy{},
		DirectReportStrategy{},
		SCurveStrategy{},
	}
}

// cumulativeAmount turns per-period amounts into cumulative percent of the denominator
func cumulativeAmount(s Series, amount func(PeriodInput) (float64, bool)) []float64 {
	denominator := s.Denominator()
	out := make([]float64, len(s.Periods))
	running := 0.0
	for i, p := range s.Periods {
		if v, ok := amount(p); ok {
			running += v
		}
		out[i] = running / denominator * 100
	}
	return out
}

// anyPositiveCumulative reports whether the running sum of an amount is ever positive
func anyPositiveCumulative(s Series, amount func(PeriodInput) (float64, bool)) bool {
	running := 0.0
	for _, p := range s.Periods {
		if v, ok := amount(p); ok {
			running += v
		}
		if running > 0 {
			return true
		}
	}
	return false
}

func certificateAmount(p PeriodInput) (float64, bool) { return p.Certificate, p.HasCertificate }
func submitAmount(p PeriodInput) (float64, bool)      { return p.Submit, p.HasSubmit }

// CertificateStrategy measures progress by cumulative certified amounts
type CertificateStrategy struct{}

func (CertificateStrategy) Method() Method { return MethodCertificate }

func (CertificateStrategy) Applicable(s Series) bool {
	return s.Denominator() > 0 && anyPositiveCumulative(s, certificateAmount)
}

func (CertificateStrategy) Resolve(s Series) []float64 {
	return cumulativeAmount(s, certificateAmount)
}

// SubmissionStrategy measures progress by cumulative submitted claims
type SubmissionStrategy struct{}

func (SubmissionStrategy) Method() Method { return MethodSubmission }

func (SubmissionStrategy) Applicable(s Series) bool {
	return s.Denominator() > 0 && anyPositiveCumulative(s, submitAmount)
}

func (SubmissionStrategy) Resolve(s Series) []float64 {
	return cumulativeAmount(s, submitAmount)
}

// BCWPRatioStrategy derives progress from earned value reported upstream: bcwp / budget * 100
type BCWPRatioStrategy struct{}

func (BCWPRatioStrategy) Method() Method { return MethodBCWPRatio }

func (BCWPRatioStrategy) Applicable(s Series) bool {
	if s.BAC <= 0 {
		return false
	}
	for _, p := range s.Periods {
		if p.HasBCWP {
			return true
		}
	}
	return false
}

func (BCWPRatioStrategy) Resolve(s Series) []float64 {
	out := make([]float64, len(s.Periods))
	for i, p := range s.Periods {
		if !p.HasBCWP {
			continue
		}
		budget := p.Budget
		if budget <= 0 {
			budget = s.BAC
		}
		out[i] = p.UpstreamBCWP / budget * 100
	}
	return out
}

// DirectReportStrategy uses the progress percentage reported with each record
type DirectReportStrategy struct{}

func (DirectReportStrategy) Method() Method { return MethodDirectReport }

func (DirectReportStrategy) Applicable(s Series) bool {
	for _, p := range s.Periods {
		if p.HasReported {
			return true
		}
	}
	return false
}

func (DirectReportStrategy) Resolve(s Series) []float64 {
	out := make([]float64, len(s.Periods))
	for i, p := range s.Periods {
		if p.HasReported {
			out[i] = p.Reported
		}
	}
	return out
}

// SCurveStrategy models progress with 100 * (3t^2 - 2t^3), t = period index / total periods.
// It represents an idealized trajectory, not measured fact.
type SCurveStrategy struct{}

func (SCurveStrategy) Method() Method { return MethodSCurve }

func (SCurveStrategy) Applicable(s Series) bool {
	return len(s.Periods) > 0
}

func (SCurveStrategy) Resolve(s Series) []float64 {
	n := len(s.Periods)
	out := make([]float64, n)
	for i := range s.Periods {
		out[i] = formulas.SCurve(float64(i+1) / float64(n))
	}
	return out
}
