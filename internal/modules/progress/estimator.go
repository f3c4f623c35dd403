package progress

import (
	"github.com/manchuphon/Alert-Dashboard/internal/domain"
	"github.com/manchuphon/Alert-Dashboard/pkg/formulas"
	"github.com/rs/zerolog"
)

// Flag marks a data-quality correction applied during resolution
type Flag string

const (
	// FlagRatcheted means at least one period was raised to the prior period's value
	FlagRatcheted Flag = "ratcheted"
	// FlagClamped means at least one raw value fell outside [0, 100]
	FlagClamped Flag = "clamped"
	// FlagSynthetic means progress comes from the S-curve model
	FlagSynthetic Flag = "synthetic"
	// FlagNoProgressData means no strategy applied and progress is reported as 0
	FlagNoProgressData Flag = "no_progress_data"
	// FlagRegression means cumulative certified or submitted amounts decreased (a reversal)
	FlagRegression Flag = "regression"
)

// PeriodProgress is the resolved completion of one period
type PeriodProgress struct {
	Period    domain.Period `json:"period"`
	Raw       float64       `json:"raw"`     // value produced by the strategy before corrections
	Percent   float64       `json:"percent"` // clamped and ratcheted value
	Ratcheted bool          `json:"ratcheted"`
	// Regression is the drop masked by the ratchet, in percentage points.
	// Only set when the method is cumulative, i.e. the drop is a genuine reversal.
	Regression float64 `json:"regression,omitempty"`
}

// Resolution is the progress history of one project
type Resolution struct {
	ProjectID string           `json:"project_id"`
	Method    Method           `json:"method"`
	Periods   []PeriodProgress `json:"periods"`
	Flags     []Flag           `json:"flags,omitempty"`
}

// HasFlag reports whether the resolution carries the flag
func (r Resolution) HasFlag(flag Flag) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// PercentFor returns the resolved percent complete of a period
func (r Resolution) PercentFor(period domain.Period) (PeriodProgress, bool) {
	for _, p := range r.Periods {
		if p.Period == period {
			return p, true
		}
	}
	return PeriodProgress{}, false
}

// Estimator selects the first applicable strategy and enforces monotonic completion
type Estimator struct {
	strategies []Strategy
	log        zerolog.Logger
}

// NewEstimator creates an estimator. With no strategies the default priority order is used.
func NewEstimator(log zerolog.Logger, strategies ...Strategy) *Estimator {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Estimator{
		strategies: strategies,
		log:        log.With().Str("service", "progress_estimator").Logger(),
	}
}

// Select returns the first applicable strategy, or nil when none applies
func (e *Estimator) Select(s Series) Strategy {
	for _, strategy := range e.strategies {
		if strategy.Applicable(s) {
			return strategy
		}
	}
	return nil
}

// Resolve computes the percent complete history of a project series
func (e *Estimator) Resolve(s Series) Resolution {
	res := Resolution{ProjectID: s.ProjectID, Method: MethodNone}

	strategy := e.Select(s)
	if strategy == nil {
		res.Periods = make([]PeriodProgress, len(s.Periods))
		for i, p := range s.Periods {
			res.Periods[i] = PeriodProgress{Period: p.Period}
		}
		res.Flags = append(res.Flags, FlagNoProgressData)
		e.log.Warn().
			Str("project_id", s.ProjectID).
			Int("periods", len(s.Periods)).
			Msg("No progress source available, reporting 0% complete")
		return res
	}

	res.Method = strategy.Method()
	raw := strategy.Resolve(s)
	clamped, wasClamped := clampAll(raw)
	ratcheted, raised := Ratchet(clamped)

	res.Periods = make([]PeriodProgress, len(s.Periods))
	anyRaised, anyRegression := false, false
	for i, p := range s.Periods {
		pp := PeriodProgress{
			Period:    p.Period,
			Raw:       raw[i],
			Percent:   ratcheted[i],
			Ratcheted: raised[i],
		}
		if raised[i] {
			anyRaised = true
			if res.Method.Cumulative() {
				pp.Regression = ratcheted[i] - clamped[i]
				anyRegression = true
			}
		}
		res.Periods[i] = pp
	}

	if wasClamped {
		res.Flags = append(res.Flags, FlagClamped)
	}
	if anyRaised {
		res.Flags = append(res.Flags, FlagRatcheted)
	}
	if anyRegression {
		res.Flags = append(res.Flags, FlagRegression)
	}
	if res.Method.Synthetic() {
		res.Flags = append(res.Flags, FlagSynthetic)
	}

	e.log.Debug().
		Str("project_id", s.ProjectID).
		Str("method", res.Method.String()).
		Int("periods", len(res.Periods)).
		Bool("ratcheted", anyRaised).
		Msg("Resolved project progress")

	return res
}

// ResolveRecords builds the series of every project in records and resolves each one.
// Projects are resolved independently; the returned map is keyed by project id.
func (e *Estimator) ResolveRecords(records []domain.ProjectPeriodRecord) map[string]Resolution {
	projects := make(map[string]struct{})
	for _, r := range records {
		projects[r.ProjectID] = struct{}{}
	}

	out := make(map[string]Resolution, len(projects))
	for projectID := range projects {
		out[projectID] = e.Resolve(BuildSeries(projectID, records))
	}
	return out
}

// Ratchet makes a sequence non-decreasing by raising every value below the running maximum.
// raised[i] is true where a value was replaced.
func Ratchet(values []float64) (out []float64, raised []bool) {
	out = make([]float64, len(values))
	raised = make([]bool, len(values))
	for i, v := range values {
		if i > 0 && v < out[i-1] {
			out[i] = out[i-1]
			raised[i] = true
			continue
		}
		out[i] = v
	}
	return out, raised
}

func clampAll(values []float64) ([]float64, bool) {
	out := make([]float64, len(values))
	changed := false
	for i, v := range values {
		out[i] = formulas.ClampPercent(v)
		if out[i] != v {
			changed = true
		}
	}
	return out, changed
}
