// Package progress resolves an authoritative percent complete per project period
// from competing data sources, then enforces that completion never decreases.
package progress

import (
	"sort"

	"github.com/manchuphon/Alert-Dashboard/internal/domain"
)

// PeriodInput aggregates one project period across its cost lines
type PeriodInput struct {
	Period domain.Period

	Certificate    float64
	HasCertificate bool
	Submit         float64
	HasSubmit      bool
	UpstreamBCWP   float64
	HasBCWP        bool
	Reported       float64 // budget-weighted mean of direct-reported progress
	HasReported    bool

	Budget float64 // sum of cost line budgets in the period
}

// Series is the ordered period history of one project
type Series struct {
	ProjectID     string
	Periods       []PeriodInput // increasing period order
	ContractValue domain.Optional
	BAC           float64 // sum of the latest budget of every cost line
}

// Denominator returns the value progress amounts are measured against:
// the contract value when known, otherwise the project budget.
func (s Series) Denominator() float64 {
	if s.ContractValue.Positive() {
		return s.ContractValue.Value
	}
	return s.BAC
}

// BuildSeries groups a project's records into ordered periods.
// Records for other projects are ignored.
func BuildSeries(projectID string, records []domain.ProjectPeriodRecord) Series {
	type accumulator struct {
		input          PeriodInput
		reportedSum    float64
		reportedWeight float64
		reportedCount  int
		reportedPlain  float64
	}

	type costLineBudget struct {
		period domain.Period
		budget float64
	}

	byPeriod := make(map[domain.Period]*accumulator)
	latestBudget := make(map[domain.CostCode]costLineBudget)
	series := Series{ProjectID: projectID}

	for _, r := range records {
		if r.ProjectID != projectID {
			continue
		}

		acc, ok := byPeriod[r.Period]
		if !ok {
			acc = &accumulator{input: PeriodInput{Period: r.Period}}
			byPeriod[r.Period] = acc
		}

		acc.input.Budget += r.TotalBudget
		if r.Certificate.Valid {
			acc.input.Certificate += r.Certificate.Value
			acc.input.HasCertificate = true
		}
		if r.ProgressSubmit.Valid {
			acc.input.Submit += r.ProgressSubmit.Value
			acc.input.HasSubmit = true
		}
		if r.UpstreamBCWP.Valid {
			acc.input.UpstreamBCWP += r.UpstreamBCWP.Value
			acc.input.HasBCWP = true
		}
		if r.ProgressPercentage.Valid {
			acc.reportedSum += r.ProgressPercentage.Value * r.TotalBudget
			acc.reportedWeight += r.TotalBudget
			acc.reportedPlain += r.ProgressPercentage.Value
			acc.reportedCount++
		}

		if !series.ContractValue.Valid && r.ContractValue.Positive() {
			series.ContractValue = r.ContractValue
		}

		prev, seen := latestBudget[r.CostCode]
		if !seen || !r.Period.Before(prev.period) {
			latestBudget[r.CostCode] = costLineBudget{period: r.Period, budget: r.TotalBudget}
		}
	}

	// Sum in a fixed order so repeated runs produce identical floats
	codes := make([]domain.CostCode, 0, len(latestBudget))
	for code := range latestBudget {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i].String() < codes[j].String() })
	for _, code := range codes {
		series.BAC += latestBudget[code].budget
	}

	series.Periods = make([]PeriodInput, 0, len(byPeriod))
	for _, acc := range byPeriod {
		if acc.reportedCount > 0 {
			acc.input.HasReported = true
			if acc.reportedWeight > 0 {
				acc.input.Reported = acc.reportedSum / acc.reportedWeight
			} else {
				acc.input.Reported = acc.reportedPlain / float64(acc.reportedCount)
			}
		}
		series.Periods = append(series.Periods, acc.input)
	}
	sort.Slice(series.Periods, func(i, j int) bool {
		return series.Periods[i].Period.Before(series.Periods[j].Period)
	})

	return series
}
