package records

import (
	"sort"

	"github.com/manchuphon/Alert-Dashboard/internal/domain"
)

// Dedupe keeps the last record for every key, preserving first-seen order.
// It returns the kept records and the number of replaced ones.
func Dedupe(recs []domain.ProjectPeriodRecord) ([]domain.ProjectPeriodRecord, int) {
	index := make(map[domain.Key]int, len(recs))
	out := make([]domain.ProjectPeriodRecord, 0, len(recs))
	replaced := 0
	for _, r := range recs {
		if i, ok := index[r.Key()]; ok {
			out[i] = r
			replaced++
			continue
		}
		index[r.Key()] = len(out)
		out = append(out, r)
	}
	return out, replaced
}

type lineKey struct {
	projectID string
	costCode  domain.CostCode
}

// ToCumulative converts periodic actuals into cumulative cost to date per cost line.
// Cumulative input is returned unchanged. The returned slice is a copy ordered by
// project, cost code and period.
func ToCumulative(recs []domain.ProjectPeriodRecord, mode domain.ActualsMode) []domain.ProjectPeriodRecord {
	out := make([]domain.ProjectPeriodRecord, len(recs))
	copy(out, recs)
	if mode != domain.ActualsPeriodic {
		return out
	}

	sortByLine(out)

	running := make(map[lineKey]float64)
	for i := range out {
		k := lineKey{out[i].ProjectID, out[i].CostCode}
		actual := out[i].TotalActual
		if actual < 0 {
			actual = 0
		}
		running[k] += actual
		out[i].TotalActual = running[k]
	}
	return out
}

// ToPeriodic recovers per-period actuals from cumulative cost to date per cost line.
// It is the inverse of ToCumulative in periodic mode.
func ToPeriodic(recs []domain.ProjectPeriodRecord) []domain.ProjectPeriodRecord {
	out := make([]domain.ProjectPeriodRecord, len(recs))
	copy(out, recs)
	sortByLine(out)

	previous := make(map[lineKey]float64)
	for i := range out {
		k := lineKey{out[i].ProjectID, out[i].CostCode}
		cumulative := out[i].TotalActual
		out[i].TotalActual = cumulative - previous[k]
		previous[k] = cumulative
	}
	return out
}

func sortByLine(recs []domain.ProjectPeriodRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.ProjectID != b.ProjectID {
			return a.ProjectID < b.ProjectID
		}
		if a.CostCode != b.CostCode {
			return a.CostCode.String() < b.CostCode.String()
		}
		return a.Period.Before(b.Period)
	})
}
