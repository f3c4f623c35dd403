package alerts

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// EACMethod selects the estimate at completion the forecast check relies on
type EACMethod string

const (
	// EACByCPI assumes the current cost performance holds: budget / CPI
	EACByCPI EACMethod = "cpi"
	// EACByRemaining assumes remaining work is done at budget: ACWP + (budget - BCWP)
	EACByRemaining EACMethod = "remaining"
)

// RisingBand triggers when a value exceeds Trigger; High and Critical grade the excess
type RisingBand struct {
	Trigger  float64 `yaml:"trigger" json:"trigger"`
	High     float64 `yaml:"high" json:"high" validate:"gtefield=Trigger"`
	Critical float64 `yaml:"critical" json:"critical" validate:"gtfield=High"`
}

// Grade returns the severity of a value that already exceeds Trigger
func (b RisingBand) Grade(v float64) Severity {
	switch {
	case v > b.Critical:
		return SeverityCritical
	case v > b.High:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// FallingBand triggers when a value drops below Trigger
type FallingBand struct {
	Trigger  float64 `yaml:"trigger" json:"trigger"`
	High     float64 `yaml:"high" json:"high" validate:"ltefield=Trigger"`
	Critical float64 `yaml:"critical" json:"critical" validate:"ltfield=High"`
}

// Grade returns the severity of a value that is already below Trigger
func (b FallingBand) Grade(v float64) Severity {
	switch {
	case v < b.Critical:
		return SeverityCritical
	case v < b.High:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// Thresholds is the alert policy of one evaluation run.
// The evaluator keeps its own copy, so callers may reuse or modify theirs freely.
type Thresholds struct {
	CostOverrun   RisingBand  `yaml:"cost_overrun" json:"cost_overrun"`     // budget utilization %
	ProgressLag   RisingBand  `yaml:"progress_lag" json:"progress_lag"`     // actual cost / earned value %
	ScheduleDelay RisingBand  `yaml:"schedule_delay" json:"schedule_delay"` // expected % minus actual %
	LowEfficiency FallingBand `yaml:"low_efficiency" json:"low_efficiency"` // efficiency score

	ProfitMarginPct       float64   `yaml:"profit_margin_pct" json:"profit_margin_pct" validate:"lte=0"`
	HighVariancePct       float64   `yaml:"high_variance_pct" json:"high_variance_pct" validate:"gt=0"`
	CashFlowContractRatio float64   `yaml:"cash_flow_contract_ratio" json:"cash_flow_contract_ratio" validate:"gt=0"`
	CashFlowBudgetRatio   float64   `yaml:"cash_flow_budget_ratio" json:"cash_flow_budget_ratio" validate:"gt=0"`
	ForecastOverrunRatio  float64   `yaml:"forecast_overrun_ratio" json:"forecast_overrun_ratio" validate:"gte=1"`
	ForecastEACMethod     EACMethod `yaml:"forecast_eac_method" json:"forecast_eac_method" validate:"oneof=cpi remaining"`
	RegressionMinPoints   float64   `yaml:"regression_min_points" json:"regression_min_points" validate:"gte=0"`
}

// DefaultThresholds returns the standard alert policy
func DefaultThresholds() Thresholds {
	return Thresholds{
		CostOverrun:   RisingBand{Trigger: 100, High: 115, Critical: 130},
		ProgressLag:   RisingBand{Trigger: 150, High: 200, Critical: 250},
		ScheduleDelay: RisingBand{Trigger: 20, High: 35, Critical: 50},
		LowEfficiency: FallingBand{Trigger: 40, High: 30, Critical: 20},

		ProfitMarginPct:       -10,
		HighVariancePct:       25,
		CashFlowContractRatio: 0.3,
		CashFlowBudgetRatio:   0.5,
		ForecastOverrunRatio:  1.15,
		ForecastEACMethod:     EACByCPI,
		RegressionMinPoints:   0,
	}
}

// Validate checks ranges and band ordering
func (t Thresholds) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid alert thresholds: %w", err)
	}
	return nil
}
