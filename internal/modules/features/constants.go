package features

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ScheduleBasis selects how the expected percent complete of a period is derived
// when the record has no planned schedule window.
type ScheduleBasis string

const (
	// ScheduleCalendar assumes a linear plan over ScheduleMonths: month / ScheduleMonths * 100
	ScheduleCalendar ScheduleBasis = "calendar"
	// ScheduleProgressProxy substitutes the resolved percent complete for the expected percent
	ScheduleProgressProxy ScheduleBasis = "progress_proxy"
)

// Constants holds every tunable number of the feature formulas.
// Values are copied into the builder at construction and never mutated afterwards.
type Constants struct {
	CostEfficiencyWeight     float64 `yaml:"cost_efficiency_weight" json:"cost_efficiency_weight" validate:"gte=0,lte=1"`
	ProgressEfficiencyWeight float64 `yaml:"progress_efficiency_weight" json:"progress_efficiency_weight" validate:"gte=0,lte=1"`
	CPIWeight                float64 `yaml:"cpi_weight" json:"cpi_weight" validate:"gte=0,lte=1"`
	EfficiencyCap            float64 `yaml:"efficiency_cap" json:"efficiency_cap" validate:"gt=0"`     // ratios are clamped to [0, cap] before blending
	EfficiencyScale          float64 `yaml:"efficiency_scale" json:"efficiency_scale" validate:"gt=0"` // 50 maps a 0..2 blend onto 0..100

	OverrunRiskRate    float64       `yaml:"overrun_risk_rate" json:"overrun_risk_rate" validate:"gte=0"` // risk points per utilization point above 100
	UnderExecutionBase float64       `yaml:"under_execution_base" json:"under_execution_base" validate:"gte=0,lte=100"`
	UnderExecutionRate float64       `yaml:"under_execution_rate" json:"under_execution_rate" validate:"gte=0"`
	ScheduleRiskRate   float64       `yaml:"schedule_risk_rate" json:"schedule_risk_rate" validate:"gte=0"`
	CostRiskWeight     float64       `yaml:"cost_risk_weight" json:"cost_risk_weight" validate:"gte=0,lte=1"`
	ScheduleRiskWeight float64       `yaml:"schedule_risk_weight" json:"schedule_risk_weight" validate:"gte=0,lte=1"`
	BurnGrowth         float64       `yaml:"burn_growth" json:"burn_growth" validate:"gt=0"`
	ForecastMonths     int           `yaml:"forecast_months" json:"forecast_months" validate:"gte=1,lte=36"`
	ScheduleMonths     int           `yaml:"schedule_months" json:"schedule_months" validate:"gte=1,lte=120"`
	ScheduleBasis      ScheduleBasis `yaml:"schedule_basis" json:"schedule_basis" validate:"oneof=calendar progress_proxy"`

	HealthCritical float64 `yaml:"health_critical" json:"health_critical" validate:"gtfield=HealthWarning,lte=100"`
	HealthWarning  float64 `yaml:"health_warning" json:"health_warning" validate:"gtfield=HealthCaution"`
	HealthCaution  float64 `yaml:"health_caution" json:"health_caution" validate:"gte=0"`

	PerformanceExcellent float64 `yaml:"performance_excellent" json:"performance_excellent" validate:"gtfield=PerformanceGood,lte=100"`
	PerformanceGood      float64 `yaml:"performance_good" json:"performance_good" validate:"gtfield=PerformanceFair"`
	PerformanceFair      float64 `yaml:"performance_fair" json:"performance_fair" validate:"gte=0"`
}

// DefaultConstants returns the standard feature formula constants
func DefaultConstants() Constants {
	return Constants{
		CostEfficiencyWeight:     0.4,
		ProgressEfficiencyWeight: 0.4,
		CPIWeight:                0.2,
		EfficiencyCap:            2,
		EfficiencyScale:          50,

		OverrunRiskRate:    2,
		UnderExecutionBase: 50,
		UnderExecutionRate: 0.5,
		ScheduleRiskRate:   2,
		CostRiskWeight:     0.6,
		ScheduleRiskWeight: 0.4,
		BurnGrowth:         1.1,
		ForecastMonths:     3,
		ScheduleMonths:     12,
		ScheduleBasis:      ScheduleCalendar,

		HealthCritical: 70,
		HealthWarning:  40,
		HealthCaution:  20,

		PerformanceExcellent: 80,
		PerformanceGood:      60,
		PerformanceFair:      40,
	}
}

// Validate checks field ranges and threshold ordering
func (c Constants) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid feature constants: %w", err)
	}
	return nil
}

// HealthStatus classifies a record by overall risk
type HealthStatus string

const (
	StatusCritical HealthStatus = "Critical"
	StatusWarning  HealthStatus = "Warning"
	StatusCaution  HealthStatus = "Caution"
	StatusHealthy  HealthStatus = "Healthy"
)

// PerformanceCategory classifies a record by efficiency score
type PerformanceCategory string

const (
	CategoryExcellent PerformanceCategory = "Excellent"
	CategoryGood      PerformanceCategory = "Good"
	CategoryFair      PerformanceCategory = "Fair"
	CategoryPoor      PerformanceCategory = "Poor"
)

// Health maps an overall risk score to a health status
func (c Constants) Health(overallRisk float64) HealthStatus {
	switch {
	case overallRisk >= c.HealthCritical:
		return StatusCritical
	case overallRisk >= c.HealthWarning:
		return StatusWarning
	case overallRisk >= c.HealthCaution:
		return StatusCaution
	default:
		return StatusHealthy
	}
}

// Performance maps an efficiency score to a performance category
func (c Constants) Performance(efficiency float64) PerformanceCategory {
	switch {
	case efficiency >= c.PerformanceExcellent:
		return CategoryExcellent
	case efficiency >= c.PerformanceGood:
		return CategoryGood
	case efficiency >= c.PerformanceFair:
		return CategoryFair
	default:
		return CategoryPoor
	}
}
