package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/manchuphon/Alert-Dashboard/internal/modules/alerts"
	"github.com/rs/zerolog"
)

// Evaluator runs one evaluation pass
type Evaluator interface {
	Evaluate(ctx context.Context, source string) (*alerts.Run, error)
}

// EvaluateAlertsConfig holds the dependencies of EvaluateAlertsJob
type EvaluateAlertsConfig struct {
	Evaluator Evaluator
	Timeout   time.Duration // zero means no timeout
	Log       zerolog.Logger
}

// EvaluateAlertsJob stores a fresh evaluation run on every tick
type EvaluateAlertsJob struct {
	evaluator Evaluator
	timeout   time.Duration
	log       zerolog.Logger
}

// NewEvaluateAlertsJob creates a new EvaluateAlertsJob
func NewEvaluateAlertsJob(cfg EvaluateAlertsConfig) *EvaluateAlertsJob {
	return &EvaluateAlertsJob{
		evaluator: cfg.Evaluator,
		timeout:   cfg.Timeout,
		log:       cfg.Log.With().Str("job", "evaluate_alerts").Logger(),
	}
}

// Name returns the job name
func (j *EvaluateAlertsJob) Name() string {
	return "evaluate_alerts"
}

// Run executes one evaluation pass
func (j *EvaluateAlertsJob) Run() error {
	if j.evaluator == nil {
		j.log.Warn().Msg("Evaluator not configured, skipping")
		return nil
	}

	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	run, err := j.evaluator.Evaluate(ctx, "scheduler")
	if err != nil {
		return fmt.Errorf("scheduled evaluation failed: %w", err)
	}

	critical := run.Summary.BySeverity[alerts.SeverityCritical]
	event := j.log.Info()
	if critical > 0 {
		event = j.log.Warn()
	}
	event.
		Str("run_id", run.ID).
		Int("alerts", run.Summary.Total).
		Int("critical", critical).
		Msg("Scheduled evaluation stored")

	return nil
}
