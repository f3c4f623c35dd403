// Package evaluation runs the engine over the stored records: feature build, alert evaluation and KPI roll-up.
package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/manchuphon/Alert-Dashboard/internal/domain"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/alerts"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/features"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/kpi"
	"github.com/rs/zerolog"
)

// Evaluation sources recorded on stored runs
const (
	SourceAPI       = "api"
	SourceScheduler = "scheduler"
	SourceCLI       = "cli"
)

// RecordSource supplies the record snapshot of a pass
type RecordSource interface {
	All(ctx context.Context) ([]domain.ProjectPeriodRecord, error)
	Project(ctx context.Context, projectID string) ([]domain.ProjectPeriodRecord, error)
}

// RunStore persists evaluation runs
type RunStore interface {
	Save(ctx context.Context, run alerts.Run) (string, error)
}

// Recorder receives pass metrics
type Recorder interface {
	ObserveEvaluation(source string, rows, skipped int, bySeverity map[string]int, took time.Duration)
	EvaluationFailed(source string)
}

// Outcome is the in-memory result of one pass over a snapshot
type Outcome struct {
	Features   features.Result   `json:"features"`
	Evaluation alerts.Evaluation `json:"evaluation"`
}

// Service runs evaluation passes. It keeps no state between passes.
type Service struct {
	records    RecordSource
	builder    *features.Builder
	evaluator  *alerts.Evaluator
	aggregator *kpi.Aggregator
	runs       RunStore
	metrics    Recorder
	log        zerolog.Logger
}

// NewService creates an evaluation service. runs and metrics may be nil.
func NewService(
	records RecordSource,
	builder *features.Builder,
	evaluator *alerts.Evaluator,
	aggregator *kpi.Aggregator,
	runs RunStore,
	metrics Recorder,
	log zerolog.Logger,
) *Service {
	return &Service{
		records:    records,
		builder:    builder,
		evaluator:  evaluator,
		aggregator: aggregator,
		runs:       runs,
		metrics:    metrics,
		log:        log.With().Str("service", "evaluation").Logger(),
	}
}

// Analyze builds features and evaluates alerts over a record snapshot
func (s *Service) Analyze(recs []domain.ProjectPeriodRecord) Outcome {
	result := s.builder.Build(recs)
	return Outcome{
		Features:   result,
		Evaluation: s.evaluator.Evaluate(result.Rows),
	}
}

// Evaluate runs a pass over every stored record and stores it as a run.
// Without a run store the run is returned unsaved with an empty id.
func (s *Service) Evaluate(ctx context.Context, source string) (*alerts.Run, error) {
	start := time.Now()

	recs, err := s.records.All(ctx)
	if err != nil {
		s.failed(source)
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	out := s.Analyze(recs)
	run := alerts.Run{
		CreatedAt:     start.UTC().Truncate(time.Millisecond),
		Source:        source,
		RowsEvaluated: len(out.Features.Rows),
		RowsSkipped:   out.Features.Skipped,
		Summary:       out.Evaluation.Summary,
		Thresholds:    s.evaluator.Thresholds(),
		Alerts:        out.Evaluation.Alerts,
	}

	if s.runs != nil {
		id, err := s.runs.Save(ctx, run)
		if err != nil {
			s.failed(source)
			return nil, fmt.Errorf("failed to store run: %w", err)
		}
		run.ID = id
	}

	took := time.Since(start)
	if s.metrics != nil {
		s.metrics.ObserveEvaluation(source, run.RowsEvaluated, run.RowsSkipped, bySeverity(run.Summary), took)
	}

	s.log.Info().
		Str("run_id", run.ID).
		Str("source", source).
		Int("rows", run.RowsEvaluated).
		Int("skipped", run.RowsSkipped).
		Int("alerts", run.Summary.Total).
		Dur("took", took).
		Msg("Evaluation pass complete")

	return &run, nil
}

func (s *Service) failed(source string) {
	if s.metrics != nil {
		s.metrics.EvaluationFailed(source)
	}
}

func bySeverity(summary alerts.Summary) map[string]int {
	out := make(map[string]int, len(alerts.Severities))
	for _, sev := range alerts.Severities {
		out[sev.String()] = summary.BySeverity[sev]
	}
	return out
}

func (s *Service) rows(ctx context.Context, projectID string) (features.Result, error) {
	var recs []domain.ProjectPeriodRecord
	var err error
	if projectID == "" {
		recs, err = s.records.All(ctx)
	} else {
		recs, err = s.records.Project(ctx, projectID)
	}
	if err != nil {
		return features.Result{}, fmt.Errorf("failed to load records: %w", err)
	}
	return s.builder.Build(recs), nil
}

// Features returns the feature table of one project, or of every project for an empty id
func (s *Service) Features(ctx context.Context, projectID string) (features.Result, error) {
	return s.rows(ctx, projectID)
}

// ProjectKPI returns the KPI view of one project. Unknown projects return the empty default.
func (s *Service) ProjectKPI(ctx context.Context, projectID string) (kpi.ProjectKPI, error) {
	result, err := s.rows(ctx, projectID)
	if err != nil {
		return kpi.ProjectKPI{}, err
	}
	return s.aggregator.Project(projectID, result.Rows), nil
}

// ProjectKPIs returns the KPI view of every project
func (s *Service) ProjectKPIs(ctx context.Context) ([]kpi.ProjectKPI, error) {
	result, err := s.rows(ctx, "")
	if err != nil {
		return nil, err
	}
	return s.aggregator.Projects(result.Rows), nil
}

// Portfolio returns the portfolio roll-up
func (s *Service) Portfolio(ctx context.Context) (kpi.PortfolioSummary, error) {
	result, err := s.rows(ctx, "")
	if err != nil {
		return kpi.PortfolioSummary{}, err
	}
	return s.aggregator.Portfolio(result.Rows), nil
}

// ProjectSummaries returns the project summary table with alert counts from a fresh evaluation
func (s *Service) ProjectSummaries(ctx context.Context) ([]kpi.ProjectSummary, error) {
	result, err := s.rows(ctx, "")
	if err != nil {
		return nil, err
	}
	ev := s.evaluator.Evaluate(result.Rows)
	return s.aggregator.ProjectSummaries(result.Rows, ev.Assessments), nil
}

// CostCodeSummaries returns the cost code summary table with alert counts from a fresh evaluation
func (s *Service) CostCodeSummaries(ctx context.Context) ([]kpi.CostCodeSummary, error) {
	result, err := s.rows(ctx, "")
	if err != nil {
		return nil, err
	}
	ev := s.evaluator.Evaluate(result.Rows)
	return s.aggregator.CostCodeSummaries(result.Rows, ev.Assessments), nil
}
