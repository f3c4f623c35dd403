package di

import (
	"fmt"

	"github.com/manchuphon/Alert-Dashboard/internal/config"
	"github.com/manchuphon/Alert-Dashboard/internal/metrics"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/alerts"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/evaluation"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/features"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/kpi"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/progress"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/records"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the repositories over the open databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container.RecordsDB == nil || container.AlertsDB == nil {
		return fmt.Errorf("databases must be initialized before repositories")
	}
	container.RecordsRepo = records.NewRepository(container.RecordsDB.Conn(), log)
	container.RunRepo = alerts.NewRunRepository(container.AlertsDB.Conn(), log)
	return nil
}

// InitializeServices creates the engine and its services.
// The policy is validated here; an invalid policy is a wiring error.
func InitializeServices(container *Container, cfg *config.Config, policy config.Policy, log zerolog.Logger) error {
	container.Policy = policy
	container.RecordService = records.NewService(container.RecordsRepo, cfg.ActualsMode, log)
	container.Estimator = progress.NewEstimator(log)

	builder, err := features.NewBuilder(policy.Constants, container.Estimator, features.NewWorkerPool(cfg.Workers), log)
	if err != nil {
		return fmt.Errorf("failed to create feature builder: %w", err)
	}
	container.FeatureBuilder = builder

	evaluator, err := alerts.NewEvaluator(policy.Thresholds, log)
	if err != nil {
		return fmt.Errorf("failed to create alert evaluator: %w", err)
	}
	container.Evaluator = evaluator

	container.Aggregator = kpi.NewAggregator(cfg.TrendLength, log)
	container.Metrics = metrics.NewRecorder()
	container.EvaluationService = evaluation.NewService(
		container.RecordService,
		container.FeatureBuilder,
		container.Evaluator,
		container.Aggregator,
		container.RunRepo,
		container.Metrics,
		log,
	)

	log.Info().
		Str("actuals_mode", string(container.RecordService.Mode())).
		Str("eac_method", string(policy.Thresholds.ForecastEACMethod)).
		Msg("Services initialized")
	return nil
}
