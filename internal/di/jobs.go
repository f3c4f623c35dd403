package di

import (
	"fmt"
	"time"

	"github.com/manchuphon/Alert-Dashboard/internal/config"
	"github.com/manchuphon/Alert-Dashboard/internal/scheduler"
	"github.com/rs/zerolog"
)

// evaluationTimeout bounds one scheduled evaluation pass
const evaluationTimeout = 5 * time.Minute

// RegisterJobs creates the background jobs and registers them on a new scheduler.
// The scheduler is stored on the container but not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container.EvaluationService == nil {
		return nil, fmt.Errorf("services must be initialized before jobs")
	}

	sched := scheduler.New(log)

	jobs := &JobInstances{
		EvaluateAlerts: scheduler.NewEvaluateAlertsJob(scheduler.EvaluateAlertsConfig{
			Evaluator: container.EvaluationService,
			Timeout:   evaluationTimeout,
			Log:       log,
		}),
		PruneRuns:      scheduler.NewPruneRunsJob(container.RunRepo, cfg.KeepRuns),
		CheckDatabases: scheduler.NewCheckDatabasesJob(container.RecordsDB, container.AlertsDB),
		Maintenance:    scheduler.NewMaintenanceJob(cfg.DataDir, container.RecordsDB, container.AlertsDB),
	}
	jobs.PruneRuns.SetLogger(log.With().Str("job", jobs.PruneRuns.Name()).Logger())
	jobs.CheckDatabases.SetLogger(log.With().Str("job", jobs.CheckDatabases.Name()).Logger())
	jobs.Maintenance.SetLogger(log.With().Str("job", jobs.Maintenance.Name()).Logger())

	if cfg.EvaluationSchedule != "" {
		if err := sched.AddJob(cfg.EvaluationSchedule, jobs.EvaluateAlerts); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", jobs.EvaluateAlerts.Name(), err)
		}
	} else {
		log.Info().Msg("Scheduled evaluation disabled")
	}

	for _, job := range []scheduler.Job{jobs.PruneRuns, jobs.CheckDatabases, jobs.Maintenance} {
		if err := sched.AddJob(cfg.MaintenanceSchedule, job); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", job.Name(), err)
		}
	}

	container.Scheduler = sched
	return jobs, nil
}
