package di

import (
	"github.com/manchuphon/Alert-Dashboard/internal/config"
	"github.com/manchuphon/Alert-Dashboard/internal/database"
	"github.com/manchuphon/Alert-Dashboard/internal/metrics"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/alerts"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/evaluation"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/features"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/kpi"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/progress"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/records"
	"github.com/manchuphon/Alert-Dashboard/internal/scheduler"
)

// Container holds all application dependencies
// This is the single source of truth for all services, repositories, and databases
type Container struct {
	// Databases
	RecordsDB *database.DB // project period records
	AlertsDB  *database.DB // evaluation runs and their alerts

	// Engine policy, immutable after wiring
	Policy config.Policy

	// Repositories
	RecordsRepo *records.Repository
	RunRepo     *alerts.RunRepository

	// Services
	RecordService     *records.Service
	Estimator         *progress.Estimator
	FeatureBuilder    *features.Builder
	Evaluator         *alerts.Evaluator
	Aggregator        *kpi.Aggregator
	EvaluationService *evaluation.Service
	Metrics           *metrics.Recorder

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered jobs for manual triggering
type JobInstances struct {
	EvaluateAlerts *scheduler.EvaluateAlertsJob
	PruneRuns      *scheduler.PruneRunsJob
	CheckDatabases *scheduler.CheckDatabasesJob
	Maintenance    *scheduler.MaintenanceJob
}

// ByName indexes the jobs by their job name
func (j *JobInstances) ByName() map[string]scheduler.Job {
	jobs := make(map[string]scheduler.Job, 4)
	for _, job := range []scheduler.Job{j.EvaluateAlerts, j.PruneRuns, j.CheckDatabases, j.Maintenance} {
		jobs[job.Name()] = job
	}
	return jobs
}

// Close closes every open database
func (c *Container) Close() {
	if c.RecordsDB != nil {
		c.RecordsDB.Close()
	}
	if c.AlertsDB != nil {
		c.AlertsDB.Close()
	}
}
