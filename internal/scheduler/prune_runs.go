package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// RunPruner deletes old evaluation runs
type RunPruner interface {
	Prune(ctx context.Context, keep int) (int64, error)
}

// PruneRunsJob keeps the alert run history bounded
type PruneRunsJob struct {
	pruner RunPruner
	keep   int
	log    zerolog.Logger
}

// NewPruneRunsJob creates a new PruneRunsJob keeping the newest keep runs
func NewPruneRunsJob(pruner RunPruner, keep int) *PruneRunsJob {
	return &PruneRunsJob{
		pruner: pruner,
		keep:   keep,
		log:    zerolog.Nop(),
	}
}

// SetLogger sets the logger for the job
func (j *PruneRunsJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *PruneRunsJob) Name() string {
	return "prune_alert_runs"
}

// Run executes the prune
func (j *PruneRunsJob) Run() error {
	if j.pruner == nil || j.keep <= 0 {
		j.log.Debug().Int("keep", j.keep).Msg("Run pruning disabled, skipping")
		return nil
	}

	removed, err := j.pruner.Prune(context.Background(), j.keep)
	if err != nil {
		return fmt.Errorf("failed to prune alert runs: %w", err)
	}

	j.log.Info().
		Int64("removed", removed).
		Int("keep", j.keep).
		Msg("Pruned alert runs")
	return nil
}
