// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler runs registered jobs on their schedules. A job still running
// when its next tick arrives skips that tick.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu      sync.RWMutex
	entries map[string]cron.EntryID
}

// New creates a new scheduler. Schedules take an optional leading seconds field.
func New(log zerolog.Logger) *Scheduler {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:     log.With().Str("component", "scheduler").Logger(),
		entries: make(map[string]cron.EntryID),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", s.Jobs()).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Scheduler stopped")
}

// cronJob adapts a Job to cron and logs its outcome
type cronJob struct {
	job Job
	log zerolog.Logger
}

func (c cronJob) Run() {
	start := time.Now()
	if err := c.job.Run(); err != nil {
		c.log.Error().Err(err).Dur("duration_ms", time.Since(start)).Msg("Job failed")
		return
	}
	c.log.Debug().Dur("duration_ms", time.Since(start)).Msg("Job completed")
}

// AddJob registers job on a cron schedule, for example:
//   - "0 */15 * * * *" every 15 minutes
//   - "0 6 * * *" 6 AM daily
//   - "@every 30s"
func (s *Scheduler) AddJob(schedule string, job Job) error {
	id, err := s.cron.AddJob(schedule, cronJob{
		job: job,
		log: s.log.With().Str("job", job.Name()).Logger(),
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", schedule, job.Name(), err)
	}

	s.mu.Lock()
	s.entries[job.Name()] = id
	s.mu.Unlock()

	s.log.Info().Str("schedule", schedule).Str("job", job.Name()).Msg("Job registered")
	return nil
}

// RunNow executes a job immediately, outside its schedule
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run()
}

// NextRun returns when the named job runs next. It is false for unknown
// jobs and before the scheduler is started.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.RLock()
	id, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}, false
	}
	next := s.cron.Entry(id).Next
	return next, !next.IsZero()
}

// Jobs returns the number of registered jobs
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}
