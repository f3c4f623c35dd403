package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/manchuphon/Alert-Dashboard/internal/database"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/alerts"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs int
	err  error
}

func (j *countingJob) Run() error {
	j.runs++
	return j.err
}

func (j *countingJob) Name() string { return "counting" }

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())

	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{"six fields", "0 */15 * * * *", false},
		{"five fields", "0 6 * * *", false},
		{"descriptor", "@hourly", false},
		{"every", "@every 30s", false},
		{"invalid", "every tuesday", true},
	}

	registered := 0
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.AddJob(tt.schedule, &countingJob{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			registered++
		})
	}
	assert.Equal(t, registered, s.Jobs())
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("@hourly", &countingJob{}))

	assert.NotPanics(t, func() {
		s.Start()
		s.Stop()
	})
}

type namedJob struct {
	countingJob
	name string
}

func (j *namedJob) Name() string { return j.name }

func TestScheduler_NextRun(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("@hourly", &namedJob{name: "hourly"}))

	_, ok := s.NextRun("hourly")
	assert.False(t, ok, "no next run before start")

	s.Start()
	defer s.Stop()

	next, ok := s.NextRun("hourly")
	require.True(t, ok)
	assert.True(t, next.After(time.Now()))
	assert.True(t, next.Before(time.Now().Add(time.Hour+time.Minute)))

	_, ok = s.NextRun("missing")
	assert.False(t, ok)
}

func TestCronJob_RunsJob(t *testing.T) {
	job := &countingJob{err: errors.New("boom")}
	assert.NotPanics(t, func() { cronJob{job: job, log: zerolog.Nop()}.Run() })
	assert.Equal(t, 1, job.runs)
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{err: errors.New("boom")}

	err := s.RunNow(job)

	assert.Error(t, err)
	assert.Equal(t, 1, job.runs)
}

type fakeEvaluator struct {
	sources []string
	err     error
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, source string) (*alerts.Run, error) {
	f.sources = append(f.sources, source)
	if f.err != nil {
		return nil, f.err
	}
	return &alerts.Run{
		ID:      "run-1",
		Source:  source,
		Summary: alerts.Summary{Total: 1, BySeverity: map[alerts.Severity]int{alerts.SeverityCritical: 1}},
	}, nil
}

func TestEvaluateAlertsJob(t *testing.T) {
	eval := &fakeEvaluator{}
	job := NewEvaluateAlertsJob(EvaluateAlertsConfig{Evaluator: eval, Log: zerolog.Nop()})

	assert.Equal(t, "evaluate_alerts", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, []string{"scheduler"}, eval.sources)
}

func TestEvaluateAlertsJob_Failure(t *testing.T) {
	job := NewEvaluateAlertsJob(EvaluateAlertsConfig{Evaluator: &fakeEvaluator{err: errors.New("db locked")}, Log: zerolog.Nop()})

	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db locked")
}

func TestEvaluateAlertsJob_NoEvaluator(t *testing.T) {
	job := NewEvaluateAlertsJob(EvaluateAlertsConfig{Log: zerolog.Nop()})
	assert.NoError(t, job.Run()) // Should handle a missing evaluator gracefully
}

type fakePruner struct {
	keep int
	err  error
}

func (f *fakePruner) Prune(ctx context.Context, keep int) (int64, error) {
	f.keep = keep
	return 3, f.err
}

func TestPruneRunsJob(t *testing.T) {
	pruner := &fakePruner{}
	job := NewPruneRunsJob(pruner, 100)
	job.SetLogger(zerolog.Nop())

	assert.Equal(t, "prune_alert_runs", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, 100, pruner.keep)

	assert.Error(t, NewPruneRunsJob(&fakePruner{err: errors.New("boom")}, 1).Run())
}

func TestPruneRunsJob_Disabled(t *testing.T) {
	pruner := &fakePruner{}
	require.NoError(t, NewPruneRunsJob(pruner, 0).Run())
	assert.Zero(t, pruner.keep)

	assert.NoError(t, NewPruneRunsJob(nil, 10).Run())
}

func TestCheckDatabasesJob_Name(t *testing.T) {
	job := &CheckDatabasesJob{
		log: zerolog.Nop(),
	}
	assert.Equal(t, "check_databases", job.Name())
}

func TestCheckDatabasesJob_Run_NoDatabases(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	job := NewCheckDatabasesJob(nil, nil)
	job.SetLogger(log)

	err := job.Run()
	assert.NoError(t, err) // Should handle nil databases gracefully
}

func TestCheckDatabasesJob_Run(t *testing.T) {
	path := t.TempDir() + "/records.db"
	recordsDB, err := database.New(database.Config{Path: path, Name: database.NameRecords})
	require.NoError(t, err)
	defer recordsDB.Close()
	require.NoError(t, recordsDB.Migrate())

	job := NewCheckDatabasesJob(recordsDB, nil)
	assert.NoError(t, job.Run())
}

func TestMaintenanceJob_Run(t *testing.T) {
	dir := t.TempDir()
	recordsDB, err := database.New(database.Config{Path: dir + "/records.db", Name: database.NameRecords})
	require.NoError(t, err)
	defer recordsDB.Close()
	require.NoError(t, recordsDB.Migrate())

	job := NewMaintenanceJob(dir, recordsDB, nil)
	assert.Equal(t, "database_maintenance", job.Name())
	assert.NoError(t, job.Run())
}

func TestMaintenanceJob_DiskSpace(t *testing.T) {
	tests := []struct {
		name    string
		free    uint64
		err     error
		wantErr bool
	}{
		{"plenty", 50e9, nil, false},
		{"low", 2e9, nil, false},
		{"critical", 100e6, nil, true},
		{"unreadable", 0, errors.New("statfs failed"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewMaintenanceJob("/data")
			job.freeSpace = func(string) (uint64, error) { return tt.free, tt.err }

			err := job.Run()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
