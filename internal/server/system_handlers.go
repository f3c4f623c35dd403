package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/manchuphon/Alert-Dashboard/internal/database"
	"github.com/manchuphon/Alert-Dashboard/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"
)

const healthTimeout = 5 * time.Second

// SystemHandlers handles health, status and job endpoints
type SystemHandlers struct {
	log       zerolog.Logger
	recordsDB *database.DB
	alertsDB  *database.DB
	scheduler *scheduler.Scheduler
	jobs      map[string]scheduler.Job
	startedAt time.Time
}

// NewSystemHandlers creates a new system handlers instance. Any argument may be nil.
func NewSystemHandlers(
	log zerolog.Logger,
	recordsDB *database.DB,
	alertsDB *database.DB,
	sched *scheduler.Scheduler,
	jobs map[string]scheduler.Job,
) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		recordsDB: recordsDB,
		alertsDB:  alertsDB,
		scheduler: sched,
		jobs:      jobs,
		startedAt: time.Now(),
	}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Databases map[string]string `json:"databases"`
}

// HandleHealth handles GET /health.
// Every open database gets a quick integrity check; any failure reports 503.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Service:   "evm-alerts",
		Databases: make(map[string]string),
	}
	status := http.StatusOK

	for _, db := range []*database.DB{h.recordsDB, h.alertsDB} {
		if db == nil {
			continue
		}
		if err := db.QuickCheck(ctx); err != nil {
			h.log.Error().Err(err).Str("database", db.Name()).Msg("Health check failed")
			resp.Databases[db.Name()] = "error"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Databases[db.Name()] = "ok"
	}

	h.writeJSON(w, status, resp)
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Uptime        string `json:"uptime"`
	StartedAt     string `json:"started_at"`
	GoVersion     string `json:"go_version"`
	Goroutines    int    `json:"goroutines"`
	HeapAllocMB   uint64 `json:"heap_alloc_mb"`
	ScheduledJobs int    `json:"scheduled_jobs"`

	// Host memory, absent when the platform does not report it
	HostMemoryUsedPct *float64 `json:"host_memory_used_pct,omitempty"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	resp := SystemStatusResponse{
		Uptime:      time.Since(h.startedAt).Truncate(time.Second).String(),
		StartedAt:   h.startedAt.UTC().Format(time.RFC3339),
		GoVersion:   runtime.Version(),
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: ms.HeapAlloc / 1024 / 1024,
	}
	if h.scheduler != nil {
		resp.ScheduledJobs = h.scheduler.Jobs()
	}
	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
		resp.HostMemoryUsedPct = &vm.UsedPercent
	} else {
		h.log.Debug().Err(err).Msg("Host memory unavailable")
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// JobInfo describes one registered job
type JobInfo struct {
	Name    string `json:"name"`
	NextRun string `json:"next_run,omitempty"` // RFC3339, absent when not scheduled
}

// HandleJobsStatus handles GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	jobs := make([]JobInfo, 0, len(names))
	for _, name := range names {
		info := JobInfo{Name: name}
		if h.scheduler != nil {
			if next, ok := h.scheduler.NextRun(name); ok {
				info.NextRun = next.UTC().Format(time.RFC3339)
			}
		}
		jobs = append(jobs, info)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

// HandleTriggerJob handles POST /api/system/jobs/{name}.
// The job runs synchronously; its error is reported as 500.
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request, name string) {
	job, ok := h.jobs[name]
	if !ok {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job triggered")

	var err error
	if h.scheduler != nil {
		err = h.scheduler.RunNow(job)
	} else {
		err = job.Run()
	}
	if err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manual job failed")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"job":     name,
			"message": err.Error(),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"job":    name,
	})
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
