package scheduler

import (
	"fmt"

	"github.com/manchuphon/Alert-Dashboard/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// Disk space levels of the data directory, in GB
const (
	diskCriticalGB = 0.5
	diskLowGB      = 5.0
)

// MaintenanceJob reclaims space in the databases and watches free disk space.
// Re-imports and project deletes leave free pages in records.db; pruning does the same in alerts.db.
type MaintenanceJob struct {
	log       zerolog.Logger
	dataDir   string
	databases []*database.DB
	freeSpace func(path string) (uint64, error)
}

// NewMaintenanceJob creates a new MaintenanceJob. Nil databases are skipped.
func NewMaintenanceJob(dataDir string, databases ...*database.DB) *MaintenanceJob {
	return &MaintenanceJob{
		log:       zerolog.Nop(),
		dataDir:   dataDir,
		databases: databases,
		freeSpace: diskFree,
	}
}

func diskFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// SetLogger sets the logger for the job
func (j *MaintenanceJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "database_maintenance"
}

// Run checks disk space, then vacuums every database.
// A critically full disk stops the job before VACUUM, which needs room for a full copy.
func (j *MaintenanceJob) Run() error {
	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	for _, db := range j.databases {
		if db == nil {
			continue
		}
		if err := j.vacuum(db); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("VACUUM failed")
			// Continue with other databases
		}
	}
	return nil
}

func (j *MaintenanceJob) checkDiskSpace() error {
	if j.dataDir == "" {
		return nil
	}

	free, err := j.freeSpace(j.dataDir)
	if err != nil {
		j.log.Warn().Err(err).Str("path", j.dataDir).Msg("Failed to read disk usage")
		return nil
	}

	availableGB := float64(free) / 1e9
	switch {
	case availableGB < diskCriticalGB:
		j.log.Error().Float64("available_gb", availableGB).Msg("Insufficient disk space, skipping maintenance")
		return fmt.Errorf("only %.2f GB free in %s", availableGB, j.dataDir)
	case availableGB < diskLowGB:
		j.log.Warn().Float64("available_gb", availableGB).Msg("Disk space running low")
	default:
		j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")
	}
	return nil
}

func (j *MaintenanceJob) vacuum(db *database.DB) error {
	sizeBefore, err := pageBytes(db)
	if err != nil {
		return err
	}

	if _, err := db.Conn().Exec("VACUUM"); err != nil {
		return fmt.Errorf("VACUUM failed: %w", err)
	}

	sizeAfter, err := pageBytes(db)
	if err != nil {
		return err
	}

	j.log.Info().
		Str("database", db.Name()).
		Float64("size_before_mb", float64(sizeBefore)/1024/1024).
		Float64("size_after_mb", float64(sizeAfter)/1024/1024).
		Float64("space_reclaimed_mb", float64(sizeBefore-sizeAfter)/1024/1024).
		Msg("VACUUM completed")
	return nil
}

func pageBytes(db *database.DB) (int64, error) {
	var pageCount, pageSize int64
	if err := db.Conn().QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("failed to read page count: %w", err)
	}
	if err := db.Conn().QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("failed to read page size: %w", err)
	}
	return pageCount * pageSize, nil
}
