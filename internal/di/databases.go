// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/manchuphon/Alert-Dashboard/internal/config"
	"github.com/manchuphon/Alert-Dashboard/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens both databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. records.db - imported project period records
	recordsDB, err := database.New(database.Config{
		Path:    cfg.RecordsDBPath(),
		Profile: database.ProfileStandard,
		Name:    database.NameRecords,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize records database: %w", err)
	}
	container.RecordsDB = recordsDB

	// 2. alerts.db - append-only evaluation run history
	alertsDB, err := database.New(database.Config{
		Path:    cfg.AlertsDBPath(),
		Profile: database.ProfileLedger,
		Name:    database.NameAlerts,
	})
	if err != nil {
		recordsDB.Close()
		return nil, fmt.Errorf("failed to initialize alerts database: %w", err)
	}
	container.AlertsDB = alertsDB

	for _, db := range []*database.DB{recordsDB, alertsDB} {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply %s schema: %w", db.Name(), err)
		}
		log.Debug().Str("database", db.Name()).Str("path", db.Path()).Msg("Database ready")
	}

	log.Info().Msg("Databases initialized")
	return container, nil
}
