// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/manchuphon/Alert-Dashboard/internal/domain"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/alerts"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/features"
	"gopkg.in/yaml.v3"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Config holds application configuration
type Config struct {
	DataDir             string             `validate:"required"` // Base directory for the databases (always absolute)
	Port                int                `validate:"gte=1,lte=65535"`
	LogLevel            string             `validate:"oneof=debug info warn error"`
	DevMode             bool               // pretty console logs
	ThresholdsFile      string             // YAML policy file, empty for the built-in defaults
	EvaluationSchedule  string             // cron spec of the scheduled evaluation, empty ("off") disables it
	MaintenanceSchedule string             `validate:"required"` // cron spec of run pruning, database checks and VACUUM
	KeepRuns            int                `validate:"gte=0"`    // 0 keeps every run
	Workers             int                `validate:"gte=0"`    // feature builder workers, 0 for the default
	TrendLength         int                `validate:"gte=1"`
	ActualsMode         domain.ActualsMode `validate:"oneof=cumulative periodic"`
	CORSOrigins         []string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("EVM_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		Port:                getEnvAsInt("EVM_PORT", 8080),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		ThresholdsFile:      getEnv("EVM_THRESHOLDS_FILE", ""),
		EvaluationSchedule:  getEnv("EVM_EVALUATION_SCHEDULE", "0 */15 * * * *"),
		MaintenanceSchedule: getEnv("EVM_MAINTENANCE_SCHEDULE", "0 0 3 * * *"),
		KeepRuns:            getEnvAsInt("EVM_KEEP_RUNS", 500),
		Workers:             getEnvAsInt("EVM_WORKERS", 0),
		TrendLength:         getEnvAsInt("EVM_TREND_LENGTH", 3),
		ActualsMode:         domain.ActualsMode(getEnv("EVM_ACTUALS_MODE", string(domain.ActualsCumulative))),
		CORSOrigins:         getEnvAsList("EVM_CORS_ORIGINS", []string{"*"}),
	}

	if strings.EqualFold(cfg.EvaluationSchedule, "off") {
		cfg.EvaluationSchedule = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field ranges
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// RecordsDBPath returns the path of the records database
func (c *Config) RecordsDBPath() string {
	return filepath.Join(c.DataDir, "records.db")
}

// AlertsDBPath returns the path of the alert run database
func (c *Config) AlertsDBPath() string {
	return filepath.Join(c.DataDir, "alerts.db")
}

// Policy is the engine tuning loaded from the thresholds file
type Policy struct {
	Thresholds alerts.Thresholds  `yaml:"thresholds"`
	Constants  features.Constants `yaml:"constants"`
}

// DefaultPolicy returns the built-in thresholds and constants
func DefaultPolicy() Policy {
	return Policy{
		Thresholds: alerts.DefaultThresholds(),
		Constants:  features.DefaultConstants(),
	}
}

// LoadPolicy reads a YAML policy file over the defaults. Keys absent from the
// file keep their default value. An empty path returns the defaults.
func LoadPolicy(path string) (Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to open thresholds file: %w", err)
	}
	defer f.Close()

	p, err := DecodePolicy(f)
	if err != nil {
		return Policy{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// DecodePolicy decodes a YAML policy document over the defaults and validates it.
// Unknown keys are rejected.
func DecodePolicy(r io.Reader) (Policy, error) {
	p := DefaultPolicy()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Policy{}, fmt.Errorf("failed to decode policy: %w", err)
	}

	if err := p.Thresholds.Validate(); err != nil {
		return Policy{}, err
	}
	if err := p.Constants.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
