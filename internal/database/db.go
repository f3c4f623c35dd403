// Package database opens the SQLite databases and applies their embedded schemas.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed schemas/*.sql
var schemas embed.FS

// DatabaseProfile selects durability and pooling settings
type DatabaseProfile string

const (
	// ProfileLedger fsyncs every commit and never shrinks. Used for the append-only run history.
	ProfileLedger DatabaseProfile = "ledger"
	// ProfileStandard fsyncs at checkpoints and reclaims space incrementally
	ProfileStandard DatabaseProfile = "standard"
)

// profileSettings are the per-profile PRAGMAs and pool limits
type profileSettings struct {
	pragmas      []string
	maxOpenConns int
	maxIdleConns int
}

var profiles = map[DatabaseProfile]profileSettings{
	ProfileLedger: {
		pragmas:      []string{"synchronous(FULL)", "auto_vacuum(NONE)"},
		maxOpenConns: 10,
		maxIdleConns: 2,
	},
	ProfileStandard: {
		pragmas:      []string{"synchronous(NORMAL)", "auto_vacuum(INCREMENTAL)", "temp_store(MEMORY)"},
		maxOpenConns: 25,
		maxIdleConns: 5,
	},
}

// pragmas applied to every profile
var commonPragmas = []string{"foreign_keys(1)", "wal_autocheckpoint(1000)", "busy_timeout(5000)"}

// Database names with a schema
const (
	NameRecords = "records"
	NameAlerts  = "alerts"
)

var schemaFiles = map[string]string{
	NameRecords: "schemas/records_schema.sql",
	NameAlerts:  "schemas/alerts_schema.sql",
}

// DB is an open SQLite database with its profile
type DB struct {
	conn    *sql.DB
	path    string
	profile DatabaseProfile
	name    string
}

// Config holds database configuration
type Config struct {
	Path    string
	Profile DatabaseProfile // defaults to ProfileStandard
	Name    string          // used in logs and to find the schema ("records", "alerts")
}

func inMemory(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file:")
}

// New opens the database at cfg.Path, creating its directory, and pings it
func New(cfg Config) (*DB, error) {
	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}
	settings, ok := profiles[cfg.Profile]
	if !ok {
		return nil, fmt.Errorf("unknown database profile %q", cfg.Profile)
	}

	if !inMemory(cfg.Path) {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path %s: %w", cfg.Path, err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		cfg.Path = absPath
	}

	conn, err := sql.Open("sqlite", dsn(cfg.Path, settings))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}

	conn.SetMaxOpenConns(settings.maxOpenConns)
	conn.SetMaxIdleConns(settings.maxIdleConns)
	conn.SetConnMaxLifetime(24 * time.Hour)
	conn.SetConnMaxIdleTime(30 * time.Minute)
	if inMemory(cfg.Path) {
		// every connection to :memory: is a separate database
		conn.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Name, err)
	}

	return &DB{conn: conn, path: cfg.Path, profile: cfg.Profile, name: cfg.Name}, nil
}

// dsn builds the modernc connection string: WAL first, then profile and common PRAGMAs
func dsn(path string, settings profileSettings) string {
	var b strings.Builder
	b.WriteString(path)
	b.WriteString("?_pragma=journal_mode(WAL)")
	for _, group := range [][]string{settings.pragmas, commonPragmas} {
		for _, p := range group {
			b.WriteString("&_pragma=")
			b.WriteString(p)
		}
	}
	return b.String()
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying connection pool for repositories
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Name returns the database name
func (db *DB) Name() string {
	return db.name
}

// Profile returns the database profile
func (db *DB) Profile() DatabaseProfile {
	return db.profile
}

// Path returns the absolute file path, or the in-memory DSN
func (db *DB) Path() string {
	return db.path
}

// Migrate applies the embedded schema of the database. Schemas use IF NOT EXISTS and can be reapplied.
func (db *DB) Migrate() error {
	return ApplySchema(db.conn, db.name)
}

// ApplySchema executes the embedded schema registered for name in one transaction.
// Unknown names are a no-op.
func ApplySchema(conn *sql.DB, name string) error {
	schemaFile, ok := schemaFiles[name]
	if !ok {
		return nil
	}

	content, err := schemas.ReadFile(schemaFile)
	if err != nil {
		return fmt.Errorf("failed to read schema %s: %w", schemaFile, err)
	}

	return WithTransaction(conn, func(tx *sql.Tx) error {
		if _, err := tx.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to apply schema %s: %w", schemaFile, err)
		}
		return nil
	})
}

// WithTransaction runs fn in a transaction. It commits when fn returns nil and
// rolls back when fn returns an error or panics.
func WithTransaction(db *sql.DB, fn func(*sql.Tx) error) (err error) {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w (rollback: %v)", err, rbErr)
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// HealthCheck pings the database and runs PRAGMA integrity_check
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed for %s: %w", db.name, err)
	}

	var result string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed for %s: %w", db.name, err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check returned for %s: %s", db.name, result)
	}
	return nil
}

// QuickCheck only pings the database
func (db *DB) QuickCheck(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}
