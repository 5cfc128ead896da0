package database

import (
	"context"
	"embed"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationRunner applies the audit schema migrations (monitor_events,
// servers) embedded under migrations/ against the audit database.
type MigrationRunner struct {
	pool *pgxpool.Pool
	dsn  string
}

// NewMigrationRunner creates a new migration runner for the audit schema.
func NewMigrationRunner(pool *pgxpool.Pool, dsn string) *MigrationRunner {
	return &MigrationRunner{
		pool: pool,
		dsn:  dsn,
	}
}

// RunMigrations brings the audit schema up to date. Called once at
// monitord startup, before any AuditSink is wired into a monitor.
func (r *MigrationRunner) RunMigrations(ctx context.Context) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source driver: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, r.dsn)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run audit schema migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get audit schema version: %w", err)
	}

	if dirty {
		log.Printf("Warning: audit schema version %d is dirty", version)
	} else if version > 0 {
		log.Printf("Audit schema migrated to version %d", version)
	}

	return nil
}

// RollbackMigration undoes the most recently applied audit schema
// migration. Neither monitord nor monitorctl calls it.
func (r *MigrationRunner) RollbackMigration(ctx context.Context) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source driver: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, r.dsn)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer m.Close()

	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("failed to rollback audit schema migration: %w", err)
	}

	version, _, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get audit schema version: %w", err)
	}

	log.Printf("Audit schema rolled back to version %d", version)
	return nil
}

// GetVersion returns the current audit schema migration version.
func (r *MigrationRunner) GetVersion() (uint, bool, error) {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, false, fmt.Errorf("failed to create migration source driver: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, r.dsn)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err == migrate.ErrNilVersion {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get audit schema version: %w", err)
	}

	return version, dirty, nil
}

// InitializeDatabase creates the audit database if it doesn't already
// exist and brings its schema (monitor_events, servers) up to date. The
// audit schema is plain relational -- no extensions beyond the defaults
// a stock PostgreSQL install ships with are required, since event IDs
// are generated application-side by internal/audit via google/uuid
// rather than a server-side UUID extension.
func InitializeDatabase(ctx context.Context, cfg *Config) error {
	adminConfig := *cfg
	adminConfig.Database = "postgres"
	adminDSN := adminConfig.BuildDSN()

	conn, err := pgx.Connect(ctx, adminDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres database: %w", err)
	}
	defer conn.Close(ctx)

	var exists bool
	err = conn.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", cfg.Database).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check audit database existence: %w", err)
	}

	if !exists {
		_, err = conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", cfg.Database))
		if err != nil {
			return fmt.Errorf("failed to create audit database: %w", err)
		}
		log.Printf("Created audit database: %s", cfg.Database)
	}

	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to audit database: %w", err)
	}
	defer pool.Close()

	runner := NewMigrationRunner(pool, cfg.BuildDSN())
	if err := runner.RunMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run audit schema migrations: %w", err)
	}

	return nil
}