// Package serverregistry is a reference implementation of a server_ref
// store external to the monitor: the name/address/port/version tuple a
// monitor's Configure call is seeded from, independent of any one
// monitor instance's in-memory backend.Record list.
package serverregistry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/clustermon/core/internal/backend"
	"github.com/clustermon/core/internal/metrics"
)

// Registry persists backend.ServerRef rows in Postgres.
type Registry struct {
	db      *sql.DB
	metrics *metrics.APIMetrics
}

// Config holds the server registry's database configuration.
type Config struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxConns     int
	MaxIdleConns int
}

func (cfg Config) dsn() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)
}

// New opens a connection pool and verifies connectivity. apiMetrics may be
// nil to skip instrumentation.
func New(cfg Config, apiMetrics *metrics.APIMetrics) (*Registry, error) {
	db, err := sql.Open("postgres", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("serverregistry: open: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("serverregistry: ping: %w", err)
	}

	return &Registry{db: db, metrics: apiMetrics}, nil
}

// observe records a query's duration and outcome when metrics are wired.
func (r *Registry) observe(operation string, start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordDBQuery("serverregistry", operation, time.Since(start).Seconds())
	if err != nil {
		r.metrics.RecordDBError("serverregistry", operation)
	}
}

// Close closes the underlying connection pool.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Upsert stores or updates a server_ref row.
func (r *Registry) Upsert(ctx context.Context, ref backend.ServerRef) error {
	query := `
		INSERT INTO servers (name, address, port, version, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			address    = EXCLUDED.address,
			port       = EXCLUDED.port,
			version    = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at
	`

	start := time.Now()
	_, err := r.db.ExecContext(ctx, query, ref.Name, ref.Address, ref.Port, ref.Version, time.Now())
	r.observe("upsert", start, err)
	return err
}

// Get retrieves a server_ref by name.
func (r *Registry) Get(ctx context.Context, name string) (backend.ServerRef, error) {
	query := `SELECT name, address, port, version FROM servers WHERE name = $1`

	start := time.Now()
	var ref backend.ServerRef
	err := r.db.QueryRowContext(ctx, query, name).Scan(&ref.Name, &ref.Address, &ref.Port, &ref.Version)
	r.observe("get", start, err)
	if err == sql.ErrNoRows {
		return backend.ServerRef{}, fmt.Errorf("serverregistry: server %q not found: %w", name, err)
	}
	if err != nil {
		return backend.ServerRef{}, err
	}

	return ref, nil
}

// List retrieves every registered server_ref.
func (r *Registry) List(ctx context.Context) ([]backend.ServerRef, error) {
	query := `SELECT name, address, port, version FROM servers ORDER BY name`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.observe("list", start, err)
		return nil, err
	}
	defer rows.Close()

	var refs []backend.ServerRef
	for rows.Next() {
		var ref backend.ServerRef
		if err := rows.Scan(&ref.Name, &ref.Address, &ref.Port, &ref.Version); err != nil {
			r.observe("list", start, err)
			return nil, err
		}
		refs = append(refs, ref)
	}

	err = rows.Err()
	r.observe("list", start, err)
	return refs, err
}

// Delete removes a server_ref by name.
func (r *Registry) Delete(ctx context.Context, name string) error {
	start := time.Now()
	_, err := r.db.ExecContext(ctx, `DELETE FROM servers WHERE name = $1`, name)
	r.observe("delete", start, err)
	return err
}
