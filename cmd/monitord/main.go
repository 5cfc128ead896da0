// Command monitord is the cluster health monitor daemon: it loads
// configuration, wires up the Monitor Instance collaborators (database
// pool, audit store, snapshot mirror, service router, metrics), and
// serves the admin control-surface HTTP API until told to stop.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/clustermon/core/internal/adminapi"
	"github.com/clustermon/core/internal/audit"
	"github.com/clustermon/core/internal/config"
	"github.com/clustermon/core/internal/database"
	"github.com/clustermon/core/internal/logger"
	"github.com/clustermon/core/internal/metrics"
	"github.com/clustermon/core/internal/registry"
	"github.com/clustermon/core/internal/router"
	"github.com/clustermon/core/internal/server"
	"github.com/clustermon/core/internal/snapshotcache"
)

func main() {
	cfg := config.MustLoad()

	if err := logger.Initialize(logger.Config{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "monitord: initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Audit)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("connect to audit database")
	}
	defer pool.Close()

	if err := database.NewMigrationRunner(pool, cfg.Audit.BuildDSN()).RunMigrations(ctx); err != nil {
		logger.Logger.Fatal().Err(err).Msg("run audit database migrations")
	}

	apiMetrics := metrics.NewAPIMetrics()
	monitorMetrics := metrics.NewMonitorMetrics()

	auditStore := audit.NewStore(pool, 50, 2*time.Second, apiMetrics)
	defer auditStore.Close()

	mirror, err := snapshotcache.New(snapshotcache.Config{
		Address:  cfg.Snapshot.Address,
		Password: cfg.Snapshot.Password,
		DB:       cfg.Snapshot.DB,
		TTL:      cfg.Snapshot.TTL,
	})
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("connect to snapshot cache")
	}
	defer mirror.Close()

	svcRouter := router.New()
	reg := registry.New()

	metricsServer := metrics.NewMetricsServer(cfg.Metrics.Port, apiMetrics)
	go func() {
		if err := metricsServer.Start(); err != nil {
			logger.Logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	factory := adminapi.MonitorFactory{
		Router:  svcRouter,
		Paths:   cfg.Paths,
		Audit:   auditStore,
		Mirror:  mirror,
		Metrics: monitorMetrics,
	}

	adminRouter := adminapi.NewRouter(reg, adminapi.RouterConfig{
		Environment:  cfg.Admin.Environment,
		RateLimitRPS: cfg.Admin.RateLimit,
		JWTSecret:    cfg.JWT.SecretKey,
		Metrics:      apiMetrics,
		Factory:      factory,
	})

	port, err := bindPort(cfg.Admin.BindAddress)
	if err != nil {
		logger.Logger.Fatal().Err(err).Str("bind_address", cfg.Admin.BindAddress).Msg("parse admin bind address")
	}

	srv := server.NewServer(adminRouter, &logger.Logger, server.ServerOptions{Port: port})
	if err := srv.Start(ctx); err != nil {
		logger.Logger.Error().Err(err).Msg("admin api server stopped")
		os.Exit(1)
	}

	logger.Logger.Info().Msg("monitord stopped")
}

// bindPort extracts the numeric port from an AdminConfig.BindAddress of
// the form ":8989" or "0.0.0.0:8989"; server.ServerOptions only takes a
// bare port since it always binds every interface.
func bindPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("invalid bind address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port in bind address %q: %w", addr, err)
	}
	return port, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
