package adminapi

import (
	"fmt"

	"github.com/clustermon/core/internal/execute"
	"github.com/clustermon/core/internal/logger"
	"github.com/clustermon/core/internal/monitor"
	"github.com/clustermon/core/internal/probe"
)

// MonitorFactory builds monitor.Deps for a newly created Monitor Instance.
// Probe module and transport are per-monitor (each monitor authenticates
// with its own credentials against its own backend set); the rest of the
// collaborators are process-wide singletons shared across every monitor.
type MonitorFactory struct {
	Router  monitor.ServiceRouter
	Paths   monitor.PathConfig
	Audit   monitor.AuditSink
	Mirror  monitor.SnapshotMirror
	Metrics monitor.MetricsSink
}

// Build constructs the Deps for one monitor of the given module, using
// creds to authenticate its probe connections.
func (f MonitorFactory) Build(module string, creds probe.Credentials) (monitor.Deps, error) {
	transport := &probe.MySQLTransport{Credentials: creds}

	var probeModule monitor.ProbeModule
	switch module {
	case "classic":
		probeModule = probe.NewClassicModule(transport)
	case "synced_cluster":
		probeModule = probe.NewSyncedClusterModule(transport)
	default:
		return monitor.Deps{}, fmt.Errorf("adminapi: unknown monitor module %q", module)
	}

	return monitor.Deps{
		Probe:   probeModule,
		Command: execute.NewRunner(),
		Router:  f.Router,
		Logger:  logger.NewMonitorLogger(),
		Paths:   f.Paths,
		Dialer:  transport,
		Audit:   f.Audit,
		Mirror:  f.Mirror,
		Metrics: f.Metrics,
	}, nil
}
