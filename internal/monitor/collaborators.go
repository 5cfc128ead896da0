package monitor

import (
	"time"

	"github.com/clustermon/core/internal/backend"
	"github.com/clustermon/core/internal/status"
)

// ProbeModule is the pluggable per-topology probe capability set (spec
// §9): has_sufficient_permissions, update_server_status, pre_tick,
// post_tick, immediate_tick_required, diagnostics. internal/probe ships
// two concrete implementations (ClassicModule, SyncedClusterModule); the
// generic Worker Loop owns dispatch and never knows which one it holds.
type ProbeModule interface {
	// Name identifies the module tag stored as Instance.Module().
	Name() string
	// HasSufficientPermissions is checked once, cached, at start().
	HasSufficientPermissions(rec *backend.Record) error
	// UpdateServerStatus is called once per non-MAINT backend per tick,
	// after StashCurrentStatus and PingOrConnect. It sets/clears bits on
	// pending_status via rec.SetPending/ClearPending.
	UpdateServerStatus(rec *backend.Record, result backend.ProbeConnectResult) error
	// PreTick/PostTick bracket the per-backend probe loop within a tick.
	PreTick(all []*backend.Record)
	PostTick(all []*backend.Record)
	// ImmediateTickRequired lets a module force the next tick to run
	// without the normal sleep, e.g. to re-probe after a cluster resize.
	ImmediateTickRequired() bool
	// Diagnostics returns a module-specific key/value snapshot for the
	// admin API's serialize/status endpoints.
	Diagnostics() map[string]any
}

// ExternalCommand is the external-command executor collaborator (spec
// §6): allocate/substitute/matches/execute/free over a script invocation.
type ExternalCommand interface {
	Allocate(cmdline string, timeout time.Duration) (Cmd, error)
	Substitute(cmd Cmd, token, value string)
	Matches(cmd Cmd, token string) bool
	Execute(cmd Cmd) int // negative = internal failure, >=0 = exit status
	Free(cmd Cmd)
}

// Cmd is an opaque handle returned by ExternalCommand.Allocate.
type Cmd interface{}

// ServiceRouter receives add/remove and loss-of-usability notifications
// (spec §6).
type ServiceRouter interface {
	ServerAdded(monitorName string, server backend.ServerRef)
	ServerRemoved(monitorName string, server backend.ServerRef)
	HangupAll(server backend.ServerRef)
}

// Logger is the narrow logging collaborator at the four levels spec §6
// names. internal/logger's MonitorLogger (a zerolog wrapper) implements this.
type Logger interface {
	Error(msg string, fields map[string]any)
	Warning(msg string, fields map[string]any)
	Notice(msg string, fields map[string]any)
	Debug(msg string, fields map[string]any)
}

// PathConfig supplies datadir/persistdir, obtained from the config
// collaborator (spec §6).
type PathConfig interface {
	Datadir() string
	Persistdir() string
}

// AuditSink receives every dispatched event for long-term history,
// supplementing the single-snapshot journal (SPEC_FULL §11.5).
type AuditSink interface {
	RecordEvent(monitorName string, server backend.ServerRef, event status.Event, at time.Time)
}

// SnapshotMirror mirrors the last committed per-backend bitmap so reads
// never contend with the worker thread (SPEC_FULL §11.6).
type SnapshotMirror interface {
	PutSnapshot(monitorName string, servers map[string]status.Bits)
}

// DiskSpaceProbe is the optional capability a ProbeModule exposes to
// support the disk_space_threshold sub-schedule (SPEC_FULL §12.1). A
// module with no notion of backend-local filesystem paths simply doesn't
// implement it, and the worker loop's disk-space check becomes a no-op
// for that topology.
type DiskSpaceProbe interface {
	// DiskUsagePercent reports percent-used, keyed by mounted path, for
	// every filesystem the backend exposes. Returning an error that
	// indicates the backend has no disk-reporting capability at all
	// (rather than a transient query failure) is the caller's signal to
	// stop checking this backend permanently.
	DiskUsagePercent(rec *backend.Record) (map[string]int, error)
}

// MetricsSink receives tick-level counters (SPEC_FULL §11.7).
type MetricsSink interface {
	ObserveTick(monitorName string, duration time.Duration)
	IncEvent(monitorName string, event status.Event)
	ObserveJournalWrite(monitorName string, wrote bool, err error)
	ObserveScriptExit(monitorName string, event status.Event, exitCode int)
}
