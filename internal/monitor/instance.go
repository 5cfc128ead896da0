// Package monitor implements the Monitor Instance (C4) and its Worker
// Loop (C5): the owner of a set of Backend Records, the admin control
// surface, and the single-threaded periodic probe/diff/dispatch/journal
// driver.
package monitor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clustermon/core/internal/backend"
	"github.com/clustermon/core/internal/journal"
	"github.com/clustermon/core/internal/status"
	"github.com/clustermon/core/internal/validation"
)

// State is the Monitor Instance lifecycle state.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "RUNNING"
	}
	return "STOPPED"
}

// checkFlag values for the monitor-wide admin wake signal.
const (
	noCheck int32 = 0
	check   int32 = 1
)

// ErrConfigInvalid is returned by Configure on validation failure (spec
// ConfigInvalid taxonomy entry).
type ErrConfigInvalid struct{ Reason string }

func (e *ErrConfigInvalid) Error() string { return "config invalid: " + e.Reason }

// ErrConstraintViolation is returned when an admin tries to mutate
// non-MAINT/BEING_DRAINED bits while RUNNING.
type ErrConstraintViolation struct{ Reason string }

func (e *ErrConstraintViolation) Error() string { return "constraint violation: " + e.Reason }

// Instance is one Monitor Instance (C4).
type Instance struct {
	name   string
	module string

	mu       sync.Mutex // m_lock: guards servers slice, settings, state, active
	active   bool
	state    State
	settings Settings
	servers  []*backend.Record

	tickCounter atomic.Uint64
	checkFlag   atomic.Int32

	probe   ProbeModule
	command ExternalCommand
	router  ServiceRouter
	logger  Logger
	paths   PathConfig
	dialer  backend.Dialer

	audit    AuditSink
	mirror   SnapshotMirror
	metrics  MetricsSink

	journalStore *journal.Store
	diskChecked  time.Time

	cancel context.CancelFunc
	doneCh chan struct{}
}

// Deps bundles the external collaborators an Instance is constructed
// with (spec §6).
type Deps struct {
	Probe   ProbeModule
	Command ExternalCommand
	Router  ServiceRouter
	Logger  Logger
	Paths   PathConfig
	Dialer  backend.Dialer
	Audit   AuditSink
	Mirror  SnapshotMirror
	Metrics MetricsSink
}

func New(name, module string, deps Deps) *Instance {
	return &Instance{
		name:    name,
		module:  module,
		active:  true,
		state:   Stopped,
		probe:   deps.Probe,
		command: deps.Command,
		router:  deps.Router,
		logger:  deps.Logger,
		paths:   deps.Paths,
		dialer:  deps.Dialer,
		audit:   deps.Audit,
		mirror:  deps.Mirror,
		metrics: deps.Metrics,
	}
}

func (m *Instance) Name() string   { return m.name }
func (m *Instance) Module() string { return m.module }

func (m *Instance) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Instance) SetActive(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = active
}

func (m *Instance) HasServer(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.servers {
		if r.Ref.Name == name {
			return true
		}
	}
	return false
}

func (m *Instance) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Instance) TickCounter() uint64 { return m.tickCounter.Load() }

// Configure applies settings and installs the server list. Only callable
// while STOPPED.
func (m *Instance) Configure(settings Settings, servers []backend.ServerRef, monitored func(string) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Stopped {
		return &ErrConfigInvalid{Reason: "monitor not stopped"}
	}

	if err := validation.ValidateStruct(context.Background(), settings); err != nil {
		return &ErrConfigInvalid{Reason: err.Error()}
	}

	if _, err := ParseDiskSpaceThreshold(settings.DiskSpaceThreshold); err != nil {
		return &ErrConfigInvalid{Reason: err.Error()}
	}

	for _, ref := range servers {
		if monitored != nil && monitored(ref.Name) {
			return &ErrConfigInvalid{Reason: fmt.Sprintf("server %q already monitored elsewhere", ref.Name)}
		}
	}

	recs := make([]*backend.Record, 0, len(servers))
	for _, ref := range servers {
		recs = append(recs, backend.New(ref))
	}

	m.settings = settings
	m.servers = recs
	m.journalStore = journal.NewStore(m.paths.Datadir(), m.name)
	return nil
}

// AddServer appends a server. Only callable while STOPPED.
func (m *Instance) AddServer(ref backend.ServerRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Stopped {
		return &ErrConfigInvalid{Reason: "monitor not stopped"}
	}
	m.servers = append(m.servers, backend.New(ref))
	if m.router != nil {
		m.router.ServerAdded(m.name, ref)
	}
	return nil
}

// RemoveServer removes a server by name. Only callable while STOPPED.
func (m *Instance) RemoveServer(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Stopped {
		return &ErrConfigInvalid{Reason: "monitor not stopped"}
	}
	for i, r := range m.servers {
		if r.Ref.Name == name {
			ref := r.Ref
			m.servers = append(m.servers[:i], m.servers[i+1:]...)
			if m.router != nil {
				m.router.ServerRemoved(m.name, ref)
			}
			return nil
		}
	}
	return &ErrConfigInvalid{Reason: fmt.Sprintf("server %q not found", name)}
}

// SetServerStatus implements the RUNNING/STOPPED dual-path write rule: if
// RUNNING, only MAINT/BEING_DRAINED are accepted and go through the
// admin_request mailbox; if STOPPED, applied directly.
func (m *Instance) SetServerStatus(name string, bits status.Bits) error {
	return m.mutateServerStatus(name, bits, true)
}

func (m *Instance) ClearServerStatus(name string, bits status.Bits) error {
	return m.mutateServerStatus(name, bits, false)
}

func (m *Instance) mutateServerStatus(name string, bits status.Bits, set bool) error {
	m.mu.Lock()
	rec := m.findServer(name)
	st := m.state
	m.mu.Unlock()

	if rec == nil {
		return &ErrConfigInvalid{Reason: fmt.Sprintf("server %q not found", name)}
	}

	if st == Stopped {
		if set {
			rec.SetStatusDirect(rec.Status().Set(bits))
		} else {
			rec.SetStatusDirect(rec.Status().Clear(bits))
		}
		return nil
	}

	allowed := status.MAINT | status.BeingDrained
	if bits&^allowed != 0 {
		return &ErrConstraintViolation{Reason: "only MAINT or BEING_DRAINED may be mutated while RUNNING"}
	}

	var req backend.AdminRequest
	switch {
	case set && bits.Has(status.MAINT):
		req = backend.MaintOn
	case !set && bits.Has(status.MAINT):
		req = backend.MaintOff
	case set && bits.Has(status.BeingDrained):
		req = backend.DrainOn
	case !set && bits.Has(status.BeingDrained):
		req = backend.DrainOff
	}

	prev := rec.PostAdminRequest(req)
	if prev != backend.NoChange && m.logger != nil {
		m.logger.Warning("admin_request overwritten before consumption", map[string]any{
			"monitor": m.name, "server": name, "prev_request": prev,
		})
	}
	m.checkFlag.Store(check)
	return nil
}

func (m *Instance) findServer(name string) *backend.Record {
	for _, r := range m.servers {
		if r.Ref.Name == name {
			return r
		}
	}
	return nil
}

// Serialize writes a text-form config to <persistdir>/<name>.cnf
// atomically.
func (m *Instance) Serialize() error {
	m.mu.Lock()
	settings := m.settings
	m.mu.Unlock()

	path := filepath.Join(m.paths.Persistdir(), m.name+".cnf")
	tmp := path + ".tmp"

	content := fmt.Sprintf(
		"monitor_interval=%d\nbackend_connect_timeout=%d\nbackend_read_timeout=%d\nbackend_write_timeout=%d\nbackend_connect_attempts=%d\ndisk_space_check_interval=%d\ndisk_space_threshold=%s\njournal_max_age=%d\nscript=%s\nscript_timeout=%d\nevents=%d\n",
		settings.MonitorInterval.Milliseconds(),
		int(settings.BackendConnectTimeout.Seconds()),
		int(settings.BackendReadTimeout.Seconds()),
		int(settings.BackendWriteTimeout.Seconds()),
		settings.BackendConnectAttempts,
		settings.DiskSpaceCheckInterval.Milliseconds(),
		settings.DiskSpaceThreshold,
		int(settings.JournalMaxAge.Seconds()),
		settings.Script,
		int(settings.ScriptTimeout.Seconds()),
		settings.Events,
	)

	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
