// Package backend implements the Backend Record: per-server mutable state
// owned jointly by the worker thread (status, pending_status, error_count,
// connection) and by admin threads (admin_request, via atomic exchange).
package backend

import (
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clustermon/core/internal/status"
)

// AdminRequest is the single-slot intent an admin thread posts into a
// backend record. Only the latest request matters; an unconsumed prior
// request is overwritten by design (spec §9 open question, resolved
// "latest intent wins").
type AdminRequest int32

const (
	NoChange AdminRequest = iota
	MaintOn
	MaintOff
	DrainOn
	DrainOff
)

// ProbeConnectResult is the outcome of Record.PingOrConnect.
type ProbeConnectResult int

const (
	ExistingOK ProbeConnectResult = iota
	NewConnOK
	Refused
	Timeout
)

// Conn is the narrow probe connection handle the core owns opaquely; the
// concrete implementation lives in internal/probe.
type Conn interface {
	Ping() error
	Close() error
}

// Dialer opens a fresh probe connection. Implemented by internal/probe's
// MySQLTransport; kept here as the minimal shape Record needs so this
// package has no dependency on the concrete probe transport.
type Dialer interface {
	Dial(address string, timeout time.Duration) (Conn, error)
}

// ServerRef is the opaque handle into the external server registry (spec
// §3): address, port, name, and an externally-owned version string the
// probe updates in place.
type ServerRef struct {
	Name    string
	Address string
	Port    int
	// Version is populated by the probe module from the backend's
	// reported server version string; owned by the external registry,
	// mirrored here for convenience.
	Version string
}

func (s ServerRef) SocketAddress() string {
	if len(s.Address) > 0 && s.Address[0] == '/' {
		return s.Address
	}
	return net.JoinHostPort(s.Address, strconv.Itoa(s.Port))
}

// DiskLimits holds the per-backend disk-space thresholds parsed from the
// monitor's disk_space_threshold setting (path:percent, or *:percent as a
// catch-all).
type DiskLimits struct {
	Thresholds map[string]int // path -> percent-full threshold; "*" is the wildcard entry
}

// Record is one monitored backend. Every field except AdminRequest is
// mutated exclusively by the worker goroutine that owns this record's
// Monitor Instance; AdminRequest is the sole field admin goroutines touch,
// always via atomic.Int32 exchange.
type Record struct {
	Ref ServerRef

	status        status.Bits
	prevStatus    status.Bits
	prevStatusSet bool
	pending       status.Bits

	ErrorCount int

	Connection Conn

	adminRequest atomic.Int32

	DiskLimits    *DiskLimits
	DiskCheckOK   bool // sticky; false disables further disk checks for this backend

	LastEvent   status.Event
	TriggeredAt time.Time

	mu sync.Mutex // guards status/prevStatus/pending against concurrent external reads
}

func New(ref ServerRef) *Record {
	r := &Record{Ref: ref, DiskCheckOK: true}
	r.adminRequest.Store(int32(NoChange))
	return r
}

// Status returns the current authoritative status bitmap. Safe to call
// from any thread (spec: "Externally readable").
func (r *Record) Status() status.Bits {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// PrevStatus returns the status observed at the start of the previous
// tick; the second return is false before the first tick has completed.
func (r *Record) PrevStatus() (status.Bits, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prevStatus, r.prevStatusSet
}

// StashCurrentStatus copies status into both prev_status and
// pending_status. Called at the top of each per-backend probe.
func (r *Record) StashCurrentStatus() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prevStatus = r.status
	r.prevStatusSet = true
	r.pending = r.status
}

// SetPending performs a bitwise OR on pending_status.
func (r *Record) SetPending(bits status.Bits) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = r.pending.Set(bits)
}

// ClearPending performs a bitwise AND-NOT on pending_status.
func (r *Record) ClearPending(bits status.Bits) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = r.pending.Clear(bits)
}

// Pending returns the scratch bitmap mutated during the current tick,
// before being committed to status.
func (r *Record) Pending() status.Bits {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

// Commit writes pending_status into status. Only the worker thread calls
// this, once per tick, after event classification has already read both
// values.
func (r *Record) Commit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = r.pending
}

// SetStatusDirect applies bits directly to status, bypassing pending; used
// only when the monitor is STOPPED (configure-time) or for warm-starting
// from the journal.
func (r *Record) SetStatusDirect(bits status.Bits) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = bits
	r.pending = bits
}

// StatusChanged reports whether prev_status has been set at least once and
// the relevant (AllBits) bits differ from pending_status -- i.e. whether
// this tick's commit represents a change worth classifying.
func (r *Record) StatusChanged() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.prevStatusSet {
		return false
	}
	return status.Significant(r.prevStatus, r.pending)
}

// ShouldPrintFailStatus is true iff current status is "down" and
// error_count == 0 -- the first-failure edge, the only tick on which a
// Refused/Timeout probe error is logged.
func (r *Record) ShouldPrintFailStatus() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending.Down() && r.ErrorCount == 0
}

// PingOrConnect implements the connection liveness/reconnect contract: if
// a cached connection exists and passes a lightweight ping, it is reused
// (EXISTING_OK). Otherwise it is torn down and up to attempts fresh
// connections are tried within timeout; TIMEOUT is distinguished from
// REFUSED only once cumulative elapsed time reaches timeout.
func (r *Record) PingOrConnect(d Dialer, attempts int, timeout time.Duration) ProbeConnectResult {
	if r.Connection != nil {
		if err := r.Connection.Ping(); err == nil {
			return ExistingOK
		}
		r.Connection.Close()
		r.Connection = nil
	}

	start := time.Now()
	var lastErr error
	for i := 0; i < attempts; i++ {
		remaining := timeout - time.Since(start)
		if remaining <= 0 {
			break
		}
		conn, err := d.Dial(r.Ref.SocketAddress(), remaining)
		if err == nil {
			r.Connection = conn
			return NewConnOK
		}
		lastErr = err
	}
	_ = lastErr
	if time.Since(start) >= timeout {
		return Timeout
	}
	return Refused
}

// TakeAdminRequest atomically exchanges the admin_request slot with
// NO_CHANGE and returns the previous value. Called only by the worker
// thread at the top of a tick.
func (r *Record) TakeAdminRequest() AdminRequest {
	return AdminRequest(r.adminRequest.Swap(int32(NoChange)))
}

// PostAdminRequest atomically writes a new admin intent, called from
// admin-facing goroutines. Returns the previous value so the caller can
// warn if it overwrote an unconsumed request.
func (r *Record) PostAdminRequest(req AdminRequest) AdminRequest {
	return AdminRequest(r.adminRequest.Swap(int32(req)))
}

// PeekAdminRequest reads without consuming; used by tests and diagnostics.
func (r *Record) PeekAdminRequest() AdminRequest {
	return AdminRequest(r.adminRequest.Load())
}
