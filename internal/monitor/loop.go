package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clustermon/core/internal/backend"
	"github.com/clustermon/core/internal/journal"
	"github.com/clustermon/core/internal/probe"
	"github.com/clustermon/core/internal/status"
)

const basePollQuantum = 100 * time.Millisecond

// Start removes a stale journal, checks permissions once, loads the
// journal, and launches the worker goroutine; it blocks until the worker
// has confirmed initialization (spec §4.4 start()).
func (m *Instance) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != Stopped {
		m.mu.Unlock()
		return &ErrConfigInvalid{Reason: "already running"}
	}
	if m.journalStore == nil {
		m.journalStore = journal.NewStore(m.paths.Datadir(), m.name)
	}
	servers := append([]*backend.Record(nil), m.servers...)
	m.mu.Unlock()

	if _, err := m.journalStore.CheckStale(m.settings.JournalMaxAge); err != nil {
		return fmt.Errorf("journal staleness check: %w", err)
	}

	for _, rec := range servers {
		if err := m.probe.HasSufficientPermissions(rec); err != nil {
			return fmt.Errorf("permission check failed for %s: %w", rec.Ref.Name, err)
		}
	}

	if snap, ok, err := m.journalStore.Load(); err == nil && ok {
		for _, rec := range servers {
			if bits, found := snap.Servers[rec.Ref.Name]; found {
				rec.SetStatusDirect(bits)
			}
		}
	} else if err != nil && m.logger != nil {
		m.logger.Error("journal load failed, starting with empty state", map[string]any{"monitor": m.name, "error": err.Error()})
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.doneCh = make(chan struct{})
	m.state = Running
	m.mu.Unlock()

	initialized := make(chan struct{})
	go m.run(loopCtx, initialized)
	<-initialized
	return nil
}

// Stop signals shutdown, joins the worker, and closes all probe
// connections.
func (m *Instance) Stop() {
	m.mu.Lock()
	if m.state != Running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.doneCh
	m.mu.Unlock()

	cancel()
	<-done

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.servers {
		if rec.Connection != nil {
			rec.Connection.Close()
			rec.Connection = nil
		}
	}
	m.state = Stopped
}

func (m *Instance) run(ctx context.Context, initialized chan struct{}) {
	close(initialized)
	defer close(m.doneCh)

	for {
		tickStart := time.Now()
		m.tick()
		m.tickCounter.Add(1)

		if m.probe != nil && m.probe.ImmediateTickRequired() {
			continue
		}

		// Sleep in base-quantum-sized steps so a check_flag wake or
		// shutdown is observed with bounded latency, rather than blocking
		// for the full monitor_interval in one shot.
		for time.Since(tickStart) < m.settings.MonitorInterval {
			if m.checkFlag.Load() == check {
				break
			}
			remaining := m.settings.MonitorInterval - time.Since(tickStart)
			step := basePollQuantum
			if remaining < step {
				step = remaining
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(step):
			}
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// tick runs the eight-step pipeline in spec §4.5.
func (m *Instance) tick() {
	m.mu.Lock()
	servers := append([]*backend.Record(nil), m.servers...)
	settings := m.settings
	m.mu.Unlock()

	tickStart := time.Now()

	// 1. Read admin requests.
	if m.checkFlag.Swap(noCheck) == check {
		for _, rec := range servers {
			req := rec.TakeAdminRequest()
			switch req {
			case backend.MaintOn:
				rec.SetStatusDirect(rec.Status().Set(status.MAINT))
			case backend.MaintOff:
				rec.SetStatusDirect(rec.Status().Clear(status.MAINT))
			case backend.DrainOn:
				rec.SetStatusDirect(rec.Status().Set(status.BeingDrained))
			case backend.DrainOff:
				rec.SetStatusDirect(rec.Status().Clear(status.BeingDrained))
			}
		}
	}

	if m.probe != nil {
		m.probe.PreTick(servers)
	}

	// Disk-space sub-schedule: a cadence gate independent of (and usually
	// much slower than) the monitor_interval probe cadence, per spec §4.5.
	checkDiskThisTick := settings.DiskSpaceCheckInterval > 0 && time.Since(m.diskChecked) >= settings.DiskSpaceCheckInterval

	// 2. Probe.
	for _, rec := range servers {
		if rec.Status().Has(status.MAINT) {
			continue
		}
		rec.StashCurrentStatus()

		result := rec.PingOrConnect(m.dialer, settings.BackendConnectAttempts, settings.BackendConnectTimeout)
		switch result {
		case backend.ExistingOK, backend.NewConnOK:
			if checkDiskThisTick && rec.DiskCheckOK {
				m.checkDiskSpace(rec, settings)
			}
			if err := m.probe.UpdateServerStatus(rec, result); err != nil {
				m.handleProbeFailure(rec, err)
			} else {
				rec.ErrorCount = 0
			}
		default:
			m.handleProbeFailure(rec, nil)
		}
	}
	if checkDiskThisTick {
		m.diskChecked = tickStart
	}

	if m.probe != nil {
		m.probe.PostTick(servers)
	}

	// 3. Commit.
	for _, rec := range servers {
		if rec.Status().Has(status.MAINT) {
			continue
		}
		rec.Commit()
	}

	// 4. Event dispatch.
	var masterDown, masterUp bool
	for _, rec := range servers {
		if !rec.StatusChanged() {
			continue
		}
		prev, _ := rec.PrevStatus()
		event := status.Classify(prev, rec.Status())
		rec.LastEvent = event
		rec.TriggeredAt = tickStart

		if event.IsMasterDown() {
			masterDown = true
		}
		if event.IsMasterUp() {
			masterUp = true
		}

		if m.metrics != nil {
			m.metrics.IncEvent(m.name, event)
		}
		if m.audit != nil {
			m.audit.RecordEvent(m.name, rec.Ref, event, tickStart)
		}

		m.dispatchScript(rec, event)

		if m.router != nil && !m.isUsable(rec.Status()) {
			m.router.HangupAll(rec.Ref)
		}
	}

	// 5. Primary coherence log.
	if masterDown && masterUp && m.logger != nil {
		m.logger.Notice("primary switch detected", map[string]any{"monitor": m.name})
	}

	// 7. Journal.
	if m.journalStore != nil {
		snap := m.snapshotLocked(servers)
		wrote, err := m.journalStore.Write(snap)
		if m.metrics != nil {
			m.metrics.ObserveJournalWrite(m.name, wrote, err)
		}
		if err != nil && m.logger != nil {
			m.logger.Error("journal write failed", map[string]any{"monitor": m.name, "error": err.Error()})
		}
	}

	if m.mirror != nil {
		bits := make(map[string]status.Bits, len(servers))
		for _, rec := range servers {
			bits[rec.Ref.Name] = rec.Status()
		}
		m.mirror.PutSnapshot(m.name, bits)
	}

	if m.metrics != nil {
		m.metrics.ObserveTick(m.name, time.Since(tickStart))
	}
}

func (m *Instance) handleProbeFailure(rec *backend.Record, probeErr error) {
	keep := rec.Pending() & status.Sticky
	rec.ClearPending(^status.Bits(0))
	rec.SetPending(keep)
	if isAuthDenied(probeErr) {
		rec.SetPending(status.AuthError)
	}
	if rec.ShouldPrintFailStatus() && m.logger != nil {
		m.logger.Warning("backend probe failed", map[string]any{"monitor": m.name, "server": rec.Ref.Name})
	}
	rec.ErrorCount++
}

func isAuthDenied(err error) bool {
	type authDenier interface{ AuthDenied() bool }
	if ad, ok := err.(authDenier); ok {
		return ad.AuthDenied()
	}
	return false
}

func (m *Instance) isUsable(bits status.Bits) bool {
	if !bits.Has(status.RUNNING) {
		return false
	}
	if m.module == "synced_cluster" && !bits.Has(status.JOINED) && !bits.Has(status.NDB) {
		return false
	}
	return true
}

func (m *Instance) dispatchScript(rec *backend.Record, event status.Event) {
	if m.settings.Script == "" || m.command == nil {
		return
	}
	if !eventInMask(event, m.settings.Events) {
		return
	}

	cmd, err := m.command.Allocate(m.settings.Script, m.settings.ScriptTimeout)
	if err != nil {
		if m.logger != nil {
			m.logger.Error("script allocate failed", map[string]any{"monitor": m.name, "error": err.Error()})
		}
		return
	}
	defer m.command.Free(cmd)

	m.command.Substitute(cmd, "INITIATOR", fmt.Sprintf("%s:%d", rec.Ref.Address, rec.Ref.Port))
	m.command.Substitute(cmd, "EVENT", event.String())
	m.command.Substitute(cmd, "CREDENTIALS", m.settings.Credentials.User)
	m.command.Substitute(cmd, "NODELIST", m.nodeList(""))
	m.command.Substitute(cmd, "LIST", m.nodeList(""))
	m.command.Substitute(cmd, "MASTERLIST", m.nodeList("master"))
	m.command.Substitute(cmd, "SLAVELIST", m.nodeList("slave"))
	m.command.Substitute(cmd, "SYNCEDLIST", m.nodeList("synced"))
	m.command.Substitute(cmd, "PARENT", "")
	m.command.Substitute(cmd, "CHILDREN", "")

	exit := m.command.Execute(cmd)
	if m.metrics != nil {
		m.metrics.ObserveScriptExit(m.name, event, exit)
	}
	if exit < 0 && m.logger != nil {
		m.logger.Error("script execution internal failure", map[string]any{"monitor": m.name, "event": event.String()})
	} else if exit > 0 && m.logger != nil {
		m.logger.Error("script exited non-zero", map[string]any{"monitor": m.name, "event": event.String(), "exit": exit})
	}
}

func (m *Instance) nodeList(role string) string {
	var names []string
	for _, rec := range m.servers {
		switch role {
		case "master":
			if rec.Status().Has(status.MASTER) {
				names = append(names, rec.Ref.Name)
			}
		case "slave":
			if rec.Status().Has(status.SLAVE) {
				names = append(names, rec.Ref.Name)
			}
		case "synced":
			if rec.Status().Has(status.JOINED) {
				names = append(names, rec.Ref.Name)
			}
		default:
			names = append(names, rec.Ref.Name)
		}
	}
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ","
		}
		out += n
	}
	return out
}

func eventInMask(event status.Event, mask EventMask) bool {
	switch event {
	case status.EventMasterDown, status.EventLostMaster:
		return mask&MaskMasterDown != 0
	case status.EventMasterUp, status.EventNewMaster:
		return mask&MaskMasterUp != 0
	case status.EventSlaveDown, status.EventLostSlave:
		return mask&MaskSlaveDown != 0
	case status.EventSlaveUp, status.EventNewSlave:
		return mask&MaskSlaveUp != 0
	case status.EventServerDown:
		return mask&MaskServerDown != 0
	case status.EventServerUp:
		return mask&MaskServerUp != 0
	case status.EventJoinedDown, status.EventLostJoined:
		return mask&MaskJoinedDown != 0
	case status.EventJoinedUp, status.EventNewJoined:
		return mask&MaskJoinedUp != 0
	case status.EventNdbDown, status.EventLostNdb:
		return mask&MaskNdbDown != 0
	case status.EventNdbUp, status.EventNewNdb:
		return mask&MaskNdbUp != 0
	}
	return false
}

func (m *Instance) snapshotLocked(servers []*backend.Record) journal.Snapshot {
	snap := journal.NewSnapshot()
	for _, rec := range servers {
		snap.Servers[rec.Ref.Name] = rec.Status()
		if rec.Status().Has(status.MASTER) {
			snap.Primary = rec.Ref.Name
		}
	}
	return snap
}

// checkDiskSpace implements the per-server half of the disk-space
// sub-schedule: it queries the probe module's disk usage, matches it
// against the "*"-wildcard-aware path:percent grammar, and sets or clears
// DiskExhausted on pending_status. A query failure that indicates the
// backend has no disk-reporting capability at all disables further
// checks for that backend by clearing DiskCheckOK (sticky per
// backend.Record's contract); any other failure is left to retry on the
// next disk-space tick.
func (m *Instance) checkDiskSpace(rec *backend.Record, settings Settings) {
	thresholds := diskThresholdsFor(rec, settings)
	if len(thresholds) == 0 {
		return
	}
	prober, ok := m.probe.(DiskSpaceProbe)
	if !ok {
		return
	}

	usage, err := prober.DiskUsagePercent(rec)
	if err != nil {
		if errors.Is(err, probe.ErrDiskReportingUnsupported) {
			rec.DiskCheckOK = false
		}
		if m.logger != nil {
			m.logger.Error("disk space check failed", map[string]any{"monitor": m.name, "server": rec.Ref.Name, "error": err.Error()})
		}
		return
	}

	exhausted := false
	starPercent := -1
	checked := make(map[string]bool, len(thresholds))

	for _, th := range thresholds {
		if th.Path == "*" {
			starPercent = th.Percent
			continue
		}
		used, found := usage[th.Path]
		if !found {
			if m.logger != nil {
				m.logger.Warning("disk space threshold path not reported by backend", map[string]any{"monitor": m.name, "server": rec.Ref.Name, "path": th.Path})
			}
			continue
		}
		checked[th.Path] = true
		if used >= th.Percent {
			exhausted = true
		}
	}

	if starPercent >= 0 {
		for path, used := range usage {
			if checked[path] {
				continue
			}
			if used >= starPercent {
				exhausted = true
			}
		}
	}

	if exhausted {
		rec.SetPending(status.DiskExhausted)
	} else {
		rec.ClearPending(status.DiskExhausted)
	}
}

// diskThresholdsFor resolves the thresholds that apply to one backend: a
// per-server override (backend.Record.DiskLimits) takes precedence over
// the monitor-wide disk_space_threshold setting, exactly as the original
// preferred server->get_disk_space_limits() over monitor_limits.
func diskThresholdsFor(rec *backend.Record, settings Settings) []ParsedDiskThreshold {
	if rec.DiskLimits != nil && len(rec.DiskLimits.Thresholds) > 0 {
		thresholds := make([]ParsedDiskThreshold, 0, len(rec.DiskLimits.Thresholds))
		for path, percent := range rec.DiskLimits.Thresholds {
			thresholds = append(thresholds, ParsedDiskThreshold{Path: path, Percent: percent})
		}
		return thresholds
	}
	thresholds, err := ParseDiskSpaceThreshold(settings.DiskSpaceThreshold)
	if err != nil {
		return nil
	}
	return thresholds
}
