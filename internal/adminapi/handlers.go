package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clustermon/core/internal/backend"
	"github.com/clustermon/core/internal/monitor"
	"github.com/clustermon/core/internal/probe"
	"github.com/clustermon/core/internal/registry"
	"github.com/clustermon/core/internal/status"
	"github.com/clustermon/core/internal/validation"
)

type handlers struct {
	registry *registry.Registry
	factory  MonitorFactory
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// findInstance resolves a registered monitor by name as a concrete
// *monitor.Instance, since the control surface (AddServer, SetServerStatus,
// Start/Stop) is richer than the registry.Monitor interface the registry
// itself depends on.
func (h *handlers) findInstance(name string) (*monitor.Instance, bool) {
	m := h.registry.Find(name)
	if m == nil {
		return nil, false
	}
	inst, ok := m.(*monitor.Instance)
	return inst, ok
}

type monitorView struct {
	Name   string `json:"name"`
	Module string `json:"module"`
	Active bool   `json:"active"`
	State  string `json:"state"`
	Ticks  uint64 `json:"ticks"`
}

func (h *handlers) listMonitors(w http.ResponseWriter, r *http.Request) {
	var views []monitorView
	h.registry.Foreach(func(m registry.Monitor) bool {
		views = append(views, toView(m))
		return true
	})
	writeJSON(w, http.StatusOK, views)
}

func (h *handlers) getMonitor(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	m := h.registry.Find(name)
	if m == nil {
		http.Error(w, "monitor not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toView(m))
}

func toView(m registry.Monitor) monitorView {
	v := monitorView{Name: m.Name(), Module: m.Module(), Active: m.Active()}
	if inst, ok := m.(*monitor.Instance); ok {
		v.State = inst.State().String()
		v.Ticks = inst.TickCounter()
	}
	return v
}

type createMonitorRequest struct {
	Name    string               `json:"name"`
	Module  string               `json:"module"`
	Servers []addServerRequest   `json:"servers"`
	Settings createMonitorSettings `json:"settings"`
}

type createMonitorSettings struct {
	MonitorIntervalMs       int64  `json:"monitor_interval_ms"`
	BackendConnectTimeoutMs int64  `json:"backend_connect_timeout_ms"`
	BackendReadTimeoutMs    int64  `json:"backend_read_timeout_ms"`
	BackendWriteTimeoutMs   int64  `json:"backend_write_timeout_ms"`
	BackendConnectAttempts  int    `json:"backend_connect_attempts"`
	DiskSpaceThreshold      string `json:"disk_space_threshold"`
	JournalMaxAgeMs         int64  `json:"journal_max_age_ms"`
	Script                  string `json:"script"`
	ScriptTimeoutMs         int64  `json:"script_timeout_ms"`
	User                    string `json:"user"`
	Password                string `json:"password"`
}

// createMonitor instantiates a new Monitor Instance (C6 add-monitor) from
// a module name, server list, and settings, registers it stopped, and
// writes its settings file through Serialize. Nothing reads that file back
// at process startup.
func (h *handlers) createMonitor(w http.ResponseWriter, r *http.Request) {
	var req createMonitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	settingsInput := validation.MonitorSettingsInput{
		MonitorIntervalMs:       req.Settings.MonitorIntervalMs,
		BackendConnectTimeoutMs: req.Settings.BackendConnectTimeoutMs,
		BackendReadTimeoutMs:    req.Settings.BackendReadTimeoutMs,
		BackendWriteTimeoutMs:   req.Settings.BackendWriteTimeoutMs,
		BackendConnectAttempts:  req.Settings.BackendConnectAttempts,
		DiskSpaceThreshold:      req.Settings.DiskSpaceThreshold,
	}
	if err := validation.ValidateStruct(r.Context(), settingsInput); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	refs := make([]backend.ServerRef, 0, len(req.Servers))
	for _, s := range req.Servers {
		input := validation.ServerInput{Name: s.Name, Address: s.Address, Port: s.Port, Version: s.Version}
		if err := validation.ValidateStruct(r.Context(), input); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		refs = append(refs, backend.ServerRef{Name: s.Name, Address: s.Address, Port: s.Port, Version: s.Version})
	}

	deps, err := h.factory.Build(req.Module, probe.Credentials{User: req.Settings.User, Password: req.Settings.Password})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	inst := monitor.New(req.Name, req.Module, deps)
	settings := monitor.Settings{
		MonitorInterval:        time.Duration(req.Settings.MonitorIntervalMs) * time.Millisecond,
		BackendConnectTimeout:  time.Duration(req.Settings.BackendConnectTimeoutMs) * time.Millisecond,
		BackendReadTimeout:     time.Duration(req.Settings.BackendReadTimeoutMs) * time.Millisecond,
		BackendWriteTimeout:    time.Duration(req.Settings.BackendWriteTimeoutMs) * time.Millisecond,
		BackendConnectAttempts: req.Settings.BackendConnectAttempts,
		DiskSpaceThreshold:     req.Settings.DiskSpaceThreshold,
		JournalMaxAge:          time.Duration(req.Settings.JournalMaxAgeMs) * time.Millisecond,
		Script:                 req.Settings.Script,
		ScriptTimeout:          time.Duration(req.Settings.ScriptTimeoutMs) * time.Millisecond,
		Events:                 monitor.MaskAll,
		Credentials:            monitor.Credentials{User: req.Settings.User, Password: req.Settings.Password},
	}

	if err := inst.Configure(settings, refs, func(name string) bool {
		return h.registry.ServerIsMonitored(name) != nil
	}); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	h.registry.InsertFront(inst)
	_ = inst.Serialize()

	w.WriteHeader(http.StatusCreated)
}

func (h *handlers) startMonitor(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.findInstance(chi.URLParam(r, "name"))
	if !ok {
		http.Error(w, "monitor not found", http.StatusNotFound)
		return
	}
	if err := inst.Start(context.Background()); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) stopMonitor(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.findInstance(chi.URLParam(r, "name"))
	if !ok {
		http.Error(w, "monitor not found", http.StatusNotFound)
		return
	}
	inst.Stop()
	w.WriteHeader(http.StatusAccepted)
}

type addServerRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Port    int    `json:"port"`
	Version string `json:"version"`
}

func (h *handlers) addServer(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.findInstance(chi.URLParam(r, "name"))
	if !ok {
		http.Error(w, "monitor not found", http.StatusNotFound)
		return
	}

	var req addServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	input := validation.ServerInput{Name: req.Name, Address: req.Address, Port: req.Port, Version: req.Version}
	if err := validation.ValidateStruct(r.Context(), input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ref := backend.ServerRef{Name: req.Name, Address: req.Address, Port: req.Port, Version: req.Version}
	if err := inst.AddServer(ref); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *handlers) removeServer(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.findInstance(chi.URLParam(r, "name"))
	if !ok {
		http.Error(w, "monitor not found", http.StatusNotFound)
		return
	}
	if err := inst.RemoveServer(chi.URLParam(r, "server")); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) setMaintenance(w http.ResponseWriter, r *http.Request) {
	h.mutateStatus(w, r, status.MAINT, true)
}

func (h *handlers) clearMaintenance(w http.ResponseWriter, r *http.Request) {
	h.mutateStatus(w, r, status.MAINT, false)
}

func (h *handlers) setDrain(w http.ResponseWriter, r *http.Request) {
	h.mutateStatus(w, r, status.BeingDrained, true)
}

func (h *handlers) clearDrain(w http.ResponseWriter, r *http.Request) {
	h.mutateStatus(w, r, status.BeingDrained, false)
}

func (h *handlers) mutateStatus(w http.ResponseWriter, r *http.Request, bits status.Bits, set bool) {
	inst, ok := h.findInstance(chi.URLParam(r, "name"))
	if !ok {
		http.Error(w, "monitor not found", http.StatusNotFound)
		return
	}

	var err error
	if set {
		err = inst.SetServerStatus(chi.URLParam(r, "server"), bits)
	} else {
		err = inst.ClearServerStatus(chi.URLParam(r, "server"), bits)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
