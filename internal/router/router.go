// Package router implements the ServiceRouter collaborator (spec §6): the
// proxy-facing notification hooks fired on server add/remove and on
// loss-of-usability edges.
package router

import (
	"sync"

	"github.com/clustermon/core/internal/backend"
)

// Sink receives the three notification kinds InProcess fans out to. A
// real deployment's proxy layer implements Sink to drop/add listener
// bindings; this package stays process-local per SPEC_FULL §11.3.
type Sink interface {
	OnServerAdded(monitorName string, server backend.ServerRef)
	OnServerRemoved(monitorName string, server backend.ServerRef)
	OnHangupAll(server backend.ServerRef)
}

// InProcess is the in-memory ServiceRouter: it fans out notifications to
// zero or more registered Sinks under one mutex.
type InProcess struct {
	mu    sync.Mutex
	sinks []Sink
}

func New() *InProcess { return &InProcess{} }

func (r *InProcess) Register(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, s)
}

func (r *InProcess) ServerAdded(monitorName string, server backend.ServerRef) {
	r.mu.Lock()
	sinks := append([]Sink(nil), r.sinks...)
	r.mu.Unlock()
	for _, s := range sinks {
		s.OnServerAdded(monitorName, server)
	}
}

func (r *InProcess) ServerRemoved(monitorName string, server backend.ServerRef) {
	r.mu.Lock()
	sinks := append([]Sink(nil), r.sinks...)
	r.mu.Unlock()
	for _, s := range sinks {
		s.OnServerRemoved(monitorName, server)
	}
}

func (r *InProcess) HangupAll(server backend.ServerRef) {
	r.mu.Lock()
	sinks := append([]Sink(nil), r.sinks...)
	r.mu.Unlock()
	for _, s := range sinks {
		s.OnHangupAll(server)
	}
}
