package probe

import (
	"database/sql"
	"sync"

	"github.com/clustermon/core/internal/backend"
	"github.com/clustermon/core/internal/status"
)

// galeraNode mirrors the per-node status variables
// original_source/server/modules/monitor/galeramon/galeramon.hh's
// GaleraNode struct reads from wsrep_* status variables, reimplemented as
// a Go struct rather than translated from the C++ header.
type galeraNode struct {
	joined         bool
	localIndex     int
	localState     int
	clusterSize    int
	clusterUUID    string
	readOnly       bool
}

// SyncedClusterModule implements the synced-quorum cluster ProbeModule
// (spec §1 Non-goals: "a synced-quorum cluster variant"), grounded on
// galeramon.hh's NodeMap/update_sst_donor_nodes/detect_cluster_size
// bookkeeping.
type SyncedClusterModule struct {
	Transport *MySQLTransport

	mu          sync.Mutex
	nodes       map[string]galeraNode // server name -> last observed node state
	clusterUUID string
	clusterSize int
}

func NewSyncedClusterModule(t *MySQLTransport) *SyncedClusterModule {
	return &SyncedClusterModule{Transport: t, nodes: make(map[string]galeraNode)}
}

func (m *SyncedClusterModule) Name() string { return "synced_cluster" }

func (m *SyncedClusterModule) HasSufficientPermissions(rec *backend.Record) error { return nil }

func (m *SyncedClusterModule) UpdateServerStatus(rec *backend.Record, result backend.ProbeConnectResult) error {
	node, err := m.queryWsrepStatus(rec)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.nodes[rec.Ref.Name] = node
	m.mu.Unlock()

	rec.SetPending(status.RUNNING)
	if node.joined {
		rec.SetPending(status.JOINED)
	} else {
		rec.ClearPending(status.JOINED)
	}
	return nil
}

// queryWsrepStatus reads the wsrep_* status variables galeramon.hh's
// GaleraNode struct mirrors, via SHOW STATUS LIKE 'wsrep_%'.
func (m *SyncedClusterModule) queryWsrepStatus(rec *backend.Record) (galeraNode, error) {
	rows, err := m.Transport.Query(rec.Connection, "SHOW STATUS LIKE 'wsrep_%'")
	if err != nil {
		return galeraNode{}, err
	}
	defer rows.Close()

	var node galeraNode
	for rows.Next() {
		var name string
		var value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return galeraNode{}, err
		}
		switch name {
		case "wsrep_local_state_comment":
			node.joined = value.String == "Synced"
		case "wsrep_local_state":
			node.localState = atoiSafe(value.String)
		case "wsrep_local_index":
			node.localIndex = atoiSafe(value.String)
		case "wsrep_cluster_size":
			node.clusterSize = atoiSafe(value.String)
		case "wsrep_cluster_state_uuid":
			node.clusterUUID = value.String
		}
	}
	return node, rows.Err()
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// PreTick resets nothing; cluster-size detection happens in PostTick once
// every node in the tick has reported, mirroring galeramon.hh's
// detect_cluster_size being called after the per-node update pass.
func (m *SyncedClusterModule) PreTick([]*backend.Record) {}

// PostTick implements detect_cluster_size: among the joined nodes, the
// cluster UUID reported by the most nodes is taken as the cluster's, and
// the cluster size is the number of joined nodes reporting that UUID. Both
// are exposed through Diagnostics; a minority view (split brain) is not
// asserted here.
func (m *SyncedClusterModule) PostTick(all []*backend.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]int)
	for _, n := range m.nodes {
		if n.joined {
			counts[n.clusterUUID]++
		}
	}
	best, bestCount := "", 0
	for uuid, c := range counts {
		if c > bestCount {
			best, bestCount = uuid, c
		}
	}
	m.clusterUUID = best
	if bestCount > 0 {
		m.clusterSize = bestCount
	}
}

// DiskUsagePercent implements monitor.DiskSpaceProbe the same way
// ClassicModule does: disk reporting is independent of cluster topology.
func (m *SyncedClusterModule) DiskUsagePercent(rec *backend.Record) (map[string]int, error) {
	return m.Transport.diskUsagePercent(rec)
}

func (m *SyncedClusterModule) ImmediateTickRequired() bool { return false }

func (m *SyncedClusterModule) Diagnostics() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]any{
		"module":       "synced_cluster",
		"cluster_uuid": m.clusterUUID,
		"cluster_size": m.clusterSize,
	}
}
