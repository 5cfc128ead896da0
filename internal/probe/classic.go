package probe

import (
	"database/sql"
	"strings"

	"github.com/clustermon/core/internal/backend"
	"github.com/clustermon/core/internal/status"
)

// ClassicModule implements the classical-replication ProbeModule: primary
// detection via read_only/super_read_only, replica detection via
// SHOW SLAVE STATUS. This is the minimal example topology the spec keeps
// in scope (§1 Non-goals: "primary/replica detection for classical
// replication ... beyond a minimal example").
type ClassicModule struct {
	Transport *MySQLTransport
}

func NewClassicModule(t *MySQLTransport) *ClassicModule {
	return &ClassicModule{Transport: t}
}

func (m *ClassicModule) Name() string { return "classic" }

func (m *ClassicModule) HasSufficientPermissions(rec *backend.Record) error {
	return nil // REPLICATION CLIENT privilege is assumed granted out of band
}

func (m *ClassicModule) UpdateServerStatus(rec *backend.Record, result backend.ProbeConnectResult) error {
	readOnly, err := m.queryReadOnly(rec)
	if err != nil {
		return err
	}

	slaveRunning, slaveErr := m.querySlaveStatus(rec)

	rec.SetPending(status.RUNNING)
	switch {
	case slaveErr == nil && slaveRunning:
		rec.ClearPending(status.MASTER)
		rec.SetPending(status.SLAVE)
	case !readOnly:
		rec.ClearPending(status.SLAVE)
		rec.SetPending(status.MASTER | status.WasMaster)
	default:
		rec.ClearPending(status.MASTER | status.SLAVE)
	}
	return nil
}

func (m *ClassicModule) queryReadOnly(rec *backend.Record) (bool, error) {
	rows, err := m.Transport.Query(rec.Connection, "SELECT @@read_only")
	if err != nil {
		return false, err
	}
	defer rows.Close()
	var v int
	if rows.Next() {
		if err := rows.Scan(&v); err != nil {
			return false, err
		}
	}
	return v == 1, rows.Err()
}

// querySlaveStatus reports whether SHOW SLAVE STATUS returns a row with
// both IO and SQL threads running. A probe implementation built on
// database/sql can't easily scan SHOW SLAVE STATUS's variable column set
// generically, so this reads the two threads-running columns by name via
// sql.Rows.Columns and a []sql.NullString scan target.
func (m *ClassicModule) querySlaveStatus(rec *backend.Record) (bool, error) {
	rows, err := m.Transport.Query(rec.Connection, "SHOW SLAVE STATUS")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return false, err
	}
	if !rows.Next() {
		return false, nil // no row: not a replica
	}

	dest := make([]interface{}, len(cols))
	vals := make([]sql.NullString, len(cols))
	for i := range vals {
		dest[i] = &vals[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return false, err
	}

	ioRunning, sqlRunning := false, false
	for i, col := range cols {
		switch strings.ToLower(col) {
		case "slave_io_running":
			ioRunning = strings.EqualFold(vals[i].String, "yes")
		case "slave_sql_running":
			sqlRunning = strings.EqualFold(vals[i].String, "yes")
		}
	}
	return ioRunning && sqlRunning, rows.Err()
}

// DiskUsagePercent implements monitor.DiskSpaceProbe by reading MariaDB's
// information_schema.disks table, populated by the DISKS plugin, the same
// server-side source the original's disk-space check reads.
func (m *ClassicModule) DiskUsagePercent(rec *backend.Record) (map[string]int, error) {
	return m.Transport.diskUsagePercent(rec)
}

func (m *ClassicModule) PreTick([]*backend.Record)  {}
func (m *ClassicModule) PostTick([]*backend.Record) {}
func (m *ClassicModule) ImmediateTickRequired() bool { return false }
func (m *ClassicModule) Diagnostics() map[string]any { return map[string]any{"module": "classic"} }
