// Package probe provides the concrete ProbeTransport implementation (spec
// §6) over MySQL-protocol backends, plus the two ProbeModule topologies
// the spec's Non-goals call out as in-scope: classic primary/replica
// detection and a synced-quorum cluster variant.
package probe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	mysqlerr "github.com/go-mysql/errors"

	"github.com/clustermon/core/internal/backend"
)

// unknownTableErrno is MySQL/MariaDB's ER_NO_SUCH_TABLE, returned when the
// DISKS information schema plugin is not installed on the backend.
const unknownTableErrno = 1146

// ErrDiskReportingUnsupported is returned by a DiskSpaceProbe implementation
// when the backend has no DISKS information schema plugin, so disk
// checking should be disabled for it rather than retried.
var ErrDiskReportingUnsupported = errors.New("probe: backend has no disks information schema plugin")

// ConnectError classifies a failed connect/ping into the §7 ProbeConnect
// taxonomy. AuthDenied implements the isAuthDenied hook the worker loop's
// handleProbeFailure checks.
type ConnectError struct {
	Kind string // "refused" | "timeout" | "auth_denied"
	Err  error
}

func (e *ConnectError) Error() string   { return fmt.Sprintf("probe connect %s: %v", e.Kind, e.Err) }
func (e *ConnectError) Unwrap() error   { return e.Err }
func (e *ConnectError) AuthDenied() bool { return e.Kind == "auth_denied" }

// accessDeniedCode is ER_ACCESS_DENIED_ERROR, MySQL error 1045. The
// go-mysql/errors package (vendored by jayjanssen/myq-tools) does not
// classify this one by name, so it is checked directly via
// MySQLErrorCode, the same helper that package exposes for unclassified
// codes.
const accessDeniedCode = 1045

// classify maps a go-sql-driver/mysql error into the ConnectError
// taxonomy using github.com/go-mysql/errors, the same classification
// library jayjanssen/myq-tools carries as an indirect dependency: Down
// distinguishes a network-level refusal, MySQLErrorCode picks out access
// denial, and everything else not explicitly classified is a timeout iff
// the driver reports one.
func classify(err error) *ConnectError {
	if err == nil {
		return nil
	}
	if mysqlerr.MySQLErrorCode(err) == accessDeniedCode {
		return &ConnectError{Kind: "auth_denied", Err: err}
	}
	if isTimeoutErr(err) {
		return &ConnectError{Kind: "timeout", Err: err}
	}
	if mysqlerr.Down(err) {
		return &ConnectError{Kind: "refused", Err: err}
	}
	if ok, classified := mysqlerr.Error(err); ok {
		return &ConnectError{Kind: "refused", Err: classified}
	}
	return &ConnectError{Kind: "refused", Err: err}
}

func isTimeoutErr(err error) bool {
	type timeouter interface{ Timeout() bool }
	if t, ok := err.(timeouter); ok {
		return t.Timeout()
	}
	return strings.Contains(err.Error(), "timeout")
}

// Credentials mirrors monitor.Credentials without importing the monitor
// package, keeping probe a leaf dependency.
type Credentials struct {
	User     string
	Password string
}

// MySQLTransport is the concrete ProbeTransport: it opens database/sql
// connections against go-sql-driver/mysql, either over TCP (host:port)
// or a unix socket when the address starts with "/" (spec §6 "Socket-path
// is used when address starts with /").
type MySQLTransport struct {
	Credentials Credentials
}

// mysqlConn adapts *sql.DB to backend.Conn.
type mysqlConn struct {
	db *sql.DB
}

func (c *mysqlConn) Ping() error  { return c.db.Ping() }
func (c *mysqlConn) Close() error { return c.db.Close() }

// Dial implements backend.Dialer.
func (t *MySQLTransport) Dial(address string, timeout time.Duration) (backend.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	dsn := t.dsn(address)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, classify(err)
	}
	db.SetConnMaxLifetime(time.Minute)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		if ctx.Err() != nil {
			return nil, &ConnectError{Kind: "timeout", Err: err}
		}
		return nil, classify(err)
	}
	return &mysqlConn{db: db}, nil
}

func (t *MySQLTransport) dsn(address string) string {
	if strings.HasPrefix(address, "/") {
		return fmt.Sprintf("%s:%s@unix(%s)/", t.Credentials.User, t.Credentials.Password, address)
	}
	return fmt.Sprintf("%s:%s@tcp(%s)/", t.Credentials.User, t.Credentials.Password, address)
}

// Query runs stmt against the live connection underlying a probe handle.
// An "extra port" fallback on first-connect failure (spec §6) is the
// caller's responsibility: it is expressed as a second Dial attempt with
// an alternate address, not inside Query itself.
func (t *MySQLTransport) Query(conn backend.Conn, stmt string) (*sql.Rows, error) {
	mc, ok := conn.(*mysqlConn)
	if !ok {
		return nil, fmt.Errorf("probe: unexpected connection type %T", conn)
	}
	return mc.db.Query(stmt)
}

// diskUsagePercent reads information_schema.disks, the table MariaDB's
// DISKS plugin populates with one row per mounted filesystem the backend
// reports, and reduces it to a percent-used figure per path. Shared by
// both ProbeModule topologies since disk reporting is a transport-level
// capability, not a replication-topology one.
func (t *MySQLTransport) diskUsagePercent(rec *backend.Record) (map[string]int, error) {
	rows, err := t.Query(rec.Connection, "SELECT Path, Total, Available FROM information_schema.disks")
	if err != nil {
		if mysqlerr.MySQLErrorCode(err) == unknownTableErrno {
			return nil, ErrDiskReportingUnsupported
		}
		return nil, err
	}
	defer rows.Close()

	usage := make(map[string]int)
	for rows.Next() {
		var path string
		var total, available int64
		if err := rows.Scan(&path, &total, &available); err != nil {
			return nil, err
		}
		if total <= 0 {
			continue
		}
		usage[path] = int(((total - available) * 100) / total)
	}
	return usage, rows.Err()
}
