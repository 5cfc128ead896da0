package monitor

import (
	"testing"
	"time"

	"github.com/clustermon/core/internal/backend"
	"github.com/clustermon/core/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePaths struct{ dir string }

func (f fakePaths) Datadir() string    { return f.dir }
func (f fakePaths) Persistdir() string { return f.dir }

func testSettings() Settings {
	return Settings{
		MonitorInterval:        200 * time.Millisecond,
		BackendConnectTimeout:  time.Second,
		BackendReadTimeout:     time.Second,
		BackendWriteTimeout:    time.Second,
		BackendConnectAttempts: 1,
		JournalMaxAge:          time.Hour,
		Events:                 MaskAll,
	}
}

func newTestInstance(t *testing.T) *Instance {
	t.Helper()
	dir := t.TempDir()
	return New("m1", "classic", Deps{
		Paths: fakePaths{dir: dir},
	})
}

func TestConfigureRejectsWhileRunning(t *testing.T) {
	inst := newTestInstance(t)
	inst.state = Running
	err := inst.Configure(testSettings(), nil, nil)
	assert.Error(t, err)
}

func TestConfigureRejectsAlreadyMonitoredServer(t *testing.T) {
	inst := newTestInstance(t)
	err := inst.Configure(testSettings(), []backend.ServerRef{{Name: "s1"}}, func(s string) bool { return s == "s1" })
	assert.Error(t, err)
	var cfgErr *ErrConfigInvalid
	assert.ErrorAs(t, err, &cfgErr)
}

func TestConfigureInstallsServers(t *testing.T) {
	inst := newTestInstance(t)
	err := inst.Configure(testSettings(), []backend.ServerRef{{Name: "s1"}, {Name: "s2"}}, nil)
	require.NoError(t, err)
	assert.True(t, inst.HasServer("s1"))
	assert.True(t, inst.HasServer("s2"))
}

func TestSetServerStatusWhileStoppedAppliesDirectly(t *testing.T) {
	inst := newTestInstance(t)
	require.NoError(t, inst.Configure(testSettings(), []backend.ServerRef{{Name: "s1"}}, nil))

	err := inst.SetServerStatus("s1", status.MAINT)
	require.NoError(t, err)
	assert.True(t, inst.findServer("s1").Status().Has(status.MAINT))
}

func TestSetServerStatusWhileRunningGoesThroughMailbox(t *testing.T) {
	inst := newTestInstance(t)
	require.NoError(t, inst.Configure(testSettings(), []backend.ServerRef{{Name: "s1"}}, nil))
	inst.state = Running

	err := inst.SetServerStatus("s1", status.MAINT)
	require.NoError(t, err)

	rec := inst.findServer("s1")
	assert.Equal(t, backend.MaintOn, rec.PeekAdminRequest())
	assert.Equal(t, check, inst.checkFlag.Load())
	assert.False(t, rec.Status().Has(status.MAINT), "status must not change until the worker consumes the request")
}

func TestSetServerStatusRejectsNonMaintBitsWhileRunning(t *testing.T) {
	inst := newTestInstance(t)
	require.NoError(t, inst.Configure(testSettings(), []backend.ServerRef{{Name: "s1"}}, nil))
	inst.state = Running

	err := inst.SetServerStatus("s1", status.MASTER)
	assert.Error(t, err)
	var violation *ErrConstraintViolation
	assert.ErrorAs(t, err, &violation)
}

func TestSerializeWritesConfigFile(t *testing.T) {
	inst := newTestInstance(t)
	require.NoError(t, inst.Configure(testSettings(), nil, nil))
	require.NoError(t, inst.Serialize())
}
