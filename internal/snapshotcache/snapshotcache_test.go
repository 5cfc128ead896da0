package snapshotcache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clustermon/core/internal/status"
)

func TestKeyUsesConfiguredPrefix(t *testing.T) {
	m := &Mirror{prefix: "testprefix"}
	assert.Equal(t, "testprefix:snapshot:cluster1", m.key("cluster1"))
}

func TestBitsRoundTripThroughUint64(t *testing.T) {
	want := status.RUNNING | status.MASTER
	got := status.Bits(uint64(want))
	assert.Equal(t, want, got)
}
