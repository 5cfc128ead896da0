package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clustermon/core/internal/status"
)

// TestEventNameRoundTrip verifies that the event name stored by RecordEvent
// and read back by History survives the string<->Event conversion.
func TestEventNameRoundTrip(t *testing.T) {
	events := []status.Event{
		status.EventMasterDown,
		status.EventMasterUp,
		status.EventNewMaster,
		status.EventLostSlave,
	}

	for _, e := range events {
		roundTripped := status.ParseEvent(e.String())
		assert.Equal(t, e, roundTripped, "event %v should round-trip through its name", e)
	}
}

func TestParseEventUnknownNameIsUndefined(t *testing.T) {
	assert.Equal(t, status.EventUndefined, status.ParseEvent("not-a-real-event"))
}
