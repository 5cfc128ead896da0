package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/clustermon/core/internal/status"
)

func newTestMonitorMetrics() *MonitorMetrics {
	return &MonitorMetrics{
		TickDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "test_tick_duration_seconds"},
			[]string{"monitor"},
		),
		TicksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "test_ticks_total"},
			[]string{"monitor"},
		),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "test_events_total"},
			[]string{"monitor", "event"},
		),
		JournalWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "test_journal_writes_total"},
			[]string{"monitor", "outcome"},
		),
		ScriptExitCode: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "test_script_exit_code"},
			[]string{"monitor", "event"},
		),
	}
}

func TestObserveTickIncrementsCounterAndHistogram(t *testing.T) {
	m := newTestMonitorMetrics()
	m.ObserveTick("cluster1", 50*time.Millisecond)

	if got := testutil.ToFloat64(m.TicksTotal.WithLabelValues("cluster1")); got != 1 {
		t.Fatalf("expected ticks total 1, got %v", got)
	}
}

func TestIncEventLabelsByEventName(t *testing.T) {
	m := newTestMonitorMetrics()
	m.IncEvent("cluster1", status.EventMasterDown)

	got := testutil.ToFloat64(m.EventsTotal.WithLabelValues("cluster1", status.EventMasterDown.String()))
	if got != 1 {
		t.Fatalf("expected 1 event recorded, got %v", got)
	}
}

func TestObserveJournalWriteOutcomes(t *testing.T) {
	m := newTestMonitorMetrics()

	m.ObserveJournalWrite("cluster1", true, nil)
	m.ObserveJournalWrite("cluster1", false, nil)
	m.ObserveJournalWrite("cluster1", false, assertErr{})

	if got := testutil.ToFloat64(m.JournalWrites.WithLabelValues("cluster1", "written")); got != 1 {
		t.Fatalf("expected 1 written outcome, got %v", got)
	}
	if got := testutil.ToFloat64(m.JournalWrites.WithLabelValues("cluster1", "skipped")); got != 1 {
		t.Fatalf("expected 1 skipped outcome, got %v", got)
	}
	if got := testutil.ToFloat64(m.JournalWrites.WithLabelValues("cluster1", "error")); got != 1 {
		t.Fatalf("expected 1 error outcome, got %v", got)
	}
}

func TestObserveScriptExitSetsGauge(t *testing.T) {
	m := newTestMonitorMetrics()
	m.ObserveScriptExit("cluster1", status.EventMasterUp, 0)

	got := testutil.ToFloat64(m.ScriptExitCode.WithLabelValues("cluster1", status.EventMasterUp.String()))
	if got != 0 {
		t.Fatalf("expected exit code 0, got %v", got)
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
