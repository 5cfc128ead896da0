package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/clustermon/core/internal/status"
)

// MonitorMetrics provides Prometheus metrics for the monitor worker loop.
// It implements monitor.MetricsSink.
type MonitorMetrics struct {
	// TickDuration tracks how long each monitor tick takes to run.
	TickDuration *prometheus.HistogramVec

	// TicksTotal counts completed ticks per monitor.
	TicksTotal *prometheus.CounterVec

	// EventsTotal counts role-transition events dispatched per monitor.
	EventsTotal *prometheus.CounterVec

	// JournalWrites counts journal persistence outcomes.
	JournalWrites *prometheus.CounterVec

	// ScriptExitCode records the last exit code observed for a dispatched
	// notification script, labeled by event.
	ScriptExitCode *prometheus.GaugeVec
}

// NewMonitorMetrics creates and registers monitor worker loop metrics.
func NewMonitorMetrics() *MonitorMetrics {
	return &MonitorMetrics{
		TickDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clustermon_tick_duration_seconds",
				Help:    "Duration of a single monitor tick",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"monitor"},
		),

		TicksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clustermon_ticks_total",
				Help: "Total number of completed monitor ticks",
			},
			[]string{"monitor"},
		),

		EventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clustermon_events_total",
				Help: "Total number of role-transition events dispatched",
			},
			[]string{"monitor", "event"},
		),

		JournalWrites: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clustermon_journal_writes_total",
				Help: "Total journal write attempts, labeled by outcome",
			},
			[]string{"monitor", "outcome"},
		),

		ScriptExitCode: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "clustermon_script_exit_code",
				Help: "Exit code of the last notification script run for an event",
			},
			[]string{"monitor", "event"},
		),
	}
}

// ObserveTick records the duration of a completed tick.
func (m *MonitorMetrics) ObserveTick(monitorName string, duration time.Duration) {
	m.TickDuration.WithLabelValues(monitorName).Observe(duration.Seconds())
	m.TicksTotal.WithLabelValues(monitorName).Inc()
}

// IncEvent increments the counter for a dispatched event kind.
func (m *MonitorMetrics) IncEvent(monitorName string, event status.Event) {
	m.EventsTotal.WithLabelValues(monitorName, event.String()).Inc()
}

// ObserveJournalWrite records a journal write attempt.
func (m *MonitorMetrics) ObserveJournalWrite(monitorName string, wrote bool, err error) {
	outcome := "skipped"
	switch {
	case err != nil:
		outcome = "error"
	case wrote:
		outcome = "written"
	}
	m.JournalWrites.WithLabelValues(monitorName, outcome).Inc()
}

// ObserveScriptExit records the exit code of a dispatched notification script.
func (m *MonitorMetrics) ObserveScriptExit(monitorName string, event status.Event, exitCode int) {
	m.ScriptExitCode.WithLabelValues(monitorName, event.String()).Set(float64(exitCode))
}
