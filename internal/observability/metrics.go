package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the control plane.
type Metrics struct {
	ActiveSessions    prometheus.Gauge
	SessionEvents     *prometheus.CounterVec
	WSMessages        *prometheus.CounterVec
	OutboundDropped   *prometheus.CounterVec
	AdapterErrors     *prometheus.CounterVec
	SpamDropped       *prometheus.CounterVec
	QualityGated      *prometheus.CounterVec
	ResponseCandidate prometheus.Histogram
	SchedulerTicks    *prometheus.CounterVec
	SchedulerInterval prometheus.Histogram

	// stages backs ObserveStage/StageSnapshot: a rolling p50/p95/p99
	// window per adapter external-I/O stage, surfaced via
	// GET /api/diagnostics/stages for operators who want more than
	// Prometheus's own histogram buckets give them.
	stages *turnStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of renderer sessions currently registered.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket frames by direction and type.",
		}, []string{"direction", "type"}),
		OutboundDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_dropped_total",
			Help:      "Outbound frames dropped due to backpressure, by session mode.",
		}, []string{"mode"}),
		AdapterErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_errors_total",
			Help:      "Backend adapter operation errors by variant and operation.",
		}, []string{"variant", "op"}),
		SpamDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_spam_dropped_total",
			Help:      "Chat messages dropped by the spam filter, by reason.",
		}, []string{"reason"}),
		QualityGated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_quality_gated_total",
			Help:      "Chat messages gated by the quality scorer, by reason.",
		}, []string{"reason"}),
		ResponseCandidate: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_candidate_score",
			Help:      "Quality-scorer score distribution of ingested chat messages.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		SchedulerTicks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_ticks_total",
			Help:      "Autonomous scheduler ticks by outcome.",
		}, []string{"outcome"}),
		SchedulerInterval: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_interval_seconds",
			Help:      "Observed inter-tick sleep duration.",
			Buckets:   []float64{30, 60, 90, 120, 150, 180, 210, 240, 300, 600},
		}),
		stages: newTurnStageWindow(256),
	}
}

// ObserveStage records one external-I/O stage's duration (a TTS synthesis
// call, an agent generation call, or a full Speak dispatch) into the
// rolling latency window behind StageSnapshot.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stages.Observe(stage, float64(d.Milliseconds()))
}

// ObserveStageIndicator increments a named counter alongside the stage
// window, for discrete outcomes (e.g. "adapter_error") that aren't a
// latency sample.
func (m *Metrics) ObserveStageIndicator(name string) {
	if m == nil {
		return
	}
	m.stages.ObserveIndicator(name)
}

// StageSnapshot reports the current rolling stage-latency window, for
// GET /api/diagnostics/stages.
func (m *Metrics) StageSnapshot() TurnStageSnapshot {
	if m == nil {
		return TurnStageSnapshot{}
	}
	return m.stages.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
