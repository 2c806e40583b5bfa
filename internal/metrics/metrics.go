// Package metrics exports turn and request counters in the Prometheus text
// format.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/felixgeelhaar/mnemo/internal/agent"
)

// Metrics owns a private registry; nothing is registered globally.
type Metrics struct {
	reg *prometheus.Registry

	turns     *prometheus.CounterVec
	duration  prometheus.Histogram
	recall    *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	stored    prometheus.Counter
	requests  *prometheus.CounterVec

	mu      sync.Mutex
	started map[string]time.Time
}

// New creates the collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		turns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mnemo_turns_total",
			Help: "Finished turns by outcome.",
		}, []string{"outcome"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mnemo_turn_duration_seconds",
			Help:    "Wall time from turn start to reply.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		recall: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mnemo_recall_total",
			Help: "Retrievals by kind: ranked, fallback or empty.",
		}, []string{"kind"}),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mnemo_degraded_total",
			Help: "Turn stages that fell back to a neutral result.",
		}, []string{"stage"}),
		stored: f.NewCounter(prometheus.CounterOpts{
			Name: "mnemo_memories_stored_total",
			Help: "Memories written to conversation banks.",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mnemo_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		started: make(map[string]time.Time),
	}
}

// Watch subscribes to reg's event bus and exports its session count.
// Call it once per registry.
func (m *Metrics) Watch(reg *agent.Registry) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "mnemo_sessions",
		Help: "Live conversation sessions.",
	}, func() float64 { return float64(reg.Len()) }))

	reg.Bus().SubscribeAll(m.observe)
}

func (m *Metrics) observe(e agent.Event) {
	switch e.Type {
	case agent.EventTurnStart:
		m.mu.Lock()
		m.started[e.Conversation] = e.Timestamp
		m.mu.Unlock()
	case agent.EventTurnComplete:
		m.turns.WithLabelValues("complete").Inc()
		if start, ok := m.finish(e.Conversation); ok {
			m.duration.Observe(e.Timestamp.Sub(start).Seconds())
		}
	case agent.EventTurnFailed:
		m.turns.WithLabelValues("failed").Inc()
		m.finish(e.Conversation)
	case agent.EventGuardViolation:
		m.turns.WithLabelValues("rejected").Inc()
		m.finish(e.Conversation)
	case agent.EventMemoriesRetrieved:
		m.recall.WithLabelValues(recallKind(e.Data)).Inc()
	case agent.EventEmbeddingFailed:
		m.fallbacks.WithLabelValues("embedding").Inc()
	case agent.EventAppraisalFallback:
		m.fallbacks.WithLabelValues("appraisal").Inc()
	case agent.EventSummaryFallback:
		m.fallbacks.WithLabelValues("summary").Inc()
	case agent.EventMemoryStored:
		m.stored.Inc()
	}
}

func (m *Metrics) finish(conversation string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start, ok := m.started[conversation]
	delete(m.started, conversation)
	return start, ok
}

func recallKind(data map[string]any) string {
	if fb, _ := data["fallback"].(bool); fb {
		return "fallback"
	}
	if n, _ := data["returned"].(int); n > 0 {
		return "ranked"
	}
	return "empty"
}

// ObserveRequest counts one HTTP request. route is the router pattern, not
// the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int) {
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
