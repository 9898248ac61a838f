package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Assistant call outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// StateMetrics records activity of the transaction and chat state services.
type StateMetrics struct {
	mutations     *prometheus.CounterVec
	slotFailures  *prometheus.CounterVec
	assistant     *prometheus.HistogramVec
	pendingAnswer prometheus.Gauge
}

// NewStateMetrics registers the state metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewStateMetrics(reg prometheus.Registerer) *StateMetrics {
	if reg == nil {
		return &StateMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lx_state_mutations_total",
		Help: "State mutations applied, by operation.",
	}, []string{"op"})
	slotFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lx_slot_write_failures_total",
		Help: "Snapshot writes that failed, by slot key.",
	}, []string{"slot"})
	assistant := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lx_assistant_request_duration_seconds",
		Help:    "Duration of assistant requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lx_assistant_requests_in_flight",
		Help: "Assistant requests awaiting a reply.",
	})
	reg.MustRegister(mutations, slotFailures, assistant, pending)
	return &StateMetrics{
		mutations:     mutations,
		slotFailures:  slotFailures,
		assistant:     assistant,
		pendingAnswer: pending,
	}
}

// IncMutation counts one applied mutation.
func (m *StateMetrics) IncMutation(op string) {
	if m == nil || m.mutations == nil {
		return
	}
	m.mutations.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncSlotFailure counts one failed snapshot write.
func (m *StateMetrics) IncSlotFailure(slot string) {
	if m == nil || m.slotFailures == nil {
		return
	}
	m.slotFailures.WithLabelValues(normalizeLabel(slot)).Inc()
}

// AssistantStarted marks a request as in flight.
func (m *StateMetrics) AssistantStarted() {
	if m == nil || m.pendingAnswer == nil {
		return
	}
	m.pendingAnswer.Inc()
}

// AssistantFinished records the outcome and duration of a request.
func (m *StateMetrics) AssistantFinished(outcome string, duration time.Duration) {
	if m == nil || m.assistant == nil {
		return
	}
	m.pendingAnswer.Dec()
	m.assistant.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
