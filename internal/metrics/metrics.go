package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Trust provides observability for origin trust resolution. All methods are
// safe on a nil receiver so callers may omit metrics entirely.
type Trust struct {
	// Resolutions started, by entrypoint and the synchronously computed state
	Resolutions *prometheus.CounterVec

	// Verification task outcomes: verified, failed, cancelled
	VerificationOutcomes *prometheus.CounterVec

	// Time spent inside the verifier, including slot wait
	VerificationLatency prometheus.Histogram

	// Verification tasks that found every slot taken and had to queue
	SlotWaits prometheus.Counter

	// Sessions currently held open by the session manager
	ActiveSessions prometheus.Gauge
}

// New registers the trust metrics with reg. Use prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Trust {
	factory := promauto.With(reg)
	return &Trust{
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payguard_resolutions_total",
			Help: "Resolutions started by entrypoint and initial verification state",
		}, []string{"entrypoint", "state"}),

		VerificationOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payguard_verification_outcomes_total",
			Help: "Asynchronous verification outcomes",
		}, []string{"outcome"}),

		VerificationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "payguard_verification_duration_seconds",
			Help:    "Duration of asynchronous origin verification",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		SlotWaits: factory.NewCounter(prometheus.CounterOpts{
			Name: "payguard_verification_slot_waits_total",
			Help: "Verification tasks that waited for a free slot",
		}),

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "payguard_active_sessions",
			Help: "Resolution sessions currently open",
		}),
	}
}

// IncResolution records a newly started resolution.
func (m *Trust) IncResolution(entrypoint, state string) {
	if m != nil {
		m.Resolutions.WithLabelValues(entrypoint, state).Inc()
	}
}

// IncVerificationOutcome records how a verification task ended.
func (m *Trust) IncVerificationOutcome(outcome string) {
	if m != nil {
		m.VerificationOutcomes.WithLabelValues(outcome).Inc()
	}
}

// ObserveVerificationLatency records the duration of a verification task.
func (m *Trust) ObserveVerificationLatency(d time.Duration) {
	if m != nil {
		m.VerificationLatency.Observe(d.Seconds())
	}
}

// IncSlotWait records a verification task queued behind a full slot pool.
func (m *Trust) IncSlotWait() {
	if m != nil {
		m.SlotWaits.Inc()
	}
}

// SessionOpened increments the active session gauge.
func (m *Trust) SessionOpened() {
	if m != nil {
		m.ActiveSessions.Inc()
	}
}

// SessionClosed decrements the active session gauge.
func (m *Trust) SessionClosed() {
	if m != nil {
		m.ActiveSessions.Dec()
	}
}
