package workflow

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for workflow notification delivery.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	persisted     *prometheus.CounterVec
	failures      *prometheus.CounterVec
	emptyAudience *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors against registerer, or against the
// default Prometheus registerer when it is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		persisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "notifications_persisted_total",
			Help:      "Notifications durably stored, by trigger.",
		}, []string{"trigger"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "notification_failures_total",
			Help:      "Per-recipient delivery failures, by trigger and stage.",
		}, []string{"trigger", "stage"}),
		emptyAudience: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "empty_audience_total",
			Help:      "Required triggers that resolved to no recipient.",
		}, []string{"trigger"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "workflow",
			Name:      "delivery_duration_seconds",
			Help:      "Wall time of one fan-out batch.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"trigger"}),
	}
	registerer.MustRegister(m.persisted, m.failures, m.emptyAudience, m.duration)
	return m
}

func (m *Metrics) recordPersisted(trigger TriggerType) {
	if m == nil {
		return
	}
	m.persisted.WithLabelValues(string(trigger)).Inc()
}

func (m *Metrics) recordFailure(trigger TriggerType, stage FailureStage) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(string(trigger), string(stage)).Inc()
}

func (m *Metrics) recordEmptyAudience(trigger TriggerType) {
	if m == nil {
		return
	}
	m.emptyAudience.WithLabelValues(string(trigger)).Inc()
}

func (m *Metrics) observeDuration(trigger TriggerType, start time.Time) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(string(trigger)).Observe(time.Since(start).Seconds())
}
