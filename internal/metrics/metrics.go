// Package metrics exports activity synchronization counters to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rpggio/agenthub/internal/domain/activity"
)

const namespace = "agenthub"

// Metrics implements the activity, realtime and session observers.
type Metrics struct {
	activitiesCreated *prometheus.CounterVec
	persistFailures   *prometheus.CounterVec
	notifyFailures    *prometheus.CounterVec
	realtimeEvents    *prometheus.CounterVec
	resubscriptions   prometheus.Counter
	activeSessions    prometheus.Gauge
}

// New creates the collectors and registers them with reg. Collectors that are
// already registered are reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		activitiesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activities_created_total",
			Help:      "Activities added through user sessions, by source widget.",
		}, []string{"source"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Rejected persistence writes, by operation.",
		}, []string{"op"}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_failures_total",
			Help:      "Failed workflow notifications, by reason.",
		}, []string{"reason"}),
		realtimeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_events_total",
			Help:      "Realtime change events by type and merge result.",
		}, []string{"type", "result"}),
		resubscriptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_resubscriptions_total",
			Help:      "Realtime subscriptions re-established after a disconnect.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Signed-in user sessions.",
		}),
	}

	if err := register(reg, &m.activitiesCreated); err != nil {
		return nil, err
	}
	if err := register(reg, &m.persistFailures); err != nil {
		return nil, err
	}
	if err := register(reg, &m.notifyFailures); err != nil {
		return nil, err
	}
	if err := register(reg, &m.realtimeEvents); err != nil {
		return nil, err
	}
	if err := register(reg, &m.resubscriptions); err != nil {
		return nil, err
	}
	if err := register(reg, &m.activeSessions); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c *C) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				*c = existing
				return nil
			}
		}
		return fmt.Errorf("register metric: %w", err)
	}
	return nil
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ActivityCreated counts a new activity.
func (m *Metrics) ActivityCreated(source string) {
	m.activitiesCreated.WithLabelValues(source).Inc()
}

// PersistFailed counts a rejected persistence write.
func (m *Metrics) PersistFailed(op string) {
	m.persistFailures.WithLabelValues(op).Inc()
}

// NotifyFailed counts a failed workflow notification.
func (m *Metrics) NotifyFailed(reason string) {
	m.notifyFailures.WithLabelValues(reason).Inc()
}

// EventApplied counts a realtime event by its merge outcome.
func (m *Metrics) EventApplied(eventType string, result activity.MergeResult) {
	m.realtimeEvents.WithLabelValues(eventType, result.String()).Inc()
}

// Resubscribed counts a re-established realtime subscription.
func (m *Metrics) Resubscribed() {
	m.resubscriptions.Inc()
}

// SessionsActive sets the signed-in session gauge.
func (m *Metrics) SessionsActive(n int) {
	m.activeSessions.Set(float64(n))
}
