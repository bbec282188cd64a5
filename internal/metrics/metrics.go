// internal/metrics/metrics.go

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"RailSentinelAPI/internal/models"
)

// Collector owns the pipeline's Prometheus instruments. One instance is
// shared by the cycle runner and the MQTT feed.
type Collector struct {
	registry *prometheus.Registry

	cyclesTotal   prometheus.Counter
	degradedTotal prometheus.Counter
	cycleDuration prometheus.Histogram
	overallRisk   prometheus.Gauge
	findingsTotal *prometheus.CounterVec
	feedAccepted  *prometheus.CounterVec
	feedRejected  *prometheus.CounterVec
	activeAlerts  prometheus.Gauge
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		cyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "railsentinel_cycles_total",
			Help: "Completed evaluation cycles.",
		}),
		degradedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "railsentinel_cycles_degraded_total",
			Help: "Evaluation cycles that finished degraded.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "railsentinel_cycle_duration_seconds",
			Help:    "Wall time of one evaluation cycle.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		overallRisk: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "railsentinel_overall_risk_score",
			Help: "Overall risk score of the latest assessment (0-100).",
		}),
		findingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "railsentinel_findings_total",
			Help: "Risk findings produced, by category.",
		}, []string{"category"}),
		feedAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "railsentinel_feed_messages_accepted_total",
			Help: "Feed messages applied to the fleet state.",
		}, []string{"kind"}),
		feedRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "railsentinel_feed_messages_rejected_total",
			Help: "Feed messages dropped, by reason.",
		}, []string{"kind", "reason"}),
		activeAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "railsentinel_active_alerts",
			Help: "Unresolved alerts currently held by the alert manager.",
		}),
	}

	c.registry.MustRegister(
		c.cyclesTotal,
		c.degradedTotal,
		c.cycleDuration,
		c.overallRisk,
		c.findingsTotal,
		c.feedAccepted,
		c.feedRejected,
		c.activeAlerts,
	)

	return c
}

// Handler serves the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveCycle records the outcome of one evaluation cycle.
func (c *Collector) ObserveCycle(a *models.RiskAssessment) {
	c.cyclesTotal.Inc()
	if a.Degraded {
		c.degradedTotal.Inc()
	}
	c.cycleDuration.Observe(a.ProcessingTime.Seconds())
	c.overallRisk.Set(a.OverallRiskScore)

	c.findingsTotal.WithLabelValues("rule_violation").Add(float64(len(a.Violations)))
	c.findingsTotal.WithLabelValues("signal_conflict").Add(float64(len(a.SignalConflicts)))
	c.findingsTotal.WithLabelValues("collision_scenario").Add(float64(len(a.CollisionScenarios)))
	c.findingsTotal.WithLabelValues("routing_risk").Add(float64(len(a.RoutingRisks)))
	overloaded := 0
	for _, m := range a.Congestion {
		if m.Overloaded {
			overloaded++
		}
	}
	c.findingsTotal.WithLabelValues("network_overload").Add(float64(overloaded))
}

// FeedMessageAccepted counts one applied feed message.
func (c *Collector) FeedMessageAccepted(kind string) {
	c.feedAccepted.WithLabelValues(kind).Inc()
}

// FeedMessageRejected counts one dropped feed message.
func (c *Collector) FeedMessageRejected(kind, reason string) {
	c.feedRejected.WithLabelValues(kind, reason).Inc()
}

// SetActiveAlerts updates the active alert gauge.
func (c *Collector) SetActiveAlerts(n int) {
	c.activeAlerts.Set(float64(n))
}
