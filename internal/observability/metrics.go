package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"blueprint/internal/llmclient"
)

// Metrics bundles the Prometheus collectors of the service on a private
// registry.
type Metrics struct {
	registry          *prometheus.Registry
	Invocations       *prometheus.CounterVec
	InvocationLatency *prometheus.HistogramVec
	Failovers         *prometheus.CounterVec
	Stages            *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec
	Bundles           *prometheus.CounterVec
	ActiveStreams     *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	invocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "blueprint_llm_invocations_total",
		Help: "Model invocations by provider, model and outcome",
	}, []string{"provider", "model", "outcome"})

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blueprint_llm_invocation_duration_seconds",
		Help:    "Model invocation latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
	}, []string{"provider", "model"})

	failovers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "blueprint_llm_failovers_total",
		Help: "Switches from primary to fallback model",
	}, []string{"from", "to", "kind"})

	stages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "blueprint_stages_total",
		Help: "Generation stages by stage key and status",
	}, []string{"stage", "status"})

	stageDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blueprint_stage_duration_seconds",
		Help:    "Generation stage wall time in seconds",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"stage"})

	bundles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "blueprint_bundles_total",
		Help: "Generated bundles by overall status",
	}, []string{"status"})

	active := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "blueprint_active_streams",
		Help: "Open progress streams by transport",
	}, []string{"transport"})

	reg.MustRegister(invocations, latency, failovers, stages, stageDur, bundles, active,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry:          reg,
		Invocations:       invocations,
		InvocationLatency: latency,
		Failovers:         failovers,
		Stages:            stages,
		StageDuration:     stageDur,
		Bundles:           bundles,
		ActiveStreams:     active,
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveInvocation(provider, model, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Invocations.WithLabelValues(orUnknown(provider), orUnknown(model), orUnknown(outcome)).Inc()
	m.InvocationLatency.WithLabelValues(orUnknown(provider), orUnknown(model)).Observe(d.Seconds())
}

func (m *Metrics) ObserveFailover(from, to string, kind llmclient.Kind) {
	if m == nil {
		return
	}
	m.Failovers.WithLabelValues(orUnknown(from), orUnknown(to), orUnknown(string(kind))).Inc()
}

func (m *Metrics) ObserveStage(stage, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Stages.WithLabelValues(orUnknown(stage), orUnknown(status)).Inc()
	m.StageDuration.WithLabelValues(orUnknown(stage)).Observe(d.Seconds())
}

func (m *Metrics) ObserveBundle(status string) {
	if m == nil {
		return
	}
	m.Bundles.WithLabelValues(orUnknown(status)).Inc()
}

func (m *Metrics) IncActiveStreams(transport string) {
	if m == nil {
		return
	}
	m.ActiveStreams.WithLabelValues(orUnknown(transport)).Inc()
}

func (m *Metrics) DecActiveStreams(transport string) {
	if m == nil {
		return
	}
	m.ActiveStreams.WithLabelValues(orUnknown(transport)).Dec()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
