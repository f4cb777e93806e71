package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "diagnoser"

// Metrics implements orchestrator.Observer and records RPC latency.
type Metrics struct {
	diagnoses *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	rpcs      *prometheus.HistogramVec
}

// New registers the collectors on reg. model labels every diagnosis series.
func New(reg prometheus.Registerer, model string) *Metrics {
	f := promauto.With(reg)
	constLabels := prometheus.Labels{"model": model}
	return &Metrics{
		// Labels: label (fault, no-fault)
		diagnoses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "diagnoses_total",
			Help:        "Records diagnosed, by gate label",
			ConstLabels: constLabels,
		}, []string{"label"}),
		// Labels: stage (discretize, infer, record)
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "errors_total",
			Help:        "Records that failed, by pipeline stage",
			ConstLabels: constLabels,
		}, []string{"stage"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "diagnosis_duration_seconds",
			Help:        "Time to discretize, infer and gate one record",
			Buckets:     []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			ConstLabels: constLabels,
		}, []string{"label"}),
		// Labels: method, code (gRPC status code)
		rpcs: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "duration_seconds",
			Help:      "gRPC handler latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "code"}),
	}
}

// ObserveDiagnosis counts one successful diagnosis.
func (m *Metrics) ObserveDiagnosis(label string, elapsed time.Duration) {
	m.diagnoses.WithLabelValues(label).Inc()
	m.latency.WithLabelValues(label).Observe(elapsed.Seconds())
}

// ObserveError counts one failed record.
func (m *Metrics) ObserveError(stage string) {
	m.errors.WithLabelValues(stage).Inc()
}

// ObserveRPC records one handled call.
func (m *Metrics) ObserveRPC(method, code string, elapsed time.Duration) {
	m.rpcs.WithLabelValues(method, code).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
