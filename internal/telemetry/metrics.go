package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	RequestTotal       *prometheus.CounterVec
	RequestDurationMs  *prometheus.HistogramVec
	TokensTotal        *prometheus.CounterVec
	CostUSDTotal       *prometheus.CounterVec
	ProviderFaultTotal *prometheus.CounterVec
	RateLimitHitTotal  *prometheus.CounterVec
	WindowEvictions    prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics on the default
// registry. Call once per process.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prism_request_total",
			Help: "Total number of requests processed by the gateway.",
		}, []string{"operation", "model", "provider", "status"}),

		RequestDurationMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "prism_request_duration_ms",
			Help:    "Total request duration in milliseconds (including provider latency).",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"operation", "provider"}),

		TokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prism_tokens_total",
			Help: "Total tokens processed.",
		}, []string{"model", "direction"}),

		CostUSDTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prism_cost_usd_total",
			Help: "Estimated total cost in USD.",
		}, []string{"model", "provider"}),

		ProviderFaultTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prism_provider_fault_total",
			Help: "Provider failures by classified kind.",
		}, []string{"provider", "kind"}),

		RateLimitHitTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prism_rate_limit_hit_total",
			Help: "Requests rejected by rate or spend limits.",
		}, []string{"dimension"}),

		WindowEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "prism_window_evictions_total",
			Help: "Conversation turns evicted from retained windows.",
		}),
	}
}

// RequestLabels holds the label values for recording a request.
type RequestLabels struct {
	Operation        string
	Model            string
	Provider         string
	Status           string
	DurationMs       float64
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
}

// RecordRequest records metrics for a completed request.
func (m *Metrics) RecordRequest(labels RequestLabels) {
	m.RequestTotal.WithLabelValues(
		labels.Operation, labels.Model, labels.Provider, labels.Status,
	).Inc()

	m.RequestDurationMs.WithLabelValues(
		labels.Operation, labels.Provider,
	).Observe(labels.DurationMs)

	if labels.PromptTokens > 0 {
		m.TokensTotal.WithLabelValues(labels.Model, "prompt").Add(float64(labels.PromptTokens))
	}
	if labels.CompletionTokens > 0 {
		m.TokensTotal.WithLabelValues(labels.Model, "completion").Add(float64(labels.CompletionTokens))
	}
	if labels.CostUSD > 0 {
		m.CostUSDTotal.WithLabelValues(labels.Model, labels.Provider).Add(labels.CostUSD)
	}
}

// RecordProviderFault records a classified provider failure.
func (m *Metrics) RecordProviderFault(provider, kind string) {
	m.ProviderFaultTotal.WithLabelValues(provider, kind).Inc()
}

// RecordRateLimitHit records a request rejected by a limit dimension.
func (m *Metrics) RecordRateLimitHit(dimension string) {
	m.RateLimitHitTotal.WithLabelValues(dimension).Inc()
}
