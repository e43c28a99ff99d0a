// Package metrics exposes Prometheus collectors for completion calls and config refreshes.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vnmchuo/letter-gateway/internal/apierr"
)

type Metrics struct {
	CompletionRequests *prometheus.CounterVec
	CompletionLatency  prometheus.Histogram
	CompletionTokens   *prometheus.CounterVec
	ConfigRefreshes    *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		CompletionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "letter_gateway",
			Name:      "completion_requests_total",
			Help:      "Completion requests by outcome (ok, config_error, upstream_<status>, error).",
		}, []string{"outcome"}),
		CompletionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "letter_gateway",
			Name:      "completion_duration_seconds",
			Help:      "Wall time of completion requests.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}),
		CompletionTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "letter_gateway",
			Name:      "completion_tokens_total",
			Help:      "Tokens reported by the upstream, by kind.",
		}, []string{"kind"}),
		ConfigRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "letter_gateway",
			Name:      "config_refreshes_total",
			Help:      "Model config refresh attempts by result.",
		}, []string{"result"}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.CompletionRequests,
		m.CompletionLatency,
		m.CompletionTokens,
		m.ConfigRefreshes,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveCompletion records one completion call.
func (m *Metrics) ObserveCompletion(elapsed time.Duration, inputTokens, completionTokens int64, err error) {
	m.CompletionRequests.WithLabelValues(Outcome(err)).Inc()
	m.CompletionLatency.Observe(elapsed.Seconds())
	if err == nil {
		m.CompletionTokens.WithLabelValues("input").Add(float64(inputTokens))
		m.CompletionTokens.WithLabelValues("completion").Add(float64(completionTokens))
	}
}

// ObserveRefresh implements modelconfig.RefreshObserver.
func (m *Metrics) ObserveRefresh(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ConfigRefreshes.WithLabelValues(result).Inc()
}

// Outcome maps an error to a low-cardinality label value.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if apierr.IsConfig(err) {
		return "config_error"
	}
	var ce *apierr.CompletionError
	if errors.As(err, &ce) {
		return "upstream_" + strconv.Itoa(ce.StatusCode)
	}
	return "error"
}
