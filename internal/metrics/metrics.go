package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	registry     *prometheus.Registry
	verifyCycles *prometheus.CounterVec
	authState    *prometheus.GaugeVec
	apiRetries   prometheus.Counter
	apiRequests  *prometheus.CounterVec
}

var states = []string{"LOADING", "ANONYMOUS", "AUTHENTICATED", "REJECTED"}

func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		verifyCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verify_cycles_total",
			Help:      "Verify cycles by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		authState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "auth_state",
			Help:      "1 for the current auth context state",
		}, []string{"state"}),
		apiRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_client_retries_total",
			Help:      "Backend requests retried after a 401 with a refreshed token",
		}),
		apiRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_client_requests_total",
			Help:      "Backend requests by response status class",
		}, []string{"class"}),
	}
}

func (m *Metrics) ObserveCycle(trigger string, outcome string) {
	if m == nil {
		return
	}
	m.verifyCycles.WithLabelValues(trigger, outcome).Inc()
}

func (m *Metrics) SetState(current string) {
	if m == nil {
		return
	}
	for _, s := range states {
		value := 0.0
		if s == current {
			value = 1
		}
		m.authState.WithLabelValues(s).Set(value)
	}
}

func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.apiRetries.Inc()
}

func (m *Metrics) ObserveAPIStatus(status int) {
	if m == nil {
		return
	}
	class := "error"
	switch {
	case status >= 500:
		class = "5xx"
	case status >= 400:
		class = "4xx"
	case status >= 200:
		class = "2xx"
	}
	m.apiRequests.WithLabelValues(class).Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
