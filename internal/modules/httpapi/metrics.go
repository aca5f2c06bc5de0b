package httpapi

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mikey-austin/tv_animator/internal/bus"
	"github.com/mikey-austin/tv_animator/internal/registry"
)

// Metrics holds the Prometheus instruments for the daemon.
type Metrics struct {
	registry      *prometheus.Registry
	requestsTotal prometheus.Counter
	errorsTotal   prometheus.Counter
	triggersTotal *prometheus.CounterVec
	connections   *prometheus.GaugeVec
}

// NewMetrics creates and registers the daemon metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tva_http_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tva_http_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	triggersTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tva_triggers_total",
		Help: "Total number of accepted media changes by trigger source",
	}, []string{"cause"})
	connections := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tva_connections",
		Help: "Live client connections by transport role",
	}, []string{"role"})

	reg.MustRegister(requestsTotal, errorsTotal, triggersTotal, connections)

	return &Metrics{
		registry:      reg,
		requestsTotal: requestsTotal,
		errorsTotal:   errorsTotal,
		triggersTotal: triggersTotal,
		connections:   connections,
	}
}

// IncRequests increments the request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the error counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// SetConnections refreshes the connection gauges from a census.
func (m *Metrics) SetConnections(counts registry.Counts) {
	m.connections.WithLabelValues("display").Set(float64(len(counts.Displays)))
	m.connections.WithLabelValues("admin").Set(float64(counts.AdminCount))
	m.connections.WithLabelValues("bot").Set(float64(counts.BotCount))
	m.connections.WithLabelValues("legacy").Set(float64(counts.LegacyCount))
}

// ObserveBus counts accepted media changes by cause until ctx is
// cancelled. Run it in its own goroutine.
func (m *Metrics) ObserveBus(ctx context.Context, b *bus.Bus) {
	events, cancel := b.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if changed, isChange := ev.(bus.MediaChanged); isChange {
				m.triggersTotal.WithLabelValues(string(changed.Cause)).Inc()
			}
		}
	}
}

// Handler serves the scrape endpoint. updateGauges runs before each
// scrape to refresh point-in-time gauges.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestMiddleware records request and error counts for every route.
func RequestMiddleware(m *Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrap := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrap, r)
			m.IncRequests()
			if wrap.status >= 400 {
				m.IncErrors()
			}
		})
	}
}
