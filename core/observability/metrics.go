package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds the Prometheus metrics exported by the server core. All
// metrics live on a private registry so embedding applications control
// exposition themselves.
type Metrics struct {
	requestsTotal       *prometheus.CounterVec
	handlerFaults       prometheus.Counter
	malformedRequests   prometheus.Counter
	connectionsAccepted prometheus.Counter
	activeConnections   prometheus.Gauge
	registry            *prometheus.Registry
}

// NewMetrics creates a Metrics instance under the given namespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "thinserver"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	m.handlerFaults = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_faults_total",
			Help:      "Total number of handler panics converted to 500 responses",
		},
	)

	m.malformedRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_requests_total",
			Help:      "Total number of unparsable requests",
		},
	)

	m.connectionsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Total number of accepted transport connections",
		},
	)

	m.activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of currently open connections",
		},
	)

	m.registry.MustRegister(
		m.requestsTotal,
		m.handlerFaults,
		m.malformedRequests,
		m.connectionsAccepted,
		m.activeConnections,
		collectors.NewGoCollector(),
	)

	return m
}

// Registry returns the private registry for exposition by the embedding
// application.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(method, route string, status int) {
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// ObserveHandlerFault records a recovered handler panic.
func (m *Metrics) ObserveHandlerFault() { m.handlerFaults.Inc() }

// ObserveMalformedRequest records an unparsable request.
func (m *Metrics) ObserveMalformedRequest() { m.malformedRequests.Inc() }

// ConnOpened records an accepted connection.
func (m *Metrics) ConnOpened() {
	m.connectionsAccepted.Inc()
	m.activeConnections.Inc()
}

// ConnClosed records a closed connection.
func (m *Metrics) ConnClosed() { m.activeConnections.Dec() }

// HandlerFaults returns the current fault count, for tests and
// diagnostics endpoints.
func (m *Metrics) HandlerFaults() float64 {
	return counterValue(m.handlerFaults)
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
