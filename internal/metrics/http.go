package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var StatusAPI = StatusAPIExporter{
	inFlight: promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "status_api",
		Name:      "requests_in_flight",
		Help:      "Status API requests being served right now.",
	}),
	duration: promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "status_api",
			Name:      "request_duration_seconds",
			Help:      "How long it took to answer a status API request.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"method", "route", "code"},
	),
	total: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "status_api",
			Name:      "requests_total",
			Help:      "Status API requests answered, by route and response code.",
		},
		[]string{"method", "route", "code"},
	),
}

type StatusAPIExporter struct {
	inFlight prometheus.Gauge
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
}

// Begin marks a request as in flight. The returned function must be called once
// the route and the response code are known.
func (e *StatusAPIExporter) Begin() func(method, route string, code int) {
	startedAt := time.Now()
	e.inFlight.Inc()

	return func(method, route string, code int) {
		e.inFlight.Dec()

		labels := prometheus.Labels{
			"method": method,
			"route":  route,
			"code":   strconv.Itoa(code),
		}
		e.total.With(labels).Inc()
		e.duration.With(labels).Observe(time.Since(startedAt).Seconds())
	}
}
