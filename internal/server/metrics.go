package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"parking-manager/internal/parking"
)

// spacesCollector reads occupancy from the manager at scrape time.
type spacesCollector struct {
	manager *parking.Manager

	spaces         *prometheus.Desc
	activeSessions *prometheus.Desc
}

func newSpacesCollector(manager *parking.Manager) *spacesCollector {
	return &spacesCollector{
		manager: manager,
		spaces: prometheus.NewDesc("parking_spaces",
			"Parking spaces by floor and status.",
			[]string{"floor", "status"}, nil),
		activeSessions: prometheus.NewDesc("parking_active_sessions",
			"Sessions currently holding a space.",
			nil, nil),
	}
}

func (c *spacesCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.spaces
	ch <- c.activeSessions
}

func (c *spacesCollector) Collect(ch chan<- prometheus.Metric) {
	counts := make(map[parking.Floor]map[parking.SpaceStatus]int)
	for _, floor := range parking.Floors {
		counts[floor] = map[parking.SpaceStatus]int{
			parking.SpaceAvailable:   0,
			parking.SpaceOccupied:    0,
			parking.SpaceMaintenance: 0,
		}
	}
	for _, s := range c.manager.ListSpaces(parking.SpaceFilter{}) {
		if counts[s.Floor] == nil {
			counts[s.Floor] = make(map[parking.SpaceStatus]int)
		}
		counts[s.Floor][s.Status]++
	}

	for floor, byStatus := range counts {
		for status, n := range byStatus {
			ch <- prometheus.MustNewConstMetric(c.spaces, prometheus.GaugeValue,
				float64(n), string(floor), string(status))
		}
	}

	active := len(c.manager.ListSessions(parking.SessionActive))
	ch <- prometheus.MustNewConstMetric(c.activeSessions, prometheus.GaugeValue, float64(active))
}

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newHTTPMetrics() *httpMetrics {
	return &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *httpMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func newRegistry(manager *parking.Manager, httpMetrics *httpMetrics) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		newSpacesCollector(manager),
		httpMetrics.requests,
		httpMetrics.duration,
	)
	return registry
}

func metricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}
