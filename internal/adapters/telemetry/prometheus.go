package telemetry

import (
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bizzytrack/backend/internal/ports"
)

const namespace = "bizzytrack"

// PrometheusTelemetry counts service events and HTTP traffic on a private
// registry.
type PrometheusTelemetry struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
	inFlight prometheus.Gauge
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ ports.Telemetry = (*PrometheusTelemetry)(nil)

func NewPrometheusTelemetry() *PrometheusTelemetry {
	t := &PrometheusTelemetry{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Total number of recorded domain events.",
			},
			[]string{"event"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "inflight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
			},
			[]string{"method", "route"},
		),
	}

	t.registry.MustRegister(
		t.events,
		t.inFlight,
		t.requests,
		t.duration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return t
}

// Record counts the event. Attributes are not used as labels to keep series
// bounded.
func (t *PrometheusTelemetry) Record(name string, _ map[string]string) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "unknown"
	}
	t.events.WithLabelValues(name).Inc()
}

// Registry exposes the collectors for tests and extra registrations.
func (t *PrometheusTelemetry) Registry() *prometheus.Registry {
	return t.registry
}

// Handler serves the registry in the Prometheus text format.
func (t *PrometheusTelemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps next with request, duration and in-flight metrics.
func (t *PrometheusTelemetry) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		t.inFlight.Inc()
		defer t.inFlight.Dec()

		next.ServeHTTP(rec, r)

		route := CanonicalRoute(r.URL.Path)
		method := strings.ToUpper(r.Method)
		t.requests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		t.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// CanonicalRoute replaces record ids in a path with :id so routes stay a
// bounded label set.
func CanonicalRoute(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	for idx, part := range parts {
		if looksLikeID(part) {
			parts[idx] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

// looksLikeID matches prefixed sequence ids such as sale_12 and UUIDs.
func looksLikeID(segment string) bool {
	if _, err := uuid.Parse(segment); err == nil {
		return true
	}
	idx := strings.LastIndexByte(segment, '_')
	if idx <= 0 || idx == len(segment)-1 {
		return false
	}
	for _, r := range segment[idx+1:] {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
