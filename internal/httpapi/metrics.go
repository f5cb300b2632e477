package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for golf_shorten_requests_total.
const (
	outcomeOK          = "ok"
	outcomeInvalidMode = "invalid_mode"
	outcomeError       = "error"
)

// Metrics holds the service collectors. Each Metrics owns its registry so
// tests can create servers without clashing on the default registerer.
type Metrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	saved     *prometheus.HistogramVec
	cacheHits prometheus.Counter
	httpTotal *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "golf_shorten_requests_total",
				Help: "Number of shorten requests.",
			},
			[]string{"engine", "mode", "outcome"},
		),
		saved: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "golf_runes_saved",
				Help:    "Code points removed per shorten request.",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 500},
			},
			[]string{"engine"},
		),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "golf_cache_hits_total",
			Help: "Shorten requests served from the result cache.",
		}),
		httpTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "golf_http_requests_total",
				Help: "Number of HTTP requests.",
			},
			[]string{"path", "status"},
		),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "golf_http_response_time_seconds",
			Help: "Duration of HTTP requests.",
		}, []string{"path"}),
	}

	m.registry.MustRegister(
		m.requests,
		m.saved,
		m.cacheHits,
		m.httpTotal,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) observeShorten(engine, mode, outcome string, saved int, cached bool) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(engine, mode, outcome).Inc()
	if outcome != outcomeOK {
		return
	}
	m.saved.WithLabelValues(engine).Observe(float64(saved))
	if cached {
		m.cacheHits.Inc()
	}
}

// otherRoute labels requests that matched no registered pattern.
const otherRoute = "other"

// Instrument counts requests and their latency by matched route. next must
// route with an http.ServeMux, which records the pattern on r. Unmatched
// requests are labelled "other".
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newStatusRecorder(w)

		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = otherRoute
		}
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.httpTotal.WithLabelValues(route, strconv.Itoa(rw.status)).Inc()
	})
}
