package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	LoginsTotal      *prometheus.CounterVec
	TokenRefreshes   prometheus.Counter
	CascadeFailures  prometheus.Counter
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
}

// New creates and registers all Prometheus metrics. A nil registerer uses
// the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_api_requests_total",
			Help: "Total number of HTTP requests handled, by method and status",
		}, []string{"method", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "studio_api_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		LoginsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_api_logins_total",
			Help: "Total number of login attempts, by outcome",
		}, []string{"outcome"}),
		TokenRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Name: "studio_api_token_refreshes_total",
			Help: "Total number of refresh-token exchanges",
		}),
		CascadeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "studio_api_image_cascade_failures_total",
			Help: "Total number of image deletions that failed during a document delete",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "studio_api_list_cache_hits_total",
			Help: "Total number of resource list responses served from cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "studio_api_list_cache_misses_total",
			Help: "Total number of resource list requests that fell through to the store",
		}),
	}
}

// statusRecorder captures the status code written by the wrapped handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency for every handled request
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.RequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
