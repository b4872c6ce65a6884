package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareRecordsRequests(t *testing.T) {
	m := New(prometheus.NewRegistry())

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/clients", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	count := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "404"))
	assert.Equal(t, float64(2), count)
}

func TestMiddlewareDefaultsTo200(t *testing.T) {
	m := New(prometheus.NewRegistry())

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	count := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "200"))
	assert.Equal(t, float64(1), count)
}

func TestCountersAreIndependentPerRegistry(t *testing.T) {
	a := New(prometheus.NewRegistry())
	b := New(prometheus.NewRegistry())

	a.CacheHits.Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(a.CacheHits))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.CacheHits))
}
