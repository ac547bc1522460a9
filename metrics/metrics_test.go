package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/instituciones/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/api/instituciones/1", "/api/instituciones/2", "/ok"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/instituciones/{id}", "GET", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/ok", "GET", "200")))
}

func TestDomainCountersAndHandler(t *testing.T) {
	m := New()
	m.ObserveSearch("all")
	m.ObserveSearch("all")
	m.ObserveDegraded("campos")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.searches.WithLabelValues("all")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.degradedResponses.WithLabelValues("campos")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "sei_search_queries_total")
	assert.Contains(t, string(body), "sei_degraded_responses_total")

	assert.NotSame(t, New().Registry(), m.Registry())
}
