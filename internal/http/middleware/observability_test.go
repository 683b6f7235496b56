package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"service-dispatch/internal/metrics"
	testlog "service-dispatch/internal/testutil"
)

func TestObservability_UsesRoutePatternForLabels(t *testing.T) {
	t.Parallel()

	requests, duration := metrics.NewHTTPRequestsTotal(), metrics.NewHTTPRequestDuration()
	logs := testlog.New()

	r := chi.NewRouter()
	r.Use(Observability(logs.Logger(), requests, duration))
	r.Get("/orders/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, id := range []string{"1", "2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/"+id, nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	require.Equal(t, 2.0, testutil.ToFloat64(requests.WithLabelValues(http.MethodGet, "/orders/{id}", "204")))
	require.Equal(t, uint64(2), histogramCount(t, duration, http.MethodGet, "/orders/{id}", "204"))

	e, ok := logs.Find("http request")
	require.True(t, ok)
	require.Equal(t, "info", e.Level)
	path, _ := e.Field("path")
	require.Equal(t, "/orders/{id}", path)
}

func TestObservability_ProbesLogAtDebug(t *testing.T) {
	t.Parallel()

	logs := testlog.New()
	r := chi.NewRouter()
	r.Use(Observability(logs.Logger(), nil, nil))
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	e, ok := logs.Find("http request")
	require.True(t, ok)
	require.Equal(t, "debug", e.Level)
}

func histogramCount(t *testing.T, hv *prometheus.HistogramVec, method, path, status string) uint64 {
	t.Helper()

	obs, err := hv.GetMetricWithLabelValues(method, path, status)
	require.NoError(t, err)

	metric, ok := obs.(prometheus.Metric)
	require.True(t, ok, "must implement prometheus.Metric")

	m := &dto.Metric{}
	require.NoError(t, metric.Write(m))

	h := m.GetHistogram()
	require.NotNil(t, h)
	return h.GetSampleCount()
}
