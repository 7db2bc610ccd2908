package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	Init()

	ObservePage("search", "ok")
	require.Equal(t, float64(1),
		testutil.ToFloat64(scraperPagesTotal.WithLabelValues("search", "ok")))

	ObserveRecords("search", 5)
	require.Equal(t, float64(5),
		testutil.ToFloat64(scraperRecordsTotal.WithLabelValues("search")))

	// Zero-count extractions add nothing.
	ObserveRecords("audio", 0)
	require.Equal(t, float64(0),
		testutil.ToFloat64(scraperRecordsTotal.WithLabelValues("audio")))

	ObserveCacheLookup("hit")
	require.Equal(t, float64(1),
		testutil.ToFloat64(cacheRequestsTotal.WithLabelValues("hit")))

	ObserveJob("succeeded")
	require.Equal(t, float64(1),
		testutil.ToFloat64(jobsTotal.WithLabelValues("succeeded")))
}

func TestActiveWorkersGauge(t *testing.T) {
	Init()

	base := testutil.ToFloat64(activeWorkers)
	IncActiveWorkers()
	require.Equal(t, base+1, testutil.ToFloat64(activeWorkers))
	DecActiveWorkers()
	require.Equal(t, base, testutil.ToFloat64(activeWorkers))
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	Init()

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/jobs/{job_id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/abc", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	count := testutil.CollectAndCount(httpRequestDurationSeconds)
	require.Greater(t, count, 0)
}

func TestObserveHTTPRequest(t *testing.T) {
	Init()

	ObserveHTTPRequest(http.MethodGet, "/healthz", http.StatusOK, 10*time.Millisecond)
	require.GreaterOrEqual(t,
		testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "200")), float64(1))
}
