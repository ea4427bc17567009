package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/nurse-pay/metrics"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := metrics.New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/missions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/missions/"+id, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body),
		`nursepay_http_requests_total{code="404",method="GET",route="/api/missions/{id}"} 3`)
}

func TestObserveBackup(t *testing.T) {
	m := metrics.New()

	m.ObserveBackup("dir:/backups", 20*time.Millisecond, nil)
	m.ObserveBackup("dir:/backups", 20*time.Millisecond, errors.New("full"))
	m.ObserveBackup("dir:/backups", 20*time.Millisecond, nil)

	out, err := testutil.GatherAndCount(m.Registry(), "nursepay_backup_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 2, out)
}

func TestObserveICSExportAndRecords(t *testing.T) {
	m := metrics.New()
	m.ObserveICSExport(4)
	m.ObserveICSExport(2)
	m.SetRecordCounts(19, 42)

	count, err := testutil.GatherAndCount(m.Registry(), "nursepay_ics_exports_total", "nursepay_ics_events_total", "nursepay_records")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
