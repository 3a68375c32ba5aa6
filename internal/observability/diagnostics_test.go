package observability_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeline/gitgate/internal/observability"
)

func TestPrometheusHandler_ServesMetrics(t *testing.T) {
	t.Parallel()

	handler, mp, err := observability.PrometheusHandler()
	require.NoError(t, err)
	require.NotNil(t, mp)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	// Prometheus exposition format uses text/plain with version parameter.
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestDiagnosticsServer_EndToEnd(t *testing.T) {
	t.Parallel()

	srv, err := observability.NewDiagnosticsServer("127.0.0.1:0")
	require.NoError(t, err)

	t.Cleanup(func() { _ = srv.Close() })

	// Record a poll cycle so the scrape has something to report.
	srv.Metrics.RecordCycle(context.Background(), "api", true, 250*time.Millisecond)
	srv.Metrics.RecordMergeFailure(context.Background(), "api")

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "gitgate_poll_cycles")
	assert.Contains(t, string(body), "gitgate_merge_failures")
}

func TestDiagnosticsServer_Close(t *testing.T) {
	t.Parallel()

	srv, err := observability.NewDiagnosticsServer("127.0.0.1:0")
	require.NoError(t, err)

	require.NoError(t, srv.Close())

	_, err = http.Get("http://" + srv.Addr() + "/healthz")
	assert.Error(t, err)
}
