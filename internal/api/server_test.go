package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/fleetd/internal/core"
	"github.com/hugo-lorenzo-mato/fleetd/internal/registry"
	"github.com/hugo-lorenzo-mato/fleetd/internal/store"
)

func newTestServer(t *testing.T) (*store.Store, *registry.Registry, *Server) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "fleet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := registry.New(st,
		registry.WithInstanceID("inst-local"),
		registry.WithAggregateFields([]string{"processing_count", "llm_active_calls"}),
	)
	srv := New(DefaultConfig(), reg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return st, reg, srv
}

func doRequest(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	_, _, srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "inst-local", body["instance_id"])
}

func TestMetricsAll(t *testing.T) {
	_, reg, srv := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, reg.Heartbeat(ctx, 2, true, core.Metrics{"llm_active_calls": 3}))

	rec := doRequest(t, srv, http.MethodGet, "/metrics/all")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["degraded"])
	assert.Equal(t, float64(1), body["instance_count"])
	assert.Equal(t, float64(3), body["total_llm_active_calls"])
	assert.Equal(t, float64(2), body["total_processing_count"])
}

func TestMetricsAll_DegradesOnStoreOutage(t *testing.T) {
	st, reg, srv := newTestServer(t)
	reg.SetMetricsCollector(func() core.Metrics {
		return core.Metrics{"processing_count": 4}
	})
	st.Close()

	rec := doRequest(t, srv, http.MethodGet, "/metrics/all")

	// A store outage must never surface as a 5xx here.
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["degraded"])
	assert.NotEmpty(t, body["degraded_reason"])
	assert.Equal(t, float64(1), body["instance_count"])
	assert.Equal(t, float64(4), body["total_processing_count"])
}

func TestMetricsAll_DegradesOnMalformedPayload(t *testing.T) {
	st, _, srv := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertHeartbeat(ctx, "bad", "host-1", time.Now(), 0, false, "{broken"))

	rec := doRequest(t, srv, http.MethodGet, "/metrics/all")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["degraded"])
}

func TestListInstances(t *testing.T) {
	_, reg, srv := newTestServer(t)
	require.NoError(t, reg.Heartbeat(context.Background(), 0, false, nil))

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/instances/")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["instance_count"])
}

func TestListInstances_StoreOutageIsAnError(t *testing.T) {
	st, _, srv := newTestServer(t)
	st.Close()

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/instances/")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetInstance(t *testing.T) {
	_, reg, srv := newTestServer(t)
	require.NoError(t, reg.Heartbeat(context.Background(), 5, true, nil))

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/instances/inst-local/")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "inst-local", body["instance_id"])
	assert.Equal(t, float64(5), body["processing_count"])
}

func TestGetInstance_UnknownReturns404(t *testing.T) {
	_, _, srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/instances/ghost/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDrainLifecycle(t *testing.T) {
	_, reg, srv := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, reg.Heartbeat(ctx, 0, false, nil))

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/instances/inst-local/drain")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["drain_requested"])

	draining, err := reg.Draining(ctx)
	require.NoError(t, err)
	assert.True(t, draining)

	rec = doRequest(t, srv, http.MethodDelete, "/api/v1/instances/inst-local/drain")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, false, body["drain_requested"])

	draining, err = reg.Draining(ctx)
	require.NoError(t, err)
	assert.False(t, draining)
}

func TestDrain_UnknownInstanceReturns404(t *testing.T) {
	_, _, srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/instances/ghost/drain")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
