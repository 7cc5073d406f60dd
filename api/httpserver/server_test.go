package httpserver

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func setupTestServer(t *testing.T, registrars ...RouteRegistrar) *httptest.Server {
	t.Helper()

	srv, err := New(&Config{
		Log:                      slog.New(slog.NewTextHandler(io.Discard, nil)),
		DrainDuration:            time.Millisecond,
		GracefulShutdownDuration: time.Second,
	}, registrars...)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func getStatus(t *testing.T, ts *httptest.Server, path string) int {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestHealthEndpoints(t *testing.T) {
	ts := setupTestServer(t)

	require.Equal(t, http.StatusOK, getStatus(t, ts, "/livez"))
	require.Equal(t, http.StatusOK, getStatus(t, ts, "/readyz"))
}

func TestDrainUndrain(t *testing.T) {
	ts := setupTestServer(t)

	require.Equal(t, http.StatusOK, getStatus(t, ts, "/drain"))
	require.Equal(t, http.StatusServiceUnavailable, getStatus(t, ts, "/readyz"))

	// Draining again is a no-op, readiness stays down.
	require.Equal(t, http.StatusOK, getStatus(t, ts, "/drain"))
	require.Equal(t, http.StatusServiceUnavailable, getStatus(t, ts, "/readyz"))

	require.Equal(t, http.StatusOK, getStatus(t, ts, "/undrain"))
	require.Equal(t, http.StatusOK, getStatus(t, ts, "/readyz"))
}

type pingRegistrar struct{}

func (pingRegistrar) RegisterRoutes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})
}

func TestRegistrarRoutes(t *testing.T) {
	ts := setupTestServer(t, pingRegistrar{})
	require.Equal(t, http.StatusOK, getStatus(t, ts, "/ping"))
}
