package http

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datatidy/internal/services"
	"datatidy/internal/shared/testutil"
	"datatidy/internal/storage"
)

type unreachableStore struct {
	*storage.MemoryStore
}

func (unreachableStore) List(context.Context) ([]storage.ObjectInfo, error) {
	return nil, errors.New("connection refused")
}

func newHealthRouter(t *testing.T, store storage.Store) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	handler := NewHealthHandler(services.NewHealthService("1.0.0-test", store, nil, logger), logger)

	r := chi.NewRouter()
	r.Mount("/api", handler.Routes())
	return r
}

func TestHealthHandler(t *testing.T) {
	h := newHealthRouter(t, storage.NewMemoryStore())

	tests := []struct {
		path       string
		wantStatus string
	}{
		{"/api/health", "ok"},
		{"/api/health/ready", "ready"},
		{"/api/health/live", "alive"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.path, nil, "")
			require.Equal(t, http.StatusOK, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Equal(t, "1.0.0-test", body["version"])
		})
	}

	rec := do(t, h, http.MethodGet, "/api/version", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1", decodeBody(t, rec)["api_version"])
}

func TestHealthHandler_NotReady(t *testing.T) {
	h := newHealthRouter(t, unreachableStore{storage.NewMemoryStore()})

	rec := do(t, h, http.MethodGet, "/api/health/ready", nil, "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "not_ready", body["status"])
	assert.Contains(t, body["checks"].(map[string]any)["storage"], "connection refused")
}
