package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"datatidy/internal/shared/testutil"
	"datatidy/internal/storage"
)

type staticClients int

func (c staticClients) ClientCount() int { return int(c) }

type brokenStore struct {
	*storage.MemoryStore
}

func (brokenStore) List(context.Context) ([]storage.ObjectInfo, error) {
	return nil, errors.New("bucket unreachable")
}

func TestHealthService(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	ctx := context.Background()

	hs := NewHealthService("1.2.3", storage.NewMemoryStore(), staticClients(2), logger)

	health := hs.HealthCheck(ctx)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "1.2.3", health.Version)

	ready := hs.ReadinessCheck(ctx)
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, "ok", ready.Checks["storage"])
	assert.Equal(t, "2 clients", ready.Checks["websocket"])

	live := hs.LivenessCheck(ctx)
	assert.Equal(t, "alive", live.Status)
	assert.NotEmpty(t, live.Checks["goroutines"])

	version := hs.Version()
	assert.Equal(t, "1.2.3", version["version"])
	assert.Equal(t, "v1", version["api_version"])

	testutil.AssertNoErrors(t, logs)
}

func TestHealthService_NotReady(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)

	hs := NewHealthService("1.2.3", brokenStore{storage.NewMemoryStore()}, nil, logger)
	ready := hs.ReadinessCheck(context.Background())

	assert.Equal(t, "not_ready", ready.Status)
	assert.Contains(t, ready.Checks["storage"], "bucket unreachable")
	assert.NotContains(t, ready.Checks, "websocket")
	assert.True(t, logs.ContainsMessage("readiness check failed"))

	hs = NewHealthService("1.2.3", nil, nil, logger)
	assert.Equal(t, "not_ready", hs.ReadinessCheck(context.Background()).Status)
}
