package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"datatidy/internal/storage"
	"datatidy/pkg/contracts"
	api "datatidy/pkg/contracts/api/v1"
)

// ClientCounter reports connected WebSocket clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	store     storage.Store
	clients   ClientCounter
	startTime time.Time
	logger    *slog.Logger
}

// NewHealthService creates a new health service. clients may be nil.
func NewHealthService(version string, store storage.Store, clients ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		store:     store,
		clients:   clients,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) api.HealthResponse {
	return api.HealthResponse{
		Status:    "ok",
		Version:   hs.version,
		Timestamp: time.Now(),
		Uptime:    time.Since(hs.startTime).Round(time.Second).String(),
	}
}

// ReadinessCheck reports whether the store answers. The status is "ready"
// or "not_ready".
func (hs *HealthService) ReadinessCheck(ctx context.Context) api.HealthResponse {
	status := api.HealthResponse{
		Status:    "ready",
		Version:   hs.version,
		Timestamp: time.Now(),
		Checks:    make(map[string]string, 2),
	}

	if hs.store == nil {
		status.Checks["storage"] = "not configured"
	} else if _, err := hs.store.List(ctx); err != nil {
		status.Checks["storage"] = fmt.Sprintf("error: %v", err)
		hs.logger.WarnContext(ctx, "readiness check failed", slog.String("error", err.Error()))
	} else {
		status.Checks["storage"] = "ok"
	}

	if hs.clients != nil {
		status.Checks["websocket"] = fmt.Sprintf("%d clients", hs.clients.ClientCount())
	}

	if status.Checks["storage"] != "ok" {
		status.Status = "not_ready"
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) api.HealthResponse {
	return api.HealthResponse{
		Status:    "alive",
		Version:   hs.version,
		Timestamp: time.Now(),
		Checks: map[string]string{
			"goroutines": fmt.Sprintf("%d", runtime.NumGoroutine()),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.GetVersionInfo()
	return map[string]interface{}{
		"version":      hs.version,
		"api_version":  info.APIVersion,
		"data_format":  info.DataFormat,
		"build_time":   info.BuildTime,
		"git_commit":   info.GitCommit,
		"go_version":   info.GoVersion,
		"os":           info.OS,
		"arch":         info.Architecture,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
}
