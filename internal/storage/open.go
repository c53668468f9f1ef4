package storage

import (
	"context"
	"fmt"
	"log/slog"

	"datatidy/internal/config"
)

// Open builds the Store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "storage"), slog.String("backend", cfg.Backend))

	switch cfg.Backend {
	case "", "filesystem":
		return NewFileStore(cfg.Dir, logger)
	case "memory":
		logger.Info("Memory store ready")
		return NewMemoryStore(), nil
	case "s3":
		return NewS3Store(ctx, S3Config{
			Bucket:       cfg.S3.Bucket,
			Prefix:       cfg.S3.Prefix,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
		}, logger)
	}
	return nil, fmt.Errorf("unknown storage backend: %q", cfg.Backend)
}
