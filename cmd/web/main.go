package main

import (
	"context"
	"log/slog"
	"os"

	"datatidy/internal/app"
)

func main() {
	ctx := context.Background()

	application, err := app.NewApplication(ctx, nil, nil)
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
