package http

import (
	"context"
	"io"

	"datatidy/internal/services"
	api "datatidy/pkg/contracts/api/v1"
)

// DatasetServiceInterface defines the dataset operations the handlers use
type DatasetServiceInterface interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*api.StatsResponse, error)
	Stats(ctx context.Context, filename string) (*api.StatsResponse, error)
	Data(ctx context.Context, filename string) (*api.DataResponse, error)
	View(ctx context.Context, filename string, q api.ViewQuery) (*api.ViewResponse, error)
	Clean(ctx context.Context, req *api.CleanRequest) (*api.CleanResponse, error)
	Report(ctx context.Context, cleanedName string) (*api.CleaningReport, error)
	Export(ctx context.Context, filename, format string) (*services.ExportResult, error)
	List(ctx context.Context) (*api.DatasetListResponse, error)
	Delete(ctx context.Context, filename string) error
}

var _ DatasetServiceInterface = (*services.DatasetService)(nil)
