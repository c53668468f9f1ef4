package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"datatidy/internal/config"
	"datatidy/internal/dataprocessing"
	"datatidy/internal/exporter"
	"datatidy/internal/infrastructure"
	"datatidy/internal/storage"
	api "datatidy/pkg/contracts/api/v1"
	"datatidy/pkg/contracts/events"
)

const (
	// CleanedPrefix prefixes the key of a derived dataset.
	CleanedPrefix = "cleaned_"
	// ReportSuffix is appended to a derived key for its cleaning report.
	ReportSuffix = ".report.json"
)

// CleanedName returns the key the derived table of filename is stored under.
func CleanedName(filename string) string {
	return CleanedPrefix + filename
}

// ReportName returns the key of the cleaning report for a derived key.
func ReportName(cleanedName string) string {
	return cleanedName + ReportSuffix
}

// EventPublisher receives dataset lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, msgType events.MessageType, data any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, events.MessageType, any) {}

// ExportResult is an encoded dataset ready to be sent as a download.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DatasetService implements upload, statistics, views and cleaning on top
// of a Store. Writers are serialized per key; reads run concurrently and
// concurrent parses of the same object are shared.
type DatasetService struct {
	store   storage.Store
	cleaner *dataprocessing.Cleaner
	cfg     config.DatasetConfig
	width   dataprocessing.WidthPolicy
	events  EventPublisher
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger

	locks *keyedMutex
	loads singleflight.Group
}

// DatasetServiceOption configures optional collaborators.
type DatasetServiceOption func(*DatasetService)

// WithEventPublisher sets where dataset events are published.
func WithEventPublisher(p EventPublisher) DatasetServiceOption {
	return func(s *DatasetService) {
		if p != nil {
			s.events = p
		}
	}
}

// WithMetrics sets the business metrics. Nil disables recording.
func WithMetrics(m *infrastructure.BusinessMetrics) DatasetServiceOption {
	return func(s *DatasetService) {
		s.metrics = m
	}
}

// NewDatasetService creates the dataset service.
func NewDatasetService(store storage.Store, cfg config.DatasetConfig, logger *slog.Logger, opts ...DatasetServiceOption) (*DatasetService, error) {
	if store == nil {
		return nil, errors.New("dataset service requires a store")
	}
	if logger == nil {
		logger = slog.Default()
	}
	width, err := dataprocessing.ParseWidthPolicy(cfg.WidthPolicy)
	if err != nil {
		return nil, err
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = config.DefaultPreviewRows
	}
	if cfg.DefaultViewRows <= 0 {
		cfg.DefaultViewRows = config.DefaultViewRows
	}

	logger = logger.With(slog.String("component", "dataset_service"))
	s := &DatasetService{
		store:   store,
		cleaner: dataprocessing.NewCleaner(logger),
		cfg:     cfg,
		width:   width,
		events:  noopPublisher{},
		logger:  logger,
		locks:   newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}

	logger.Info("DatasetService initialized",
		slog.String("delimiter", string(cfg.DelimiterRune())),
		slog.Int("preview_rows", cfg.PreviewRows),
		slog.Int("default_view_rows", cfg.DefaultViewRows))
	return s, nil
}

func (s *DatasetService) viewOptions() dataprocessing.LoadOptions {
	opts := dataprocessing.DefaultLoadOptions()
	opts.Delimiter = s.cfg.DelimiterRune()
	opts.WidthPolicy = s.width
	return opts
}

func (s *DatasetService) cleaningOptions() dataprocessing.LoadOptions {
	opts := dataprocessing.CleaningLoadOptions()
	opts.Delimiter = s.cfg.DelimiterRune()
	opts.WidthPolicy = s.width
	return opts
}

// Upload parses data as a dataset and stores it under filename. Data that
// does not parse is not stored.
func (s *DatasetService) Upload(ctx context.Context, filename string, r io.Reader) (resp *api.StatsResponse, err error) {
	ctx, span := infrastructure.StartSpan(ctx, "dataset.upload", attribute.String("dataset", filename))
	defer span.End()

	var size int64
	defer func() {
		s.metrics.RecordUpload(ctx, size, err)
		if err != nil {
			infrastructure.RecordError(ctx, err)
		}
	}()

	if filename == "" {
		return nil, ErrEmptyFilename
	}
	if !isCSVName(filename) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFileType, filename)
	}
	if err := storage.ValidateKey(filename); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	size = int64(len(data))

	start := time.Now()
	table, err := dataprocessing.Load(bytes.NewReader(data), s.viewOptions())
	s.metrics.RecordLoad(ctx, time.Since(start), err)
	if err != nil {
		s.logger.WarnContext(ctx, "upload rejected",
			slog.String("filename", filename),
			slog.String("error", err.Error()))
		return nil, err
	}

	unlock := s.locks.Lock(filename)
	err = s.store.Put(ctx, filename, data)
	unlock()
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", filename, err)
	}

	stats := dataprocessing.Summarize(table)
	s.logger.InfoContext(ctx, "dataset uploaded",
		slog.String("filename", filename),
		slog.Int64("size", size),
		slog.Int("rows", stats.Rows),
		slog.Int("columns", stats.Columns))

	s.events.Publish(ctx, events.MessageTypeDatasetUploaded, events.DatasetUploaded{
		Filename:      filename,
		Size:          size,
		Rows:          stats.Rows,
		Columns:       stats.Columns,
		DuplicateRows: stats.DuplicateRows,
	})

	return &api.StatsResponse{Success: true, Filename: filename, Stats: toAPIStats(stats)}, nil
}

// Stats returns the statistics of a stored dataset.
func (s *DatasetService) Stats(ctx context.Context, filename string) (*api.StatsResponse, error) {
	table, err := s.load(ctx, filename, s.viewOptions(), "view")
	if err != nil {
		return nil, err
	}
	return &api.StatsResponse{
		Success:  true,
		Filename: filename,
		Stats:    toAPIStats(dataprocessing.Summarize(table)),
	}, nil
}

// Data returns the preview rows of a stored dataset.
func (s *DatasetService) Data(ctx context.Context, filename string) (*api.DataResponse, error) {
	table, err := s.load(ctx, filename, s.viewOptions(), "view")
	if err != nil {
		return nil, err
	}
	preview := dataprocessing.Preview(table, s.cfg.PreviewRows)
	return &api.DataResponse{
		Data:      recordsToAny(preview.Data),
		TotalRows: preview.TotalRows,
	}, nil
}

// View returns a head, tail or range window of a stored dataset.
func (s *DatasetService) View(ctx context.Context, filename string, q api.ViewQuery) (*api.ViewResponse, error) {
	req := dataprocessing.ViewRequest{
		Kind: dataprocessing.ViewKind(q.Type),
		N:    s.cfg.DefaultViewRows,
	}
	if req.Kind == "" {
		req.Kind = dataprocessing.ViewHead
	}
	if q.N != nil {
		req.N = *q.N
	}
	if q.Start != nil {
		req.Start = *q.Start
	}

	table, err := s.load(ctx, filename, s.viewOptions(), "view")
	if err != nil {
		return nil, err
	}
	res, err := dataprocessing.View(table, req)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordView(ctx, string(res.ViewType))

	return &api.ViewResponse{
		Data:         recordsToAny(res.Data),
		Columns:      res.Columns,
		TotalRows:    res.TotalRows,
		ViewType:     string(res.ViewType),
		RowsReturned: res.RowsReturned,
	}, nil
}

// Clean runs the cleaning pipeline on a stored dataset and stores the
// derived table under CleanedName, replacing any earlier one, together with
// a JSON report of the run.
func (s *DatasetService) Clean(ctx context.Context, req *api.CleanRequest) (resp *api.CleanResponse, err error) {
	ctx, span := infrastructure.StartSpan(ctx, "dataset.clean",
		attribute.String("dataset", req.Filename),
		attribute.Int("rules", len(req.Operations.MissingValueOperations)))
	defer span.End()
	defer func() {
		if err != nil {
			infrastructure.RecordError(ctx, err)
		}
	}()

	cleanedName := CleanedName(req.Filename)
	if err := storage.ValidateKey(cleanedName); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(cleanedName)
	defer unlock()

	src, err := s.load(ctx, req.Filename, s.cleaningOptions(), "clean")
	if err != nil {
		return nil, err
	}

	cleanReq := dataprocessing.CleaningRequest{
		SourceID:       req.Filename,
		DropDuplicates: req.Operations.DropDuplicates,
		Rules:          toRules(req.Operations.MissingValueOperations),
		DropColumns:    req.Operations.DropColumns,
	}

	start := time.Now()
	result, err := s.cleaner.Clean(src, cleanReq)
	if err != nil {
		s.metrics.RecordCleaning(ctx, time.Since(start), src.NumRows(), 0, err)
		s.metrics.RecordSystemError(ctx, "processing", "cleaner")
		s.logger.ErrorContext(ctx, "cleaning failed",
			slog.String("filename", req.Filename),
			slog.String("error", err.Error()))
		return nil, err
	}
	s.metrics.RecordCleaning(ctx, result.Duration, result.OriginalRows, result.RowsRemoved, nil)

	var buf bytes.Buffer
	if err := exporter.WriteCSV(&buf, result.Table, exporter.WriteOptions{Delimiter: s.cfg.DelimiterRune()}); err != nil {
		return nil, &dataprocessing.ProcessingError{Op: "write " + cleanedName, Err: err}
	}
	if err := s.store.Put(ctx, cleanedName, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("store %s: %w", cleanedName, err)
	}

	resp = toCleanResponse(req.Filename, cleanedName, result)
	skipped := 0
	for _, op := range result.Operations {
		s.metrics.RecordRuleOutcome(ctx, actionLabel(op.Rule.Action), op.Applied, op.Reason)
		if !op.Applied {
			skipped++
		}
	}

	s.writeReport(ctx, cleanedName, req, resp, result.Duration)

	s.logger.InfoContext(ctx, "dataset cleaned",
		slog.String("filename", req.Filename),
		slog.String("cleaned_filename", cleanedName),
		slog.Int("original_rows", resp.OriginalRows),
		slog.Int("cleaned_rows", resp.CleanedRows),
		slog.Int("columns_removed", resp.ColumnsRemoved),
		slog.Int("skipped_operations", skipped),
		slog.Duration("duration", result.Duration))

	s.events.Publish(ctx, events.MessageTypeDatasetCleaned, events.DatasetCleaned{
		OriginalFilename: req.Filename,
		CleanedFilename:  cleanedName,
		OriginalRows:     resp.OriginalRows,
		CleanedRows:      resp.CleanedRows,
		ColumnsRemoved:   resp.ColumnsRemoved,
		Operations:       len(resp.Operations),
		Skipped:          skipped,
	})
	return resp, nil
}

// writeReport stores the cleaning report. A failed write is logged; the
// derived table is already in place.
func (s *DatasetService) writeReport(ctx context.Context, cleanedName string, req *api.CleanRequest, resp *api.CleanResponse, d time.Duration) {
	report := api.CleaningReport{
		CleanResponse: *resp,
		RequestID:     infrastructure.GetTraceID(ctx),
		CleanedAt:     time.Now().UTC(),
		DurationMS:    float64(d.Microseconds()) / 1000,
		Request:       req,
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err == nil {
		err = s.store.Put(ctx, ReportName(cleanedName), data)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "failed to store cleaning report",
			slog.String("cleaned_filename", cleanedName),
			slog.String("error", err.Error()))
	}
}

// Report returns the stored cleaning report of a derived dataset.
func (s *DatasetService) Report(ctx context.Context, cleanedName string) (*api.CleaningReport, error) {
	data, err := s.store.Get(ctx, ReportName(cleanedName))
	if err != nil {
		return nil, err
	}
	var report api.CleaningReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", cleanedName, err)
	}
	return &report, nil
}

// Export encodes a stored dataset in the requested format.
func (s *DatasetService) Export(ctx context.Context, filename, format string) (res *ExportResult, err error) {
	f, err := exporter.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	defer func() { s.metrics.RecordExport(ctx, string(f), err) }()

	table, err := s.load(ctx, filename, s.viewOptions(), "view")
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := exporter.Write(&buf, f, table); err != nil {
		return nil, &dataprocessing.ProcessingError{Op: "export " + filename, Err: err}
	}
	return &ExportResult{
		Filename:    f.FileName(filename),
		ContentType: f.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}

// List returns the stored datasets sorted by name. Cleaning reports are
// not listed.
func (s *DatasetService) List(ctx context.Context) (*api.DatasetListResponse, error) {
	objects, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}

	datasets := make([]api.DatasetInfo, 0, len(objects))
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, ReportSuffix) {
			continue
		}
		datasets = append(datasets, api.DatasetInfo{
			Filename: obj.Key,
			Size:     obj.Size,
			Modified: obj.ModTime,
			Cleaned:  strings.HasPrefix(obj.Key, CleanedPrefix),
		})
	}
	sort.Slice(datasets, func(i, j int) bool { return datasets[i].Filename < datasets[j].Filename })

	return &api.DatasetListResponse{Datasets: datasets, Count: len(datasets)}, nil
}

// Delete removes a stored dataset and, for derived datasets, its report.
func (s *DatasetService) Delete(ctx context.Context, filename string) error {
	unlock := s.locks.Lock(filename)
	defer unlock()

	if err := s.store.Delete(ctx, filename); err != nil {
		return err
	}
	if strings.HasPrefix(filename, CleanedPrefix) {
		if err := s.store.Delete(ctx, ReportName(filename)); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to delete cleaning report",
				slog.String("filename", filename),
				slog.String("error", err.Error()))
		}
	}

	s.logger.InfoContext(ctx, "dataset deleted", slog.String("filename", filename))
	s.events.Publish(ctx, events.MessageTypeDatasetDeleted, events.DatasetDeleted{Filename: filename})
	return nil
}

// load reads and parses a stored dataset. Concurrent loads of the same key
// in the same mode share one parse; the returned table must not be mutated.
func (s *DatasetService) load(ctx context.Context, filename string, opts dataprocessing.LoadOptions, mode string) (*dataprocessing.Table, error) {
	v, err, shared := s.loads.Do(mode+":"+filename, func() (any, error) {
		unlock := s.locks.RLock(filename)
		defer unlock()

		data, err := s.store.Get(ctx, filename)
		if err != nil {
			return nil, err
		}
		start := time.Now()
		table, err := dataprocessing.Load(bytes.NewReader(data), opts)
		s.metrics.RecordLoad(ctx, time.Since(start), err)
		if err != nil {
			return nil, err
		}
		return table, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.DebugContext(ctx, "shared dataset load", slog.String("filename", filename))
	}
	return v.(*dataprocessing.Table), nil
}

func isCSVName(name string) bool {
	ext := path.Ext(name)
	return len(ext) < len(name) && strings.EqualFold(ext, ".csv")
}

func actionLabel(a dataprocessing.Action) string {
	if a.Valid() {
		return string(a)
	}
	return "unknown"
}

func toAPIStats(st dataprocessing.Stats) api.Stats {
	return api.Stats{
		Rows:          st.Rows,
		Columns:       st.Columns,
		ColumnNames:   st.ColumnNames,
		MissingValues: st.MissingValues,
		DuplicateRows: st.DuplicateRows,
	}
}

func recordsToAny(records []dataprocessing.Record) []any {
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out
}

func toRules(ops []api.MissingValueOperation) []dataprocessing.Rule {
	rules := make([]dataprocessing.Rule, len(ops))
	for i, op := range ops {
		rules[i] = dataprocessing.Rule{
			Column:         op.Column,
			Classification: dataprocessing.Classification(op.MissingType),
			Action:         dataprocessing.Action(op.Action),
			Replacement:    op.Replacement.Ptr(),
		}
	}
	return rules
}

func toCleanResponse(filename, cleanedName string, r *dataprocessing.CleaningResult) *api.CleanResponse {
	ops := make([]api.OperationResult, len(r.Operations))
	for i, o := range r.Operations {
		op := api.OperationResult{
			Column:       o.Rule.Column,
			MissingType:  string(o.Rule.Classification),
			Action:       string(o.Rule.Action),
			Applied:      o.Applied,
			Reason:       o.Reason,
			Matched:      o.Matched,
			CellsChanged: o.CellsChanged,
			RowsDropped:  o.RowsDropped,
			FillValue:    dataprocessing.Coerce(o.FillValue),
		}
		if o.Rule.Replacement != nil {
			op.Replacement = *o.Rule.Replacement
		}
		ops[i] = op
	}

	return &api.CleanResponse{
		Success:           true,
		OriginalFilename:  filename,
		CleanedFilename:   cleanedName,
		OriginalRows:      r.OriginalRows,
		CleanedRows:       r.CleanedRows,
		RowsRemoved:       r.RowsRemoved,
		OriginalColumns:   r.OriginalColumns,
		CleanedColumns:    r.CleanedColumns,
		ColumnsRemoved:    r.ColumnsRemoved,
		DuplicatesRemoved: r.DuplicatesRemoved,
		DroppedColumns:    r.DroppedColumns,
		Operations:        ops,
	}
}
