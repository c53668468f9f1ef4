package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// BusinessMetrics holds the HTTP and dataset instruments.
type BusinessMetrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	// Dataset metrics
	DatasetUploads       metric.Int64Counter
	DatasetUploadedBytes metric.Int64Counter
	DatasetLoadDuration  metric.Float64Histogram
	CleaningRuns         metric.Int64Counter
	CleaningDuration     metric.Float64Histogram
	RowsProcessed        metric.Int64Counter
	RowsRemoved          metric.Int64Counter
	RuleOutcomes         metric.Int64Counter
	DatasetViews         metric.Int64Counter
	DatasetExports       metric.Int64Counter

	// Live updates
	WebSocketConnections metric.Int64UpDownCounter
	WebSocketBroadcasts  metric.Int64Counter

	SystemErrors metric.Int64Counter
}

// CreateBusinessMetrics registers the application instruments on meter.
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	b := &metricBuilder{meter: meter}
	m := &BusinessMetrics{
		HTTPRequestsTotal:   b.counter("http_requests_total", "Total number of HTTP requests"),
		HTTPRequestDuration: b.histogram("http_request_duration_seconds", "HTTP request duration in seconds"),
		HTTPActiveRequests:  b.upDown("http_active_requests", "Number of active HTTP requests"),

		DatasetUploads:       b.counter("dataset_uploads_total", "Total number of dataset uploads"),
		DatasetUploadedBytes: b.counter("dataset_uploaded_bytes_total", "Total bytes of uploaded datasets"),
		DatasetLoadDuration:  b.histogram("dataset_load_duration_seconds", "Time spent parsing stored datasets"),
		CleaningRuns:         b.counter("cleaning_runs_total", "Total number of cleaning runs"),
		CleaningDuration:     b.histogram("cleaning_duration_seconds", "Cleaning pipeline duration in seconds"),
		RowsProcessed:        b.counter("cleaning_rows_processed_total", "Rows read by the cleaning pipeline"),
		RowsRemoved:          b.counter("cleaning_rows_removed_total", "Rows removed by the cleaning pipeline"),
		RuleOutcomes:         b.counter("cleaning_rule_outcomes_total", "Missing-value rules by action and outcome"),
		DatasetViews:         b.counter("dataset_views_total", "Dataset view requests by view type"),
		DatasetExports:       b.counter("dataset_exports_total", "Dataset exports by format"),

		WebSocketConnections: b.upDown("websocket_connections", "Number of connected WebSocket clients"),
		WebSocketBroadcasts:  b.counter("websocket_broadcasts_total", "Events broadcast to WebSocket clients"),

		SystemErrors: b.counter("system_errors_total", "Total number of system errors"),
	}
	if b.err != nil {
		return nil, b.err
	}
	return m, nil
}

// metricBuilder keeps the first instrument creation error.
type metricBuilder struct {
	meter metric.Meter
	err   error
}

func (b *metricBuilder) counter(name, desc string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc))
	b.keep(err)
	return c
}

func (b *metricBuilder) histogram(name, desc string) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
	b.keep(err)
	return h
}

func (b *metricBuilder) upDown(name, desc string) metric.Int64UpDownCounter {
	c, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	b.keep(err)
	return c
}

func (b *metricBuilder) keep(err error) {
	if err != nil && b.err == nil {
		b.err = err
	}
}

func statusAttr(err error) attribute.KeyValue {
	if err != nil {
		return attribute.String("status", "failure")
	}
	return attribute.String("status", "success")
}

// RecordUpload records an upload attempt of size bytes.
func (m *BusinessMetrics) RecordUpload(ctx context.Context, size int64, err error) {
	if m == nil {
		return
	}
	m.DatasetUploads.Add(ctx, 1, metric.WithAttributes(statusAttr(err)))
	if err == nil {
		m.DatasetUploadedBytes.Add(ctx, size)
	}
}

// RecordLoad records the time spent parsing a stored dataset.
func (m *BusinessMetrics) RecordLoad(ctx context.Context, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.DatasetLoadDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(statusAttr(err)))
}

// RecordCleaning records one cleaning run.
func (m *BusinessMetrics) RecordCleaning(ctx context.Context, duration time.Duration, rowsIn, rowsRemoved int, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(statusAttr(err))
	m.CleaningRuns.Add(ctx, 1, attrs)
	m.CleaningDuration.Record(ctx, duration.Seconds(), attrs)
	if err == nil {
		m.RowsProcessed.Add(ctx, int64(rowsIn))
		m.RowsRemoved.Add(ctx, int64(rowsRemoved))
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent("cleaning.metrics_recorded", trace.WithAttributes(
			attribute.Int("rows.in", rowsIn),
			attribute.Int("rows.removed", rowsRemoved),
			attribute.Float64("duration_seconds", duration.Seconds()),
		))
	}
}

// RecordRuleOutcome records whether a missing-value rule was applied.
func (m *BusinessMetrics) RecordRuleOutcome(ctx context.Context, action string, applied bool, reason string) {
	if m == nil {
		return
	}
	m.RuleOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.Bool("applied", applied),
		attribute.String("reason", reason),
	))
}

// RecordView records a view request.
func (m *BusinessMetrics) RecordView(ctx context.Context, viewType string) {
	if m == nil {
		return
	}
	m.DatasetViews.Add(ctx, 1, metric.WithAttributes(attribute.String("view_type", viewType)))
}

// RecordExport records an export in format.
func (m *BusinessMetrics) RecordExport(ctx context.Context, format string, err error) {
	if m == nil {
		return
	}
	m.DatasetExports.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format), statusAttr(err)))
}

// RecordSystemError counts an internal failure in component.
func (m *BusinessMetrics) RecordSystemError(ctx context.Context, errorType, component string) {
	if m == nil {
		return
	}
	m.SystemErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error_type", errorType),
		attribute.String("component", component),
	))
}
