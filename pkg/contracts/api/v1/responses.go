package api

import (
	"time"
)

// Stats is the statistics block of the upload and stats endpoints.
type Stats struct {
	Rows          int            `json:"rows"`
	Columns       int            `json:"columns"`
	ColumnNames   []string       `json:"column_names"`
	MissingValues map[string]int `json:"missing_values"`
	DuplicateRows int            `json:"duplicate_rows"`
}

// StatsResponse is returned by POST /upload and GET /upload-stats/{filename}.
type StatsResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
	Stats    Stats  `json:"stats"`
}

// DataResponse is returned by GET /data/{filename}.
type DataResponse struct {
	Data      []any `json:"data"`
	TotalRows int   `json:"total_rows"`
}

// ViewResponse is returned by GET /data-view/{filename}.
type ViewResponse struct {
	Data         []any    `json:"data"`
	Columns      []string `json:"columns"`
	TotalRows    int      `json:"total_rows"`
	ViewType     string   `json:"view_type"`
	RowsReturned int      `json:"rows_returned"`
}

// OperationResult reports what one remediation rule did.
type OperationResult struct {
	Column       string `json:"column"`
	MissingType  string `json:"missingType"`
	Action       string `json:"action"`
	Replacement  string `json:"replacement,omitempty"`
	Applied      bool   `json:"applied"`
	Reason       string `json:"reason,omitempty"`
	Matched      int    `json:"matched"`
	CellsChanged int    `json:"cells_changed"`
	RowsDropped  int    `json:"rows_dropped"`
	FillValue    any    `json:"fill_value,omitempty"`
}

// CleanResponse is returned by POST /clean.
type CleanResponse struct {
	Success           bool              `json:"success"`
	OriginalFilename  string            `json:"original_filename"`
	CleanedFilename   string            `json:"cleaned_filename"`
	OriginalRows      int               `json:"original_rows"`
	CleanedRows       int               `json:"cleaned_rows"`
	RowsRemoved       int               `json:"rows_removed"`
	OriginalColumns   int               `json:"original_columns"`
	CleanedColumns    int               `json:"cleaned_columns"`
	ColumnsRemoved    int               `json:"columns_removed"`
	DuplicatesRemoved int               `json:"duplicates_removed"`
	DroppedColumns    []string          `json:"dropped_columns"`
	Operations        []OperationResult `json:"operations"`
}

// DatasetInfo describes one stored dataset.
type DatasetInfo struct {
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Cleaned  bool      `json:"cleaned"`
}

// DatasetListResponse is returned by GET /datasets.
type DatasetListResponse struct {
	Datasets []DatasetInfo `json:"datasets"`
	Count    int           `json:"count"`
}

// CleaningReport is the sidecar stored next to a cleaned dataset.
type CleaningReport struct {
	CleanResponse
	RequestID  string        `json:"request_id,omitempty"`
	CleanedAt  time.Time     `json:"cleaned_at"`
	DurationMS float64       `json:"duration_ms"`
	Request    *CleanRequest `json:"request"`
}

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}
