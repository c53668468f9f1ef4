package dataprocessing

import (
	"log/slog"
	"time"
)

// CleaningRequest describes one cleaning run over a source table.
type CleaningRequest struct {
	SourceID       string
	DropDuplicates bool
	Rules          []Rule
	DropColumns    []string
}

// CleaningResult carries the derived table and what changed.
type CleaningResult struct {
	Table *Table `json:"-"`

	OriginalRows      int           `json:"original_rows"`
	CleanedRows       int           `json:"cleaned_rows"`
	RowsRemoved       int           `json:"rows_removed"`
	OriginalColumns   int           `json:"original_columns"`
	CleanedColumns    int           `json:"cleaned_columns"`
	ColumnsRemoved    int           `json:"columns_removed"`
	DuplicatesRemoved int           `json:"duplicates_removed"`
	Operations        []RuleOutcome `json:"operations"`
	DroppedColumns    []string      `json:"dropped_columns"`
	Duration          time.Duration `json:"duration_ns"`
}

// Cleaner runs the cleaning pipeline: duplicate removal, remediation rules in
// order, then column removal.
type Cleaner struct {
	logger *slog.Logger
}

// NewCleaner creates a cleaner. A nil logger falls back to slog.Default.
func NewCleaner(logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{logger: logger.With(slog.String("component", "cleaner"))}
}

// Clean derives a new table from src. src is never modified.
func (c *Cleaner) Clean(src *Table, req CleaningRequest) (result *CleaningResult, err error) {
	defer recoverProcessing("clean "+req.SourceID, &err)

	start := time.Now()
	t := src.Clone()
	result = &CleaningResult{
		OriginalRows:    src.NumRows(),
		OriginalColumns: src.NumColumns(),
		Operations:      make([]RuleOutcome, 0, len(req.Rules)),
		DroppedColumns:  []string{},
	}

	if req.DropDuplicates {
		result.DuplicatesRemoved = DropDuplicates(t)
		c.logger.Debug("duplicates removed",
			slog.String("source", req.SourceID),
			slog.Int("rows", result.DuplicatesRemoved))
	}

	for _, rule := range req.Rules {
		outcome := ApplyRule(t, rule)
		result.Operations = append(result.Operations, outcome)

		attrs := []any{
			slog.String("source", req.SourceID),
			slog.String("column", rule.Column),
			slog.String("missing_type", string(rule.Classification)),
			slog.String("action", string(rule.Action)),
		}
		if !outcome.Applied {
			c.logger.Debug("rule skipped", append(attrs, slog.String("reason", outcome.Reason))...)
			continue
		}
		c.logger.Debug("rule applied", append(attrs,
			slog.Int("matched", outcome.Matched),
			slog.Int("cells_changed", outcome.CellsChanged),
			slog.Int("rows_dropped", outcome.RowsDropped))...)
	}

	if len(req.DropColumns) > 0 {
		for _, name := range req.DropColumns {
			if t.ColumnIndex(name) >= 0 {
				result.DroppedColumns = append(result.DroppedColumns, name)
			}
		}
		t.DropColumns(req.DropColumns)
	}

	result.Table = t
	result.CleanedRows = t.NumRows()
	result.CleanedColumns = t.NumColumns()
	result.RowsRemoved = result.OriginalRows - result.CleanedRows
	result.ColumnsRemoved = result.OriginalColumns - result.CleanedColumns
	result.Duration = time.Since(start)

	c.logger.Info("cleaning completed",
		slog.String("source", req.SourceID),
		slog.Int("original_rows", result.OriginalRows),
		slog.Int("cleaned_rows", result.CleanedRows),
		slog.Int("columns_removed", result.ColumnsRemoved),
		slog.Duration("duration", result.Duration))

	return result, nil
}

// DropDuplicates removes every row equal to an earlier row and returns the
// number removed.
func DropDuplicates(t *Table) int {
	return t.FilterRows(DuplicateMask(t))
}
