package exporter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"datatidy/internal/dataprocessing"
)

// ErrUnsupportedFormat is returned for export formats other than csv and xlsx.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Delimiter rune
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes the header and every row of t. Missing and NaN cells become
// empty fields.
func WriteCSV(w io.Writer, t *dataprocessing.Table, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if options.Delimiter != 0 {
		writer.Comma = options.Delimiter
	}

	if err := writer.Write(t.ColumnNames()); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	record := make([]string, t.NumColumns())
	for i, row := range t.Rows {
		for j, v := range row {
			record[j] = cellText(v)
		}
		// A lone empty field would be a blank line, which readers skip.
		if len(record) == 1 && record[0] == "" {
			writer.Flush()
			if _, err := io.WriteString(w, "\"\"\n"); err != nil {
				return fmt.Errorf("failed to write record %d: %w", i, err)
			}
			continue
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// cellText renders a cell for CSV output.
func cellText(v any) string {
	if dataprocessing.IsMissing(v) || dataprocessing.IsNaN(v) {
		return ""
	}
	return dataprocessing.TextOf(v)
}

// Write exports t in the given format.
func Write(w io.Writer, format Format, t *dataprocessing.Table) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, t, WriteOptions{})
	case FormatXLSX:
		return WriteXLSX(w, t, DefaultSheetName)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}
