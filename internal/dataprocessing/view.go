package dataprocessing

import "fmt"

// ViewKind selects which window of rows a view returns.
type ViewKind string

const (
	ViewHead  ViewKind = "head"
	ViewTail  ViewKind = "tail"
	ViewRange ViewKind = "range"
)

// ViewRequest describes a window over a table.
type ViewRequest struct {
	Kind  ViewKind
	N     int
	Start int
}

// ViewResult is a coerced window of rows.
type ViewResult struct {
	Data         []Record `json:"data"`
	Columns      []string `json:"columns"`
	TotalRows    int      `json:"total_rows"`
	ViewType     ViewKind `json:"view_type"`
	RowsReturned int      `json:"rows_returned"`
}

// View returns the rows selected by req. Negative N yields no rows and a
// negative start is treated as zero; a start past the end yields no rows.
func View(t *Table, req ViewRequest) (*ViewResult, error) {
	total := t.NumRows()
	n := max(req.N, 0)

	var from, to int
	switch req.Kind {
	case ViewHead:
		from, to = 0, min(n, total)
	case ViewTail:
		from, to = max(total-n, 0), total
	case ViewRange:
		from = min(max(req.Start, 0), total)
		to = from + min(n, total-from)
	default:
		return nil, fmt.Errorf("%w: %q (use head, tail or range)", ErrInvalidViewKind, req.Kind)
	}

	window := t.Slice(from, to)
	return &ViewResult{
		Data:         window.Records(),
		Columns:      t.ColumnNames(),
		TotalRows:    total,
		ViewType:     req.Kind,
		RowsReturned: window.NumRows(),
	}, nil
}

// Preview returns the first n rows, the shape of the raw data endpoint.
func Preview(t *Table, n int) *ViewResult {
	res, _ := View(t, ViewRequest{Kind: ViewHead, N: n})
	return res
}
