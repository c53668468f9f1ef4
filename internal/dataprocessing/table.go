package dataprocessing

import (
	"fmt"
	"math"
)

// Kind is the uniform value kind of a column, inferred at load time.
type Kind string

const (
	KindInteger Kind = "integer"
	KindFloat   Kind = "float"
	KindText    Kind = "text"
	KindBoolean Kind = "boolean"
)

// IsNumeric reports whether mean/median can be computed over the kind.
func (k Kind) IsNumeric() bool {
	return k == KindInteger || k == KindFloat
}

// missingValue is the type of the Missing sentinel. It is unexported so no
// other value can compare equal to Missing.
type missingValue struct{}

// String renders the sentinel the way the rule engine sees it.
func (missingValue) String() string { return "nan" }

// Missing marks a cell with no datum.
var Missing = missingValue{}

// IsMissing reports whether v is the Missing sentinel.
func IsMissing(v any) bool {
	_, ok := v.(missingValue)
	return ok
}

// IsNaN reports whether v is a floating not-a-number value.
func IsNaN(v any) bool {
	switch f := v.(type) {
	case float64:
		return math.IsNaN(f)
	case float32:
		return math.IsNaN(float64(f))
	}
	return false
}

// Column describes one named column of a Table.
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Table is an in-memory dataset. Cells hold Missing, int64, float64, string,
// bool or a slice of those.
//
// Every row has exactly len(Columns) cells and column names are unique.
type Table struct {
	Columns []Column
	Rows    [][]any
}

// NewTable creates an empty table with the given columns.
func NewTable(columns []Column) *Table {
	cols := make([]Column, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return len(t.Rows) }

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.Columns) }

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of the named column or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// AppendRow adds a row. The row must match the header width.
func (t *Table) AppendRow(row []any) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Clone returns a deep copy whose rows and cells can be mutated freely.
func (t *Table) Clone() *Table {
	out := NewTable(t.Columns)
	out.Rows = make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		r := make([]any, len(row))
		copy(r, row)
		out.Rows[i] = r
	}
	return out
}

// Slice returns a table sharing the rows in [from, to).
func (t *Table) Slice(from, to int) *Table {
	out := NewTable(t.Columns)
	out.Rows = t.Rows[from:to]
	return out
}

// FilterRows keeps the rows for which drop[i] is false and returns the number
// removed.
func (t *Table) FilterRows(drop []bool) int {
	kept := t.Rows[:0]
	removed := 0
	for i, row := range t.Rows {
		if drop[i] {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	// clear the tail so dropped rows can be collected
	for i := len(kept); i < len(t.Rows); i++ {
		t.Rows[i] = nil
	}
	t.Rows = kept
	return removed
}

// DropColumns removes the named columns, ignoring names that are not present.
func (t *Table) DropColumns(names []string) int {
	if len(names) == 0 {
		return 0
	}
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}

	keep := make([]int, 0, len(t.Columns))
	cols := make([]Column, 0, len(t.Columns))
	for i, c := range t.Columns {
		if drop[c.Name] {
			continue
		}
		keep = append(keep, i)
		cols = append(cols, c)
	}
	removed := len(t.Columns) - len(cols)
	if removed == 0 {
		return 0
	}

	for r, row := range t.Rows {
		nr := make([]any, len(keep))
		for j, idx := range keep {
			nr[j] = row[idx]
		}
		t.Rows[r] = nr
	}
	t.Columns = cols
	return removed
}

// Records converts every row into a column-ordered record of coerced values.
func (t *Table) Records() []Record {
	names := t.ColumnNames()
	out := make([]Record, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = NewRecord(names, CoerceRow(row))
	}
	return out
}
