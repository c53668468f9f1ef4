package dataprocessing

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/xxh3"
)

// Stats summarizes a table for the upload and statistics endpoints.
type Stats struct {
	Rows          int            `json:"rows"`
	Columns       int            `json:"columns"`
	ColumnNames   []string       `json:"column_names"`
	MissingValues map[string]int `json:"missing_values"`
	DuplicateRows int            `json:"duplicate_rows"`
}

// Summarize computes row/column counts, per-column missing counts and the
// number of duplicate rows. A cell counts as missing when it is Missing or
// NaN.
func Summarize(t *Table) Stats {
	stats := Stats{
		Rows:          t.NumRows(),
		Columns:       t.NumColumns(),
		ColumnNames:   t.ColumnNames(),
		MissingValues: make(map[string]int, t.NumColumns()),
	}

	for j, c := range t.Columns {
		n := 0
		for _, row := range t.Rows {
			if IsMissing(row[j]) || IsNaN(row[j]) {
				n++
			}
		}
		stats.MissingValues[c.Name] = n
	}

	for _, dup := range DuplicateMask(t) {
		if dup {
			stats.DuplicateRows++
		}
	}
	return stats
}

// DuplicateMask marks every row that equals an earlier row in all cells.
// The first occurrence is never marked.
func DuplicateMask(t *Table) []bool {
	mask := make([]bool, len(t.Rows))
	buckets := make(map[uint64][]int, len(t.Rows))
	var buf []byte

	for i, row := range t.Rows {
		buf = appendRowKey(buf[:0], row)
		h := xxh3.Hash(buf)

		dup := false
		for _, prev := range buckets[h] {
			if rowsEqual(t.Rows[prev], row) {
				dup = true
				break
			}
		}
		if dup {
			mask[i] = true
			continue
		}
		buckets[h] = append(buckets[h], i)
	}
	return mask
}

const (
	tagMissing byte = iota
	tagNaN
	tagInt
	tagFloat
	tagText
	tagBool
	tagOther
)

// appendRowKey writes a canonical encoding of the row. Integral floats are
// encoded as integers so 5 and 5.0 hash alike.
func appendRowKey(buf []byte, row []any) []byte {
	for _, v := range row {
		switch x := v.(type) {
		case missingValue:
			buf = append(buf, tagMissing)
		case int64:
			buf = append(buf, tagInt)
			buf = binary.LittleEndian.AppendUint64(buf, uint64(x))
		case float64:
			switch {
			case math.IsNaN(x):
				buf = append(buf, tagNaN)
			case x == math.Trunc(x) && math.Abs(x) < 1<<63:
				buf = append(buf, tagInt)
				buf = binary.LittleEndian.AppendUint64(buf, uint64(int64(x)))
			default:
				buf = append(buf, tagFloat)
				buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(x))
			}
		case string:
			buf = append(buf, tagText)
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(x)))
			buf = append(buf, x...)
		case bool:
			buf = append(buf, tagBool)
			if x {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		default:
			s := TextOf(x)
			buf = append(buf, tagOther)
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
			buf = append(buf, s...)
		}
	}
	return buf
}

func rowsEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !cellsEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// cellsEqual treats Missing as equal to Missing and NaN as equal to NaN.
func cellsEqual(a, b any) bool {
	if IsMissing(a) || IsMissing(b) {
		return IsMissing(a) && IsMissing(b)
	}
	if IsNaN(a) || IsNaN(b) {
		return IsNaN(a) && IsNaN(b)
	}
	if ia, ok := a.(int64); ok {
		if ib, ok := b.(int64); ok {
			return ia == ib
		}
	}
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb
		}
		return false
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	}
	return TextOf(a) == TextOf(b)
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
