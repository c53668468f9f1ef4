package dataprocessing

import (
	"math"
	"sort"
)

// Classification names a way a cell can be considered missing. The
// classifications overlap: one cell may match several.
type Classification string

const (
	ClassNull   Classification = "null"
	ClassNaN    Classification = "nan"
	ClassEmpty  Classification = "empty"
	ClassNA     Classification = "na"
	ClassCustom Classification = "custom"
)

// Action is the remediation applied to the cells a rule matches.
type Action string

const (
	ActionDrop    Action = "drop"
	ActionReplace Action = "replace"
	ActionMean    Action = "mean"
	ActionMedian  Action = "median"
	ActionMode    Action = "mode"
)

// naTokens are the textual renderings matched by ClassNA.
var naTokens = map[string]struct{}{"NA": {}, "N/A": {}, "na": {}, "n/a": {}}

// matcher reports whether a cell of a column with the given kind matches.
type matcher func(v any, kind Kind, literal string) bool

var matchers = map[Classification]matcher{
	ClassNull: func(v any, _ Kind, _ string) bool {
		return IsMissing(v)
	},
	ClassNaN: func(v any, kind Kind, _ string) bool {
		return IsNaN(v) || (IsMissing(v) && kind.IsNumeric())
	},
	ClassEmpty: func(v any, _ Kind, _ string) bool {
		return TextOf(v) == ""
	},
	ClassNA: func(v any, _ Kind, _ string) bool {
		_, ok := naTokens[TextOf(v)]
		return ok
	},
	ClassCustom: func(v any, _ Kind, literal string) bool {
		return TextOf(v) == literal
	},
}

// Valid reports whether c is a known classification.
func (c Classification) Valid() bool {
	_, ok := matchers[c]
	return ok
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionDrop, ActionReplace, ActionMean, ActionMedian, ActionMode:
		return true
	}
	return false
}

// Rule targets one column with a classification and an action. Replacement
// is required by ClassCustom and ActionReplace.
type Rule struct {
	Column         string         `json:"column"`
	Classification Classification `json:"missingType"`
	Action         Action         `json:"action"`
	Replacement    *string        `json:"replacement,omitempty"`
}

// Skip reasons recorded in RuleOutcome.
const (
	ReasonUnknownColumn         = "unknown column"
	ReasonUnknownClassification = "unknown classification"
	ReasonUnknownAction         = "unknown action"
	ReasonMissingReplacement    = "replacement required"
	ReasonNonNumeric            = "column is not numeric"
	ReasonNoValues              = "no values to compute from"
)

// RuleOutcome records what one rule did to the table.
type RuleOutcome struct {
	Rule         Rule   `json:"rule"`
	Applied      bool   `json:"applied"`
	Reason       string `json:"reason,omitempty"`
	Matched      int    `json:"matched"`
	CellsChanged int    `json:"cells_changed"`
	RowsDropped  int    `json:"rows_dropped"`
	FillValue    any    `json:"fill_value,omitempty"`
}

func skipped(rule Rule, reason string) RuleOutcome {
	return RuleOutcome{Rule: rule, Reason: reason}
}

// BuildMask evaluates a classification against the current contents of a
// column. It returns nil when the rule cannot produce a mask.
func BuildMask(t *Table, col int, class Classification, literal *string) []bool {
	match, ok := matchers[class]
	if !ok || col < 0 || col >= t.NumColumns() {
		return nil
	}
	lit := ""
	if class == ClassCustom {
		if literal == nil {
			return nil
		}
		lit = *literal
	}

	kind := t.Columns[col].Kind
	mask := make([]bool, t.NumRows())
	for i, row := range t.Rows {
		mask[i] = match(row[col], kind, lit)
	}
	return mask
}

// ApplyRule mutates t according to rule. Rules that cannot apply (unknown
// column, classification or action, a numeric fill on a non-numeric column,
// nothing to compute from) leave t untouched.
func ApplyRule(t *Table, rule Rule) RuleOutcome {
	col := t.ColumnIndex(rule.Column)
	switch {
	case col < 0:
		return skipped(rule, ReasonUnknownColumn)
	case !rule.Classification.Valid():
		return skipped(rule, ReasonUnknownClassification)
	case rule.Classification == ClassCustom && rule.Replacement == nil:
		return skipped(rule, ReasonMissingReplacement)
	}

	mask := BuildMask(t, col, rule.Classification, rule.Replacement)
	if mask == nil {
		return skipped(rule, ReasonUnknownClassification)
	}
	matched := countTrue(mask)

	var out RuleOutcome
	switch rule.Action {
	case ActionDrop:
		out = RuleOutcome{Rule: rule, Applied: true, RowsDropped: t.FilterRows(mask)}
	case ActionReplace:
		out = applyReplace(t, col, mask, rule)
	case ActionMean, ActionMedian:
		out = applyCentral(t, col, mask, rule)
	case ActionMode:
		out = applyMode(t, col, mask, rule)
	default:
		return skipped(rule, ReasonUnknownAction)
	}
	out.Matched = matched
	return out
}

func applyReplace(t *Table, col int, mask []bool, rule Rule) RuleOutcome {
	if rule.Replacement == nil {
		return skipped(rule, ReasonMissingReplacement)
	}
	lit := *rule.Replacement
	if countTrue(mask) == 0 {
		return RuleOutcome{Rule: rule, Applied: true}
	}

	kind := t.Columns[col].Kind
	value, ok := ParseLiteral(lit, kind)
	if !ok && kind == KindInteger {
		if f, fok := ParseLiteral(lit, KindFloat); fok {
			promoteToFloat(t, col)
			value, ok = f, true
		}
	}
	if !ok {
		// the column becomes mixed and is treated as text from here on
		t.Columns[col].Kind = KindText
		value = lit
	}

	changed := fill(t, col, mask, value)
	return RuleOutcome{Rule: rule, Applied: true, CellsChanged: changed, FillValue: Coerce(value)}
}

func applyCentral(t *Table, col int, mask []bool, rule Rule) RuleOutcome {
	if !t.Columns[col].Kind.IsNumeric() {
		return skipped(rule, ReasonNonNumeric)
	}

	values := make([]float64, 0, t.NumRows())
	for i, row := range t.Rows {
		if mask[i] {
			continue
		}
		if f, ok := asFloat(row[col]); ok && !math.IsNaN(f) {
			values = append(values, f)
		}
	}
	if len(values) == 0 {
		return skipped(rule, ReasonNoValues)
	}

	var stat float64
	if rule.Action == ActionMean {
		stat = mean(values)
	} else {
		stat = median(values)
	}

	var value any = stat
	if t.Columns[col].Kind == KindInteger {
		if stat == math.Trunc(stat) && math.Abs(stat) < 1<<63 {
			value = int64(stat)
		} else {
			promoteToFloat(t, col)
		}
	}

	changed := fill(t, col, mask, value)
	return RuleOutcome{Rule: rule, Applied: true, CellsChanged: changed, FillValue: Coerce(value)}
}

func applyMode(t *Table, col int, mask []bool, rule Rule) RuleOutcome {
	type tally struct {
		value any
		count int
	}
	var tallies []*tally
	byKey := make(map[string]*tally)
	var buf []byte

	for i, row := range t.Rows {
		v := row[col]
		if mask[i] || IsMissing(v) || IsNaN(v) {
			continue
		}
		buf = appendRowKey(buf[:0], row[col:col+1])
		if tl, ok := byKey[string(buf)]; ok {
			tl.count++
			continue
		}
		tl := &tally{value: v, count: 1}
		byKey[string(buf)] = tl
		tallies = append(tallies, tl)
	}
	if len(tallies) == 0 {
		return skipped(rule, ReasonNoValues)
	}

	best := tallies[0]
	for _, tl := range tallies[1:] {
		if tl.count > best.count {
			best = tl
		}
	}

	changed := fill(t, col, mask, best.value)
	return RuleOutcome{Rule: rule, Applied: true, CellsChanged: changed, FillValue: Coerce(best.value)}
}

func fill(t *Table, col int, mask []bool, value any) int {
	n := 0
	for i, row := range t.Rows {
		if mask[i] {
			row[col] = value
			n++
		}
	}
	return n
}

// promoteToFloat converts every integer cell of an integer column to float64.
func promoteToFloat(t *Table, col int) {
	if t.Columns[col].Kind != KindInteger {
		return
	}
	for _, row := range t.Rows {
		if v, ok := row[col].(int64); ok {
			row[col] = float64(v)
		}
	}
	t.Columns[col].Kind = KindFloat
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func countTrue(mask []bool) int {
	n := 0
	for _, m := range mask {
		if m {
			n++
		}
	}
	return n
}
