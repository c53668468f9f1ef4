package dataprocessing

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// WidthPolicy decides what happens to data rows whose field count differs
// from the header.
type WidthPolicy int

const (
	// WidthStrict pads short rows with Missing and rejects long rows.
	WidthStrict WidthPolicy = iota
	// WidthLenient pads short rows and truncates long rows.
	WidthLenient
)

// ParseWidthPolicy maps "strict" and "lenient" to a WidthPolicy.
func ParseWidthPolicy(s string) (WidthPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return WidthStrict, nil
	case "lenient":
		return WidthLenient, nil
	}
	return WidthStrict, fmt.Errorf("unknown width policy %q", s)
}

// DefaultMissingTokens are the field values read as Missing for statistics,
// previews and views.
var DefaultMissingTokens = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

// cleaningExtraTokens are added to DefaultMissingTokens when loading a
// dataset for cleaning.
var cleaningExtraTokens = []string{
	"NA", "N/A", "na", "n/a", "", " ", "null", "NULL", "none", "None", "?",
}

// CleaningMissingTokens returns the token set used on the cleaning path.
func CleaningMissingTokens() []string {
	out := make([]string, 0, len(DefaultMissingTokens)+len(cleaningExtraTokens))
	out = append(out, DefaultMissingTokens...)
	return append(out, cleaningExtraTokens...)
}

// LoadOptions configures Load.
type LoadOptions struct {
	// Delimiter separates fields. Zero means ','.
	Delimiter rune
	// MissingTokens are read as Missing. Nil means DefaultMissingTokens.
	MissingTokens []string
	WidthPolicy   WidthPolicy
}

// DefaultLoadOptions is used for statistics, previews and views.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{Delimiter: ',', MissingTokens: DefaultMissingTokens}
}

// CleaningLoadOptions extends the missing tokens with the cleaning set.
func CleaningLoadOptions() LoadOptions {
	return LoadOptions{Delimiter: ',', MissingTokens: CleaningMissingTokens()}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load parses delimited text into a Table. The first record is the header;
// column kinds are inferred from the remaining records.
func Load(r io.Reader, opts LoadOptions) (*Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Msg: "no header row found"}
	}
	if err != nil {
		return nil, wrapCSVError(err)
	}

	names := normalizeHeader(header)
	width := len(names)

	tokens := opts.MissingTokens
	if tokens == nil {
		tokens = DefaultMissingTokens
	}
	missing := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		missing[tok] = struct{}{}
	}

	var raw [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapCSVError(err)
		}

		switch {
		case len(rec) > width && opts.WidthPolicy == WidthStrict:
			line, _ := cr.FieldPos(0)
			return nil, &ParseError{
				Line: line,
				Msg:  fmt.Sprintf("expected %d fields, saw %d", width, len(rec)),
			}
		case len(rec) > width:
			rec = rec[:width]
		}
		raw = append(raw, rec)
	}

	return buildTable(names, raw, missing), nil
}

func wrapCSVError(err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return &ParseError{Line: perr.Line, Msg: perr.Err.Error(), Err: err}
	}
	return &ParseError{Msg: err.Error(), Err: err}
}

// normalizeHeader NFC-normalizes names, names blank columns and makes
// duplicates unique with a numeric suffix.
func normalizeHeader(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]bool, len(header))
	counts := make(map[string]int, len(header))

	for i, h := range header {
		name := norm.NFC.String(h)
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		base := name
		for used[name] {
			counts[base]++
			name = fmt.Sprintf("%s.%d", base, counts[base])
		}
		used[name] = true
		names[i] = name
	}
	return names
}

func buildTable(names []string, raw [][]string, missing map[string]struct{}) *Table {
	cols := make([]Column, len(names))
	for i, name := range names {
		cols[i] = Column{Name: name}
	}
	t := NewTable(cols)
	t.Rows = make([][]any, len(raw))
	for r := range raw {
		t.Rows[r] = make([]any, len(names))
	}

	for c := range names {
		kind := inferKind(raw, c, missing)
		t.Columns[c].Kind = kind
		for r, rec := range raw {
			if c >= len(rec) {
				t.Rows[r][c] = Missing
				continue
			}
			tok := rec[c]
			if _, ok := missing[tok]; ok {
				t.Rows[r][c] = Missing
				continue
			}
			t.Rows[r][c] = convertToken(tok, kind)
		}
	}
	return t
}

func inferKind(raw [][]string, col int, missing map[string]struct{}) Kind {
	allInt, allFloat, allBool := true, true, true
	seen := false

	for _, rec := range raw {
		if col >= len(rec) {
			continue
		}
		tok := rec[col]
		if _, ok := missing[tok]; ok {
			continue
		}
		seen = true
		if allInt {
			if _, ok := parseInt(tok); !ok {
				allInt = false
			}
		}
		if allFloat && !allInt {
			if _, ok := parseFloat(tok); !ok {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := parseBool(tok); !ok {
				allBool = false
			}
		}
		if !allInt && !allFloat && !allBool {
			return KindText
		}
	}

	switch {
	case !seen:
		return KindFloat
	case allInt:
		return KindInteger
	case allFloat:
		return KindFloat
	case allBool:
		return KindBoolean
	}
	return KindText
}

func convertToken(tok string, kind Kind) any {
	switch kind {
	case KindInteger:
		if v, ok := parseInt(tok); ok {
			return v
		}
	case KindFloat:
		if v, ok := parseFloat(tok); ok {
			return v
		}
	case KindBoolean:
		if v, ok := parseBool(tok); ok {
			return v
		}
	}
	return tok
}

func parseInt(s string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return v, err == nil
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "xX_") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// out of range values still parse to ±Inf
		var nerr *strconv.NumError
		if errors.As(err, &nerr) && errors.Is(nerr.Err, strconv.ErrRange) {
			return v, true
		}
		return 0, false
	}
	return v, true
}

func parseBool(s string) (bool, bool) {
	switch s {
	case "True", "TRUE", "true":
		return true, true
	case "False", "FALSE", "false":
		return false, true
	}
	return false, false
}

// ParseLiteral converts a replacement literal to the given kind. ok is false
// when the literal cannot be represented in that kind without loss.
func ParseLiteral(lit string, kind Kind) (any, bool) {
	switch kind {
	case KindInteger:
		if v, ok := parseInt(lit); ok {
			return v, true
		}
	case KindFloat:
		if v, ok := parseFloat(lit); ok {
			return v, true
		}
	case KindBoolean:
		if v, ok := parseBool(lit); ok {
			return v, true
		}
	case KindText:
		return lit, true
	}
	return nil, false
}
