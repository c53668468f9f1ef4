package dataprocessing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadString(t *testing.T, data string, opts LoadOptions) *Table {
	t.Helper()
	table, err := Load(strings.NewReader(data), opts)
	require.NoError(t, err)
	return table
}

func columnValues(table *Table, name string) []any {
	idx := table.ColumnIndex(name)
	out := make([]any, len(table.Rows))
	for i, row := range table.Rows {
		out[i] = row[idx]
	}
	return out
}

func TestLoad_InfersColumnKinds(t *testing.T) {
	table := loadString(t, "id,name,score,active\n1,Ann,1.5,True\n2,Bob,,False\n", DefaultLoadOptions())

	require.Equal(t, 2, table.NumRows())
	assert.Equal(t, []Column{
		{Name: "id", Kind: KindInteger},
		{Name: "name", Kind: KindText},
		{Name: "score", Kind: KindFloat},
		{Name: "active", Kind: KindBoolean},
	}, table.Columns)

	assert.Equal(t, []any{int64(1), int64(2)}, columnValues(table, "id"))
	assert.Equal(t, []any{"Ann", "Bob"}, columnValues(table, "name"))
	assert.Equal(t, []any{1.5, Missing}, columnValues(table, "score"))
	assert.Equal(t, []any{true, false}, columnValues(table, "active"))
}

func TestLoad_IntegerColumnWithMissingStaysInteger(t *testing.T) {
	table := loadString(t, "age\n25\n\n25\nNA\n", DefaultLoadOptions())

	assert.Equal(t, KindInteger, table.Columns[0].Kind)
	// blank lines are skipped, NA is a missing token
	assert.Equal(t, []any{int64(25), int64(25), Missing}, columnValues(table, "age"))
}

func TestLoad_MixedNumbersAreFloat(t *testing.T) {
	table := loadString(t, "v\n1\n2.5\n-3\n", DefaultLoadOptions())

	assert.Equal(t, KindFloat, table.Columns[0].Kind)
	assert.Equal(t, []any{1.0, 2.5, -3.0}, columnValues(table, "v"))
}

func TestLoad_AllMissingColumnIsFloat(t *testing.T) {
	table := loadString(t, "a,b\n1,\n2,NA\n", DefaultLoadOptions())

	assert.Equal(t, KindFloat, table.Columns[1].Kind)
	assert.Equal(t, []any{Missing, Missing}, columnValues(table, "b"))
}

func TestLoad_Header(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []string
	}{
		{
			name: "strips BOM",
			data: "\xEF\xBB\xBFid,name\n1,a\n",
			want: []string{"id", "name"},
		},
		{
			name: "deduplicates names",
			data: "a,a,a,b\n1,2,3,4\n",
			want: []string{"a", "a.1", "a.2", "b"},
		},
		{
			name: "names blank columns",
			data: "a,,c\n1,2,3\n",
			want: []string{"a", "Unnamed: 1", "c"},
		},
		{
			name: "NFC normalizes",
			data: "Cafe\u0301\n1\n",
			want: []string{"Caf\u00e9"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := loadString(t, tt.data, DefaultLoadOptions())
			assert.Equal(t, tt.want, table.ColumnNames())
		})
	}
}

func TestLoad_WidthPolicy(t *testing.T) {
	t.Run("strict pads short rows", func(t *testing.T) {
		table := loadString(t, "a,b,c\n1,2\n", DefaultLoadOptions())
		assert.Equal(t, [][]any{{int64(1), int64(2), Missing}}, table.Rows)
	})

	t.Run("strict rejects long rows", func(t *testing.T) {
		_, err := Load(strings.NewReader("a,b\n1,2\n3,4,5\n"), DefaultLoadOptions())

		var perr *ParseError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, 3, perr.Line)
		assert.Contains(t, perr.Error(), "line 3")
	})

	t.Run("lenient truncates long rows", func(t *testing.T) {
		opts := DefaultLoadOptions()
		opts.WidthPolicy = WidthLenient
		table := loadString(t, "a,b\n1,2\n3,4,5\n", opts)
		assert.Equal(t, [][]any{{int64(1), int64(2)}, {int64(3), int64(4)}}, table.Rows)
	})
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty input", data: ""},
		{name: "unbalanced quote", data: "a,b\n\"1,2\n"},
		{name: "bare quote", data: "a,b\n1,x\"y\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.data), DefaultLoadOptions())
			var perr *ParseError
			assert.ErrorAs(t, err, &perr)
		})
	}
}

func TestLoad_NaNLiteralOutsideTokenSet(t *testing.T) {
	table := loadString(t, "x\n1.5\nNaN\n\n", LoadOptions{MissingTokens: []string{""}})

	assert.Equal(t, KindFloat, table.Columns[0].Kind)
	require.Equal(t, 2, table.NumRows())
	assert.True(t, IsNaN(table.Rows[1][0]))
	assert.False(t, IsMissing(table.Rows[1][0]))
}

func TestLoad_CleaningTokens(t *testing.T) {
	data := "v\n1\n?\nnone\n"

	def := loadString(t, data, DefaultLoadOptions())
	assert.Equal(t, KindText, def.Columns[0].Kind)
	assert.Equal(t, []any{"1", "?", "none"}, columnValues(def, "v"))

	cleaning := loadString(t, data, CleaningLoadOptions())
	assert.Equal(t, KindInteger, cleaning.Columns[0].Kind)
	assert.Equal(t, []any{int64(1), Missing, Missing}, columnValues(cleaning, "v"))
}

func TestLoad_Delimiter(t *testing.T) {
	table := loadString(t, "a;b\n1;x\n", LoadOptions{Delimiter: ';'})
	assert.Equal(t, []string{"a", "b"}, table.ColumnNames())
	assert.Equal(t, [][]any{{int64(1), "x"}}, table.Rows)
}

func TestParseWidthPolicy(t *testing.T) {
	p, err := ParseWidthPolicy("Lenient")
	require.NoError(t, err)
	assert.Equal(t, WidthLenient, p)

	p, err = ParseWidthPolicy("")
	require.NoError(t, err)
	assert.Equal(t, WidthStrict, p)

	_, err = ParseWidthPolicy("loose")
	assert.Error(t, err)
}

func TestParseLiteral(t *testing.T) {
	tests := []struct {
		lit    string
		kind   Kind
		want   any
		wantOK bool
	}{
		{"0", KindInteger, int64(0), true},
		{"2.5", KindInteger, nil, false},
		{"2.5", KindFloat, 2.5, true},
		{"true", KindBoolean, true, true},
		{"yes", KindBoolean, nil, false},
		{"anything", KindText, "anything", true},
	}

	for _, tt := range tests {
		got, ok := ParseLiteral(tt.lit, tt.kind)
		assert.Equal(t, tt.wantOK, ok, tt.lit)
		if tt.wantOK {
			assert.Equal(t, tt.want, got, tt.lit)
		}
	}
}
