package exporter

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"datatidy/internal/dataprocessing"
)

func sampleTable() *dataprocessing.Table {
	table := dataprocessing.NewTable([]dataprocessing.Column{
		{Name: "age", Kind: dataprocessing.KindFloat},
		{Name: "city", Kind: dataprocessing.KindText},
		{Name: "member", Kind: dataprocessing.KindBoolean},
	})
	table.Rows = [][]any{
		{25.0, "New York, NY", true},
		{dataprocessing.Missing, "LA", false},
		{math.NaN(), dataprocessing.Missing, dataprocessing.Missing},
	}
	return table
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTable(), WriteOptions{}))

	want := "age,city,member\n" +
		"25.0,\"New York, NY\",True\n" +
		",LA,False\n" +
		",,\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSV_BOMAndDelimiter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTable(), WriteOptions{BOMPrefix: true, Delimiter: ';'}))

	out := buf.Bytes()
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, out[:3])
	assert.True(t, strings.HasPrefix(string(out[3:]), "age;city;member\n"))
}

func TestWriteCSV_RoundTripsMissingCells(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTable(), WriteOptions{}))

	loaded, err := dataprocessing.Load(&buf, dataprocessing.DefaultLoadOptions())
	require.NoError(t, err)

	before := dataprocessing.Summarize(sampleTable())
	after := dataprocessing.Summarize(loaded)
	assert.Equal(t, before.MissingValues, after.MissingValues)
	assert.Equal(t, before.Rows, after.Rows)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleTable(), ""))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(DefaultSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"age", "city", "member"}, rows[0])
	assert.Equal(t, "New York, NY", rows[1][1])
	assert.Equal(t, "LA", rows[2][1])
}

func TestWrite_UnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, Format("parquet"), sampleTable())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatCSV, false},
		{"CSV", FormatCSV, false},
		{"xlsx", FormatXLSX, false},
		{"excel", FormatXLSX, false},
		{"json", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnsupportedFormat)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	assert.Equal(t, "cleaned_people.xlsx", FormatXLSX.FileName("cleaned_people.csv"))
	assert.Equal(t, "text/csv; charset=utf-8", FormatCSV.ContentType())
}

func TestWriteCSV_SingleColumnMissingCellKeepsRow(t *testing.T) {
	table := dataprocessing.NewTable([]dataprocessing.Column{{Name: "n", Kind: dataprocessing.KindInteger}})
	require.NoError(t, table.AppendRow([]any{int64(1)}))
	require.NoError(t, table.AppendRow([]any{dataprocessing.Missing}))
	require.NoError(t, table.AppendRow([]any{int64(3)}))

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table, WriteOptions{}))
	assert.Equal(t, "n\n1\n\"\"\n3\n", buf.String())

	loaded, err := dataprocessing.Load(&buf, dataprocessing.DefaultLoadOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.NumRows())
	assert.True(t, dataprocessing.IsMissing(loaded.Rows[1][0]))
}
