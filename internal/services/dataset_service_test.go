package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"datatidy/internal/config"
	"datatidy/internal/dataprocessing"
	"datatidy/internal/exporter"
	"datatidy/internal/shared/testutil"
	"datatidy/internal/storage"
	api "datatidy/pkg/contracts/api/v1"
	"datatidy/pkg/contracts/events"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(_ context.Context, msgType events.MessageType, data any) {
	m.Called(msgType, data)
}

func newTestService(t *testing.T, opts ...DatasetServiceOption) (*DatasetService, *storage.MemoryStore, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	store := storage.NewMemoryStore()
	svc, err := NewDatasetService(store, config.Default().Dataset, logger, opts...)
	require.NoError(t, err)
	return svc, store, logs
}

func putCSV(t *testing.T, store storage.Store, name, data string) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), name, []byte(data)))
}

func toJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func intPtr(n int) *int { return &n }

func replacement(s string) *api.Replacement {
	r := api.Replacement(s)
	return &r
}

func TestNewDatasetService(t *testing.T) {
	_, err := NewDatasetService(nil, config.Default().Dataset, nil)
	assert.Error(t, err)

	cfg := config.Default().Dataset
	cfg.WidthPolicy = "sloppy"
	_, err = NewDatasetService(storage.NewMemoryStore(), cfg, nil)
	assert.Error(t, err)
}

func TestUpload(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", events.MessageTypeDatasetUploaded, events.DatasetUploaded{
		Filename:      "people.csv",
		Size:          int64(len(testutil.PeopleCSV)),
		Rows:          4,
		Columns:       2,
		DuplicateRows: 1,
	}).Once()

	svc, store, logs := newTestService(t, WithEventPublisher(pub))
	ctx := context.Background()

	resp, err := svc.Upload(ctx, "people.csv", strings.NewReader(testutil.PeopleCSV))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "people.csv", resp.Filename)
	assert.Equal(t, api.Stats{
		Rows:          4,
		Columns:       2,
		ColumnNames:   []string{"age", "city"},
		MissingValues: map[string]int{"age": 1, "city": 1},
		DuplicateRows: 1,
	}, resp.Stats)

	stored, err := store.Get(ctx, "people.csv")
	require.NoError(t, err)
	assert.Equal(t, testutil.PeopleCSV, string(stored))

	pub.AssertExpectations(t)
	testutil.AssertLogAttr(t, logs, "filename", "people.csv")
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     string
		check    func(t *testing.T, err error)
	}{
		{
			name:     "empty filename",
			filename: "",
			data:     testutil.PeopleCSV,
			check:    func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrEmptyFilename) },
		},
		{
			name:     "not csv",
			filename: "people.xlsx",
			data:     testutil.PeopleCSV,
			check:    func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidFileType) },
		},
		{
			name:     "path element",
			filename: "../people.csv",
			data:     testutil.PeopleCSV,
			check:    func(t *testing.T, err error) { assert.ErrorIs(t, err, storage.ErrInvalidKey) },
		},
		{
			name:     "ragged rows",
			filename: "ragged.csv",
			data:     testutil.RaggedCSV,
			check: func(t *testing.T, err error) {
				var parseErr *dataprocessing.ParseError
				assert.ErrorAs(t, err, &parseErr)
			},
		},
		{
			name:     "empty file",
			filename: "empty.csv",
			data:     "",
			check: func(t *testing.T, err error) {
				var parseErr *dataprocessing.ParseError
				assert.ErrorAs(t, err, &parseErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newTestService(t)

			_, err := svc.Upload(context.Background(), tt.filename, strings.NewReader(tt.data))
			require.Error(t, err)
			tt.check(t, err)

			objects, err := store.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, objects, "rejected uploads are not stored")
		})
	}
}

func TestStats(t *testing.T) {
	svc, store, _ := newTestService(t)
	putCSV(t, store, "scores.csv", testutil.ScoresCSV)

	resp, err := svc.Stats(context.Background(), "scores.csv")
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Stats.Rows)
	assert.Equal(t, map[string]int{"id": 0, "score": 1}, resp.Stats.MissingValues)
	assert.Equal(t, 0, resp.Stats.DuplicateRows)

	_, err = svc.Stats(context.Background(), "nope.csv")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestData_PreviewIsCappedAndJSONSafe(t *testing.T) {
	svc, store, _ := newTestService(t)
	putCSV(t, store, "big.csv", testutil.NumberedCSV(150))
	putCSV(t, store, "people.csv", testutil.PeopleCSV)
	ctx := context.Background()

	resp, err := svc.Data(ctx, "big.csv")
	require.NoError(t, err)
	assert.Len(t, resp.Data, 100)
	assert.Equal(t, 150, resp.TotalRows)

	resp, err = svc.Data(ctx, "people.csv")
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"data": [
			{"age": 25, "city": "NY"},
			{"age": 25, "city": "NY"},
			{"age": null, "city": "LA"},
			{"age": 40, "city": null}
		],
		"total_rows": 4
	}`, toJSON(t, resp))
}

func TestView(t *testing.T) {
	svc, store, _ := newTestService(t)
	putCSV(t, store, "n.csv", testutil.NumberedCSV(20))
	ctx := context.Background()

	tests := []struct {
		name  string
		query api.ViewQuery
		want  []int
	}{
		{name: "defaults to head 10", query: api.ViewQuery{}, want: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{name: "head", query: api.ViewQuery{Type: "head", N: intPtr(3)}, want: []int{0, 1, 2}},
		{name: "tail", query: api.ViewQuery{Type: "tail", N: intPtr(2)}, want: []int{18, 19}},
		{name: "range", query: api.ViewQuery{Type: "range", N: intPtr(3), Start: intPtr(5)}, want: []int{5, 6, 7}},
		{name: "range clipped", query: api.ViewQuery{Type: "range", N: intPtr(5), Start: intPtr(18)}, want: []int{18, 19}},
		{name: "range past end", query: api.ViewQuery{Type: "range", N: intPtr(5), Start: intPtr(40)}, want: []int{}},
		{name: "negative n", query: api.ViewQuery{Type: "head", N: intPtr(-1)}, want: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.View(ctx, "n.csv", tt.query)
			require.NoError(t, err)

			got := make([]int, 0, len(resp.Data))
			for _, row := range resp.Data {
				v, ok := row.(dataprocessing.Record).Get("n")
				require.True(t, ok)
				got = append(got, int(v.(int64)))
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want), resp.RowsReturned)
			assert.Equal(t, 20, resp.TotalRows)
			assert.Equal(t, []string{"n"}, resp.Columns)
		})
	}
}

func TestView_Errors(t *testing.T) {
	svc, store, _ := newTestService(t)
	putCSV(t, store, "n.csv", testutil.NumberedCSV(3))

	_, err := svc.View(context.Background(), "n.csv", api.ViewQuery{Type: "sideways"})
	assert.ErrorIs(t, err, dataprocessing.ErrInvalidViewKind)

	_, err = svc.View(context.Background(), "missing.csv", api.ViewQuery{Type: "sideways"})
	assert.ErrorIs(t, err, storage.ErrNotFound, "a missing dataset is reported before the view type")
}

func TestClean_EndToEnd(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", events.MessageTypeDatasetCleaned, mock.MatchedBy(func(e events.DatasetCleaned) bool {
		return e.CleanedFilename == "cleaned_scores.csv" && e.Operations == 2 && e.Skipped == 1
	})).Once()

	svc, store, _ := newTestService(t, WithEventPublisher(pub))
	putCSV(t, store, "scores.csv", testutil.ScoresCSV)
	ctx := context.Background()

	resp, err := svc.Clean(ctx, &api.CleanRequest{
		Filename: "scores.csv",
		Operations: api.CleanOperations{
			MissingValueOperations: []api.MissingValueOperation{
				{Column: "score", MissingType: "null", Action: "median"},
				{Column: "ghost", MissingType: "null", Action: "drop"},
			},
		},
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "scores.csv", resp.OriginalFilename)
	assert.Equal(t, "cleaned_scores.csv", resp.CleanedFilename)
	assert.Equal(t, 4, resp.OriginalRows)
	assert.Equal(t, 4, resp.CleanedRows)
	assert.Equal(t, 0, resp.RowsRemoved)
	assert.Equal(t, 2, resp.CleanedColumns)

	require.Len(t, resp.Operations, 2)
	assert.True(t, resp.Operations[0].Applied)
	assert.Equal(t, 1, resp.Operations[0].CellsChanged)
	assert.Equal(t, int64(20), resp.Operations[0].FillValue)
	assert.False(t, resp.Operations[1].Applied)
	assert.Equal(t, dataprocessing.ReasonUnknownColumn, resp.Operations[1].Reason)

	cleaned, err := store.Get(ctx, "cleaned_scores.csv")
	require.NoError(t, err)
	assert.Equal(t, "id,score\n1,10\n2,20\n3,20\n4,30\n", string(cleaned))

	source, err := store.Get(ctx, "scores.csv")
	require.NoError(t, err)
	assert.Equal(t, testutil.ScoresCSV, string(source), "the source dataset is never modified")

	report, err := svc.Report(ctx, "cleaned_scores.csv")
	require.NoError(t, err)
	assert.Equal(t, "cleaned_scores.csv", report.CleanedFilename)
	assert.Len(t, report.Operations, 2)
	require.NotNil(t, report.Request)
	assert.Equal(t, "scores.csv", report.Request.Filename)

	pub.AssertExpectations(t)
}

func TestClean_DuplicatesRulesAndColumns(t *testing.T) {
	svc, store, _ := newTestService(t)
	putCSV(t, store, "people.csv", testutil.PeopleCSV)
	ctx := context.Background()

	resp, err := svc.Clean(ctx, &api.CleanRequest{
		Filename: "people.csv",
		Operations: api.CleanOperations{
			DropDuplicates: true,
			MissingValueOperations: []api.MissingValueOperation{
				{Column: "age", MissingType: "null", Action: "mean"},
				{Column: "city", MissingType: "null", Action: "replace", Replacement: replacement("unknown")},
			},
			DropColumns: []string{"ghost"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 4, resp.OriginalRows)
	assert.Equal(t, 3, resp.CleanedRows)
	assert.Equal(t, 1, resp.RowsRemoved)
	assert.Equal(t, 1, resp.DuplicatesRemoved)
	assert.Equal(t, 0, resp.ColumnsRemoved)
	assert.Empty(t, resp.DroppedColumns)

	cleaned, err := store.Get(ctx, "cleaned_people.csv")
	require.NoError(t, err)
	assert.Equal(t, "age,city\n25.0,NY\n32.5,LA\n40.0,unknown\n", string(cleaned))

	// a second run replaces the derived table
	resp, err = svc.Clean(ctx, &api.CleanRequest{
		Filename:   "people.csv",
		Operations: api.CleanOperations{DropColumns: []string{"city"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.ColumnsRemoved)
	assert.Equal(t, []string{"city"}, resp.DroppedColumns)

	cleaned, err = store.Get(ctx, "cleaned_people.csv")
	require.NoError(t, err)
	assert.Equal(t, "age\n25\n25\n\"\"\n40\n", string(cleaned))
}

func TestClean_MissingSource(t *testing.T) {
	svc, store, _ := newTestService(t)

	_, err := svc.Clean(context.Background(), &api.CleanRequest{Filename: "nope.csv"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	exists, err := store.Exists(context.Background(), "cleaned_nope.csv")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExport(t *testing.T) {
	svc, store, _ := newTestService(t)
	putCSV(t, store, "people.csv", testutil.PeopleCSV)
	ctx := context.Background()

	res, err := svc.Export(ctx, "people.csv", "")
	require.NoError(t, err)
	assert.Equal(t, "people.csv", res.Filename)
	assert.Equal(t, exporter.FormatCSV.ContentType(), res.ContentType)
	assert.Equal(t, testutil.PeopleCSV, string(res.Data))

	res, err = svc.Export(ctx, "people.csv", "xlsx")
	require.NoError(t, err)
	assert.Equal(t, "people.xlsx", res.Filename)
	assert.True(t, bytes.HasPrefix(res.Data, []byte("PK")), "xlsx is a zip archive")

	_, err = svc.Export(ctx, "people.csv", "pdf")
	assert.ErrorIs(t, err, exporter.ErrUnsupportedFormat)

	_, err = svc.Export(ctx, "nope.csv", "csv")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListAndDelete(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything)

	svc, store, _ := newTestService(t, WithEventPublisher(pub))
	putCSV(t, store, "scores.csv", testutil.ScoresCSV)
	putCSV(t, store, "people.csv", testutil.PeopleCSV)
	ctx := context.Background()

	_, err := svc.Clean(ctx, &api.CleanRequest{Filename: "scores.csv"})
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, list.Count)
	names := []string{list.Datasets[0].Filename, list.Datasets[1].Filename, list.Datasets[2].Filename}
	assert.Equal(t, []string{"cleaned_scores.csv", "people.csv", "scores.csv"}, names)
	assert.True(t, list.Datasets[0].Cleaned)
	assert.False(t, list.Datasets[1].Cleaned)

	require.NoError(t, svc.Delete(ctx, "cleaned_scores.csv"))
	_, err = store.Get(ctx, ReportName("cleaned_scores.csv"))
	assert.ErrorIs(t, err, storage.ErrNotFound, "the report goes with its dataset")

	err = svc.Delete(ctx, "cleaned_scores.csv")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	pub.AssertCalled(t, "Publish", events.MessageTypeDatasetDeleted, events.DatasetDeleted{Filename: "cleaned_scores.csv"})
}

func TestConcurrentReadsAndCleans(t *testing.T) {
	svc, store, _ := newTestService(t)
	putCSV(t, store, "n.csv", testutil.NumberedCSV(500))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.View(ctx, "n.csv", api.ViewQuery{Type: "tail", N: intPtr(5)})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Clean(ctx, &api.CleanRequest{
				Filename:   "n.csv",
				Operations: api.CleanOperations{DropDuplicates: true},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 0, svc.locks.size(), "locks are released")

	stats, err := svc.Stats(ctx, "cleaned_n.csv")
	require.NoError(t, err)
	assert.Equal(t, 500, stats.Stats.Rows)
}

func TestKeyedMutex_SerializesWriters(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("a")

	acquired := make(chan struct{})
	go func() {
		release := k.Lock("a")
		close(acquired)
		release()
	}()

	// other keys are independent
	k.RLock("b")()

	select {
	case <-acquired:
		t.Fatal("second writer acquired a held key")
	default:
	}

	unlock()
	<-acquired
	assert.Eventually(t, func() bool { return k.size() == 0 }, time.Second, 10*time.Millisecond)
}

func TestIsCSVName(t *testing.T) {
	assert.True(t, isCSVName("a.csv"))
	assert.True(t, isCSVName("A.CSV"))
	assert.False(t, isCSVName(".csv"))
	assert.False(t, isCSVName("a.csv.txt"))
	assert.False(t, isCSVName("acsv"))
}

type failingStore struct {
	*storage.MemoryStore
	err error
}

func (f failingStore) Put(context.Context, string, []byte) error { return f.err }

func TestUpload_StoreFailure(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	boom := errors.New("disk full")
	svc, err := NewDatasetService(failingStore{storage.NewMemoryStore(), boom}, config.Default().Dataset, logger)
	require.NoError(t, err)

	_, err = svc.Upload(context.Background(), "people.csv", strings.NewReader(testutil.PeopleCSV))
	assert.ErrorIs(t, err, boom)
}
