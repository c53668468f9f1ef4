package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datatidy/internal/dataprocessing"
	"datatidy/internal/exporter"
	"datatidy/internal/shared/testutil"
	"datatidy/internal/storage"
)

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantDetail string
	}{
		{
			name:       "context deadline",
			err:        fmt.Errorf("load: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "api error",
			err:        ErrNoFilePart,
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantDetail: "No file part",
		},
		{
			name:       "dataset not found",
			err:        fmt.Errorf("people.csv: %w", storage.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantType:   TypeDataNotFound,
			wantDetail: "people.csv: dataset not found",
		},
		{
			name:       "invalid key",
			err:        fmt.Errorf("%w: %q", storage.ErrInvalidKey, "../x"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeInvalidKey,
		},
		{
			name:       "invalid view kind",
			err:        fmt.Errorf("%w: %q", dataprocessing.ErrInvalidViewKind, "middle"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeInvalidViewKind,
			wantDetail: "Invalid view type. Use head, tail, or range.",
		},
		{
			name:       "unsupported export format",
			err:        fmt.Errorf("%w: %q", exporter.ErrUnsupportedFormat, "pdf"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeUnsupportedFormat,
		},
		{
			name:       "parse error",
			err:        &dataprocessing.ParseError{Line: 3, Msg: "extraneous field"},
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeDataParse,
			wantDetail: "The file could not be read as delimited text: parse error on line 3: extraneous field",
		},
		{
			name:       "processing error hides the cause",
			err:        &dataprocessing.ProcessingError{Op: "clean", Err: errors.New("index out of range [7]")},
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeDataProcessing,
			wantDetail: "An unexpected error occurred while processing the dataset",
		},
		{
			name:       "body too large",
			err:        &http.MaxBytesError{Limit: 1024},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantType:   TypePayloadTooLarge,
		},
		{
			name:       "wrapped storage failure is internal",
			err:        fmt.Errorf("write people.csv: %w", errors.New("disk full")),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
		{
			name:       "unknown error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			handler := NewErrorHandler(logger, false)

			req := httptest.NewRequest(http.MethodGet, "/data/people.csv", nil)
			rec := httptest.NewRecorder()
			handler.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeProblem(t, rec)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/data/people.csv", body["instance"])
			assert.NotContains(t, body, "stack")
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, body["detail"])
			}
		})
	}
}

func TestErrorHandler_HandleError_Nil(t *testing.T) {
	handler := NewErrorHandler(nil, false)
	rec := httptest.NewRecorder()

	handler.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestErrorHandler_LogsCause(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	err := &dataprocessing.ProcessingError{Op: "clean", Err: errors.New("index out of range [7]")}
	handler.HandleError(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/clean", nil), err)

	testutil.AssertLogContains(t, logs, slog.LevelError, "request failed")
	testutil.AssertLogAttr(t, logs, "error", "clean: index out of range [7]")
	testutil.AssertLogAttr(t, logs, "component", "error_handler")
}

func TestErrorHandler_IncludeStack(t *testing.T) {
	handler := NewErrorHandler(nil, true)
	rec := httptest.NewRecorder()

	handler.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("boom"))

	body := decodeProblem(t, rec)
	assert.Contains(t, body, "stack")
}

func TestRecoveryMiddleware(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	h := RecoveryMiddleware(handler)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/datasets", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeProblem(t, rec)
	assert.Equal(t, TypeInternal, body["type"])
	assert.NotContains(t, body, "panic")
	assert.True(t, logs.ContainsMessage("panic recovered"))
}

func TestRecoveryMiddleware_AbortHandler(t *testing.T) {
	handler := NewErrorHandler(nil, false)
	h := RecoveryMiddleware(handler)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	handler := NewErrorHandler(nil, false)

	rec := httptest.NewRecorder()
	handler.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, TypeNotFound, decodeProblem(t, rec)["type"])

	rec = httptest.NewRecorder()
	handler.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/clean", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method DELETE is not allowed for this endpoint", decodeProblem(t, rec)["detail"])
}
