package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datatidy/internal/config"
	"datatidy/internal/shared/testutil"
	"datatidy/pkg/contracts/events"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage.Backend = "memory"
	cfg.Security.RateLimit.Enabled = false
	cfg.Server.ShutdownTimeout = 2 * time.Second
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	a, err := NewApplication(context.Background(), cfg, logger)
	require.NoError(t, err)
	return a
}

func newTestServer(t *testing.T) (*Application, *httptest.Server) {
	t.Helper()
	a := newTestApp(t, testConfig())
	srv := httptest.NewServer(a.Router)
	t.Cleanup(func() {
		srv.Close()
		_ = a.Stop(context.Background())
	})
	return a, srv
}

func uploadCSV(t *testing.T, baseURL, filename, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(baseURL+"/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	return resp
}

func readJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestNewApplication_InvalidStorage(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Backend = "tape"
	logger, _ := testutil.NewTestLogger(t)

	_, err := NewApplication(context.Background(), cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage")
}

func TestApplication_UploadCleanFlow(t *testing.T) {
	_, srv := newTestServer(t)

	resp := uploadCSV(t, srv.URL, "scores.csv", testutil.ScoresCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	stats := readJSON(t, resp)
	assert.Equal(t, true, stats["success"])

	clean := `{"filename":"scores.csv","operations":{"missing_value_operations":[{"column":"score","missingType":"null","action":"median"}]}}`
	resp, err := http.Post(srv.URL+"/clean", "application/json", strings.NewReader(clean))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cleaned := readJSON(t, resp)
	assert.Equal(t, "cleaned_scores.csv", cleaned["cleaned_filename"])

	resp, err = http.Get(srv.URL + "/data-view/cleaned_scores.csv?type=tail&n=2")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := readJSON(t, resp)
	assert.EqualValues(t, 4, view["total_rows"])
	assert.EqualValues(t, 2, view["rows_returned"])

	resp, err = http.Get(srv.URL + "/datasets")
	require.NoError(t, err)
	list := readJSON(t, resp)
	assert.EqualValues(t, 2, list["count"])
}

func TestApplication_ErrorResponses(t *testing.T) {
	_, srv := newTestServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"unknown route", http.MethodGet, "/nope", http.StatusNotFound},
		{"missing dataset", http.MethodGet, "/data/missing.csv", http.StatusNotFound},
		{"wrong method", http.MethodPut, "/upload", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			problem := readJSON(t, resp)
			assert.EqualValues(t, tt.wantStatus, problem["status"])
			assert.NotEmpty(t, problem["type"])
		})
	}
}

func TestApplication_HealthAndMetrics(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/health/ready")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := readJSON(t, resp)
	assert.Equal(t, "ready", health["status"])

	resp = uploadCSV(t, srv.URL, "people.csv", testutil.PeopleCSV)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "dataset_uploads_total")
	assert.Contains(t, string(body), "http_requests_total")
}

func TestApplication_MetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Telemetry.MetricsEnabled = false
	a := newTestApp(t, cfg)
	t.Cleanup(func() { _ = a.Stop(context.Background()) })

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApplication_WebSocketReceivesUploads(t *testing.T) {
	_, srv := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() events.BaseMessage {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg events.BaseMessage
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	assert.Equal(t, events.MessageTypeSystemStatus, read().Type)

	resp := uploadCSV(t, srv.URL, "people.csv", testutil.PeopleCSV)
	resp.Body.Close()

	msg := read()
	assert.Equal(t, events.MessageTypeDatasetUploaded, msg.Type)
	assert.Equal(t, resp.Header.Get("X-Request-ID"), msg.TraceID)
}

func TestApplication_ServeStopsOnCancel(t *testing.T) {
	a := newTestApp(t, testConfig())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/health/live")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.Equal(t, 0, a.WebSocketHub.ClientCount())
}
