package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/raj2399/Task-Evallo/internal/engine"
	"github.com/raj2399/Task-Evallo/internal/logger"
	"github.com/raj2399/Task-Evallo/internal/logs"
	"github.com/raj2399/Task-Evallo/internal/query"
	"github.com/raj2399/Task-Evallo/internal/validate"
	"github.com/raj2399/Task-Evallo/pkg/schema"
	"github.com/raj2399/Task-Evallo/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenStore fails every operation the way an unwritable data file does.
type brokenStore struct{}

func (brokenStore) Append(schema.LogRecord) error {
	return fmt.Errorf("%w: read-only file system", sdk.ErrPersistence)
}

func (brokenStore) ReadAll() ([]schema.LogRecord, error) {
	return nil, fmt.Errorf("%w: permission denied", sdk.ErrPersistence)
}

func setupTestRouter(t *testing.T, store sdk.LogStore, opts Options) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	v, err := validate.New()
	require.NoError(t, err)
	opts.Logger = logger.Discard()

	h := &Handler{Logs: logs.NewService(store, v, opts.Logger)}
	return NewRouter(h, opts)
}

func logBody(level, msg, ts string) string {
	return fmt.Sprintf(`{"level":%q,"message":%q,"resourceId":"server-1234","timestamp":%q,`+
		`"traceId":"abc-xyz-123","spanId":"span-456","commit":"5e5342f","metadata":{"parentResourceId":"server-0987"}}`,
		level, msg, ts)
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) query.Result {
	t.Helper()
	var res query.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestIngestAndQueryScenario(t *testing.T) {
	r := setupTestRouter(t, engine.NewMemStore(nil), Options{})

	for _, body := range []string{
		logBody("info", "Service started", "2023-09-15T08:00:00Z"),
		logBody("error", "Failed to connect to DB", "2023-09-15T08:01:00Z"),
		logBody("warn", "High memory usage", "2023-09-15T08:02:00Z"),
	} {
		w := do(r, http.MethodPost, "/logs", body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.JSONEq(t, body, w.Body.String())
	}

	res := decodeResult(t, do(r, http.MethodGet, "/logs?level=error", ""))
	require.Len(t, res.Logs, 1)
	assert.Equal(t, "Failed to connect to DB", res.Logs[0].Message)

	res = decodeResult(t, do(r, http.MethodGet, "/logs?message=memory", ""))
	require.Len(t, res.Logs, 1)
	assert.Equal(t, "High memory usage", res.Logs[0].Message)

	res = decodeResult(t, do(r, http.MethodGet, "/logs?limit=2&page=1", ""))
	require.Len(t, res.Logs, 2)
	assert.Equal(t, schema.LevelWarn, res.Logs[0].Level)
	assert.Equal(t, schema.LevelError, res.Logs[1].Level)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 2, res.Limit)
	assert.Equal(t, 2, res.TotalPages)

	res = decodeResult(t, do(r, http.MethodGet, "/logs?limit=2&page=2", ""))
	require.Len(t, res.Logs, 1)
	assert.Equal(t, "Service started", res.Logs[0].Message)
}

func TestUnknownFieldsRoundTrip(t *testing.T) {
	r := setupTestRouter(t, engine.NewMemStore(nil), Options{})
	body := `{"level":"info","message":"Service started","resourceId":"server-1234","timestamp":"2023-09-15T08:00:00Z",` +
		`"traceId":"abc-xyz-123","spanId":"span-456","commit":"5e5342f","metadata":{},"host":"web-1","region":{"zone":"eu-1a"}}`

	w := do(r, http.MethodPost, "/logs", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, body, w.Body.String())

	w = do(r, http.MethodGet, "/logs", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Logs []json.RawMessage `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Logs, 1)
	assert.JSONEq(t, body, string(resp.Logs[0]))
}

func TestListLogsResponseShape(t *testing.T) {
	r := setupTestRouter(t, engine.NewMemStore(nil), Options{})

	w := do(r, http.MethodGet, "/logs?page=0&limit=abc&timestamp_start=garbage", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"logs":[],"total":0,"page":1,"limit":10,"totalPages":0}`, w.Body.String())
}

func TestListLogsTimeWindow(t *testing.T) {
	r := setupTestRouter(t, engine.NewMemStore(nil), Options{})
	for i := 0; i < 5; i++ {
		w := do(r, http.MethodPost, "/logs", logBody("info", fmt.Sprintf("m%d", i), fmt.Sprintf("2023-09-15T08:0%d:00Z", i)))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	res := decodeResult(t, do(r, http.MethodGet, "/logs?timestamp_start=2023-09-15T08:01:00Z&timestamp_end=2023-09-15T08:03:00Z", ""))
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.Logs, 3)
	assert.Equal(t, "m3", res.Logs[0].Message)
	assert.Equal(t, "m1", res.Logs[2].Message)

	// Minute precision bounds with a zone are honored, not dropped.
	res = decodeResult(t, do(r, http.MethodGet, "/logs?timestamp_start=2023-09-15T10:03%2B02:00&timestamp_end=2023-09-15T08:04Z", ""))
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Logs, 2)
	assert.Equal(t, "m4", res.Logs[0].Message)
	assert.Equal(t, "m3", res.Logs[1].Message)
}

func TestCreateLogRejectsInvalid(t *testing.T) {
	store := engine.NewMemStore(nil)
	r := setupTestRouter(t, store, Options{})

	for _, body := range []string{
		`{"level":"info"}`,
		logBody("fatal", "x", "2023-09-15T08:00:00Z"),
		logBody("info", "x", "not a date"),
		`[` + logBody("info", "x", "2023-09-15T08:00:00Z") + `]`,
		`not json`,
	} {
		w := do(r, http.MethodPost, "/logs", body)
		require.Equal(t, http.StatusBadRequest, w.Code, body)

		var resp struct {
			Error   string   `json:"error"`
			Details []string `json:"details"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Invalid log schema", resp.Error)
		assert.NotEmpty(t, resp.Details)
	}
	assert.Equal(t, 0, store.Len())
}

func TestStorageFailures(t *testing.T) {
	r := setupTestRouter(t, brokenStore{}, Options{})

	w := do(r, http.MethodPost, "/logs", logBody("info", "x", "2023-09-15T08:00:00Z"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to persist log"}`, w.Body.String())

	w = do(r, http.MethodGet, "/logs", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to retrieve logs"}`, w.Body.String())

	w = do(r, http.MethodGet, "/logs/export", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestExport(t *testing.T) {
	r := setupTestRouter(t, engine.NewMemStore(nil), Options{})
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/logs", logBody("info", "kept", "2023-09-15T08:00:00Z")).Code)

	w := do(r, http.MethodGet, "/logs/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zstd", w.Header().Get("Content-Type"))

	recs, err := engine.ReadSnapshot(w.Body)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "kept", recs[0].Message)
}

func TestHealthAndNotFound(t *testing.T) {
	r := setupTestRouter(t, engine.NewMemStore(nil), Options{})

	for _, path := range []string{"/", "/health"} {
		w := do(r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	}

	w := do(r, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "logq_http_requests_total")
}

func TestCORS(t *testing.T) {
	r := setupTestRouter(t, engine.NewMemStore(nil), Options{CORSOrigin: "http://localhost:3000"})

	w := do(r, http.MethodOptions, "/logs", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(r, http.MethodGet, "/logs", "")
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	r := setupTestRouter(t, engine.NewMemStore(nil), Options{})

	w := do(r, http.MethodGet, "/health", "")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
}

func TestRateLimit(t *testing.T) {
	r := setupTestRouter(t, engine.NewMemStore(nil), Options{RateLimitPerMinute: 1, RateLimitBurst: 2})
	body := logBody("info", "x", "2023-09-15T08:00:00Z")

	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/logs", body).Code)
	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/logs", body).Code)

	w := do(r, http.MethodPost, "/logs", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())

	// Reads are not limited.
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/logs", "").Code)
}
