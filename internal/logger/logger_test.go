package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var records []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var record map[string]any
		require.NoError(t, json.Unmarshal(line, &record))
		records = append(records, record)
	}
	return records
}

func TestFromConfig(t *testing.T) {
	t.Setenv("APP_ENV", "")

	cfg := FromConfig("warn", "")
	assert.Equal(t, slog.LevelWarn, cfg.Level)
	assert.Equal(t, "text", cfg.Format)

	cfg = FromConfig("bogus", "json")
	assert.Equal(t, slog.LevelInfo, cfg.Level)
	assert.Equal(t, "json", cfg.Format)

	t.Setenv("APP_ENV", "production")
	assert.Equal(t, "json", FromConfig("info", "text").Format)
}

func TestWithContextAddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf})

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithClientID(ctx, "localhost")
	log.WithContext(ctx).WithComponent("test").Info("hello")

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, "hello", records[0]["msg"])
	assert.Equal(t, "req-1", records[0]["request_id"])
	assert.Equal(t, "localhost", records[0]["client_id"])
	assert.Equal(t, "test", records[0]["component"])
	assert.Equal(t, GetInstanceID(), records[0]["instance_id"])
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf})

	log.LogError(context.Background(), errors.New("boom"), "speech failed", slog.String("voice", "Samantha"))

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, "ERROR", records[0]["level"])
	assert.Equal(t, "boom", records[0]["error"])
	assert.Equal(t, "Samantha", records[0]["voice"])
}

func TestTimed(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf})
	want := errors.New("failed")

	err := log.Timed(context.Background(), "speak", func() error { return want })
	assert.ErrorIs(t, err, want)
	assert.NoError(t, log.Timed(context.Background(), "speak", func() error { return nil }))

	records := decodeLines(t, &buf)
	require.Len(t, records, 2)
	assert.Equal(t, "WARN", records[0]["level"])
	assert.Equal(t, "speak", records[0]["step"])
	assert.Equal(t, "failed", records[0]["error"])
	assert.Equal(t, "DEBUG", records[1]["level"])
	assert.Equal(t, "step finished", records[1]["msg"])
}

func TestRequestLoggingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf})

	var seen string
	router := gin.New()
	router.Use(RequestLoggingMiddleware(log))
	router.GET("/ping", func(c *gin.Context) {
		seen = RequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	t.Run("generates request id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	})

	t.Run("reuses incoming request id", func(t *testing.T) {
		buf.Reset()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(RequestIDHeader, "abc")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "abc", seen)
		records := decodeLines(t, &buf)
		require.Len(t, records, 1)
		assert.Equal(t, "request completed", records[0]["msg"])
		assert.Equal(t, "abc", records[0]["request_id"])
		assert.Equal(t, float64(http.StatusNoContent), records[0]["status"])
	})
}
