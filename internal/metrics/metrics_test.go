package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstancesDoNotCollide(t *testing.T) {
	a, b := New(), New()
	a.PublishFailures.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.PublishFailures))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.PublishFailures))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	// One series for /health and one for the unmatched path.
	assert.Equal(t, 2, testutil.CollectAndCount(m.RequestDuration))

	m.SpeechFailures.WithLabelValues("say").Inc()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `voice_server_http_request_duration_seconds_count{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, body, `voice_server_http_request_duration_seconds_count{method="GET",route="unmatched",status="404"} 1`)
	assert.Contains(t, body, `voice_server_speech_failures_total{backend="say"} 1`)
}
