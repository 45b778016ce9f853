package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subtrack/backend/internal/infrastructure/telemetry"
	"github.com/subtrack/backend/tests/testutil"
)

func TestHTTPMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := testutil.NewMetricReader(t)

	mw, err := HTTPMetrics(metrics.Meter)
	require.NoError(t, err)

	r := gin.New()
	r.Use(mw)
	r.GET("/subscriptions/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/subscriptions/a", "/subscriptions/b", "/missing"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	t.Run("requests are labelled by route pattern", func(t *testing.T) {
		assert.Equal(t, int64(2), metrics.Int64(t, "http_server_request_total",
			telemetry.AttrHTTPRoute.String("/subscriptions/:id"),
			telemetry.AttrHTTPStatusCode.Int(http.StatusOK)))
	})

	t.Run("unmatched routes share one label", func(t *testing.T) {
		assert.Equal(t, int64(1), metrics.Int64(t, "http_server_request_total",
			telemetry.AttrHTTPRoute.String("unknown"),
			telemetry.AttrHTTPStatusCode.Int(http.StatusNotFound)))
	})

	t.Run("durations are recorded without status", func(t *testing.T) {
		assert.Equal(t, uint64(2), metrics.HistogramCount(t, "http_server_request_duration_seconds",
			telemetry.AttrHTTPRoute.String("/subscriptions/:id")))
	})

	t.Run("no request left in flight", func(t *testing.T) {
		assert.Zero(t, metrics.Int64(t, "http_server_active_requests"))
	})
}
