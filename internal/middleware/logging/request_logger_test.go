package loggingmw

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/blog/internal/logging"
)

type statusRecorder struct {
	statuses []int
	latency  int
}

func (r *statusRecorder) RecordAuth(string, string)         {}
func (r *statusRecorder) RecordHTTPStatus(code int)          { r.statuses = append(r.statuses, code) }
func (r *statusRecorder) RecordRequestLatency(time.Duration) { r.latency++ }

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name    string
		handler echo.HandlerFunc
		status  int
		level   string
	}{
		{
			name:    "ok",
			handler: func(c echo.Context) error { return c.String(http.StatusOK, "hi") },
			status:  http.StatusOK,
			level:   "INFO",
		},
		{
			name:    "client error",
			handler: func(c echo.Context) error { return echo.NewHTTPError(http.StatusNotFound, "No user found") },
			status:  http.StatusNotFound,
			level:   "WARN",
		},
		{
			name:    "server error",
			handler: func(c echo.Context) error { return echo.NewHTTPError(http.StatusInternalServerError, "boom") },
			status:  http.StatusInternalServerError,
			level:   "ERROR",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			rec := &statusRecorder{}
			e := echo.New()
			e.Use(RequestLogger(logging.NewWithWriter(&buf, "debug"), rec))
			e.GET("/x", tt.handler)

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req.Header.Set(echo.HeaderXRequestID, "rid-1")
			res := httptest.NewRecorder()
			e.ServeHTTP(res, req)

			assert.Equal(t, tt.status, res.Code)
			assert.Equal(t, "rid-1", res.Header().Get(echo.HeaderXRequestID))
			assert.Equal(t, []int{tt.status}, rec.statuses)
			assert.Equal(t, 1, rec.latency)

			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			assert.Equal(t, "request_completed", line["msg"])
			assert.Equal(t, tt.level, line["level"])
			assert.Equal(t, "rid-1", line["request_id"])
			assert.Equal(t, "/x", line["path"])
			assert.EqualValues(t, tt.status, line["status"])
		})
	}
}

func TestRequestLoggerInjectsContextLogger(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestLogger(logging.NewWithWriter(&buf, "info"), nil))
	e.GET("/x", func(c echo.Context) error {
		logging.FromContext(c.Request().Context()).Info("inside_handler")
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	e.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, buf.String(), `"msg":"inside_handler"`)
	assert.Contains(t, buf.String(), `"method":"GET"`)
}
