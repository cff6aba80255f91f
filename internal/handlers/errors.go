package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/blog/internal/metrics"
	"github.com/Skotchmaster/blog/internal/service"
)

const msgInternal = "Internal server error"

// statusOf maps an error kind onto its HTTP status.
func statusOf(kind error) int {
	switch kind {
	case service.ErrMissingData, service.ErrConflict, service.ErrInvalidCredential:
		return http.StatusBadRequest
	case service.ErrNotFound:
		return http.StatusNotFound
	case service.ErrUnauthenticated:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// httpError renders err as {"message": ...}. Causes never reach the client.
func httpError(err error) *echo.HTTPError {
	return echo.NewHTTPError(statusOf(service.KindOf(err)), service.MessageOf(err, msgInternal))
}

func recorderOr(r metrics.Recorder) metrics.Recorder {
	if r == nil {
		return metrics.Nop{}
	}
	return r
}
