package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/blog/internal/logging"
	"github.com/Skotchmaster/blog/internal/metrics"
	"github.com/Skotchmaster/blog/internal/middleware/auth"
	"github.com/Skotchmaster/blog/internal/service"
	"github.com/Skotchmaster/blog/internal/transport"
)

const (
	refreshTokenParam  = "refreshToken"
	refreshTokenHeader = "X-Refresh-Token"
	msgMissingUserData = "Missing user data"
)

type UserHandler struct {
	Svc     *service.UserService
	Metrics metrics.Recorder
}

func (h *UserHandler) record(op string, err error) {
	recorderOr(h.Metrics).RecordAuth(op, service.Outcome(err))
}

func (h *UserHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users_register")

	var req transport.RegisterRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, msgMissingUserData)
	}

	pair, err := h.Svc.Register(ctx, req)
	h.record("register", err)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *UserHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users_login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, msgMissingUserData)
	}

	pair, err := h.Svc.Login(ctx, req)
	h.record("login", err)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *UserHandler) LogOut(c echo.Context) error {
	err := h.Svc.Logout(c.Request().Context(), auth.Identity(c))
	h.record("logout", err)
	if err != nil {
		return httpError(err)
	}
	return c.String(http.StatusOK, service.LogoutConfirmation)
}

// Token accepts the refresh token as a query parameter or header.
func (h *UserHandler) Token(c echo.Context) error {
	raw := c.QueryParam(refreshTokenParam)
	if raw == "" {
		raw = c.Request().Header.Get(refreshTokenHeader)
	}

	pair, err := h.Svc.Refresh(c.Request().Context(), raw)
	h.record("refresh", err)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *UserHandler) List(c echo.Context) error {
	users, err := h.Svc.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Get(c echo.Context) error {
	user, err := h.Svc.Get(c.Request().Context(), c.Param("username"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users_update")

	id := auth.Identity(c)
	var req transport.UpdateUserRequest
	if id != nil {
		if err := c.Bind(&req); err != nil {
			l.Warn("update_error", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, msgMissingUserData)
		}
	}

	pair, err := h.Svc.Update(ctx, id, req)
	h.record("update", err)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *UserHandler) Delete(c echo.Context) error {
	removed, err := h.Svc.Delete(c.Request().Context(), auth.Identity(c))
	h.record("delete", err)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, removed)
}
