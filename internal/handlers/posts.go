package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/blog/internal/logging"
	"github.com/Skotchmaster/blog/internal/middleware/auth"
	"github.com/Skotchmaster/blog/internal/service"
	"github.com/Skotchmaster/blog/internal/transport"
)

const (
	msgInvalidPostID   = "Invalid post id"
	msgMissingPostData = "Missing post data"
)

type PostHandler struct {
	Svc *service.PostService
}

func postID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, msgInvalidPostID)
	}
	return uint(id), nil
}

func (h *PostHandler) List(c echo.Context) error {
	posts, err := h.Svc.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, posts)
}

func (h *PostHandler) ByAuthor(c echo.Context) error {
	posts, err := h.Svc.ByAuthor(c.Request().Context(), c.Param("username"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, posts)
}

func (h *PostHandler) Get(c echo.Context) error {
	id, err := postID(c)
	if err != nil {
		return err
	}

	post, err := h.Svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, post)
}

func (h *PostHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "posts_create")

	var req transport.PostRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_post_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, msgMissingPostData)
	}

	post, err := h.Svc.Create(ctx, auth.Identity(c), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, post)
}

func (h *PostHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "posts_update")

	id, err := postID(c)
	if err != nil {
		return err
	}

	var req transport.PostRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_post_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, msgMissingPostData)
	}

	post, err := h.Svc.Update(ctx, auth.Identity(c), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, post)
}

func (h *PostHandler) Delete(c echo.Context) error {
	id, err := postID(c)
	if err != nil {
		return err
	}

	post, err := h.Svc.Delete(c.Request().Context(), auth.Identity(c), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, post)
}
