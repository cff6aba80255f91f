package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (h *PostHandler) Search(c echo.Context) error {
	posts, err := h.Svc.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"total": len(posts), "posts": posts})
}
