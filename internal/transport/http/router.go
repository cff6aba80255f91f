package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/blog/internal/handlers"
	"github.com/Skotchmaster/blog/internal/logging"
	"github.com/Skotchmaster/blog/internal/middleware/auth"
	"github.com/Skotchmaster/blog/internal/transport"
)

const msgRouteNotFound = "Route not found"

type Deps struct {
	Users   *handlers.UserHandler
	Posts   *handlers.PostHandler
	Tokens  auth.AccessVerifier
	Metrics http.Handler
	// Ready reports whether the backing store is reachable.
	Ready func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error {
		return c.JSON(http.StatusOK, transport.MessageResponse{Message: "ok"})
	})
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				logging.FromContext(c.Request().Context()).Error("readiness_failed", "error", err)
				return c.JSON(http.StatusServiceUnavailable, transport.MessageResponse{Message: "unavailable"})
			}
		}
		return c.JSON(http.StatusOK, transport.MessageResponse{Message: "ok"})
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	e.Use(auth.Gate(d.Tokens))

	users := e.Group("/users")

	users.POST("", d.Users.Register)
	users.POST("/login", d.Users.Login)
	users.GET("/logout", d.Users.LogOut)
	users.GET("/token", d.Users.Token)
	users.GET("", d.Users.List)
	users.GET("/:username", d.Users.Get)
	users.PUT("", d.Users.Update)
	users.DELETE("", d.Users.Delete)

	posts := e.Group("/posts")

	posts.GET("", d.Posts.List)
	posts.GET("/search", d.Posts.Search)
	posts.GET("/user/:username", d.Posts.ByAuthor)
	posts.GET("/:id", d.Posts.Get)
	posts.POST("", d.Posts.Create)
	posts.PUT("/:id", d.Posts.Update)
	posts.DELETE("/:id", d.Posts.Delete)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.String(http.StatusNotFound, msgRouteNotFound)
	})
}
