package auth

import (
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/blog/internal/logging"
	"github.com/Skotchmaster/blog/internal/tokens"
)

const ContextKey = "identity"

type AccessVerifier interface {
	VerifyAccess(raw string) (*tokens.Claims, error)
}

// Gate attaches the bearer identity to the request when the access token is
// valid and lets every request through either way. Handlers that need a user
// check Identity themselves.
func Gate(v AccessVerifier) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  ContextKey,
		TokenLookup: "header:Authorization:Bearer ",
		ParseTokenFunc: func(c echo.Context, raw string) (interface{}, error) {
			return v.VerifyAccess(raw)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			logging.FromContext(c.Request().Context()).Debug("auth_gate_unauthenticated", "reason", err.Error())
			return nil
		},
		ContinueOnIgnoredError: true,
	})
}

// Identity returns the verified claims or nil for an unauthenticated request.
func Identity(c echo.Context) *tokens.Claims {
	claims, _ := c.Get(ContextKey).(*tokens.Claims)
	return claims
}

func Authenticated(c echo.Context) bool {
	return Identity(c) != nil
}
