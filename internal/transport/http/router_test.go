package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/blog/internal/events"
	"github.com/Skotchmaster/blog/internal/handlers"
	"github.com/Skotchmaster/blog/internal/hash"
	"github.com/Skotchmaster/blog/internal/logging"
	"github.com/Skotchmaster/blog/internal/metrics"
	loggingmw "github.com/Skotchmaster/blog/internal/middleware/logging"
	"github.com/Skotchmaster/blog/internal/models"
	"github.com/Skotchmaster/blog/internal/repo"
	"github.com/Skotchmaster/blog/internal/service"
	"github.com/Skotchmaster/blog/internal/testutil"
	"github.com/Skotchmaster/blog/internal/tokens"
)

func newServer(t *testing.T, ready func(context.Context) error) *echo.Echo {
	t.Helper()

	tk, err := tokens.New(tokens.Config{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
	})
	require.NoError(t, err)

	r := repo.New(testutil.InitTestDB(t))
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	e := echo.New()
	e.Use(loggingmw.RequestLogger(logging.Discard(), collector))
	Register(e, &Deps{
		Users: &handlers.UserHandler{
			Svc:     &service.UserService{Repo: r, Hasher: hash.HMACHasher{}, Tokens: tk, Events: events.Nop{}},
			Metrics: collector,
		},
		Posts:   &handlers.PostHandler{Svc: &service.PostService{Repo: r, Events: events.Nop{}}},
		Tokens:  tk,
		Metrics: metrics.Handler(reg),
		Ready:   ready,
	})
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodePair(t *testing.T, rec *httptest.ResponseRecorder) tokens.Pair {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pair tokens.Pair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	return pair
}

func TestRegisterLoginScenario(t *testing.T) {
	e := newServer(t, nil)

	registered := decodePair(t, do(t, e, http.MethodPost, "/users",
		`{"username":"alice","email":"alice@x.com","password":"pw1"}`, ""))

	rec := do(t, e, http.MethodPost, "/users",
		`{"username":"alice","email":"other@x.com","password":"pw1"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"User already exists"}`, rec.Body.String())

	rec = do(t, e, http.MethodPost, "/users/login", `{"email":"alice@x.com","password":"wrong"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Invalid password"}`, rec.Body.String())

	loggedIn := decodePair(t, do(t, e, http.MethodPost, "/users/login", `{"email":"alice@x.com","password":"pw1"}`, ""))
	assert.NotEqual(t, registered.RefreshToken, loggedIn.RefreshToken)

	rec = do(t, e, http.MethodGet, "/users/token?refreshToken="+registered.RefreshToken, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	refreshed := decodePair(t, do(t, e, http.MethodGet, "/users/token?refreshToken="+loggedIn.RefreshToken, "", ""))
	assert.Equal(t, loggedIn.RefreshToken, refreshed.RefreshToken)

	rec = do(t, e, http.MethodGet, "/users/logout", "", refreshed.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged out successfully", rec.Body.String())
}

func TestBearerIdentityFlowsToHandlers(t *testing.T) {
	e := newServer(t, nil)
	pair := decodePair(t, do(t, e, http.MethodPost, "/users",
		`{"username":"alice","email":"alice@x.com","password":"pw1"}`, ""))

	rec := do(t, e, http.MethodPost, "/posts", `{"title":"hello","body":"world"}`, pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	renamed := decodePair(t, do(t, e, http.MethodPut, "/users", `{"username":"al"}`, pair.AccessToken))

	rec = do(t, e, http.MethodGet, "/posts/user/al", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var posts []models.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posts))
	require.Len(t, posts, 1)
	assert.Equal(t, "al", posts[0].Author)

	rec = do(t, e, http.MethodDelete, "/users", "", renamed.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"username":"al","email":"alice@x.com","postCount":1}`, rec.Body.String())

	rec = do(t, e, http.MethodGet, "/posts", "", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestUnauthenticatedRequestsReachHandlers(t *testing.T) {
	e := newServer(t, nil)
	decodePair(t, do(t, e, http.MethodPost, "/users",
		`{"username":"alice","email":"alice@x.com","password":"pw1"}`, ""))

	tests := []struct {
		name   string
		bearer string
	}{
		{name: "no header"},
		{name: "garbage token", bearer: "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, e, http.MethodDelete, "/users", "", tt.bearer)
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.JSONEq(t, `{"message":"No logged in user"}`, rec.Body.String())
		})
	}

	rec := do(t, e, http.MethodGet, "/users/alice", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouteNotFound(t *testing.T) {
	e := newServer(t, nil)

	rec := do(t, e, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	e := newServer(t, nil)

	assert.Equal(t, http.StatusOK, do(t, e, http.MethodGet, "/health/live", "", "").Code)
	assert.Equal(t, http.StatusOK, do(t, e, http.MethodGet, "/health/ready", "", "").Code)

	do(t, e, http.MethodPost, "/users/login", `{"email":"ghost@x.com","password":"pw"}`, "")

	rec := do(t, e, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `blog_auth_total{op="login",outcome="not_found"} 1`)
	assert.Contains(t, rec.Body.String(), `blog_http_status_total{status_code="404"} 1`)

	down := newServer(t, func(context.Context) error { return errors.New("db down") })
	assert.Equal(t, http.StatusServiceUnavailable, do(t, down, http.MethodGet, "/health/ready", "", "").Code)
}
