package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routes func(e *echo.Echo)

func (r routes) RegisterRoutes(e *echo.Echo) { r(e) }

func testServer(opts ...ServerOption) *Server {
	return NewServer(routes(func(e *echo.Echo) {
		e.GET("/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
		e.GET("/boom", func(c echo.Context) error { panic("kaboom") })
	}), opts...)
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func decodeErrors(t *testing.T, body []byte) (APIResponse, []AppError) {
	t.Helper()
	var env struct {
		APIResponse
		Data []AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	return env.APIResponse, env.Data
}

func TestServerRecoversPanic(t *testing.T) {
	rec := serve(testServer(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env, errs := decodeErrors(t, rec.Body.Bytes())
	assert.Equal(t, http.StatusInternalServerError, env.Status)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_INTERNAL", errs[0].Code)
}

func TestServerUnknownRoute(t *testing.T) {
	rec := serve(testServer(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	_, errs := decodeErrors(t, rec.Body.Bytes())
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_NOT_FOUND", errs[0].Code)
}

func TestServerCORS(t *testing.T) {
	s := testServer(WithCORSOrigins("https://desk.example"))

	pre := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	pre.Header.Set(echo.HeaderOrigin, "https://desk.example")
	pre.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := serve(s, pre)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://desk.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods), http.MethodPost)
	assert.Equal(t, "600", rec.Header().Get(echo.HeaderAccessControlMaxAge))

	get := httptest.NewRequest(http.MethodGet, "/ping", nil)
	get.Header.Set(echo.HeaderOrigin, "https://desk.example")
	rec = serve(s, get)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://desk.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods))
	assert.Contains(t, rec.Header().Values(echo.HeaderVary), echo.HeaderOrigin)

	other := httptest.NewRequest(http.MethodGet, "/ping", nil)
	other.Header.Set(echo.HeaderOrigin, "https://evil.example")
	rec = serve(s, other)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestServerCORSWildcardAndDisabled(t *testing.T) {
	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ping", nil)
		r.Header.Set(echo.HeaderOrigin, "https://anyone.example")
		return r
	}

	rec := serve(testServer(WithCORSOrigins("*")), req())
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))

	rec = serve(testServer(), req())
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestServerAddr(t *testing.T) {
	assert.Equal(t, "0.0.0.0:9090", testServer(WithPort(9090)).Addr())
}
