package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/salesbot/pkg/auth"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRateLimiterAllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(60, 3)
	e := echo.New()
	h := rl.RateLimitMiddleware()(okHandler)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		require.NoError(t, h(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
}

func TestRateLimiterBlocksPastBurst(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	e := echo.New()
	h := rl.RateLimitMiddleware()(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestJWTAuthRejectsMissingHeader(t *testing.T) {
	e := echo.New()
	h := JWTAuth("secret")(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsWrongSecret(t *testing.T) {
	token, err := auth.GenerateJWT("id", "ana", "vendedor", "other-secret", 1)
	require.NoError(t, err)

	e := echo.New()
	h := JWTAuth("secret")(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthStoresClaims(t *testing.T) {
	token, err := auth.GenerateJWT("abc", "ana", "supervisor", "secret", 1)
	require.NoError(t, err)

	e := echo.New()
	var got *auth.Claims
	h := JWTAuth("secret")(func(c echo.Context) error {
		got, _ = c.Get("claims").(*auth.Claims)
		return okHandler(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "ana", got.Login)
	assert.Equal(t, "supervisor", got.Role)
}

func TestRequireSupervisorBlocksAgents(t *testing.T) {
	e := echo.New()
	h := RequireSupervisor()(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("claims", &auth.Claims{Login: "ana", Role: "vendedor"})

	require.NoError(t, h(ctx))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
