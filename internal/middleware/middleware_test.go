package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/seat-inventory/internal/config"
	"github.com/iliyamo/seat-inventory/internal/utils"
)

const testSecret = "test-secret"

func token(t *testing.T, uid, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, uid, role, time.Minute)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func whoami(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"uid": UserID(c), "role": Role(c)})
}

func do(e *echo.Echo, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(testSecret))

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/me", "Bearer nope").Code)

	rec := do(e, http.MethodGet, "/me", token(t, "u1", "USER"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"uid":"u1","role":"USER"}`, rec.Body.String())
}

func TestOptionalJWT(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, OptionalJWT(testSecret))

	rec := do(e, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"uid":"","role":""}`, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/me", "Bearer nope").Code)

	rec = do(e, http.MethodGet, "/me", token(t, "u9", ""))
	assert.JSONEq(t, `{"uid":"u9","role":""}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/admin", whoami, JWTAuth(testSecret), RequireRole(RoleAdmin))

	assert.Equal(t, http.StatusForbidden, do(e, http.MethodGet, "/admin", token(t, "u1", "USER")).Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/admin", token(t, "u1", RoleAdmin)).Code)
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestTokenBucket(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            2 * time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
	e := echo.New()
	e.POST("/reserve", whoami, NewTokenBucket(cfg, newRedis(t), zap.NewNop()))

	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/reserve", "").Code)
	rec := do(e, http.MethodPost, "/reserve", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do(e, http.MethodPost, "/reserve", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestTokenBucket_DisabledWithoutRedis(t *testing.T) {
	e := echo.New()
	e.POST("/reserve", whoami, NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, nil))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/reserve", "").Code)
	}
}

func TestRedisCache(t *testing.T) {
	cfg := config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		Prefix:       "cache",
		MaxBodyBytes: 1 << 20,
	}
	calls := 0
	e := echo.New()
	e.GET("/shows/:id/seats", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"show_id": c.Param("id"), "calls": calls})
	}, NewRedisCache(cfg, newRedis(t)))

	first := do(e, http.MethodGet, "/shows/a/seats", "")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := do(e, http.MethodGet, "/shows/a/seats", "")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, echo.MIMEApplicationJSON, second.Header().Get(echo.HeaderContentType))

	other := do(e, http.MethodGet, "/shows/b/seats", "")
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	e := echo.New()
	e.Use(RequestLogger(zap.New(core)))
	e.GET("/ok", whoami)
	e.GET("/boom", func(echo.Context) error { return echo.NewHTTPError(http.StatusServiceUnavailable, "down") })

	do(e, http.MethodGet, "/ok", "")
	do(e, http.MethodGet, "/missing", "")
	rec := do(e, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, int64(503), entries[2].ContextMap()["status"])
}
