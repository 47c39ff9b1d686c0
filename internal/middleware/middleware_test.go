package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/eventsphere/internal/config"
	"github.com/iliyamo/eventsphere/internal/utils"
)

func newCtx(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func statusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}

func TestJWTAuth(t *testing.T) {
	tok, err := utils.NewAccessToken("s3cret", "u1", "ann@example.com", "USER", time.Hour)
	require.NoError(t, err)
	mw := JWTAuth("s3cret")

	c, _ := newCtx(http.MethodPost, "/v1/tickets/purchase/e1")
	c.Request().Header.Set("Authorization", "Bearer "+tok.Token)
	require.NoError(t, mw(ok)(c))
	assert.Equal(t, "u1", UserID(c))
	assert.Equal(t, "ann@example.com", c.Get(CtxEmail))
	assert.Equal(t, "USER", c.Get(CtxRole))

	c, _ = newCtx(http.MethodPost, "/")
	assert.Equal(t, http.StatusUnauthorized, statusOf(mw(ok)(c)))

	c, _ = newCtx(http.MethodPost, "/")
	c.Request().Header.Set("Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, statusOf(mw(ok)(c)))
}

func TestRequireRole(t *testing.T) {
	mw := RequireRole("ADMIN")

	c, _ := newCtx(http.MethodGet, "/")
	c.Set(CtxRole, "USER")
	assert.Equal(t, http.StatusForbidden, statusOf(mw(ok)(c)))

	c, _ = newCtx(http.MethodGet, "/")
	c.Set(CtxRole, "ADMIN")
	assert.NoError(t, mw(ok)(c))
}

func rateConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       5,
		RefillTokens:   1,
		RefillInterval: 2 * time.Second,
		TTL:            10 * time.Minute,
		KeyStrategy:    "user_route",
		Prefix:         "rl",
	}
}

func TestTokenBucket(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	rateNow = func() time.Time { return fixed }
	t.Cleanup(func() { rateNow = time.Now })

	db, mock := redismock.NewClientMock()
	mw := NewTokenBucket(rateConfig(), db, zap.NewNop())
	key := "rl:user:u1:route:POST /v1/tickets/purchase/:eventId"
	args := []interface{}{fixed.UnixMilli(), 5, 1, int64(2000), int64(600)}

	newReq := func() (echo.Context, *httptest.ResponseRecorder) {
		c, rec := newCtx(http.MethodPost, "/v1/tickets/purchase/e1")
		c.SetPath("/v1/tickets/purchase/:eventId")
		c.Set(CtxUserID, "u1")
		return c, rec
	}

	mock.ExpectEvalSha(limiterScript.Hash(), []string{key}, args...).SetVal([]interface{}{int64(1), int64(4), int64(0)})
	c, rec := newReq()
	require.NoError(t, mw(ok)(c))
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))

	mock.ExpectEvalSha(limiterScript.Hash(), []string{key}, args...).SetVal([]interface{}{int64(0), int64(0), int64(1500)})
	c, rec = newReq()
	err := mw(ok)(c)
	assert.Equal(t, http.StatusTooManyRequests, statusOf(err))
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))

	// redis failures let the request through
	mock.ExpectEvalSha(limiterScript.Hash(), []string{key}, args...).SetErr(errors.New("redis down"))
	c, _ = newReq()
	assert.NoError(t, mw(ok)(c))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenBucket_DisabledWithoutRedis(t *testing.T) {
	mw := NewTokenBucket(rateConfig(), nil, zap.NewNop())
	c, rec := newCtx(http.MethodPost, "/")

	require.NoError(t, mw(ok)(c))
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func cacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{"GET": true},
		TTL:          30 * time.Second,
		KeyStrategy:  "route_query",
		Prefix:       "cache",
		MaxBodyBytes: 1 << 20,
	}
}

func TestCacheKeyUsesConcretePath(t *testing.T) {
	c1, _ := newCtx(http.MethodGet, "/v1/events/1")
	c1.SetPath("/v1/events/:id")
	c2, _ := newCtx(http.MethodGet, "/v1/events/2")
	c2.SetPath("/v1/events/:id")

	assert.NotEqual(t, cacheKeyFrom(cacheConfig(), c1), cacheKeyFrom(cacheConfig(), c2))
}

func TestRedisCache_Hit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mw := NewRedisCache(cacheConfig(), db, zap.NewNop())
	c, rec := newCtx(http.MethodGet, "/v1/events/1")

	payload, err := encodePayload(http.StatusOK, http.Header{"Content-Type": {"application/json"}}, []byte(`{"id":"1"}`))
	require.NoError(t, err)
	mock.ExpectGet(cacheKeyFrom(cacheConfig(), c)).SetVal(string(payload))

	called := false
	require.NoError(t, mw(func(c echo.Context) error { called = true; return nil })(c))

	assert.False(t, called)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":"1"}`, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_SkipsOtherMethods(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mw := NewRedisCache(cacheConfig(), db, zap.NewNop())
	c, rec := newCtx(http.MethodPost, "/v1/events/1")

	require.NoError(t, mw(ok)(c))

	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPayloadRoundTrip(t *testing.T) {
	bs, err := encodePayload(201, http.Header{"X-A": {"1", "2"}}, []byte("body"))
	require.NoError(t, err)

	status, hdr, body, ok := decodePayload(bs)

	require.True(t, ok)
	assert.Equal(t, 201, status)
	assert.Equal(t, []string{"1", "2"}, hdr["X-A"])
	assert.Equal(t, "body", string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}
