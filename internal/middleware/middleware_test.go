package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/property-booking/internal/config"
	"github.com/iliyamo/property-booking/internal/model"
	"github.com/iliyamo/property-booking/internal/utils"
)

const secret = "test-secret"

func newServer(mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.GET("/whoami", func(c echo.Context) error {
		a, ok := ActorFrom(c)
		if !ok {
			return c.NoContent(http.StatusNoContent)
		}
		return c.JSON(http.StatusOK, echo.Map{"id": a.UserID, "role": a.Role})
	}, mw...)
	return e
}

func call(e *echo.Echo, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, claims jwt.MapClaims, method jwt.SigningMethod, key interface{}) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWTAuth(t *testing.T) {
	e := newServer(JWTAuth(secret))

	tok, err := utils.NewAccessToken(secret, 42, model.RoleGuest, 5)
	require.NoError(t, err)
	rec := call(e, tok.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":42,"role":"guest"}`, rec.Body.String())

	exp := time.Now().Add(time.Hour).Unix()
	cases := map[string]string{
		"missing":       "",
		"garbage":       "not-a-jwt",
		"wrong secret":  token(t, jwt.MapClaims{"sub": 1, "role": "host", "exp": exp}, jwt.SigningMethodHS256, []byte("other")),
		"expired":       token(t, jwt.MapClaims{"sub": 1, "role": "host", "exp": time.Now().Add(-time.Hour).Unix()}, jwt.SigningMethodHS256, []byte(secret)),
		"no subject":    token(t, jwt.MapClaims{"role": "host", "exp": exp}, jwt.SigningMethodHS256, []byte(secret)),
		"zero subject":  token(t, jwt.MapClaims{"sub": 0, "role": "host", "exp": exp}, jwt.SigningMethodHS256, []byte(secret)),
		"no role":       token(t, jwt.MapClaims{"sub": 1, "exp": exp}, jwt.SigningMethodHS256, []byte(secret)),
		"wrong alg":     token(t, jwt.MapClaims{"sub": 1, "role": "host", "exp": exp}, jwt.SigningMethodHS512, []byte(secret)),
		"bad sub value": token(t, jwt.MapClaims{"sub": "abc", "role": "host", "exp": exp}, jwt.SigningMethodHS256, []byte(secret)),
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, call(e, tok).Code)
		})
	}
}

func TestJWTAuthStringSubject(t *testing.T) {
	e := newServer(JWTAuth(secret))
	tok := token(t, jwt.MapClaims{"sub": "17", "role": "host", "exp": time.Now().Add(time.Hour).Unix()}, jwt.SigningMethodHS256, []byte(secret))
	rec := call(e, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":17,"role":"host"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := newServer(JWTAuth(secret), RequireRole(model.RoleHost))

	hostTok, err := utils.NewAccessToken(secret, 7, model.RoleHost, 5)
	require.NoError(t, err)
	guestTok, err := utils.NewAccessToken(secret, 42, model.RoleGuest, 5)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, call(e, hostTok.Token).Code)
	assert.Equal(t, http.StatusForbidden, call(e, guestTok.Token).Code)

	bare := newServer(RequireRole(model.RoleHost))
	assert.Equal(t, http.StatusForbidden, call(bare, "").Code)
}

func TestActorFromAnonymous(t *testing.T) {
	e := newServer()
	assert.Equal(t, http.StatusNoContent, call(e, "").Code)
}

func TestDisabledMiddlewarePassesThrough(t *testing.T) {
	e := newServer(
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, nil),
		NewRedisCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil),
	)
	rec := call(e, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", nil)
	req.Header.Set("X-Real-IP", "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/bookings")

	cfg := config.RateLimitConfig{Prefix: "rl"}
	assert.Equal(t, "rl:ip:10.0.0.1:user:anon:route:POST /v1/bookings", buildRateKey(cfg, c))

	c.Set(CtxUserID, uint64(42))
	c.Set(CtxRole, model.RoleGuest)
	cfg.KeyStrategy = "user_route"
	assert.Equal(t, "rl:user:42:route:POST /v1/bookings", buildRateKey(cfg, c))
	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:ip:10.0.0.1", buildRateKey(cfg, c))
}

func TestAsInt64(t *testing.T) {
	assert.Equal(t, int64(3), asInt64(int64(3)))
	assert.Equal(t, int64(3), asInt64(3))
	assert.Equal(t, int64(3), asInt64(3.0))
	assert.Equal(t, int64(3), asInt64("3"))
	assert.Equal(t, int64(0), asInt64(nil))
}

func TestCacheSlots(t *testing.T) {
	e := echo.New()
	ctx := func(method, target string) echo.Context {
		return e.NewContext(httptest.NewRequest(method, target, nil), httptest.NewRecorder())
	}
	cfg := config.CacheConfig{Prefix: "cache"}

	key, field := cacheSlot(cfg, ctx(http.MethodGet, "/v1/properties/1?x=1"))
	assert.Equal(t, "cache:/v1/properties/1", key)
	assert.Equal(t, "?x=1", field)
	assert.Equal(t, key, pathKey(cfg.Prefix, PropertyPath(1)))

	_, other := cacheSlot(cfg, ctx(http.MethodGet, "/v1/properties/1?x=2"))
	assert.NotEqual(t, field, other)

	cfg.KeyStrategy = "route"
	_, a := cacheSlot(cfg, ctx(http.MethodGet, "/v1/properties/1?x=1"))
	_, b := cacheSlot(cfg, ctx(http.MethodGet, "/v1/properties/1?x=2"))
	assert.Equal(t, a, b)

	cfg.KeyStrategy = "method_route_query"
	_, get := cacheSlot(cfg, ctx(http.MethodGet, "/v1/properties/1?x=1"))
	_, head := cacheSlot(cfg, ctx(http.MethodHead, "/v1/properties/1?x=1"))
	assert.NotEqual(t, get, head)

	k2, _ := cacheSlot(config.CacheConfig{}, ctx(http.MethodGet, "/v1/properties/2"))
	assert.Equal(t, "cache:/v1/properties/2", k2)
}

func TestPropertyCacheDisabled(t *testing.T) {
	pc := NewPropertyCache(config.CacheConfig{Enabled: true}, nil, nil)
	assert.Nil(t, pc)
	assert.NotPanics(t, func() { pc.InvalidateProperty(context.Background(), 1) })
}

type deletedKeys struct {
	mu   sync.Mutex
	keys []string
}

func (d *deletedKeys) Del(_ context.Context, keys ...string) *redis.IntCmd {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys = append(d.keys, keys...)
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (d *deletedKeys) all() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.keys...)
}

func TestPropertyCacheDeletesTwice(t *testing.T) {
	d := &deletedKeys{}
	pc := &PropertyCache{rdb: d, prefix: "cache", settle: 20 * time.Millisecond, log: logrus.New()}

	ctx, cancel := context.WithCancel(context.Background())
	pc.InvalidateProperty(ctx, 9)
	cancel()

	assert.Equal(t, []string{"cache:/v1/properties/9"}, d.all())
	assert.Eventually(t, func() bool { return len(d.all()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "cache:/v1/properties/9", d.all()[1])
}

func TestPropertyCacheWithoutSettle(t *testing.T) {
	d := &deletedKeys{}
	pc := &PropertyCache{rdb: d, prefix: "cache", log: logrus.New()}
	pc.InvalidateProperty(context.Background(), 2)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, d.all(), 1)
}

func TestCaptureWriterLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, err := cw.Write([]byte("abc"))
	require.NoError(t, err)
	_, err = cw.Write([]byte("defg"))
	require.NoError(t, err)
	cw.WriteHeader(http.StatusTeapot)

	assert.Equal(t, "abcd", cw.buf.String())
	assert.Equal(t, int64(7), cw.size)
	assert.Equal(t, "abcdefg", rec.Body.String())
	assert.Equal(t, http.StatusTeapot, cw.status)
}
