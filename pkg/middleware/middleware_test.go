package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/cache"
	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/service"
	"github.com/yeisme/sharevault/pkg/internal/storage/kv"
	"github.com/yeisme/sharevault/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type body struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) body {
	t.Helper()

	var b body
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &b))

	return b
}

func do(r http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

type authnFunc func(ctx context.Context, token string) (*model.Account, error)

func (f authnFunc) Authenticate(ctx context.Context, token string) (*model.Account, error) {
	return f(ctx, token)
}

func TestAuthMiddleware(t *testing.T) {
	authn := authnFunc(func(_ context.Context, token string) (*model.Account, error) {
		switch token {
		case "good":
			return &model.Account{ID: "01ALICE", Username: "alice"}, nil
		case "old":
			return nil, &service.Error{Kind: service.KindAuth, Msg: "Token expired"}
		case "boom":
			return nil, errors.New("db down")
		default:
			return nil, &service.Error{Kind: service.KindAuth, Msg: "Invalid token"}
		}
	})

	r := gin.New()
	r.GET("/me", middleware.AuthMiddleware(authn), func(c *gin.Context) {
		c.String(http.StatusOK, middleware.CallerID(c))
	})

	tests := []struct {
		name   string
		header string
		status int
		msg    string
	}{
		{"missing", "", http.StatusUnauthorized, "Access token required"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "Access token required"},
		{"expired", "Bearer old", http.StatusUnauthorized, "Token expired"},
		{"invalid", "Bearer nope", http.StatusUnauthorized, "Invalid token"},
		{"backend failure", "Bearer boom", http.StatusInternalServerError, "Authentication error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodGet, "/me", map[string]string{"Authorization": tt.header})
			require.Equal(t, tt.status, w.Code)

			b := decode(t, w)
			assert.False(t, b.Success)
			assert.Equal(t, tt.msg, b.Message)
		})
	}

	// 与 handler 的错误体同一结构、同一字段顺序
	w := do(r, http.MethodGet, "/me", nil)
	assert.Equal(t, `{"success":false,"message":"Access token required"}`, w.Body.String())

	w = do(r, http.MethodGet, "/me", map[string]string{"Authorization": "bearer good"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "01ALICE", w.Body.String())
}

func TestRateLimitRejectsAfterLimit(t *testing.T) {
	r := gin.New()
	r.Use(middleware.RateLimitMiddleware(configs.RateLimitConfig{
		Enabled: true, Limit: 3, Window: time.Minute, MaxKeys: 10, Key: "global",
	}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := range 3 {
		w := do(r, http.MethodGet, "/ping", nil)
		require.Equal(t, http.StatusNoContent, w.Code, "request %d", i+1)
	}

	w := do(r, http.MethodGet, "/ping", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "Too many requests, please try again later", decode(t, w).Message)
}

func TestRateLimitPerHeaderKey(t *testing.T) {
	r := gin.New()
	r.Use(middleware.RateLimitMiddleware(configs.RateLimitConfig{
		Enabled: true, Limit: 1, Window: time.Minute, MaxKeys: 10, Key: "header:X-Client",
	}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/ping", map[string]string{"X-Client": "a"}).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/ping", map[string]string{"X-Client": "b"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/ping", map[string]string{"X-Client": "a"}).Code)
}

func TestRateLimitDisabled(t *testing.T) {
	r := gin.New()
	r.Use(middleware.RateLimitMiddleware(configs.RateLimitConfig{Enabled: false, Limit: 1, Window: time.Minute}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for range 5 {
		assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/ping", nil).Code)
	}
}

func newResponseCache(t *testing.T) *cache.Cache {
	t.Helper()

	store, err := kv.NewMemoryKV(context.Background(), nil)
	require.NoError(t, err)

	return cache.NewCache(store)
}

func TestCacheMiddlewareServesUntilInvalidated(t *testing.T) {
	c := newResponseCache(t)

	var calls atomic.Int32

	r := gin.New()
	r.Use(middleware.CacheMiddleware(middleware.NewCacheConfig(c, cache.NamespaceResources,
		configs.CacheConfig{Enabled: true, TTL: time.Minute})))
	r.GET("/resources", func(ctx *gin.Context) {
		n := calls.Add(1)
		ctx.JSON(http.StatusOK, gin.H{"version": n})
	})

	first := do(r, http.MethodGet, "/resources?search=go", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := do(r, http.MethodGet, "/resources?search=go", nil)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, int32(1), calls.Load())

	etag := second.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, http.StatusNotModified,
		do(r, http.MethodGet, "/resources?search=go", map[string]string{"If-None-Match": etag}).Code)

	// 写操作之后旧条目不再命中
	_, err := c.Bump(context.Background(), cache.NamespaceResources)
	require.NoError(t, err)

	third := do(r, http.MethodGet, "/resources?search=go", nil)
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.NotEqual(t, first.Body.String(), third.Body.String())
	assert.Equal(t, int32(2), calls.Load())
}

func TestCacheMiddlewareSkipsBypassAndErrors(t *testing.T) {
	c := newResponseCache(t)

	var calls atomic.Int32

	r := gin.New()
	r.Use(middleware.CacheMiddleware(middleware.NewCacheConfig(c, cache.NamespaceResources,
		configs.CacheConfig{Enabled: true, TTL: time.Minute})))
	r.GET("/fail", func(ctx *gin.Context) {
		calls.Add(1)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false})
	})
	r.GET("/ok", func(ctx *gin.Context) {
		calls.Add(1)
		ctx.JSON(http.StatusOK, gin.H{"success": true})
	})

	do(r, http.MethodGet, "/fail", nil)
	do(r, http.MethodGet, "/fail", nil)
	assert.Equal(t, int32(2), calls.Load())

	do(r, http.MethodGet, "/ok", map[string]string{"X-Cache-Bypass": "1"})
	do(r, http.MethodGet, "/ok", map[string]string{"X-Cache-Bypass": "1"})
	assert.Equal(t, int32(4), calls.Load())
}

func TestCircuitBreakerOpensOnFailures(t *testing.T) {
	r := gin.New()
	r.Use(middleware.CircuitBreakerMiddleware(configs.CircuitBreakerConfig{
		Enabled:           true,
		FailureRate:       0.5,
		MinRequests:       2,
		Interval:          time.Minute,
		Timeout:           time.Minute,
		MaxRequestsInHalf: 1,
	}))

	var calls atomic.Int32

	r.GET("/flaky", func(c *gin.Context) {
		calls.Add(1)
		c.Status(http.StatusInternalServerError)
	})

	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodGet, "/flaky", nil).Code)
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodGet, "/flaky", nil).Code)

	w := do(r, http.MethodGet, "/flaky", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Service temporarily unavailable", decode(t, w).Message)
	assert.Equal(t, int32(2), calls.Load())
}
