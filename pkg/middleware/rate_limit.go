package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/yeisme/sharevault/pkg/configs"
)

// window 单个键的固定窗口计数.
type window struct {
	start time.Time
	count int
}

// fixedWindow 固定窗口限流，键数量受 LRU 容量限制，空闲键随窗口过期.
type fixedWindow struct {
	mu     sync.Mutex
	limit  int
	period time.Duration
	keys   *expirable.LRU[string, *window]
	now    func() time.Time
}

func newFixedWindow(limit int, period time.Duration, maxKeys int) *fixedWindow {
	return &fixedWindow{
		limit:  limit,
		period: period,
		keys:   expirable.NewLRU[string, *window](maxKeys, nil, period),
		now:    time.Now,
	}
}

// allow 返回是否放行、剩余次数与窗口重置时间.
func (f *fixedWindow) allow(key string) (bool, int, time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()

	w, ok := f.keys.Get(key)
	if !ok || now.Sub(w.start) >= f.period {
		w = &window{start: now}
		f.keys.Add(key, w)
	}

	w.count++
	reset := w.start.Add(f.period)

	if w.count > f.limit {
		return false, 0, reset
	}

	return true, f.limit - w.count, reset
}

// RateLimitMiddleware 返回一个基于配置的固定窗口限流中间件.
func RateLimitMiddleware(cfg configs.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.Limit <= 0 || cfg.Window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = configs.DefaultRateLimitMaxKeys
	}

	limiter := newFixedWindow(cfg.Limit, cfg.Window, maxKeys)
	keyOf := keyFunc(cfg.Key)

	return func(c *gin.Context) {
		ok, remaining, reset := limiter.allow(keyOf(c))

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !ok {
			retry := max(int(time.Until(reset).Seconds()+0.5), 1)
			h.Set("Retry-After", strconv.Itoa(retry))
			Abort(c, http.StatusTooManyRequests, "Too many requests, please try again later")

			return
		}

		c.Next()
	}
}

// keyFunc 选择限流维度：global、ip、header:<Name>（缺失时回退到 IP）.
func keyFunc(mode string) func(*gin.Context) string {
	mode = strings.TrimSpace(mode)

	switch {
	case strings.EqualFold(mode, "global"):
		return func(*gin.Context) string { return "global" }
	case strings.HasPrefix(strings.ToLower(mode), "header:"):
		name := strings.TrimSpace(mode[len("header:"):])

		return func(c *gin.Context) string {
			if v := c.GetHeader(name); v != "" {
				return "h:" + v
			}

			return "ip:" + clientIP(c)
		}
	default:
		return func(c *gin.Context) string { return "ip:" + clientIP(c) }
	}
}

func clientIP(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		// 进一步尝试从 RemoteAddr
		host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err == nil {
			ip = host
		} else {
			ip = c.Request.RemoteAddr
		}
	}

	if ip == "" {
		ip = "unknown"
	}

	return ip
}
