package middleware

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"

	appcache "github.com/yeisme/sharevault/pkg/cache"
	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/log"
	"github.com/yeisme/sharevault/pkg/metrics"
)

const (
	defaultKeyBuilderGrow = 64 // 为 key builder 预分配容量
	defaultBypassHeader   = "X-Cache-Bypass"
)

// CacheConfig 缓存中间件配置.
type CacheConfig struct {
	Cache *appcache.Cache // 必须: 业务注入的 Cache 实例
	// Namespace 失效命名空间，写操作 Bump 之后旧条目不再命中
	Namespace string
	TTL       time.Duration

	Methods     []string // 允许缓存的 HTTP 方法 (默认 GET,HEAD)
	StatusCodes []int    // 允许缓存的响应状态码 (默认 200)

	Skipper     func(*gin.Context) bool // 返回 true 跳过缓存
	VaryHeaders []string                // 参与 Key 的 Header 列表

	RespectCacheControl bool   // 若为 true 且响应含 no-store/private 则不缓存
	BypassHeader        string // 请求头存在该 header(任意值) 则跳过缓存

	MaxBodyBytes int // 缓存响应体最大字节 (0=不限制)
}

// NewCacheConfig 由应用配置构造中间件配置.
func NewCacheConfig(c *appcache.Cache, ns string, cfg configs.CacheConfig) CacheConfig {
	return CacheConfig{
		Cache:               c,
		Namespace:           ns,
		TTL:                 cfg.TTL,
		Methods:             []string{http.MethodGet, http.MethodHead},
		StatusCodes:         []int{http.StatusOK},
		BypassHeader:        defaultBypassHeader,
		MaxBodyBytes:        cfg.MaxBodyBytes,
		RespectCacheControl: true,
	}
}

// CacheMiddleware 构造响应缓存中间件:
//   - 键由方法、路由、排序后的 query 与 Vary 头经 xxhash 得到，并带上命名空间代数
//   - 命中时支持 If-None-Match 返回 304，响应带 X-Cache: HIT/MISS
//   - 任何缓存失败只记录日志，不影响主流程
func CacheMiddleware(cfg CacheConfig) gin.HandlerFunc {
	if cfg.Cache == nil || cfg.TTL <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	if len(cfg.Methods) == 0 {
		cfg.Methods = []string{http.MethodGet, http.MethodHead}
	}

	if len(cfg.StatusCodes) == 0 {
		cfg.StatusCodes = []int{http.StatusOK}
	}

	methodSet := buildMethodSet(cfg.Methods)
	statusSet := buildStatusSet(cfg.StatusCodes)

	return func(c *gin.Context) {
		if shouldBypass(c, cfg, methodSet) {
			c.Next()
			return
		}

		ctx := c.Request.Context()

		gen, err := cfg.Cache.Generation(ctx, cfg.Namespace)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("read cache generation")
			c.Next()

			return
		}

		key := appcache.Key(cfg.Namespace, gen, requestHash(c, cfg.VaryHeaders))
		if serveFromCache(c, cfg, key) {
			metrics.CacheEvents.WithLabelValues("hit").Inc()
			return
		}

		metrics.CacheEvents.WithLabelValues("miss").Inc()

		bw := &bodyCaptureWriter{ResponseWriter: c.Writer, max: cfg.MaxBodyBytes}
		c.Writer = bw
		c.Header("X-Cache", "MISS")
		c.Next()
		processAndStore(c, cfg, key, bw, statusSet)
	}
}

// responseCacheEntry 序列化存储结构.
type responseCacheEntry struct {
	Status   int               `json:"s"`
	Header   map[string]string `json:"h,omitempty"`
	Body     []byte            `json:"b,omitempty"`
	ETag     string            `json:"e,omitempty"`
	StoredAt int64             `json:"t"` // unix nano, 用于 Age
}

// requestHash 方法 + 路由 + 排序 query + 排序 vary headers 的 xxhash.
func requestHash(c *gin.Context, vary []string) string {
	var b strings.Builder
	b.Grow(defaultKeyBuilderGrow)

	b.WriteString(c.Request.Method)
	b.WriteByte(':')
	b.WriteString(c.Request.URL.Path)

	if q := c.Request.URL.Query(); len(q) > 0 {
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}

		sort.Strings(keys)
		b.WriteByte('?')

		for i, k := range keys {
			if i > 0 {
				b.WriteByte('&')
			}

			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(strings.Join(q[k], ","))
		}
	}

	if len(vary) > 0 {
		hs := append([]string(nil), vary...)
		sort.Strings(hs)
		b.WriteString("|hv=")

		for i, h := range hs {
			if i > 0 {
				b.WriteByte('&')
			}

			b.WriteString(h)
			b.WriteByte('=')
			b.WriteString(c.GetHeader(h))
		}
	}

	return strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}

// bodyCaptureWriter 包装响应写入用于捕获 body.
type bodyCaptureWriter struct {
	gin.ResponseWriter

	buf       bytes.Buffer
	max       int
	truncated bool
}

// Write 捕获响应体, 并限制最大字节数.
func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	if !w.truncated {
		if w.max > 0 && w.buf.Len()+len(b) > w.max {
			w.truncated = true
			w.buf.Reset()
		} else {
			w.buf.Write(b)
		}
	}

	return w.ResponseWriter.Write(b)
}

func (w *bodyCaptureWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func buildMethodSet(methods []string) map[string]struct{} {
	ms := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		ms[strings.ToUpper(m)] = struct{}{}
	}

	return ms
}

func buildStatusSet(statuses []int) map[int]struct{} {
	ss := make(map[int]struct{}, len(statuses))
	for _, s := range statuses {
		ss[s] = struct{}{}
	}

	return ss
}

// shouldBypass 检查是否应跳过缓存.
func shouldBypass(c *gin.Context, cfg CacheConfig, methodSet map[string]struct{}) bool {
	if cfg.Skipper != nil && cfg.Skipper(c) {
		return true
	}

	if _, ok := methodSet[c.Request.Method]; !ok {
		return true
	}

	return cfg.BypassHeader != "" && c.GetHeader(cfg.BypassHeader) != ""
}

// serveFromCache 尝试从缓存提供响应; 成功返回 true.
func serveFromCache(c *gin.Context, cfg CacheConfig, key string) bool {
	entry, err := appcache.Get[responseCacheEntry](c.Request.Context(), cfg.Cache, key)
	if err != nil {
		return false
	}

	h := c.Writer.Header()
	for k, v := range entry.Header {
		h.Set(k, v)
	}

	if entry.ETag != "" {
		h.Set("ETag", entry.ETag)
	}

	h.Set("Age", fmt.Sprintf("%.0f", time.Since(time.Unix(0, entry.StoredAt)).Seconds()))
	h.Set("X-Cache", "HIT")

	if entry.ETag != "" && c.GetHeader("If-None-Match") == entry.ETag {
		c.AbortWithStatus(http.StatusNotModified)
		return true
	}

	c.Status(entry.Status)

	if c.Request.Method != http.MethodHead {
		_, _ = c.Writer.Write(entry.Body)
	}

	c.Abort()

	return true
}

// parseCacheControlTTL 解析 Cache-Control; 返回 (覆写TTL, 是否允许缓存).
func parseCacheControlTTL(h http.Header) (time.Duration, bool) {
	cc := h.Get("Cache-Control")
	if cc == "" {
		return 0, true
	}

	lower := strings.ToLower(cc)
	if strings.Contains(lower, "no-store") || strings.Contains(lower, "private") {
		return 0, false
	}

	if idx := strings.Index(lower, "max-age="); idx >= 0 {
		part := lower[idx+len("max-age="):]
		if cidx := strings.Index(part, ","); cidx >= 0 {
			part = part[:cidx]
		}

		if secs, err := strconv.Atoi(strings.TrimSpace(part)); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second, true
		}
	}

	return 0, true
}

// processAndStore 处理响应并同步写入缓存，保证随后的请求能命中.
func processAndStore(c *gin.Context, cfg CacheConfig, key string, bw *bodyCaptureWriter, statusSet map[int]struct{}) {
	status := c.Writer.Status()
	if _, ok := statusSet[status]; !ok || bw.truncated {
		return
	}

	ttl := cfg.TTL

	if cfg.RespectCacheControl {
		override, ok := parseCacheControlTTL(c.Writer.Header())
		if !ok {
			return
		}

		if override > 0 {
			ttl = override
		}
	}

	body := bw.buf.Bytes()
	hdr := make(map[string]string)

	for k, v := range c.Writer.Header() {
		if len(v) > 0 && k != "X-Cache" && !strings.HasPrefix(k, "X-Ratelimit") && k != "Retry-After" {
			hdr[k] = v[0]
		}
	}

	etag := c.Writer.Header().Get("ETag")
	if etag == "" {
		etag = fmt.Sprintf("\"%x\"", xxhash.Sum64(body))
	}

	entry := responseCacheEntry{Status: status, Header: hdr, Body: body, ETag: etag, StoredAt: time.Now().UnixNano()}
	if err := appcache.Set(c.Request.Context(), cfg.Cache, key, entry, ttl); err != nil {
		log.Ctx(c.Request.Context()).Warn().Err(err).Str("key", key).Msg("store cached response")
	}
}
