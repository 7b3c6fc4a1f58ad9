package middleware

import (
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/configs"
)

// CORSMiddleware CORS中间件，allow_origins 含 * 或调试模式时放开全部来源.
func CORSMiddleware(cfg configs.ServerConfig) gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowHeaders = append(config.AllowHeaders, "Authorization", "If-None-Match", "X-Cache-Bypass")
	config.ExposeHeaders = []string{"ETag", "X-Cache", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"}

	if cfg.Debug || len(cfg.AllowOrigins) == 0 || slices.Contains(cfg.AllowOrigins, "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = cfg.AllowOrigins
	}

	return cors.New(config)
}
