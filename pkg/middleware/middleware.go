// Package middleware 提供 gin 中间件：认证、响应缓存、限流、熔断、追踪、指标与访问日志.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/internal/types"
)

// Abort 以统一错误结构 {success:false,message} 终止请求.
func Abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, types.ErrorResponse{Success: false, Message: message})
}

// routeOf 返回匹配的路由模板，未匹配时为 "unmatched"，避免指标基数膨胀.
func routeOf(c *gin.Context) string {
	if r := c.FullPath(); r != "" {
		return r
	}

	return "unmatched"
}
