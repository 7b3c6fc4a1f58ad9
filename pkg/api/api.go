// Package api 组装对外 HTTP 接口，把各路由组挂到 /api 下.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/internal/router"
)

// RegisterGroup 注册资源库、账户、健康检查与系统路由.
func RegisterGroup(e *gin.Engine, opts router.Options) *gin.Engine {
	g := e.Group("/api")

	router.RegisterResourceRoutes(g.Group("/resources"), opts)
	router.RegisterAuthRoutes(g.Group("/auth"), opts)
	router.RegisterHealthCheckRoute(g)
	router.RegisterSchedulerRoutes(g, opts)

	return e
}
