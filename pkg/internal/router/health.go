package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/internal/handle"
)

// RegisterHealthCheckRoute 注册健康检查路由.
func RegisterHealthCheckRoute(g *gin.RouterGroup) {
	healthRoutes := g.Group("/health")
	{
		healthRoutes.GET("", handle.Health)
		healthRoutes.GET("/:component", handle.HealthComponent)
	}
}
