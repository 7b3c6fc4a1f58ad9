package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/internal/handle"
	"github.com/yeisme/sharevault/pkg/middleware"
)

// RegisterSchedulerRoutes 注册定时任务路由，手动触发需要登录.
func RegisterSchedulerRoutes(g *gin.RouterGroup, opts Options) {
	jobs := g.Group("/system/jobs")
	{
		jobs.GET("", handle.SchedulerJobs)
		jobs.POST("/:name/run", middleware.AuthMiddleware(opts.Authn), handle.SchedulerRunJob)
	}
}
