// Package router 管理路由配置，把处理器与中间件绑定到 gin 路由组.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/internal/handle"
	"github.com/yeisme/sharevault/pkg/middleware"
)

// Options 路由依赖，由应用层注入.
type Options struct {
	// Authn 访问令牌校验，受保护路由必须.
	Authn middleware.Authenticator
	// Cache 公共只读接口的响应缓存，可为 nil.
	Cache gin.HandlerFunc
}

func (o Options) cached() []gin.HandlerFunc {
	if o.Cache == nil {
		return nil
	}

	return []gin.HandlerFunc{o.Cache}
}

// RegisterResourceRoutes 注册资源库路由（假定上层传入 /api/resources）:
//
//	POST   /upload        -> UploadResource   (auth)
//	GET    /              -> ListResources    (cache)
//	GET    /my-resources  -> MyResources      (auth)
//	GET    /:id           -> GetResource      (cache)
//	PUT    /:id           -> UpdateResource   (auth)
//	DELETE /:id           -> DeleteResource   (auth)
func RegisterResourceRoutes(g *gin.RouterGroup, opts Options) {
	gate := middleware.AuthMiddleware(opts.Authn)

	g.GET("", append(opts.cached(), handle.ListResources)...)
	g.GET("/:id", append(opts.cached(), handle.GetResource)...)

	g.POST("/upload", gate, handle.UploadResource)
	g.GET("/my-resources", gate, handle.MyResources)
	g.PUT("/:id", gate, handle.UpdateResource)
	g.DELETE("/:id", gate, handle.DeleteResource)
}

// RegisterAuthRoutes 注册账户路由（/api/auth）.
func RegisterAuthRoutes(g *gin.RouterGroup, opts Options) {
	g.POST("/register", handle.Register)
	g.POST("/login", handle.Login)
	g.GET("/profile", middleware.AuthMiddleware(opts.Authn), handle.Profile)
}
