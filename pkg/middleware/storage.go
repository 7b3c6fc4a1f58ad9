package middleware

import (
	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/sharevault/pkg/context"
	"github.com/yeisme/sharevault/pkg/internal/storage"
)

// StorageMiddleware 把 storage.Manager 放进请求 context，service 通过 service.DepsFromContext 取用.
// manager 为 nil 时原样放行，依赖存储的 handler 会自行报错.
func StorageMiddleware(manager *storage.Manager) gin.HandlerFunc {
	if manager == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(ctxPkg.WithStorageManager(c.Request.Context(), manager))
		c.Next()
	}
}
