// Package service 实现资源库与账户的业务规则，handler 只负责协议转换.
package service

import (
	"context"

	"gorm.io/gorm"

	"github.com/yeisme/sharevault/pkg/cache"
	"github.com/yeisme/sharevault/pkg/configs"
	ctxPkg "github.com/yeisme/sharevault/pkg/context"
	"github.com/yeisme/sharevault/pkg/internal/storage/blob"
	"github.com/yeisme/sharevault/pkg/internal/storage/db"
	"github.com/yeisme/sharevault/pkg/queue"
)

// Deps 服务依赖，Cache 与 Events 可为 nil.
type Deps struct {
	DB     *db.Client
	Blob   blob.Store
	Cache  *cache.Cache
	Events *queue.Emitter
}

// DepsFromContext 从请求 context 中的 storage.Manager 组装依赖.
func DepsFromContext(c context.Context) Deps {
	cfg := configs.GetConfig()

	d := Deps{
		DB:   ctxPkg.GetDBClient(c),
		Blob: ctxPkg.GetBlobStore(c),
	}

	if kvc := ctxPkg.GetKVClient(c); kvc != nil && cfg.Cache.Enabled {
		d.Cache = cache.NewCache(kvc)
	}

	if mqc := ctxPkg.GetMQClient(c); mqc != nil {
		d.Events = queue.NewEmitter(mqc, cfg.Events)
	}

	return d
}

func gormDB(c *db.Client) *gorm.DB {
	if c == nil {
		return nil
	}

	return c.DB
}
