package handle

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	ctxPkg "github.com/yeisme/sharevault/pkg/context"
	"github.com/yeisme/sharevault/pkg/internal/types"
	"github.com/yeisme/sharevault/pkg/log"
)

const (
	healthTimeout = 2 * time.Second

	statusOK        = "ok"
	statusUnhealthy = "unhealthy"
	statusDisabled  = "disabled"
)

var errNotInitialized = errors.New("not initialized")

// checker 检查单个组件，返回 errDisabled 表示组件未启用.
type checker func(ctx context.Context) error

var errDisabled = errors.New("disabled")

func checkers(ctx context.Context) map[string]checker {
	mgr := ctxPkg.GetManager(ctx)

	return map[string]checker{
		"db": func(ctx context.Context) error {
			if mgr == nil || mgr.DB == nil {
				return errNotInitialized
			}

			return mgr.DB.Ping(ctx)
		},
		"blob": func(ctx context.Context) error {
			if mgr == nil || mgr.Blob == nil {
				return errNotInitialized
			}

			return mgr.Blob.Ping(ctx)
		},
		"kv": func(ctx context.Context) error {
			if mgr == nil || mgr.KV == nil {
				return errNotInitialized
			}

			_, err := mgr.KV.Exists(ctx, "health:probe")

			return err
		},
		"mq": func(ctx context.Context) error {
			if mgr == nil || mgr.MQ == nil {
				// 未启用事件时不初始化 MQ
				return errDisabled
			}

			return mgr.MQ.Ping(ctx)
		},
	}
}

func componentStatus(err error) string {
	switch {
	case err == nil:
		return statusOK
	case errors.Is(err, errDisabled):
		return statusDisabled
	default:
		return statusUnhealthy
	}
}

// Health 并发检查全部组件，任一失败返回 503.
//
//	@Summary	健康检查
//	@Tags		系统
//	@Produce	json
//	@Success	200	{object}	types.HealthResponse
//	@Failure	503	{object}	types.HealthResponse
//	@Router		/api/health [get]
func Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	var (
		mu         sync.Mutex
		components = make(map[string]string)
		healthy    = true
	)

	g, gctx := errgroup.WithContext(ctx)

	for name, check := range checkers(ctx) {
		g.Go(func() error {
			err := check(gctx)
			status := componentStatus(err)

			mu.Lock()
			components[name] = status
			if status == statusUnhealthy {
				healthy = false
			}
			mu.Unlock()

			if status == statusUnhealthy {
				log.Ctx(ctx).Warn().Err(err).Str("component", name).Msg("health check failed")
			}

			// 不返回错误，避免一个组件失败取消其它检查
			return nil
		})
	}

	_ = g.Wait()

	resp := types.HealthResponse{Status: statusOK, Components: components}
	if !healthy {
		resp.Status = statusUnhealthy
		c.JSON(http.StatusServiceUnavailable, resp)

		return
	}

	c.JSON(http.StatusOK, resp)
}

// HealthComponent 检查单个组件: db / blob / kv / mq.
//
//	@Summary	组件健康检查
//	@Tags		系统
//	@Produce	json
//	@Param		component	path		string	true	"db | blob | kv | mq"
//	@Success	200			{object}	types.HealthResponse
//	@Failure	404			{object}	types.ErrorResponse
//	@Failure	503			{object}	types.HealthResponse
//	@Router		/api/health/{component} [get]
func HealthComponent(c *gin.Context) {
	name := c.Param("component")

	check, ok := checkers(c.Request.Context())[name]
	if !ok {
		fail(c, http.StatusNotFound, "Unknown component")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	err := check(ctx)
	status := componentStatus(err)
	resp := types.HealthResponse{Status: status, Components: map[string]string{name: status}}

	if status == statusUnhealthy {
		log.Ctx(ctx).Warn().Err(err).Str("component", name).Msg("health check failed")
		c.JSON(http.StatusServiceUnavailable, resp)

		return
	}

	c.JSON(http.StatusOK, resp)
}
