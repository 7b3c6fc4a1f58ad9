// Package app 提供应用程序的初始化、路由装配与生命周期管理.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yeisme/sharevault/pkg/api"
	"github.com/yeisme/sharevault/pkg/auth"
	"github.com/yeisme/sharevault/pkg/cache"
	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/jobs"
	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/router"
	"github.com/yeisme/sharevault/pkg/internal/service"
	"github.com/yeisme/sharevault/pkg/internal/storage"
	"github.com/yeisme/sharevault/pkg/log"
	"github.com/yeisme/sharevault/pkg/metrics"
	"github.com/yeisme/sharevault/pkg/middleware"
	"github.com/yeisme/sharevault/pkg/scheduler"
	"github.com/yeisme/sharevault/pkg/tracing"
)

type App struct {
	Engine  *gin.Engine
	config  *configs.AppConfig
	manager *storage.Manager
	sched   *scheduler.Scheduler
}

// NewApp 按顺序初始化配置、日志、追踪、指标、存储与定时任务，并装配路由.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	// 初始化配置
	if err := configs.InitConfig(configPath); err != nil {
		return nil, fmt.Errorf("init config: %w", err)
	}

	config := configs.GetConfig()

	log.Init()

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	// 初始化追踪
	if err := tracing.InitTracer(config.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// 初始化监控
	if err := metrics.InitMetrics(config.Metrics); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	manager, err := storage.Init(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	if config.DB.AutoMigrate {
		if err := manager.DB.Migrate(ctx, model.All()...); err != nil {
			_ = manager.Close()

			return nil, err
		}
	}

	a := &App{config: config, manager: manager}

	if config.Scheduler.Enabled {
		if a.sched, err = newScheduler(ctx, manager, config); err != nil {
			_ = manager.Close()

			return nil, err
		}
	}

	a.Engine = a.buildEngine()

	return a, nil
}

func newScheduler(ctx context.Context, manager *storage.Manager, config *configs.AppConfig) (*scheduler.Scheduler, error) {
	sched, err := scheduler.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("init scheduler: %w", err)
	}

	if err := jobs.RegisterCronJobs(ctx, sched, manager, config); err != nil {
		_ = sched.Stop()

		return nil, fmt.Errorf("register cron jobs: %w", err)
	}

	sched.Start()

	return sched, nil
}

// buildEngine 装配中间件与路由，顺序决定了外层中间件能观测到内层的结果.
func (a *App) buildEngine() *gin.Engine {
	cfg := a.config
	engine := gin.New()

	engine.Use(
		gin.Recovery(),
		middleware.TracingMiddleware(),
		middleware.PrometheusMiddleware(),
		middleware.GinLoggerMiddleware(),
		middleware.CORSMiddleware(cfg.Server),
	)

	if cfg.Server.Gzip {
		engine.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	}

	engine.Use(
		middleware.RateLimitMiddleware(cfg.RateLimit),
		middleware.CircuitBreakerMiddleware(cfg.CircuitBreaker),
		middleware.StorageMiddleware(a.manager),
		middleware.SchedulerMiddleware(a.sched),
	)

	if cfg.Blob.IsLocal() {
		engine.Use(static.Serve(cfg.Blob.URLPrefix, static.LocalFile(cfg.Blob.Dir, false)))
	}

	opts := router.Options{
		Authn: service.NewAccountServiceWith(a.manager.DB, auth.NewIssuer(cfg.Auth), cfg.Auth.BcryptCost),
	}

	if cfg.Cache.Enabled && a.manager.KV != nil {
		opts.Cache = middleware.CacheMiddleware(
			middleware.NewCacheConfig(cache.NewCache(a.manager.KV), cache.NamespaceResources, cfg.Cache))
	}

	api.RegisterGroup(engine, opts)
	metrics.RegisterRoutes(cfg.Metrics, engine)
	router.RegisterSwaggerRoute(engine, cfg.Server)

	return engine
}

// Run 启动 HTTP 服务，ctx 取消后优雅退出并释放资源.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         net.JoinHostPort(a.config.Server.Host, strconv.Itoa(a.config.Server.Port)),
		Handler:      a.Engine,
		ReadTimeout:  a.config.Server.GetTimeoutDuration(),
		WriteTimeout: a.config.Server.GetTimeoutDuration(),
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)

	go func() {
		log.Logger().Info().Str("addr", srv.Addr).Str("version", configs.AppVersion).Msg("server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		a.Close(context.Background())

		return err
	case <-ctx.Done():
	}

	log.Logger().Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.GetShutdownTimeout())
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	a.Close(shutdownCtx)

	return err
}

// Close 停止定时任务、关闭存储并刷新追踪数据.
func (a *App) Close(ctx context.Context) {
	l := log.Logger()

	if a.sched != nil {
		if err := a.sched.Stop(); err != nil {
			l.Warn().Err(err).Msg("stop scheduler")
		}
	}

	if err := a.manager.Close(); err != nil {
		l.Warn().Err(err).Msg("close storage")
	}

	if err := tracing.ShutdownTracer(ctx); err != nil {
		l.Warn().Err(err).Msg("shutdown tracer")
	}
}
