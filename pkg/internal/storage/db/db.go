// Package db 处理关系数据库存储操作（资源与账户记录）.
package db

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	gormPrometheus "gorm.io/plugin/prometheus"

	"github.com/yeisme/sharevault/pkg/configs"
	nlog "github.com/yeisme/sharevault/pkg/log"
)

// DialectorFactory 定义创建 dialector 的函数类型.
type DialectorFactory func(dsn string) gorm.Dialector

// dialectorFactories 存储数据库类型到 dialector 工厂的映射.
var dialectorFactories = map[configs.DBType]DialectorFactory{}

// RegisterDialectorFactory 注册数据库 dialector 工厂函数.
func RegisterDialectorFactory(dbType configs.DBType, factory DialectorFactory) {
	dialectorFactories[dbType] = factory
}

// GetRegisteredDBTypes 返回已注册的数据库类型列表（排序后）.
func GetRegisteredDBTypes() []configs.DBType {
	types := make([]configs.DBType, 0, len(dialectorFactories))
	for dbType := range dialectorFactories {
		types = append(types, dbType)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// Client 包装 GORM DB 客户端.
type Client struct {
	*gorm.DB
}

// Option 调整 Open 的行为.
type Option func(*options)

type options struct {
	metrics bool
	dbName  string
	slow    time.Duration
	logMode logger.LogLevel
}

// WithMetrics 注册 GORM prometheus 插件.
func WithMetrics(dbName string) Option {
	return func(o *options) {
		o.metrics = true
		o.dbName = dbName
	}
}

// WithSlowThreshold 设置慢查询阈值.
func WithSlowThreshold(d time.Duration) Option {
	return func(o *options) { o.slow = d }
}

// WithLogLevel 设置 GORM 日志级别.
func WithLogLevel(l logger.LogLevel) Option {
	return func(o *options) { o.logMode = l }
}

// New 按配置选择 dialector 并建立连接.
func New(ctx context.Context, cfg *configs.DBConfig, opts ...Option) (*Client, error) {
	dsn := cfg.GetDSN()
	if dsn == "" {
		return nil, fmt.Errorf("failed to generate DSN for database type: %s", cfg.Type)
	}

	dbType := cfg.Type
	switch dbType {
	case configs.Postgres, configs.Pg:
		dbType = configs.PostgreSQL
	case configs.MariaDB:
		dbType = configs.MySQL
	}

	factory, exists := dialectorFactories[dbType]
	if !exists {
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	base := []Option{WithSlowThreshold(time.Duration(cfg.SlowThresholdMS) * time.Millisecond)}

	client, err := Open(ctx, factory(dsn), append(base, opts...)...)
	if err != nil {
		return nil, err
	}

	sqlDB, err := client.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)

	nlog.Logger().Info().
		Str("type", cfg.GetDBType()).
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("数据库连接成功")

	return client, nil
}

// Open 使用给定 dialector 打开数据库，测试中可直接传入内存 SQLite.
func Open(ctx context.Context, dialector gorm.Dialector, opts ...Option) (*Client, error) {
	o := options{logMode: logger.Warn}
	for _, opt := range opts {
		opt(&o)
	}

	gormLogger := logger.New(
		nlog.Logger(),
		logger.Config{
			SlowThreshold:             o.slow,
			LogLevel:                  o.logMode,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		PrepareStmt:    true,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	client := &Client{DB: db}

	if err := client.Ping(ctx); err != nil {
		return nil, err
	}

	if o.metrics {
		if err := client.RegisterGORMMetrics(o.dbName); err != nil {
			return nil, err
		}
	}

	return client, nil
}

// Ping 检查数据库连通性.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Migrate 对给定模型执行 AutoMigrate.
func (c *Client) Migrate(ctx context.Context, models ...any) error {
	if err := c.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return nil
}

// Close 关闭底层连接池.
func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

const defaultGORMMetricsRefreshInterval = 15 // 秒

// RegisterGORMMetrics 注册GORM连接池指标.
func (c *Client) RegisterGORMMetrics(dbName string) error {
	promConfig := gormPrometheus.Config{
		DBName:          dbName,
		RefreshInterval: defaultGORMMetricsRefreshInterval,
		StartServer:     false,
	}

	if err := c.Use(gormPrometheus.New(promConfig)); err != nil {
		return fmt.Errorf("failed to register GORM prometheus plugin: %w", err)
	}

	return nil
}
