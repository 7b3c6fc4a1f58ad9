package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	// 默认速率限制配置.
	DefaultRateLimitEnabled = false
	DefaultRateLimitLimit   = 100
	DefaultRateLimitWindow  = time.Minute
	DefaultRateLimitKey     = "ip"
	DefaultRateLimitMaxKeys = 10000
)

// RateLimitConfig 固定窗口计数限流配置.
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"    rule:"min=1"` // 每个窗口允许的请求数
	Window  time.Duration `mapstructure:"window"   rule:"min=1s"`
	MaxKeys int           `mapstructure:"max_keys" rule:"min=1"` // 同时跟踪的限流键上限
	// Key 选择限流维度：global（全局）、ip（按客户端IP）、header:Header-Name（按请求头）
	Key string `mapstructure:"key"`
}

func (c *RateLimitConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("rate_limit.enabled", DefaultRateLimitEnabled)
	v.SetDefault("rate_limit.limit", DefaultRateLimitLimit)
	v.SetDefault("rate_limit.window", DefaultRateLimitWindow)
	v.SetDefault("rate_limit.max_keys", DefaultRateLimitMaxKeys)
	v.SetDefault("rate_limit.key", DefaultRateLimitKey)
}
