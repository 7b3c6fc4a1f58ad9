package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	// 默认熔断器配置.
	DefaultCBEnabled           = false
	DefaultCBFailureRate       = 0.5
	DefaultCBMinRequests       = 20
	DefaultCBInterval          = 60 * time.Second
	DefaultCBTimeout           = 30 * time.Second
	DefaultCBMaxRequestsInHalf = 5
)

// CircuitBreakerConfig 熔断器配置.
type CircuitBreakerConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	FailureRate       float64       `mapstructure:"failure_rate"         rule:"min=0,max=1"` // 窗口内失败比例阈值
	MinRequests       uint32        `mapstructure:"min_requests"`                            // 进入统计的最小请求数
	Interval          time.Duration `mapstructure:"interval"`                                // 统计周期
	Timeout           time.Duration `mapstructure:"timeout"`                                 // 打开状态持续时间（之后半开）
	MaxRequestsInHalf uint32        `mapstructure:"max_requests_in_half"`                    // 半开状态允许的请求数
}

func (c *CircuitBreakerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("circuit_breaker.enabled", DefaultCBEnabled)
	v.SetDefault("circuit_breaker.failure_rate", DefaultCBFailureRate)
	v.SetDefault("circuit_breaker.min_requests", DefaultCBMinRequests)
	v.SetDefault("circuit_breaker.interval", DefaultCBInterval)
	v.SetDefault("circuit_breaker.timeout", DefaultCBTimeout)
	v.SetDefault("circuit_breaker.max_requests_in_half", DefaultCBMaxRequestsInHalf)
}
