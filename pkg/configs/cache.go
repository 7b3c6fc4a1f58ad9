package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultCacheTTL          = 60 * time.Second
	DefaultCacheMaxBodyBytes = 1 << 20 // 1MB
)

// CacheConfig 资源列表响应缓存配置，后端存储见 KVConfig.
type CacheConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	TTL          time.Duration `mapstructure:"ttl"            rule:"min=0"`
	MaxBodyBytes int           `mapstructure:"max_body_bytes" rule:"min=0"`
}

func (c *CacheConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("cache.max_body_bytes", DefaultCacheMaxBodyBytes)
}
