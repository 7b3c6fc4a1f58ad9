package configs

import (
	"github.com/spf13/viper"
)

// MetricsConfig Prometheus 指标相关配置.
//
//	metrics:
//	  enabled: true
//	  path: /metrics
//	  pprof: false
type MetricsConfig struct {
	Enabled        bool   `mapstructure:"enabled"`         // 是否启用Metrics
	Path           string `mapstructure:"path"`            // 暴露路径
	RuntimeMetrics bool   `mapstructure:"runtime_metrics"` // 是否收集运行时指标
	Pprof          bool   `mapstructure:"pprof"`           // 是否注册 /debug/pprof
	// DBMetrics 是否注册 GORM prometheus 插件
	DBMetrics bool `mapstructure:"db_metrics"`
}

// setDefaults 设置Metrics配置的默认值.
func (c *MetricsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.runtime_metrics", true)
	v.SetDefault("metrics.pprof", false)
	v.SetDefault("metrics.db_metrics", true)
}
