package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultOrphanSweepCron  = "*/30 * * * *"
	DefaultOrphanGrace      = 24 * time.Hour
	DefaultOrphanSweepRate  = 10.0 // 每秒删除的 blob 数
	DefaultOrphanSweepBatch = 500
)

// SchedulerConfig 定时任务配置.
type SchedulerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// OrphanSweepCron 孤儿 blob 清理任务的 cron 表达式
	OrphanSweepCron string `mapstructure:"orphan_sweep_cron" rule:"required"`
	// OrphanGrace 上传后多久仍未被引用的 blob 才视为孤儿
	OrphanGrace     time.Duration `mapstructure:"orphan_grace"      rule:"min=0"`
	OrphanSweepRate float64       `mapstructure:"orphan_sweep_rate" rule:"gt=0"`
	// OrphanSweepBatch 单次任务最多删除的 blob 数
	OrphanSweepBatch int `mapstructure:"orphan_sweep_batch" rule:"min=1"`
}

func (c *SchedulerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.orphan_sweep_cron", DefaultOrphanSweepCron)
	v.SetDefault("scheduler.orphan_grace", DefaultOrphanGrace)
	v.SetDefault("scheduler.orphan_sweep_rate", DefaultOrphanSweepRate)
	v.SetDefault("scheduler.orphan_sweep_batch", DefaultOrphanSweepBatch)
}
