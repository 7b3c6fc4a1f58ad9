package configs

import "github.com/spf13/viper"

// EventsConfig 控制领域事件发布的开关（全局与分主题）。
type EventsConfig struct {
	Enabled  bool                 `mapstructure:"enabled"` // 总开关，开启后初始化 MQ
	Producer string               `mapstructure:"producer"`
	Resource ResourceEventsConfig `mapstructure:"resource"`
}

// ResourceEventsConfig 资源领域的事件开关。
type ResourceEventsConfig struct {
	Created bool `mapstructure:"created"`
	Updated bool `mapstructure:"updated"`
	Deleted bool `mapstructure:"deleted"`
	Orphan  bool `mapstructure:"orphan"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	// 默认关闭，本地运行时不依赖 MQ
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.producer", "sharevault")

	v.SetDefault("events.resource.created", true)
	v.SetDefault("events.resource.updated", true)
	v.SetDefault("events.resource.deleted", true)
	v.SetDefault("events.resource.orphan", false)
}
