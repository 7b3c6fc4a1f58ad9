// Package configs 管理应用程序配置，包括数据库、Blob 存储、缓存和队列等配置信息.
// configs 包支持多种配置格式（YAML、JSON、TOML、dotenv），支持环境变量覆盖并启用热重载.
//
// Example:
//
//	if err := configs.InitConfig("./"); err != nil {
//		log.Fatal(err)
//	}
//
//	cfg := configs.GetConfig()
//	fmt.Println(cfg.Server.Port, cfg.Blob.Type)
package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/yeisme/sharevault/pkg/rule"
)

// EnvPrefix 环境变量前缀，例如 SHAREVAULT_SERVER_PORT=9000.
const EnvPrefix = "SHAREVAULT"

type (
	// AppConfig 全局应用程序配置.
	AppConfig struct {
		Server         ServerConfig         `mapstructure:"server"`
		DB             DBConfig             `mapstructure:"db"`
		Blob           BlobConfig           `mapstructure:"blob"`
		S3             S3Config             `mapstructure:"s3"`
		KV             KVConfig             `mapstructure:"kv"`
		MQ             MQConfig             `mapstructure:"mq"`
		Log            LogConfig            `mapstructure:"log"`
		Auth           AuthConfig           `mapstructure:"auth"`
		Cache          CacheConfig          `mapstructure:"cache"`
		RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
		CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
		Events         EventsConfig         `mapstructure:"events"`
		Metrics        MetricsConfig        `mapstructure:"metrics"`
		Tracing        TracingConfig        `mapstructure:"tracing"`
		Scheduler      SchedulerConfig      `mapstructure:"scheduler"`
	}
)

// defaulter 每个配置段都实现 setDefaults.
type defaulter interface {
	setDefaults(v *viper.Viper)
}

var (
	// globalConfig 全局配置实例.
	globalConfig AppConfig
	// appViper 全局 Viper 实例.
	appViper *viper.Viper
	// mu 保护热重载期间的 globalConfig.
	mu sync.RWMutex
)

// InitConfig 加载应用程序配置. path 可以是配置文件，也可以是包含 config.* 的目录；
// 找不到配置文件时仅使用默认值与环境变量.
func InitConfig(path string) error {
	v := viper.New()
	setAllDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(path)
		v.AddConfigPath(filepath.Join(path, "configs"))

		for _, ext := range []string{"yaml", "yml", "json", "toml", "env", "dotenv"} {
			cfg := filepath.Join(path, "config."+ext)
			if _, err := os.Stat(cfg); err == nil {
				v.SetConfigFile(cfg)

				break
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	mu.Lock()
	globalConfig = cfg
	appViper = v
	mu.Unlock()

	watchConfig(v, cfg.Server.ReloadConfig)

	return nil
}

// Validate 使用 rule 校验各个配置段.
func (c *AppConfig) Validate() error {
	if err := rule.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// setAllDefaults 设置所有配置的默认值.
func setAllDefaults(v *viper.Viper) {
	sections := []defaulter{
		&ServerConfig{},
		&DBConfig{},
		&BlobConfig{},
		&S3Config{},
		&KVConfig{},
		&MQConfig{},
		&LogConfig{},
		&AuthConfig{},
		&CacheConfig{},
		&RateLimitConfig{},
		&CircuitBreakerConfig{},
		&EventsConfig{},
		&MetricsConfig{},
		&TracingConfig{},
		&SchedulerConfig{},
	}

	for _, s := range sections {
		s.setDefaults(v)
	}
}

func watchConfig(v *viper.Viper, isHotReload bool) {
	if !isHotReload || v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		var cfg AppConfig
		if err := v.Unmarshal(&cfg); err != nil {
			fmt.Fprintf(os.Stderr, "reload config %s: %v\n", e.Name, err)

			return
		}

		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "reload config %s: %v\n", e.Name, err)

			return
		}

		mu.Lock()
		globalConfig = cfg
		mu.Unlock()

		fmt.Fprintln(os.Stderr, "config reloaded:", e.Name)
	})
	v.WatchConfig()
}

// GetConfig 返回全局配置实例.
func GetConfig() *AppConfig {
	mu.RLock()
	defer mu.RUnlock()

	return &globalConfig
}

// SetConfig 直接替换全局配置，主要用于测试与嵌入场景.
func SetConfig(cfg AppConfig) {
	mu.Lock()
	globalConfig = cfg
	mu.Unlock()
}

// Defaults 返回只包含默认值的配置.
func Defaults() AppConfig {
	v := viper.New()
	setAllDefaults(v)

	var cfg AppConfig

	_ = v.Unmarshal(&cfg)

	return cfg
}

func GetViper() *viper.Viper {
	return appViper
}

const redactedMask = "******"

// Redacted 返回隐去密钥与密码的副本，用于打印.
func (c AppConfig) Redacted() AppConfig {
	mask := func(s *string) {
		if *s != "" {
			*s = redactedMask
		}
	}

	mask(&c.Auth.JWTSecret)
	mask(&c.DB.Password)
	mask(&c.S3.SecretAccessKey)
	mask(&c.KV.Redis.Password)
	mask(&c.KV.NATS.Password)
	mask(&c.MQ.Common.Password)
	mask(&c.MQ.Redis.Password)
	mask(&c.MQ.NATS.NKey)
	mask(&c.MQ.NATS.JWT)

	return c
}
