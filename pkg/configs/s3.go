package configs

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// S3Config MinIO S3存储配置.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	// PublicURL 对外访问对象的基础地址，为空时使用 endpoint/bucket.
	PublicURL string `mapstructure:"public_url"`
	// KeyPrefix 对象键前缀.
	KeyPrefix string `mapstructure:"key_prefix"`
}

const (
	DefaultS3Endpoint        = "localhost:9000" // 默认S3端点
	DefaultS3AccessKeyID     = "minioadmin"     // 默认访问密钥ID
	DefaultS3SecretAccessKey = "minioadmin"     // 默认秘密访问密钥
	DefaultS3UseSSL          = false            // 默认是否使用SSL
	DefaultS3Bucket          = "sharevault"     // 默认存储桶名称
	DefaultS3Region          = "us-east-1"      // 默认区域
	DefaultS3KeyPrefix       = "resources/"     // 默认对象键前缀
)

// GetEndpointURL 获取完整的端点URL.
func (c *S3Config) GetEndpointURL() string {
	if strings.Contains(c.Endpoint, "://") {
		return c.Endpoint
	}

	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s", scheme, c.Endpoint)
}

// ObjectURL 返回对象的对外地址.
func (c *S3Config) ObjectURL(key string) string {
	base := c.PublicURL
	if base == "" {
		base = c.GetEndpointURL() + "/" + c.Bucket
	}

	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

// setDefaults 设置 S3 配置的默认值.
func (c *S3Config) setDefaults(v *viper.Viper) {
	v.SetDefault("s3.endpoint", DefaultS3Endpoint)
	v.SetDefault("s3.access_key_id", DefaultS3AccessKeyID)
	v.SetDefault("s3.secret_access_key", DefaultS3SecretAccessKey)
	v.SetDefault("s3.use_ssl", DefaultS3UseSSL)
	v.SetDefault("s3.bucket", DefaultS3Bucket)
	v.SetDefault("s3.region", DefaultS3Region)
	v.SetDefault("s3.public_url", "")
	v.SetDefault("s3.key_prefix", DefaultS3KeyPrefix)
}
