package configs

import (
	"github.com/spf13/viper"
)

// BlobType Blob 存储后端类型.
type BlobType string

const (
	BlobTypeLocal BlobType = "local"
	BlobTypeS3    BlobType = "s3"

	DefaultBlobDir        = "uploads"
	DefaultBlobURLPrefix  = "/uploads"
	DefaultMaxUploadBytes = 10 << 20 // 10MB
)

// BlobConfig 上传文件的存储配置. type=s3 时连接参数读取 S3Config.
type BlobConfig struct {
	Type           BlobType `mapstructure:"type"             rule:"oneof=local s3"`
	Dir            string   `mapstructure:"dir"              rule:"required_if=Type local"`
	URLPrefix      string   `mapstructure:"url_prefix"       rule:"required_if=Type local"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes" rule:"min=1"`
	// AllowedMIMETypes 为空表示不限制.
	AllowedMIMETypes []string `mapstructure:"allowed_mime_types"`
}

// IsLocal 是否为本地磁盘存储.
func (c *BlobConfig) IsLocal() bool {
	return c.Type == BlobTypeLocal
}

func (c *BlobConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("blob.type", BlobTypeLocal)
	v.SetDefault("blob.dir", DefaultBlobDir)
	v.SetDefault("blob.url_prefix", DefaultBlobURLPrefix)
	v.SetDefault("blob.max_upload_bytes", DefaultMaxUploadBytes)
	v.SetDefault("blob.allowed_mime_types", []string{})
}
