// Package s3 处理S3（MinIO 兼容）对象存储连接.
package s3

import (
	"context"
	"fmt"
	"net/url"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yeisme/sharevault/pkg/configs"
	nlog "github.com/yeisme/sharevault/pkg/log"
)

// Client 包装 MinIO 客户端，绑定一个 bucket.
type Client struct {
	*minio.Client
	cfg configs.S3Config
}

// New 初始化 MinIO 客户端，若 bucket 不存在则尝试创建.
func New(ctx context.Context, cfg *configs.S3Config) (*Client, error) {
	c := *cfg

	endpoint := c.Endpoint
	// 允许用户传完整 schema endpoint（http:// 或 https://）
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			c.UseSSL = true
		}
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKeyID, c.SecretAccessKey, ""),
		Secure: c.UseSSL,
		Region: c.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	cli.SetAppInfo("sharevault", configs.AppVersion)

	client := &Client{Client: cli, cfg: c}
	if err := client.ensureBucket(ctx); err != nil {
		return nil, err
	}

	nlog.Logger().Info().Str("endpoint", c.Endpoint).Str("bucket", c.Bucket).Msg("s3 connected")

	return client, nil
}

func (c *Client) ensureBucket(ctx context.Context) error {
	exists, err := c.BucketExists(ctx, c.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", c.cfg.Bucket, err)
	}

	if exists {
		return nil
	}

	if err := c.MakeBucket(ctx, c.cfg.Bucket, minio.MakeBucketOptions{Region: c.cfg.Region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", c.cfg.Bucket, err)
	}

	nlog.Logger().Info().Str("bucket", c.cfg.Bucket).Msg("bucket created")

	return nil
}

// Bucket 返回绑定的 bucket 名称.
func (c *Client) Bucket() string {
	return c.cfg.Bucket
}

// Config 返回创建客户端时使用的配置副本.
func (c *Client) Config() configs.S3Config {
	return c.cfg
}

// HealthCheck 检查 bucket 是否可访问.
func (c *Client) HealthCheck(ctx context.Context) error {
	ok, err := c.BucketExists(ctx, c.cfg.Bucket)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("bucket %s not found", c.cfg.Bucket)
	}

	return nil
}
