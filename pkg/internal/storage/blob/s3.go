package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	minio "github.com/minio/minio-go/v7"

	"github.com/yeisme/sharevault/pkg/configs"
	s3c "github.com/yeisme/sharevault/pkg/internal/storage/s3"
)

// S3 把文件保存到对象存储，StorageID 为对象键.
type S3 struct {
	client *s3c.Client
	cfg    configs.S3Config
	now    func() time.Time
}

// NewS3 使用已连接的客户端创建存储.
func NewS3(client *s3c.Client) *S3 {
	return &S3{client: client, cfg: client.Config(), now: time.Now}
}

func (s *S3) Type() string {
	return string(configs.BlobTypeS3)
}

// Put 上传对象，Size 为 -1 时由 minio 分片上传.
func (s *S3) Put(ctx context.Context, in PutInput) (*Stored, error) {
	key := s.cfg.KeyPrefix + StorageName(in.OriginalName, s.now())

	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := s.client.PutObject(ctx, s.cfg.Bucket, key, in.Body, in.Size, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"original-name": in.OriginalName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("put object %s: %w", key, err)
	}

	return &Stored{Locator: s.cfg.ObjectURL(key), StorageID: key, Size: info.Size}, nil
}

// Key 对象存储必须有 StorageID，也接受由 ObjectURL 生成的 Locator.
func (s *S3) Key(ref Ref) (string, error) {
	if ref.StorageID != "" {
		return ref.StorageID, nil
	}

	base := strings.TrimSuffix(s.cfg.ObjectURL(""), "/") + "/"
	if key, ok := strings.CutPrefix(ref.Locator, base); ok && key != "" {
		return key, nil
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref.Locator)
}

// Delete 删除对象.
func (s *S3) Delete(ctx context.Context, ref Ref) error {
	key, err := s.Key(ref)
	if err != nil {
		return err
	}

	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil
		}

		return fmt.Errorf("remove object %s: %w", key, err)
	}

	return nil
}

// List 列出 KeyPrefix 下的对象.
func (s *S3) List(ctx context.Context, fn func(Object) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range s.client.ListObjects(ctx, s.cfg.Bucket, minio.ListObjectsOptions{Prefix: s.cfg.KeyPrefix, Recursive: true}) {
		if obj.Err != nil {
			return fmt.Errorf("list objects: %w", obj.Err)
		}

		if err := fn(Object{Key: obj.Key, Size: obj.Size, ModTime: obj.LastModified}); err != nil {
			return err
		}
	}

	return nil
}

// Ping 检查 bucket 可访问.
func (s *S3) Ping(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}

func init() {
	RegisterFactory(configs.BlobTypeS3, func(ctx context.Context, cfg *configs.AppConfig) (Store, error) {
		client, err := s3c.New(ctx, &cfg.S3)
		if err != nil {
			return nil, err
		}

		return NewS3(client), nil
	})
}
