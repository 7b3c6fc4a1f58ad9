// Package blob 定义资源文件的二进制存储（本地磁盘或对象存储）.
//
// 记录中保存的是 Locator（可访问的 URL 或路径）以及可选的 StorageID；
// 删除时优先使用 StorageID，本地存储则可以从 Locator 反推出文件名.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yeisme/sharevault/pkg/configs"
)

// ErrInvalidRef 引用无法解析为本存储中的对象.
var ErrInvalidRef = errors.New("blob: invalid reference")

// PutInput 上传参数.
type PutInput struct {
	Body         io.Reader
	Size         int64 // 未知时为 -1
	OriginalName string
	ContentType  string
}

// Stored 上传结果.
type Stored struct {
	Locator   string
	StorageID string // 本地存储为空
	Size      int64
}

// Ref 指向一个已存储对象.
type Ref struct {
	Locator   string
	StorageID string
}

// Object 列举时返回的对象信息.
type Object struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Store 二进制存储.
type Store interface {
	// Type 返回后端类型，例如 local / s3.
	Type() string
	Put(ctx context.Context, in PutInput) (*Stored, error)
	// Delete 删除对象，对象不存在不算错误.
	Delete(ctx context.Context, ref Ref) error
	// Key 把记录中的引用换算成 List 返回的 Key.
	Key(ref Ref) (string, error)
	// List 逐个回调存储中的对象，fn 返回错误时停止.
	List(ctx context.Context, fn func(Object) error) error
	Ping(ctx context.Context) error
}

// Factory 根据配置创建 Store.
type Factory func(ctx context.Context, cfg *configs.AppConfig) (Store, error)

var factories = map[configs.BlobType]Factory{}

// RegisterFactory 注册 blob 后端.
func RegisterFactory(t configs.BlobType, f Factory) {
	factories[t] = f
}

// GetRegisteredTypes 返回已注册的后端类型.
func GetRegisteredTypes() []configs.BlobType {
	types := make([]configs.BlobType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// New 按 blob.type 创建 Store.
func New(ctx context.Context, cfg *configs.AppConfig) (Store, error) {
	t := cfg.Blob.Type
	if t == "" {
		t = configs.BlobTypeLocal
	}

	f, ok := factories[t]
	if !ok {
		return nil, fmt.Errorf("unsupported blob type: %s", t)
	}

	return f(ctx, cfg)
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

const maxStemLen = 50

// StorageName 生成存储用文件名：{stem}_{timestamp}_{uuid8}{ext}.
func StorageName(original string, now time.Time) string {
	base := filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	stem = strings.Trim(unsafeChars.ReplaceAllString(stem, "_"), "_.")
	if len(stem) > maxStemLen {
		stem = stem[:maxStemLen]
	}

	if stem == "" {
		stem = "file"
	}

	ext = unsafeChars.ReplaceAllString(ext, "")
	if ext == "." {
		ext = ""
	}

	return fmt.Sprintf("%s_%s_%s%s", stem, now.UTC().Format("20060102150405"), uuid.NewString()[:8], ext)
}
