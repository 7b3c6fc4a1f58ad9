package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/yeisme/sharevault/pkg/configs"
)

const tmpSuffix = ".tmp"

// Local 把文件保存在本地目录，通过 URLPrefix 对外提供访问.
type Local struct {
	dir       string
	urlPrefix string
	now       func() time.Time
}

// NewLocal 创建本地存储，目录不存在时自动创建.
func NewLocal(dir, urlPrefix string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}

	return &Local{
		dir:       dir,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
		now:       time.Now,
	}, nil
}

// Dir 返回存储目录.
func (l *Local) Dir() string {
	return l.dir
}

// URLPrefix 返回对外访问前缀，例如 /uploads.
func (l *Local) URLPrefix() string {
	return l.urlPrefix
}

func (l *Local) Type() string {
	return string(configs.BlobTypeLocal)
}

// Put 先写临时文件，fsync 后原子 rename.
func (l *Local) Put(_ context.Context, in PutInput) (*Stored, error) {
	name := StorageName(in.OriginalName, l.now())
	full := filepath.Join(l.dir, name)
	tmp := full + tmpSuffix

	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	size, err := io.Copy(f, in.Body)
	if err != nil {
		f.Close()
		os.Remove(tmp)

		return nil, fmt.Errorf("write blob: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)

		return nil, fmt.Errorf("fsync blob: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)

		return nil, fmt.Errorf("close blob: %w", err)
	}

	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)

		return nil, fmt.Errorf("rename blob: %w", err)
	}

	return &Stored{Locator: path.Join(l.urlPrefix, name), Size: size}, nil
}

// Key 优先使用 StorageID，否则从 Locator 去掉 URL 前缀得到文件名.
func (l *Local) Key(ref Ref) (string, error) {
	name := ref.StorageID
	if name == "" {
		rest, ok := strings.CutPrefix(ref.Locator, l.urlPrefix+"/")
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref.Locator)
		}

		name = rest
	}

	// 只允许目录下的单个文件名
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, name)
	}

	return name, nil
}

// Delete 删除文件，不存在视为成功.
func (l *Local) Delete(_ context.Context, ref Ref) error {
	name, err := l.Key(ref)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(l.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob %s: %w", name, err)
	}

	return nil
}

// List 列出目录下的文件，跳过未完成的临时文件.
func (l *Local) List(ctx context.Context, fn func(Object) error) error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("read upload dir: %w", err)
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		if e.IsDir() || strings.HasSuffix(e.Name(), tmpSuffix) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}

		if err := fn(Object{Key: e.Name(), Size: info.Size(), ModTime: info.ModTime()}); err != nil {
			return err
		}
	}

	return nil
}

// Ping 检查目录可写.
func (l *Local) Ping(_ context.Context) error {
	f, err := os.CreateTemp(l.dir, ".ping-*")
	if err != nil {
		return fmt.Errorf("upload dir not writable: %w", err)
	}

	name := f.Name()
	f.Close()

	return os.Remove(name)
}

func init() {
	RegisterFactory(configs.BlobTypeLocal, func(_ context.Context, cfg *configs.AppConfig) (Store, error) {
		return NewLocal(cfg.Blob.Dir, cfg.Blob.URLPrefix)
	})
}
