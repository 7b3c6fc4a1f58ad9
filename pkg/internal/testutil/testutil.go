// Package testutil 提供测试用的内存数据库与可注入故障的 blob 存储.
package testutil

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/storage/blob"
	"github.com/yeisme/sharevault/pkg/internal/storage/db"
)

// NewDB 打开一个按测试名隔离的内存 SQLite 并完成迁移.
func NewDB(t testing.TB) *db.Client {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	ctx := context.Background()

	client, err := db.Open(ctx, sqlite.Open("file:"+name+"?mode=memory&cache=shared"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Migrate(ctx, model.All()...))

	return client
}

// Store 包装本地存储，可让 Put / Delete 失败.
type Store struct {
	*blob.Local

	mu        sync.Mutex
	putErr    error
	deleteErr error
	deleted   []blob.Ref
}

// NewStore 在临时目录创建本地存储.
func NewStore(t testing.TB) *Store {
	t.Helper()

	local, err := blob.NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)

	return &Store{Local: local}
}

// FailPut 之后的 Put 返回 err.
func (s *Store) FailPut(err error) {
	s.mu.Lock()
	s.putErr = err
	s.mu.Unlock()
}

// FailDelete 之后的 Delete 返回 err.
func (s *Store) FailDelete(err error) {
	s.mu.Lock()
	s.deleteErr = err
	s.mu.Unlock()
}

// Deleted 返回调用过 Delete 的引用.
func (s *Store) Deleted() []blob.Ref {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]blob.Ref(nil), s.deleted...)
}

func (s *Store) Put(ctx context.Context, in blob.PutInput) (*blob.Stored, error) {
	s.mu.Lock()
	err := s.putErr
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	return s.Local.Put(ctx, in)
}

func (s *Store) Delete(ctx context.Context, ref blob.Ref) error {
	s.mu.Lock()
	s.deleted = append(s.deleted, ref)
	err := s.deleteErr
	s.mu.Unlock()

	if err != nil {
		return err
	}

	return s.Local.Delete(ctx, ref)
}
