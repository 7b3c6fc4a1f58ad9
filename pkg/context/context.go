// Package context 拓展上下文功能，将存储、调用者身份等集成到上下文中，方便在应用程序各处传递和使用.
package context

import (
	"context"

	"github.com/yeisme/sharevault/pkg/internal/storage"
	"github.com/yeisme/sharevault/pkg/internal/storage/blob"
	dbc "github.com/yeisme/sharevault/pkg/internal/storage/db"
	kvc "github.com/yeisme/sharevault/pkg/internal/storage/kv"
	mqc "github.com/yeisme/sharevault/pkg/internal/storage/mq"
)

type ContextKey string

const (
	StorageManagerKey ContextKey = "storageManager"
	CallerIDKey       ContextKey = "callerID"
)

// WithStorageManager 将 Manager 存储到 context 中.
func WithStorageManager(ctx context.Context, mgr *storage.Manager) context.Context {
	return context.WithValue(ctx, StorageManagerKey, mgr)
}

// GetManager 从 context 中获取 Manager.
func GetManager(ctx context.Context) *storage.Manager {
	if mgr, ok := ctx.Value(StorageManagerKey).(*storage.Manager); ok {
		return mgr
	}

	return nil
}

// GetDBClient 从 context 中获取 DB 客户端.
func GetDBClient(ctx context.Context) *dbc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetDBClient()
	}

	return nil
}

// GetBlobStore 从 context 中获取 blob 存储.
func GetBlobStore(ctx context.Context) blob.Store {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetBlobStore()
	}

	return nil
}

// GetMQClient 从 context 中获取 MQ 客户端.
func GetMQClient(ctx context.Context) *mqc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetMQClient()
	}

	return nil
}

// GetKVClient 从 context 中获取 KV 客户端.
func GetKVClient(ctx context.Context) *kvc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetKVClient()
	}

	return nil
}

// WithCallerID 记录通过访问令牌认证的账户 ID.
func WithCallerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CallerIDKey, id)
}

// GetCallerID 返回已认证的账户 ID，未认证时返回空串.
func GetCallerID(ctx context.Context) string {
	id, _ := ctx.Value(CallerIDKey).(string)

	return id
}
