// Package storage 聚合数据库、blob、KV 与消息队列客户端.
//
// Example:
//
//	mgr, err := storage.Init(ctx, configs.GetConfig())
//	if err != nil {
//		// 处理错误
//	}
//	defer mgr.Close()
//
//	dbClient := mgr.GetDBClient()
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/storage/blob"
	dbc "github.com/yeisme/sharevault/pkg/internal/storage/db"
	kvc "github.com/yeisme/sharevault/pkg/internal/storage/kv"
	mqc "github.com/yeisme/sharevault/pkg/internal/storage/mq"
	nlog "github.com/yeisme/sharevault/pkg/log"
	"github.com/yeisme/sharevault/pkg/metrics"
)

// Manager 聚合所有存储资源. MQ 只在启用事件时初始化，可能为 nil.
type Manager struct {
	DB   *dbc.Client
	Blob blob.Store
	KV   *kvc.Client
	MQ   *mqc.Client
}

// Init 按配置初始化全部存储，任一必需组件失败时关闭已打开的部分并返回错误.
func Init(ctx context.Context, cfg *configs.AppConfig) (*Manager, error) {
	m := &Manager{}

	var dbOpts []dbc.Option
	if cfg.Metrics.Enabled && cfg.Metrics.DBMetrics {
		dbOpts = append(dbOpts, dbc.WithMetrics(cfg.DB.Database))
	}

	dbi, err := dbc.New(ctx, &cfg.DB, dbOpts...)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}

	m.DB = dbi

	if m.Blob, err = blob.New(ctx, cfg); err != nil {
		m.Close()

		return nil, fmt.Errorf("init blob store: %w", err)
	}

	if m.KV, err = kvc.NewKVClient(ctx, &cfg.KV); err != nil {
		m.Close()

		return nil, fmt.Errorf("init kv: %w", err)
	}

	if cfg.Events.Enabled {
		var opts []mqc.Option
		if cfg.Metrics.Enabled {
			opts = append(opts, mqc.WithMetrics(metrics.GetRegistry()))
		}

		if m.MQ, err = mqc.New(ctx, &cfg.MQ, opts...); err != nil {
			m.Close()

			return nil, fmt.Errorf("init mq: %w", err)
		}
	}

	nlog.Logger().Info().
		Str("db", cfg.DB.GetDBType()).
		Str("blob", m.Blob.Type()).
		Str("kv", string(m.KV.Type())).
		Bool("mq", m.MQ != nil).
		Msg("storage manager initialized")

	return m, nil
}

// GetDBClient 获取 DB 客户端.
func (m *Manager) GetDBClient() *dbc.Client {
	return m.DB
}

// GetBlobStore 获取 blob 存储.
func (m *Manager) GetBlobStore() blob.Store {
	return m.Blob
}

// GetKVClient 获取 KV 客户端.
func (m *Manager) GetKVClient() *kvc.Client {
	return m.KV
}

// GetMQClient 获取 MQ 客户端，未启用事件时为 nil.
func (m *Manager) GetMQClient() *mqc.Client {
	return m.MQ
}

// Close 依次关闭已初始化的组件.
func (m *Manager) Close() error {
	var errs []error

	if m.MQ != nil {
		errs = append(errs, m.MQ.Close())
	}

	if m.KV != nil {
		errs = append(errs, m.KV.Close())
	}

	if m.DB != nil {
		errs = append(errs, m.DB.Close())
	}

	return errors.Join(errs...)
}
