// Package jobs 负责注册与实现业务定时任务（基于 scheduler）。
package jobs

import (
	"context"
	"fmt"

	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/service"
	"github.com/yeisme/sharevault/pkg/internal/storage"
	"github.com/yeisme/sharevault/pkg/queue"
	"github.com/yeisme/sharevault/pkg/scheduler"
)

// RegisterCronJobs 配置业务定时任务：
//   - 按 scheduler.orphan_sweep_cron 清理无记录引用的 blob
func RegisterCronJobs(ctx context.Context, sched *scheduler.Scheduler, mgr *storage.Manager, cfg *configs.AppConfig) error {
	if sched == nil {
		return fmt.Errorf("scheduler is nil")
	}

	if mgr == nil {
		return fmt.Errorf("storage manager is nil")
	}

	var events *queue.Emitter
	if mqc := mgr.GetMQClient(); mqc != nil {
		events = queue.NewEmitter(mqc, cfg.Events)
	}

	resources := service.NewResourceServiceWith(service.Deps{
		DB:     mgr.GetDBClient(),
		Blob:   mgr.GetBlobStore(),
		Events: events,
	})

	sweeper := NewOrphanSweeper(resources, mgr.GetBlobStore(), events, cfg.Scheduler)

	return sched.AddCron(ctx, JobOrphanSweep, cfg.Scheduler.OrphanSweepCron, func(ctx context.Context) error {
		_, err := sweeper.Run(ctx)
		return err
	})
}
