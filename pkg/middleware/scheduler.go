package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/scheduler"
)

type schedulerKey struct{}

// SchedulerMiddleware 将调度器注入请求 context，供 /system/jobs 使用.
func SchedulerMiddleware(sched *scheduler.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sched != nil {
			c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), schedulerKey{}, sched))
		}

		c.Next()
	}
}

// GetScheduler 从请求 context 中获取调度器，未启用时为 nil.
func GetScheduler(c *gin.Context) *scheduler.Scheduler {
	if sched, ok := c.Request.Context().Value(schedulerKey{}).(*scheduler.Scheduler); ok {
		return sched
	}

	return nil
}
