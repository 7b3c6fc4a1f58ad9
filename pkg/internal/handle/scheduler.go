package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/middleware"
	"github.com/yeisme/sharevault/pkg/scheduler"
)

// SchedulerJobs 返回所有定时任务状态.
//
//	@Summary	定时任务列表
//	@Tags		系统
//	@Produce	json
//	@Success	200	{object}	map[string]any
//	@Failure	503	{object}	types.ErrorResponse
//	@Router		/api/system/jobs [get]
func SchedulerJobs(c *gin.Context) {
	sched := middleware.GetScheduler(c)
	if sched == nil {
		fail(c, http.StatusServiceUnavailable, "Scheduler disabled")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "jobs": sched.GetJobInfos()})
}

// SchedulerRunJob 立即执行一次指定任务.
//
//	@Summary	立即执行任务
//	@Tags		系统
//	@Produce	json
//	@Security	BearerAuth
//	@Param		name	path		string	true	"任务名"
//	@Success	202		{object}	types.SuccessResponse
//	@Failure	404		{object}	types.ErrorResponse
//	@Router		/api/system/jobs/{name}/run [post]
func SchedulerRunJob(c *gin.Context) {
	sched := middleware.GetScheduler(c)
	if sched == nil {
		fail(c, http.StatusServiceUnavailable, "Scheduler disabled")
		return
	}

	if err := sched.RunNow(c.Param("name")); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			fail(c, http.StatusNotFound, "Job not found")
			return
		}

		respondError(c, err, "run job")

		return
	}

	c.JSON(http.StatusAccepted, gin.H{"success": true})
}
