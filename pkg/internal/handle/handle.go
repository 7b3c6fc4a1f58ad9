// Package handle 提供 HTTP 请求处理器，负责参数绑定与响应转换，业务规则在 service 中.
package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/internal/service"
	"github.com/yeisme/sharevault/pkg/internal/types"
	"github.com/yeisme/sharevault/pkg/log"
	"github.com/yeisme/sharevault/pkg/rule"
)

// errFileTooLarge 上传体超过 blob.max_upload_bytes.
var errFileTooLarge = errors.New("File too large")

// bind 绑定请求并按 rule 标签校验.
func bind(c *gin.Context, obj any) error {
	// gin 与 rule 共用同一个 validator 引擎，先确保标签名已切换为 rule
	rule.Engine()

	return c.ShouldBind(obj)
}

// fail 输出统一错误结构.
func fail(c *gin.Context, status int, message string) {
	c.JSON(status, types.ErrorResponse{Success: false, Message: message})
}

// badRequest 参数绑定或校验失败.
func badRequest(c *gin.Context, err error) {
	log.Ctx(c.Request.Context()).Warn().Err(err).Str("route", c.FullPath()).Msg("invalid request")
	fail(c, http.StatusBadRequest, rule.Message(err))
}

// respondError 按领域错误分类映射状态码，5xx 记录错误日志.
func respondError(c *gin.Context, err error, action string) {
	kind := service.KindOf(err)
	status := kind.HTTPStatus()

	l := log.Ctx(c.Request.Context())
	if status >= http.StatusInternalServerError {
		l.Error().Err(err).Str("kind", kind.String()).Msg(action + " failed")
	} else {
		l.Debug().Err(err).Str("kind", kind.String()).Msg(action + " rejected")
	}

	fail(c, status, service.Message(err))
}
