package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/sharevault/pkg/context"
	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/service"
	"github.com/yeisme/sharevault/pkg/log"
)

const callerKey = "sharevault.caller"

// Authenticator 校验令牌并返回调用者账户.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.Account, error)
}

// AuthMiddleware 要求 Authorization: Bearer <token>，成功后把调用者写入 gin 与请求 context.
func AuthMiddleware(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			Abort(c, http.StatusUnauthorized, "Access token required")
			return
		}

		acc, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			if service.KindOf(err) == service.KindAuth {
				Abort(c, http.StatusUnauthorized, service.Message(err))
				return
			}

			log.Ctx(c.Request.Context()).Error().Err(err).Msg("authenticate request")
			Abort(c, http.StatusInternalServerError, "Authentication error")

			return
		}

		c.Set(callerKey, acc)
		c.Request = c.Request.WithContext(ctxPkg.WithCallerID(c.Request.Context(), acc.ID))
		c.Next()
	}
}

// Caller 返回已认证的调用者，未经过 AuthMiddleware 时为 nil.
func Caller(c *gin.Context) *model.Account {
	if v, ok := c.Get(callerKey); ok {
		if acc, ok := v.(*model.Account); ok {
			return acc
		}
	}

	return nil
}

// CallerID 返回调用者 ID.
func CallerID(c *gin.Context) string {
	return ctxPkg.GetCallerID(c.Request.Context())
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}
