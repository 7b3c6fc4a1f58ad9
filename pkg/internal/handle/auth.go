package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/internal/service"
	"github.com/yeisme/sharevault/pkg/internal/types"
	"github.com/yeisme/sharevault/pkg/middleware"
)

// Register 注册账户并返回访问令牌.
//
//	@Summary	注册
//	@Tags		账户
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.RegisterRequest	true	"注册信息"
//	@Success	201		{object}	types.AuthResponse
//	@Failure	400		{object}	types.ErrorResponse
//	@Router		/api/auth/register [post]
func Register(c *gin.Context) {
	var req types.RegisterRequest
	if err := bind(c, &req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()

	acc, token, err := service.NewAccountService(ctx).Register(ctx, service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err, "register")
		return
	}

	c.JSON(http.StatusCreated, types.AuthResponse{Success: true, Token: token, User: *types.NewOwnerView(acc)})
}

// Login 邮箱密码登录.
//
//	@Summary	登录
//	@Tags		账户
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.LoginRequest	true	"登录信息"
//	@Success	200		{object}	types.AuthResponse
//	@Failure	400		{object}	types.ErrorResponse
//	@Failure	401		{object}	types.ErrorResponse
//	@Router		/api/auth/login [post]
func Login(c *gin.Context) {
	var req types.LoginRequest
	if err := bind(c, &req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()

	acc, token, err := service.NewAccountService(ctx).Login(ctx, req.Email, req.Password)
	if err != nil {
		respondError(c, err, "login")
		return
	}

	c.JSON(http.StatusOK, types.AuthResponse{Success: true, Token: token, User: *types.NewOwnerView(acc)})
}

// Profile 当前登录用户.
//
//	@Summary	当前用户
//	@Tags		账户
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	types.ProfileResponse
//	@Failure	401	{object}	types.ErrorResponse
//	@Router		/api/auth/profile [get]
func Profile(c *gin.Context) {
	acc := middleware.Caller(c)
	if acc == nil {
		fail(c, http.StatusUnauthorized, "Access token required")
		return
	}

	c.JSON(http.StatusOK, types.ProfileResponse{Success: true, User: *types.NewOwnerView(acc)})
}
