package service

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/yeisme/sharevault/pkg/auth"
	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/storage/db"
	"github.com/yeisme/sharevault/pkg/log"
	"github.com/yeisme/sharevault/pkg/tracing"
)

// AccountService 注册、登录与令牌认证.
type AccountService struct {
	db     *gorm.DB
	issuer *auth.Issuer
	cost   int
}

// RegisterInput 注册输入，已经过请求层校验.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// NewAccountService 使用 context 中的数据库与全局认证配置创建服务.
func NewAccountService(c context.Context) *AccountService {
	cfg := configs.GetConfig().Auth

	return NewAccountServiceWith(DepsFromContext(c).DB, auth.NewIssuer(cfg), cfg.BcryptCost)
}

// NewAccountServiceWith 使用显式依赖创建服务.
func NewAccountServiceWith(dbc *db.Client, issuer *auth.Issuer, bcryptCost int) *AccountService {
	return &AccountService{db: gormDB(dbc), issuer: issuer, cost: bcryptCost}
}

// Register 创建账户并签发令牌；邮箱或用户名已存在时返回 KindConflict.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*model.Account, string, error) {
	ctx, span := tracing.StartSpan(ctx, "account.register")
	defer span.End()

	if s.db == nil {
		return nil, "", internalErr("database not initialized", nil)
	}

	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)

	if username == "" || email == "" || in.Password == "" {
		return nil, "", validationf("Username, email and password are required")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Account{}).
		Where("email = ? OR username = ?", email, username).
		Count(&count).Error; err != nil {
		return nil, "", internalErr("failed to check account", err)
	}

	if count > 0 {
		return nil, "", newError(KindConflict, "User already exists", nil)
	}

	hash, err := auth.HashPassword(in.Password, s.cost)
	if err != nil {
		return nil, "", internalErr("failed to hash password", err)
	}

	acc := &model.Account{Username: username, Email: email, PasswordHash: hash}
	if err := s.db.WithContext(ctx).Create(acc).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", newError(KindConflict, "User already exists", nil)
		}

		tracing.RecordError(span, err)

		return nil, "", internalErr("failed to create account", err)
	}

	token, err := s.issuer.Issue(acc.ID)
	if err != nil {
		return nil, "", internalErr("failed to issue token", err)
	}

	log.Ctx(ctx).Info().Str("account", acc.ID).Str("username", acc.Username).Msg("account registered")

	return acc, token, nil
}

// Login 校验邮箱与密码并签发令牌.
func (s *AccountService) Login(ctx context.Context, email, password string) (*model.Account, string, error) {
	ctx, span := tracing.StartSpan(ctx, "account.login")
	defer span.End()

	if s.db == nil {
		return nil, "", internalErr("database not initialized", nil)
	}

	var acc model.Account

	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Take(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", newError(KindAuth, "Invalid credentials", nil)
	}

	if err != nil {
		return nil, "", internalErr("failed to load account", err)
	}

	ok, err := auth.CheckPassword(acc.PasswordHash, password)
	if err != nil {
		return nil, "", internalErr("failed to check password", err)
	}

	if !ok {
		return nil, "", newError(KindAuth, "Invalid credentials", nil)
	}

	token, err := s.issuer.Issue(acc.ID)
	if err != nil {
		return nil, "", internalErr("failed to issue token", err)
	}

	return &acc, token, nil
}

// Profile 按 ID 获取账户.
func (s *AccountService) Profile(ctx context.Context, id string) (*model.Account, error) {
	if s.db == nil {
		return nil, internalErr("database not initialized", nil)
	}

	var acc model.Account

	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newError(KindNotFound, "User not found", nil)
	}

	if err != nil {
		return nil, internalErr("failed to load account", err)
	}

	return &acc, nil
}

// Authenticate 校验令牌并确认账户仍然存在.
func (s *AccountService) Authenticate(ctx context.Context, token string) (*model.Account, error) {
	userID, err := s.issuer.Verify(token)

	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return nil, newError(KindAuth, "Token expired", err)
	case err != nil:
		return nil, newError(KindAuth, "Invalid token", err)
	}

	acc, err := s.Profile(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, newError(KindAuth, "Invalid token", nil)
	}

	return acc, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
