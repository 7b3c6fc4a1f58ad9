// Package auth 签发与校验访问令牌（HS256 JWT），并负责密码哈希.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yeisme/sharevault/pkg/configs"
)

var (
	// ErrTokenExpired 令牌已过期.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid 签名、格式或声明不合法.
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims 令牌声明，userId 与前端约定保持一致.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Issuer 令牌签发与校验.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer 根据配置创建 Issuer.
func NewIssuer(cfg configs.AuthConfig) *Issuer {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = configs.DefaultTokenTTL
	}

	return &Issuer{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL 返回令牌有效期.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue 为 userID 签发令牌，过期时间为签发时间加 TTL.
func (i *Issuer) Issue(userID string) (string, error) {
	now := i.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify 校验令牌并返回其中的用户 ID；过期返回 ErrTokenExpired，其余失败返回 ErrTokenInvalid.
func (i *Issuer) Verify(token string) (string, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrTokenExpired
	case err != nil, !parsed.Valid:
		return "", ErrTokenInvalid
	case claims.UserID == "":
		return "", ErrTokenInvalid
	}

	return claims.UserID, nil
}
