package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultTokenTTL   = 7 * 24 * time.Hour // 令牌有效期 7 天
	DefaultBcryptCost = 10
	DefaultJWTIssuer  = "sharevault"
)

// AuthConfig 访问令牌与密码相关配置.
type AuthConfig struct {
	// JWTSecret HS256 签名密钥，生产环境必须通过配置或 SHAREVAULT_AUTH_JWT_SECRET 设置.
	JWTSecret  string        `mapstructure:"jwt_secret"  rule:"required,min=8"`
	Issuer     string        `mapstructure:"issuer"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"   rule:"min=1s"`
	BcryptCost int           `mapstructure:"bcrypt_cost" rule:"min=4,max=31"`
}

func (c *AuthConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("auth.jwt_secret", "change-me-in-production")
	v.SetDefault("auth.issuer", DefaultJWTIssuer)
	v.SetDefault("auth.token_ttl", DefaultTokenTTL)
	v.SetDefault("auth.bcrypt_cost", DefaultBcryptCost)
}
